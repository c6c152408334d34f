package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecover_WithPanic tests the Recover function when a panic occurs
func TestRecover_WithPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "TestOperation")
		panic("test panic message")
	}

	err := testFunc()
	require.Error(t, err)

	var panicErr *PanicError
	require.True(t, As(err, &panicErr))
	assert.Equal(t, "TestOperation", panicErr.Operation)
	assert.Equal(t, "test panic message", panicErr.PanicValue)
	assert.NotEmpty(t, panicErr.StackTrace)
	assert.Equal(t, "panic in TestOperation: test panic message", panicErr.Error())
}

func TestRecover_KeepsExistingError(t *testing.T) {
	original := fmt.Errorf("original")
	testFunc := func() (err error) {
		defer Recover(&err, "Op")
		err = original
		panic("boom")
	}

	err := testFunc()
	require.Error(t, err)
	assert.True(t, Is(err, original))
	assert.Contains(t, err.Error(), "panic in Op: boom")
}

func TestSafeExecute(t *testing.T) {
	assert.NoError(t, SafeExecute("noop", func() error { return nil }))

	err := SafeExecute("index", func() error {
		var s []int
		_ = s[3]
		return nil
	})
	var panicErr *PanicError
	assert.True(t, As(err, &panicErr))
}
