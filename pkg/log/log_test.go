package log

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/YuminosukeSato/pricecast/pkg/errors"
)

func TestTestLoggerCapturesLevelsAndFields(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Warn("warning message")
	testLogger.Error("error message", fmt.Errorf("test error"), StageKey, "load")

	require.NotEmpty(t, buffer.String())
	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		assert.True(t, testLogger.ContainsMessage(msg), msg)
	}
	assert.True(t, testLogger.ContainsField("key1", "value1"))
	assert.True(t, testLogger.ContainsField("number", 42.0))
	assert.True(t, testLogger.ContainsField("error", "test error"))
	assert.True(t, testLogger.ContainsField(StageKey, "load"))
}

func TestTestLoggerWithSharesBuffer(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	child := testLogger.With(RunIDKey, "run-1", ComponentKey, "pipeline")
	child.Info("stage done", StageKey, "assemble")
	testLogger.Debug("filtered out")

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "run-1", entries[0][RunIDKey])
	assert.Equal(t, "assemble", entries[0][StageKey])
	assert.False(t, child.Enabled(context.Background(), LevelDebug))
}

func TestZerologProviderWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelInfo, false)
	logger := p.GetLoggerWithName("ensemble").With(RunIDKey, "abc")

	logger.Debug("hidden")
	logger.Info("model fitted", MemberKey, "ridge_sag", DurationMsKey, 12, LossKey, 0.5)
	logger.Error("fit failed", perrors.NewModelFitError("lgbm_1", "fit", perrors.New("boom")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "ensemble", first["component"])
	assert.Equal(t, "abc", first[RunIDKey])
	assert.Equal(t, "ridge_sag", first[MemberKey])
	assert.Equal(t, 12.0, first[DurationMsKey])

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Contains(t, second["error"], "lgbm_1")

	p.SetLevel(LevelDebug)
	logger.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	prev := SetProvider(NewZerologProvider(&bytes.Buffer{}, LevelInfo, false))
	defer SetProvider(prev)

	assert.Error(t, Setup("verbose", "json", &bytes.Buffer{}))
	assert.Error(t, Setup("info", "xml", &bytes.Buffer{}))

	var buf bytes.Buffer
	require.NoError(t, Setup("warn", "json", &buf))
	GetLoggerWithName("x").Info("dropped")
	GetLoggerWithName("x").Warn("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")

	perrors.Warn(perrors.NewConvergenceWarning("sag", 3, ""))
	assert.Contains(t, buf.String(), "sag failed to converge")
	perrors.SetZerologWarnFunc(nil)
}
