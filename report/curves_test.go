package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLearningCurveWritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plots", "lgbm_1.png")
	err := LearningCurve(path, "lgbm_1", map[string][]float64{
		"training.rmse": {1.0, 0.8, 0.7, 0.65},
		"valid_1.rmse":  {1.1, 0.9, 0.85, 0.86},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestLearningCurveNeedsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.png")
	assert.Error(t, LearningCurve(path, "x", nil))
	assert.Error(t, LearningCurve(path, "x", map[string][]float64{"valid_1.rmse": {}}))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
