package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/pricecast/pkg/errors"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4000, cfg.Features.NumBrands)
	assert.Equal(t, 1000, cfg.Features.NumCategories)
	assert.Equal(t, 10, cfg.Features.Name.MinDF)
	assert.Equal(t, 50000, cfg.Features.Description.MaxFeatures)
	assert.Equal(t, 3, cfg.Features.Description.NGramMax)
	assert.Len(t, cfg.Models.Members, 5)
	assert.InDeltaSlice(t, []float64{0.16, 0.05, 0.05, 0.5, 0.24}, cfg.Models.Weights(), 1e-12)
}

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pricecast.yaml")
	yml := `
features:
  num_brands: 10
  name:
    min_df: 2
models:
  members:
    - name: r
      kind: ridge
      weight: 0.4
      alpha: 2
      solver: lsqr
    - name: g
      kind: lgbm
      weight: 0.6
      learning_rate: 0.3
      num_leaves: 4
      num_iterations: 10
      early_stopping_rounds: 2
      validation_fraction: 0.2
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv("PRICECAST_FEATURES__NUM_CATEGORIES", "25")
	t.Setenv("PRICECAST_INPUT__NULL_VALUES", "NA, null")
	t.Setenv("PRICECAST_LOGGING__LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	// file
	assert.Equal(t, 10, cfg.Features.NumBrands)
	assert.Equal(t, 2, cfg.Features.Name.MinDF)
	require.Len(t, cfg.Models.Members, 2)
	assert.Equal(t, "lsqr", cfg.Models.Members[0].Solver)
	assert.Equal(t, 4, cfg.Models.Members[1].NumLeaves)
	// env
	assert.Equal(t, 25, cfg.Features.NumCategories)
	assert.Equal(t, []string{"NA", "null"}, cfg.Input.NullValues)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// defaults
	assert.Equal(t, "tfidf", cfg.Features.Description.Kind)
	assert.Equal(t, "count", cfg.Features.Name.Kind)
}

func TestLoadEmbeddingFallbackFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricecast.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedding:\n  dim: 2\n"), 0o600))
	t.Setenv("PRICECAST_EMBEDDING__FALLBACK", "0.5, -0.25")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Embedding.Dim)
	assert.Equal(t, []float64{0.5, -0.25}, cfg.Embedding.Fallback)

	t.Setenv("PRICECAST_EMBEDDING__FALLBACK", "1")
	_, err = Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"weights not convex", func(c *Config) { c.Models.Members[0].Weight = 0.5 }},
		{"negative weight", func(c *Config) {
			c.Models.Members[0].Weight = -0.1
			c.Models.Members[1].Weight = 0.31
		}},
		{"duplicate member", func(c *Config) { c.Models.Members[1].Name = c.Models.Members[0].Name }},
		{"ridge without alpha", func(c *Config) { c.Models.Members[0].Alpha = 0 }},
		{"lgbm with one leaf", func(c *Config) { c.Models.Members[3].NumLeaves = 1 }},
		{"unknown kind", func(c *Config) { c.Models.Members[0].Kind = "svm" }},
		{"unknown solver", func(c *Config) { c.Models.Members[0].Solver = "cholesky" }},
		{"no members", func(c *Config) { c.Models.Members = nil }},
		{"bad text kind", func(c *Config) { c.Features.Name.Kind = "bert" }},
		{"ngram range", func(c *Config) { c.Features.Description.NGramMax = 0 }},
		{"sqlite without db", func(c *Config) { c.Input.Format = "sqlite" }},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"zero brands", func(c *Config) { c.Features.NumBrands = 0 }},
		{"unknown objective", func(c *Config) { c.Models.Members[3].Objective = "poisson" }},
		{"negative huber delta", func(c *Config) { c.Models.Members[3].HuberDelta = -1 }},
		{"fallback length", func(c *Config) { c.Embedding.Fallback = []float64{1, 2} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var ve *errors.ValidationError
			assert.True(t, errors.As(err, &ve), "got %T", err)
		})
	}
}

func TestEnvTransform(t *testing.T) {
	assert.Equal(t, "features.name.min_df", envTransformFunc("PRICECAST_FEATURES__NAME__MIN_DF"))
	assert.Equal(t, "output.submission", envTransformFunc("PRICECAST_OUTPUT__SUBMISSION"))
	assert.Equal(t, "", envTransformFunc(ConfigPathEnvVar))
}
