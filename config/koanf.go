package config

import (
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/YuminosukeSato/pricecast/pkg/errors"
)

// EnvPrefix prefixes every environment override. Nested keys are joined
// with "__", e.g. PRICECAST_FEATURES__NUM_BRANDS.
const EnvPrefix = "PRICECAST_"

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "PRICECAST_CONFIG"

// DefaultConfigPaths are searched in order when no path is given.
var DefaultConfigPaths = []string{
	"pricecast.yaml",
	"pricecast.yml",
}

// weightTolerance は重み合計の許容誤差
const weightTolerance = 1e-6

var sliceConfigPaths = []string{
	"input.null_values",
	"embedding.fallback",
}

// Load builds the configuration with precedence env > file > defaults.
// path may be empty, in which case ConfigPathEnvVar and
// DefaultConfigPaths are consulted; a missing default file is not an
// error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", path)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load environment variables")
	}
	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransformFunc は PRICECAST_FEATURES__NUM_BRANDS を features.num_brands に変換する
func envTransformFunc(key string) string {
	if key == ConfigPathEnvVar {
		return ""
	}
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

// processSliceFields splits comma separated env values for list settings.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return errors.Wrapf(err, "failed to set %s", path)
		}
	}
	return nil
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterStructValidation(validateModels, ModelsConfig{})
		validate.RegisterStructValidation(validateMember, MemberConfig{})
		validate.RegisterStructValidation(validateEmbedding, EmbeddingConfig{})
	})
	return validate
}

// Validate checks field ranges, member hyperparameters and that the blend
// weights form a convex combination.
func (c *Config) Validate() error {
	err := getValidator().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return errors.NewValidationError(fe.Namespace(), reason, fe.Value())
	}
	return err
}

func validateModels(sl validator.StructLevel) {
	m := sl.Current().Interface().(ModelsConfig)
	if len(m.Members) == 0 {
		return
	}
	sum := 0.0
	seen := make(map[string]bool, len(m.Members))
	for _, mem := range m.Members {
		sum += mem.Weight
		if seen[mem.Name] {
			sl.ReportError(m.Members, "Members", "Members", "unique_names", mem.Name)
		}
		seen[mem.Name] = true
	}
	if math.Abs(sum-1) > weightTolerance {
		sl.ReportError(m.Members, "Members", "Members", "convex_weights", "")
	}
}

func validateMember(sl validator.StructLevel) {
	m := sl.Current().Interface().(MemberConfig)
	switch m.Kind {
	case "ridge":
		if m.Alpha <= 0 {
			sl.ReportError(m.Alpha, "Alpha", "Alpha", "gt", "0")
		}
	case "lgbm":
		if m.LearningRate <= 0 {
			sl.ReportError(m.LearningRate, "LearningRate", "LearningRate", "gt", "0")
		}
		if m.NumLeaves < 2 {
			sl.ReportError(m.NumLeaves, "NumLeaves", "NumLeaves", "gte", "2")
		}
		if m.NumIterations < 1 {
			sl.ReportError(m.NumIterations, "NumIterations", "NumIterations", "gte", "1")
		}
		if m.EarlyStoppingRounds > 0 && m.ValidationFraction <= 0 {
			sl.ReportError(m.ValidationFraction, "ValidationFraction", "ValidationFraction", "gt", "0")
		}
	}
}

func validateEmbedding(sl validator.StructLevel) {
	e := sl.Current().Interface().(EmbeddingConfig)
	if n := len(e.Fallback); n != 0 && n != e.Dim {
		sl.ReportError(e.Fallback, "Fallback", "Fallback", "len", strconv.Itoa(e.Dim))
	}
}
