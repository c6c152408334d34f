// Package config loads pipeline settings from defaults, an optional YAML
// file and PRICECAST_ environment variables.
package config

// Config is the root of the pipeline configuration.
type Config struct {
	Input     InputConfig     `koanf:"input"`
	Output    OutputConfig    `koanf:"output"`
	Features  FeaturesConfig  `koanf:"features"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Models    ModelsConfig    `koanf:"models"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// InputConfig は学習・テスト表の読み込み元
type InputConfig struct {
	Format     string   `koanf:"format" validate:"oneof=tsv sqlite"`
	TrainPath  string   `koanf:"train_path" validate:"required_if=Format tsv"`
	TestPath   string   `koanf:"test_path" validate:"required_if=Format tsv"`
	SQLitePath string   `koanf:"sqlite_path" validate:"required_if=Format sqlite"`
	TrainTable string   `koanf:"train_table" validate:"required_if=Format sqlite"`
	TestTable  string   `koanf:"test_table" validate:"required_if=Format sqlite"`
	NullValues []string `koanf:"null_values"`
}

// OutputConfig は成果物の出力先。空文字列の項目は出力しない
type OutputConfig struct {
	Submission  string `koanf:"submission" validate:"required"`
	ArtifactDir string `koanf:"artifact_dir" validate:"required"`
	PlotDir     string `koanf:"plot_dir"`
	MetricsFile string `koanf:"metrics_file"`
}

// FeaturesConfig covers normalisation, cardinality caps and the text
// columns of the ensemble design matrix.
type FeaturesConfig struct {
	NumBrands              int    `koanf:"num_brands" validate:"gte=1"`
	NumCategories          int    `koanf:"num_categories" validate:"gte=1"`
	BrandSentinel          string `koanf:"brand_sentinel" validate:"required"`
	CategorySentinel       string `koanf:"category_sentinel" validate:"required"`
	CategoryDepth          int    `koanf:"category_depth" validate:"gte=1"`
	DescriptionPlaceholder string `koanf:"description_placeholder"`
	PriceMarker            string `koanf:"price_marker"`

	Name        TextConfig `koanf:"name"`
	Category    TextConfig `koanf:"category"`
	Description TextConfig `koanf:"description"`
}

// TextConfig selects and parameterises one text encoder.
type TextConfig struct {
	Kind        string `koanf:"kind" validate:"oneof=count tfidf embedding"`
	MinDF       int    `koanf:"min_df" validate:"gte=1"`
	MaxFeatures int    `koanf:"max_features" validate:"gte=0"`
	NGramMin    int    `koanf:"ngram_min" validate:"gte=1"`
	NGramMax    int    `koanf:"ngram_max" validate:"gtefield=NGramMin"`
	StopWords   string `koanf:"stop_words" validate:"omitempty,oneof=none english"`
	Binary      bool   `koanf:"binary"`
	Norm        string `koanf:"norm" validate:"omitempty,oneof=l1 l2 none"`
	SublinearTF bool   `koanf:"sublinear_tf"`
}

// EmbeddingConfig はレンマ化+平均埋め込みの設定
// VectorsPath が空ならハッシュ埋め込みを使う
type EmbeddingConfig struct {
	VectorsPath   string `koanf:"vectors_path"`
	Dim           int    `koanf:"dim" validate:"gte=1"`
	Seed          uint64 `koanf:"seed"`
	BatchSize     int    `koanf:"batch_size" validate:"gte=1"`
	Workers       int    `koanf:"workers" validate:"gte=1"`
	TextSeparator string `koanf:"text_separator"`
	StopWords     string `koanf:"stop_words" validate:"omitempty,oneof=none english"`
	// Fallback はトークンが1つも残らない文書のベクトル。空ならゼロベクトル
	Fallback []float64 `koanf:"fallback"`
}

// ModelsConfig lists the blended ensemble members.
type ModelsConfig struct {
	Members []MemberConfig `koanf:"members" validate:"required,min=1,dive"`
}

// MemberConfig describes one regressor. Only the fields of its Kind are
// read.
type MemberConfig struct {
	Name   string  `koanf:"name" validate:"required"`
	Kind   string  `koanf:"kind" validate:"oneof=ridge lgbm"`
	Weight float64 `koanf:"weight" validate:"gte=0,lte=1"`

	RandomState uint64 `koanf:"random_state"`

	// ridge
	Alpha        float64 `koanf:"alpha" validate:"gte=0"`
	Solver       string  `koanf:"solver" validate:"omitempty,oneof=auto sag lsqr"`
	FitIntercept bool    `koanf:"fit_intercept"`
	MaxIter      int     `koanf:"max_iter" validate:"gte=0"`
	Tol          float64 `koanf:"tol" validate:"gte=0"`

	// lgbm
	LearningRate        float64 `koanf:"learning_rate" validate:"gte=0"`
	MaxDepth            int     `koanf:"max_depth"`
	NumLeaves           int     `koanf:"num_leaves" validate:"gte=0"`
	NumIterations       int     `koanf:"num_iterations" validate:"gte=0"`
	MaxBin              int     `koanf:"max_bin" validate:"gte=0,lte=65535"`
	MinChildSamples     int     `koanf:"min_child_samples" validate:"gte=0"`
	EarlyStoppingRounds int     `koanf:"early_stopping_rounds" validate:"gte=0"`
	ValidationFraction  float64 `koanf:"validation_fraction" validate:"gte=0,lt=1"`
	VerboseEval         int     `koanf:"verbose_eval" validate:"gte=0"`
	Objective           string  `koanf:"objective" validate:"omitempty,oneof=regression huber"`
	HuberDelta          float64 `koanf:"huber_delta" validate:"gte=0"`
}

// LoggingConfig configures pkg/log.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// Weights returns the blend weights in member order.
func (m ModelsConfig) Weights() []float64 {
	w := make([]float64, len(m.Members))
	for i, mem := range m.Members {
		w[i] = mem.Weight
	}
	return w
}

func defaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			Format:     "tsv",
			TrainPath:  "train.tsv",
			TestPath:   "test.tsv",
			TrainTable: "train",
			TestTable:  "test",
		},
		Output: OutputConfig{
			Submission:  "submission.csv",
			ArtifactDir: "artifacts",
		},
		Features: FeaturesConfig{
			NumBrands:              4000,
			NumCategories:          1000,
			BrandSentinel:          "missing",
			CategorySentinel:       "missing",
			CategoryDepth:          3,
			DescriptionPlaceholder: "No description yet",
			PriceMarker:            "[rm]",
			Name: TextConfig{
				Kind: "count", MinDF: 10, NGramMin: 1, NGramMax: 1,
			},
			Category: TextConfig{
				Kind: "count", MinDF: 1, NGramMin: 1, NGramMax: 1,
			},
			Description: TextConfig{
				Kind: "tfidf", MinDF: 1, MaxFeatures: 50000, NGramMin: 1, NGramMax: 3,
				StopWords: "english", Norm: "l2",
			},
		},
		Embedding: EmbeddingConfig{
			Dim:           300,
			Seed:          666,
			BatchSize:     500,
			Workers:       4,
			TextSeparator: "/",
			StopWords:     "english",
		},
		Models: ModelsConfig{Members: DefaultMembers()},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// DefaultMembers returns the three ridge and two boosting members with
// weights 0.16, 0.05, 0.05, 0.5 and 0.24.
func DefaultMembers() []MemberConfig {
	ridge := func(name, solver string, intercept bool, weight float64) MemberConfig {
		return MemberConfig{
			Name: name, Kind: "ridge", Weight: weight, RandomState: 666,
			Alpha: 1.25, Solver: solver, FitIntercept: intercept,
		}
	}
	lgbm := func(name string, lr float64, leaves, rounds, patience int, weight float64) MemberConfig {
		return MemberConfig{
			Name: name, Kind: "lgbm", Weight: weight, RandomState: 666,
			LearningRate: lr, MaxDepth: 3, NumLeaves: leaves, NumIterations: rounds,
			MaxBin: 8192, EarlyStoppingRounds: patience, ValidationFraction: 0.15,
			VerboseEval: 500,
		}
	}
	return []MemberConfig{
		ridge("ridge_sag", "sag", false, 0.16),
		ridge("ridge_lsqr", "lsqr", false, 0.05),
		ridge("ridge_sag_intercept", "sag", true, 0.05),
		lgbm("lgbm_1", 0.715, 110, 7500, 500, 0.5),
		lgbm("lgbm_2", 0.815, 90, 3000, 50, 0.24),
	}
}

// Default returns the built-in configuration.
func Default() *Config { return defaultConfig() }
