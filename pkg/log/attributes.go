package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "Ridge", "LGBMRegressor".
	ModelNameKey = "model.name"

	// MemberKey identifies an ensemble member by its configured name.
	MemberKey = "ensemble.member"

	// OperationKey specifies the operation: "fit", "predict", "transform".
	OperationKey = "ml.operation"

	// ComponentKey identifies the package doing the work.
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase, e.g. "preprocessing", "training".
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey   = "data.samples"
	FeaturesKey  = "data.features"
	NonZeroKey   = "data.nnz"
	BatchSizeKey = "data.batch_size"
	ColumnKey    = "data.column"
)

// Performance and training progress.
const (
	DurationMsKey     = "perf.duration_ms"
	LossKey           = "metrics.loss"
	ValidLossKey      = "metrics.valid_loss"
	IterationKey      = "training.iteration"
	LearningRateKey   = "hyperparams.learning_rate"
	RegularizationKey = "hyperparams.regularization"
	RandomSeedKey     = "config.random_seed"
)

// Pipeline bookkeeping.
const (
	// RunIDKey tags every record emitted by a single pipeline run.
	RunIDKey = "pipeline.run_id"

	// StageKey names the pipeline stage, e.g. "load", "normalize", "assemble".
	StageKey = "pipeline.stage"

	// BlockKey names a sparse feature block.
	BlockKey = "feature.block"

	// VocabularyKey records the size of a fitted vocabulary.
	VocabularyKey = "feature.vocabulary_size"

	// WeightKey records an ensemble blend weight.
	WeightKey = "ensemble.weight"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
)
