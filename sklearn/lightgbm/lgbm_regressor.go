package lightgbm

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pricecast/core/model"
	"github.com/YuminosukeSato/pricecast/core/sparse"
	"github.com/YuminosukeSato/pricecast/pkg/errors"
	"github.com/YuminosukeSato/pricecast/pkg/log"
	"github.com/YuminosukeSato/pricecast/sklearn/model_selection"
)

// LGBMRegressor implements a LightGBM regressor with scikit-learn compatible API
//
// ValidationFraction > 0 のとき、Fit は学習データからその割合を検証用に
// 取り分けて早期終了に使う。分割はインスタンスごとに RandomState から作る。
type LGBMRegressor struct {
	model.BaseEstimator

	// Model
	Model *Model

	// Hyperparameters (matching Python LightGBM)
	NumLeaves          int     // Number of leaves in one tree
	MaxDepth           int     // Maximum tree depth (-1 = no limit)
	LearningRate       float64 // Boosting learning rate
	NumIterations      int     // Number of boosting iterations
	MinChildSamples    int     // Minimum number of data in one leaf
	MinChildWeight     float64 // Minimum sum of hessians in one leaf
	RegLambda          float64 // L2 regularization
	MaxBin             int     // Maximum number of bins per feature
	RandomState        uint64  // Seed of the validation split
	Objective          string  // Objective function
	HuberDelta         float64 // Huber transition point (objective "huber")
	Metric             string  // Evaluation metric
	EarlyStopping      int     // Early stopping rounds
	ValidationFraction float64 // Held-out fraction for early stopping
	VerboseEval        int     // Log evaluation every N rounds (0 = off)

	history map[string][]float64
	logger  log.Logger
}

// NewLGBMRegressor creates a new LightGBM regressor with default parameters
func NewLGBMRegressor() *LGBMRegressor {
	return &LGBMRegressor{
		NumLeaves:       31,
		MaxDepth:        -1, // No limit
		LearningRate:    0.1,
		NumIterations:   100,
		MinChildSamples: 20,
		MinChildWeight:  1e-3,
		MaxBin:          255,
		RandomState:     42,
		Objective:       "regression", // L2 regression by default
		Metric:          "rmse",
		logger:          log.GetLoggerWithName("LGBMRegressor"),
	}
}

// WithNumLeaves sets the number of leaves
func (lgb *LGBMRegressor) WithNumLeaves(n int) *LGBMRegressor {
	lgb.NumLeaves = n
	return lgb
}

// WithMaxDepth sets the maximum depth
func (lgb *LGBMRegressor) WithMaxDepth(d int) *LGBMRegressor {
	lgb.MaxDepth = d
	return lgb
}

// WithLearningRate sets the learning rate
func (lgb *LGBMRegressor) WithLearningRate(lr float64) *LGBMRegressor {
	lgb.LearningRate = lr
	return lgb
}

// WithNumIterations sets the number of iterations
func (lgb *LGBMRegressor) WithNumIterations(n int) *LGBMRegressor {
	lgb.NumIterations = n
	return lgb
}

// WithMinChildSamples sets the minimum number of samples per leaf
func (lgb *LGBMRegressor) WithMinChildSamples(n int) *LGBMRegressor {
	lgb.MinChildSamples = n
	return lgb
}

// WithMaxBin sets the maximum number of histogram bins
func (lgb *LGBMRegressor) WithMaxBin(n int) *LGBMRegressor {
	lgb.MaxBin = n
	return lgb
}

// WithRandomState sets the random seed
func (lgb *LGBMRegressor) WithRandomState(seed uint64) *LGBMRegressor {
	lgb.RandomState = seed
	return lgb
}

// WithObjective sets the objective function
func (lgb *LGBMRegressor) WithObjective(obj string) *LGBMRegressor {
	lgb.Objective = obj
	return lgb
}

// WithEarlyStopping sets early stopping rounds
func (lgb *LGBMRegressor) WithEarlyStopping(rounds int) *LGBMRegressor {
	lgb.EarlyStopping = rounds
	return lgb
}

// WithValidationFraction sets the held-out fraction used for early stopping
func (lgb *LGBMRegressor) WithValidationFraction(f float64) *LGBMRegressor {
	lgb.ValidationFraction = f
	return lgb
}

// WithVerboseEval logs the evaluation every n rounds
func (lgb *LGBMRegressor) WithVerboseEval(n int) *LGBMRegressor {
	lgb.VerboseEval = n
	return lgb
}

// WithHuberDelta sets the Huber transition point
func (lgb *LGBMRegressor) WithHuberDelta(delta float64) *LGBMRegressor {
	lgb.HuberDelta = delta
	return lgb
}

// WithLogger replaces the logger used for evaluation output
func (lgb *LGBMRegressor) WithLogger(l log.Logger) *LGBMRegressor {
	lgb.logger = l
	return lgb
}

func (lgb *LGBMRegressor) params() TrainingParams {
	return TrainingParams{
		NumIterations:       lgb.NumIterations,
		LearningRate:        lgb.LearningRate,
		NumLeaves:           lgb.NumLeaves,
		MaxDepth:            lgb.MaxDepth,
		MinDataInLeaf:       lgb.MinChildSamples,
		MinSumHessianInLeaf: lgb.MinChildWeight,
		Lambda:              lgb.RegLambda,
		MaxBin:              lgb.MaxBin,
		Objective:           lgb.Objective,
		HuberDelta:          lgb.HuberDelta,
		EarlyStopping:       lgb.EarlyStopping,
		Metric:              lgb.Metric,
	}
}

// Fit trains the LightGBM regressor
func (lgb *LGBMRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LGBMRegressor.Fit")

	rows, cols := X.Dims()
	if rows == 0 {
		return errors.NewModelError("LGBMRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	target, err := model.ColumnValues("LGBMRegressor.Fit", y)
	if err != nil {
		return err
	}
	if len(target) != rows {
		return errors.NewDimensionError("LGBMRegressor.Fit", rows, len(target), 0)
	}
	csr := toCSR(X)
	if csr.HasNonFinite() {
		return errors.NewModelError("LGBMRegressor.Fit", "input", errors.ErrNonFinite)
	}

	trainX, trainY := csr, target
	var valid *ValidationData
	if lgb.ValidationFraction > 0 {
		trIdx, vaIdx, err := model_selection.TrainTestSplit(rows, lgb.ValidationFraction, lgb.RandomState)
		if err != nil {
			return err
		}
		if trainX, err = csr.SelectRows(trIdx); err != nil {
			return err
		}
		vx, err := csr.SelectRows(vaIdx)
		if err != nil {
			return err
		}
		trainY = gather(target, trIdx)
		valid = &ValidationData{X: vx, Y: gather(target, vaIdx)}
	}

	lgb.history = nil
	callbacks := []Callback{RecordEvaluation(&lgb.history)}
	if lgb.VerboseEval > 0 {
		callbacks = append(callbacks, LogEvaluation(lgb.logger, lgb.VerboseEval))
	}

	start := time.Now()
	m, err := NewTrainer(lgb.params()).WithCallbacks(callbacks...).Train(trainX, trainY, valid)
	if err != nil {
		return err
	}
	lgb.Model = m
	lgb.SetNFeatures(cols)
	lgb.SetFitted()

	lgb.logger.Info("LGBMRegressor fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.LearningRateKey, lgb.LearningRate,
		"trees", len(m.Trees),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict makes predictions for input samples (n_samples × 1)
func (lgb *LGBMRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lgb.IsFitted() {
		return nil, errors.NewNotFittedError("LGBMRegressor", "Predict")
	}
	_, cols := X.Dims()
	if cols != lgb.NFeatures() {
		return nil, errors.NewDimensionError("LGBMRegressor.Predict", lgb.NFeatures(), cols, 1)
	}
	return model.ColumnMatrix(lgb.Model.Predict(toCSR(X))), nil
}

// EvalHistory returns per-round training and validation RMSE, keyed by
// EvalTrainRMSE and EvalValidRMSE. Rounds after the best iteration are
// included.
func (lgb *LGBMRegressor) EvalHistory() map[string][]float64 {
	return lgb.history
}

// GetParams returns the hyperparameters.
func (lgb *LGBMRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"num_leaves":          lgb.NumLeaves,
		"max_depth":           lgb.MaxDepth,
		"learning_rate":       lgb.LearningRate,
		"n_estimators":        lgb.NumIterations,
		"min_child_samples":   lgb.MinChildSamples,
		"min_child_weight":    lgb.MinChildWeight,
		"reg_lambda":          lgb.RegLambda,
		"max_bin":             lgb.MaxBin,
		"random_state":        lgb.RandomState,
		"objective":           lgb.Objective,
		"huber_delta":         lgb.HuberDelta,
		"metric":              lgb.Metric,
		"early_stopping":      lgb.EarlyStopping,
		"validation_fraction": lgb.ValidationFraction,
	}
}

func toCSR(X mat.Matrix) *sparse.CSR {
	if m, ok := X.(*sparse.CSR); ok {
		return m
	}
	return sparse.FromMatrix(X)
}

func gather(v []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for k, i := range idx {
		out[k] = v[i]
	}
	return out
}

var (
	_ model.Regressor       = (*LGBMRegressor)(nil)
	_ model.ParameterGetter = (*LGBMRegressor)(nil)
)
