package linear_model

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pricecast/core/model"
	"github.com/YuminosukeSato/pricecast/core/sparse"
	"github.com/YuminosukeSato/pricecast/pkg/errors"
	"github.com/YuminosukeSato/pricecast/pkg/log"
)

// Solver names accepted by Ridge.
const (
	SolverAuto = "auto"
	SolverSAG  = "sag"
	SolverLSQR = "lsqr"
)

// Ridge はscikit-learn互換のL2正則化線形回帰
// 疎行列 (sparse.CSR) を前提とし、sag と lsqr の2つのソルバーを持つ
//
// 目的関数: ||y - Xw - b||² + alpha * ||w||²  (切片 b は正則化しない)
type Ridge struct {
	model.BaseEstimator

	alpha        float64
	fitIntercept bool
	solver       string
	maxIter      int
	tol          float64
	randomState  uint64

	coef      []float64
	intercept float64
	nIter     int
}

// RidgeOption は設定オプション
type RidgeOption func(*Ridge)

// WithAlpha は正則化の強さを設定
func WithAlpha(alpha float64) RidgeOption {
	return func(r *Ridge) { r.alpha = alpha }
}

// WithFitIntercept は切片の学習有無を設定
func WithFitIntercept(fit bool) RidgeOption {
	return func(r *Ridge) { r.fitIntercept = fit }
}

// WithSolver はソルバーを設定 ("auto", "sag", "lsqr")
func WithSolver(solver string) RidgeOption {
	return func(r *Ridge) { r.solver = solver }
}

// WithMaxIter は最大反復回数を設定 (0 ならソルバー既定値)
func WithMaxIter(n int) RidgeOption {
	return func(r *Ridge) { r.maxIter = n }
}

// WithTol は収束判定の閾値を設定
func WithTol(tol float64) RidgeOption {
	return func(r *Ridge) { r.tol = tol }
}

// WithRandomState は sag のサンプル順序の乱数シードを設定
func WithRandomState(seed uint64) RidgeOption {
	return func(r *Ridge) { r.randomState = seed }
}

// NewRidge は新しいRidgeモデルを作成
//
// 使用例:
//
//	r := linear_model.NewRidge(
//		linear_model.WithSolver("sag"),
//		linear_model.WithAlpha(1.25),
//		linear_model.WithFitIntercept(false),
//	)
//	err := r.Fit(X, y)
func NewRidge(options ...RidgeOption) *Ridge {
	r := &Ridge{
		alpha:        1.0,
		fitIntercept: true,
		solver:       SolverAuto,
		tol:          1e-3,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *Ridge) validate() error {
	if r.alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", r.alpha)
	}
	if r.tol <= 0 {
		return errors.NewValidationError("tol", "must be positive", r.tol)
	}
	if r.maxIter < 0 {
		return errors.NewValidationError("max_iter", "must be non-negative", r.maxIter)
	}
	switch r.solver {
	case SolverAuto, SolverSAG, SolverLSQR:
	default:
		return errors.NewValidationError("solver", "must be one of auto, sag, lsqr", r.solver)
	}
	return nil
}

// Fit はモデルを訓練データで学習
func (r *Ridge) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Ridge.Fit")

	if err := r.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 {
		return errors.NewModelError("Ridge.Fit", "empty data", errors.ErrEmptyData)
	}
	target, err := model.ColumnValues("Ridge.Fit", y)
	if err != nil {
		return err
	}
	if len(target) != rows {
		return errors.NewDimensionError("Ridge.Fit", rows, len(target), 0)
	}
	csr := asCSR(X)
	if csr.HasNonFinite() {
		return errors.NewModelError("Ridge.Fit", "input", errors.ErrNonFinite)
	}

	start := time.Now()
	var res solution
	switch r.solver {
	case SolverSAG:
		res = solveSAG(csr, target, r.alpha, r.fitIntercept, r.maxIter, r.tol, r.randomState)
	default:
		res = solveLSQR(csr, target, r.alpha, r.fitIntercept, r.maxIter, r.tol)
	}
	if !res.converged {
		errors.Warn(errors.NewConvergenceWarning("Ridge("+r.solverName()+")", res.nIter,
			"maximum number of iterations reached"))
	}
	if err := errors.CheckNumericalStability("Ridge.Fit", res.coef, res.nIter); err != nil {
		return err
	}

	r.coef = res.coef
	r.intercept = res.intercept
	r.nIter = res.nIter
	r.SetNFeatures(cols)
	r.SetFitted()

	log.GetLoggerWithName("Ridge").Debug("ridge fitted",
		log.OperationKey, log.OperationFit,
		"solver", r.solverName(),
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.RegularizationKey, r.alpha,
		log.IterationKey, res.nIter,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict は学習済みモデルで予測する (n_samples × 1)
func (r *Ridge) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !r.IsFitted() {
		return nil, errors.NewNotFittedError("Ridge", "Predict")
	}
	rows, cols := X.Dims()
	if cols != r.NFeatures() {
		return nil, errors.NewDimensionError("Ridge.Predict", r.NFeatures(), cols, 1)
	}
	out := make([]float64, rows)
	asCSR(X).MulVecTo(out, r.coef)
	for i := range out {
		out[i] += r.intercept
	}
	return model.ColumnMatrix(out), nil
}

// Coef は学習済み係数を返す
func (r *Ridge) Coef() []float64 { return r.coef }

// Intercept は学習済み切片を返す
func (r *Ridge) Intercept() float64 { return r.intercept }

// NIter はソルバーの反復回数を返す
func (r *Ridge) NIter() int { return r.nIter }

// GetParams はハイパーパラメータを返す
func (r *Ridge) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         r.alpha,
		"fit_intercept": r.fitIntercept,
		"solver":        r.solver,
		"max_iter":      r.maxIter,
		"tol":           r.tol,
		"random_state":  r.randomState,
	}
}

func (r *Ridge) solverName() string {
	if r.solver == SolverAuto {
		return SolverLSQR
	}
	return r.solver
}

type solution struct {
	coef      []float64
	intercept float64
	nIter     int
	converged bool
}

func asCSR(X mat.Matrix) *sparse.CSR {
	if m, ok := X.(*sparse.CSR); ok {
		return m
	}
	return sparse.FromMatrix(X)
}

var (
	_ model.Regressor       = (*Ridge)(nil)
	_ model.ParameterGetter = (*Ridge)(nil)
)
