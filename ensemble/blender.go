// Package ensemble fits several regressors on the same design matrix and
// blends their log-price predictions with fixed convex weights.
package ensemble

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pricecast/core/model"
	"github.com/YuminosukeSato/pricecast/core/sparse"
	"github.com/YuminosukeSato/pricecast/metrics"
	"github.com/YuminosukeSato/pricecast/pkg/errors"
	"github.com/YuminosukeSato/pricecast/pkg/log"
)

// WeightTolerance は重みの合計が1からずれてよい幅
const WeightTolerance = 1e-6

// Member is one blended regressor. New is called once per fit so that
// members never share estimator state.
type Member struct {
	Name   string
	Weight float64
	New    func() model.Regressor
}

// MemberResult holds what one member produced.
type MemberResult struct {
	Name        string         `json:"name"`
	Weight      float64        `json:"weight"`
	Predictions []float64      `json:"-"` // log space, test rows
	Train       metrics.Report `json:"train"`
	// TrainRMSLE は価格空間 (expm1 後) での学習 RMSLE
	TrainRMSLE float64         `json:"train_rmsle"`
	DurationMs int64           `json:"duration_ms"`
	Model      model.Regressor `json:"-"`
}

// Result is the blended output.
type Result struct {
	Members []MemberResult `json:"members"`
	// Blended は対数空間での加重和
	Blended []float64 `json:"-"`
	// Prices = max(expm1(Blended), 0)
	Prices []float64 `json:"-"`
}

// Blender fits members sequentially and blends their predictions.
type Blender struct {
	members []Member

	// OnMember is called after each member has been fitted and has
	// predicted.
	OnMember func(r MemberResult)

	logger log.Logger
}

// NewBlender validates members: at least one, unique names, weights in
// [0, 1] summing to 1.
func NewBlender(members ...Member) (*Blender, error) {
	if err := ValidateWeights(members); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		if m.Name == "" {
			return nil, errors.NewValidationError("members.name", "must not be empty", m.Name)
		}
		if seen[m.Name] {
			return nil, errors.NewValidationError("members.name", "duplicate member", m.Name)
		}
		seen[m.Name] = true
		if m.New == nil {
			return nil, errors.NewValidationError("members.new", "factory is required", m.Name)
		}
	}
	return &Blender{members: members, logger: log.GetLoggerWithName("ensemble")}, nil
}

// ValidateWeights checks that the member weights form a convex
// combination.
func ValidateWeights(members []Member) error {
	if len(members) == 0 {
		return errors.NewValidationError("members", "at least one member is required", 0)
	}
	sum := 0.0
	for _, m := range members {
		if m.Weight < 0 || m.Weight > 1 || math.IsNaN(m.Weight) {
			return errors.NewValidationError("weight", "must be in [0, 1]", m.Weight)
		}
		sum += m.Weight
	}
	if math.Abs(sum-1) > WeightTolerance {
		return errors.NewValidationError("weights", "must sum to 1", sum)
	}
	return nil
}

// Members returns the configured members.
func (b *Blender) Members() []Member { return b.members }

// FitPredict fits every member on (X, y) and predicts Xtest. y is the
// log1p target. The first member failure aborts the ensemble with a
// ModelFitError.
func (b *Blender) FitPredict(ctx context.Context, X *sparse.CSR, y []float64, Xtest *sparse.CSR) (*Result, error) {
	rows, cols := X.Dims()
	if len(y) != rows {
		return nil, errors.NewDimensionError("Blender.FitPredict", rows, len(y), 0)
	}
	if _, tc := Xtest.Dims(); tc != cols {
		return nil, errors.NewDimensionError("Blender.FitPredict(test)", cols, tc, 1)
	}
	yCol := model.ColumnMatrix(y)

	res := &Result{Members: make([]MemberResult, 0, len(b.members))}
	preds := make([][]float64, 0, len(b.members))
	for _, m := range b.members {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := b.fitMember(m, X, yCol, y, Xtest)
		if err != nil {
			b.logger.Error("ensemble member failed", log.MemberKey, m.Name, "error", err)
			return nil, err
		}
		res.Members = append(res.Members, r)
		preds = append(preds, r.Predictions)
		if b.OnMember != nil {
			b.OnMember(r)
		}
	}

	res.Blended = Blend(preds, b.weights())
	res.Prices = ToPrice(res.Blended)
	return res, nil
}

func (b *Blender) fitMember(m Member, X *sparse.CSR, yCol mat.Matrix, y []float64, Xtest *sparse.CSR) (MemberResult, error) {
	start := time.Now()
	reg := m.New()
	logger := b.logger.With(log.MemberKey, m.Name, log.WeightKey, m.Weight)
	logger.Info("fitting member", log.PhaseKey, log.PhaseTraining)

	// 推定器内の panic も ModelFitError としてアンサンブルを止める
	fit := func() error { return reg.Fit(X, yCol) }
	if err := errors.SafeExecute(m.Name+".Fit", fit); err != nil {
		return MemberResult{}, errors.NewModelFitError(m.Name, "fit", err)
	}
	trainPred, err := predict(reg, X)
	if err != nil {
		return MemberResult{}, errors.NewModelFitError(m.Name, "predict", err)
	}
	report, err := metrics.Evaluate(y, trainPred)
	if err != nil {
		return MemberResult{}, errors.NewModelFitError(m.Name, "evaluate", err)
	}
	rmsle, err := metrics.RMSLE(ToPrice(y), ToPrice(trainPred))
	if err != nil {
		return MemberResult{}, errors.NewModelFitError(m.Name, "evaluate", err)
	}
	testPred, err := predict(reg, Xtest)
	if err != nil {
		return MemberResult{}, errors.NewModelFitError(m.Name, "predict", err)
	}
	if err := errors.CheckNumericalStability("ensemble."+m.Name, testPred, 0); err != nil {
		return MemberResult{}, errors.NewModelFitError(m.Name, "predict", err)
	}

	r := MemberResult{
		Name:        m.Name,
		Weight:      m.Weight,
		Predictions: testPred,
		Train:       report,
		TrainRMSLE:  rmsle,
		DurationMs:  time.Since(start).Milliseconds(),
		Model:       reg,
	}
	logger.Info("member finished",
		log.LossKey, report.RMSE,
		"rmsle", rmsle,
		log.DurationMsKey, r.DurationMs,
	)
	return r, nil
}

func predict(reg model.Regressor, X *sparse.CSR) ([]float64, error) {
	out, err := reg.Predict(X)
	if err != nil {
		return nil, err
	}
	return model.ColumnValues("predict", out)
}

func (b *Blender) weights() []float64 {
	w := make([]float64, len(b.members))
	for i, m := range b.members {
		w[i] = m.Weight
	}
	return w
}

// Blend returns Σ_k weights[k]·preds[k][i] for each row i.
func Blend(preds [][]float64, weights []float64) []float64 {
	if len(preds) == 0 {
		return nil
	}
	out := make([]float64, len(preds[0]))
	for k, p := range preds {
		w := weights[k]
		for i, v := range p {
			out[i] += w * v
		}
	}
	return out
}

// ToPrice inverts log1p and clamps at zero.
func ToPrice(logPrices []float64) []float64 {
	out := make([]float64, len(logPrices))
	for i, v := range logPrices {
		out[i] = math.Max(math.Expm1(v), 0)
	}
	return out
}
