package lightgbm

import (
	"math"

	"github.com/YuminosukeSato/pricecast/pkg/errors"
)

// ObjectiveFunction defines the interface for different objective functions
type ObjectiveFunction interface {
	// CalculateGradient calculates the gradient for a single sample
	CalculateGradient(prediction, target float64) float64

	// CalculateHessian calculates the hessian for a single sample
	CalculateHessian(prediction, target float64) float64

	// CalculateLoss calculates the loss for a single sample
	CalculateLoss(prediction, target float64) float64

	// GetInitScore returns the initial score for this objective
	GetInitScore(targets []float64) float64

	// Name returns the name of the objective
	Name() string
}

// L2Objective implements L2 (Mean Squared Error) loss
type L2Objective struct{}

// NewL2Objective creates the squared-error objective.
func NewL2Objective() *L2Objective {
	return &L2Objective{}
}

func (o *L2Objective) CalculateGradient(prediction, target float64) float64 {
	return prediction - target
}

func (o *L2Objective) CalculateHessian(prediction, target float64) float64 {
	return 1.0
}

func (o *L2Objective) CalculateLoss(prediction, target float64) float64 {
	diff := prediction - target
	return 0.5 * diff * diff
}

// GetInitScore は boost_from_average と同じく目的変数の平均を返す
func (o *L2Objective) GetInitScore(targets []float64) float64 {
	if len(targets) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, t := range targets {
		sum += t
	}
	return sum / float64(len(targets))
}

func (o *L2Objective) Name() string {
	return "regression"
}

// HuberObjective implements Huber loss for robust regression
type HuberObjective struct {
	Delta float64
}

// NewHuberObjective creates a Huber objective; delta defaults to 1.
func NewHuberObjective(delta float64) *HuberObjective {
	if delta <= 0 {
		delta = 1.0
	}
	return &HuberObjective{Delta: delta}
}

func (o *HuberObjective) CalculateGradient(prediction, target float64) float64 {
	diff := prediction - target
	if math.Abs(diff) <= o.Delta {
		return diff
	}
	return math.Copysign(o.Delta, diff)
}

func (o *HuberObjective) CalculateHessian(prediction, target float64) float64 {
	return 1.0
}

func (o *HuberObjective) CalculateLoss(prediction, target float64) float64 {
	diff := math.Abs(prediction - target)
	if diff <= o.Delta {
		return 0.5 * diff * diff
	}
	return o.Delta * (diff - 0.5*o.Delta)
}

func (o *HuberObjective) GetInitScore(targets []float64) float64 {
	return NewL2Objective().GetInitScore(targets)
}

func (o *HuberObjective) Name() string {
	return "huber"
}

// CreateObjectiveFunction creates an objective function based on the name
func CreateObjectiveFunction(name string, params *TrainingParams) (ObjectiveFunction, error) {
	switch name {
	case "", "regression", "regression_l2", "l2", "mse":
		return NewL2Objective(), nil
	case "huber":
		return NewHuberObjective(params.HuberDelta), nil
	default:
		return nil, errors.NewValidationError("objective", "unsupported objective", name)
	}
}
