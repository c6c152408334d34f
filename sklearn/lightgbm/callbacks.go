package lightgbm

import (
	"time"

	"github.com/YuminosukeSato/pricecast/pkg/log"
)

// Names of the evaluation results reported to callbacks.
const (
	EvalTrainRMSE = "training.rmse"
	EvalValidRMSE = "valid_1.rmse"
)

// CallbackEnv contains the environment for callbacks
type CallbackEnv struct {
	Iteration    int // 1-based
	BeginTime    time.Time
	EndTime      time.Time
	EvalResults  map[string]float64
	StopTraining bool
}

// Callback is a function that can be called during training
type Callback func(env *CallbackEnv) error

// LogEvaluation logs evaluation results every period iterations
func LogEvaluation(logger log.Logger, period int) Callback {
	return func(env *CallbackEnv) error {
		if period <= 0 || env.Iteration%period != 0 {
			return nil
		}
		fields := []any{log.IterationKey, env.Iteration}
		if v, ok := env.EvalResults[EvalTrainRMSE]; ok {
			fields = append(fields, log.LossKey, v)
		}
		if v, ok := env.EvalResults[EvalValidRMSE]; ok {
			fields = append(fields, log.ValidLossKey, v)
		}
		logger.Info("boosting round", fields...)
		return nil
	}
}

// RecordEvaluation records evaluation history
func RecordEvaluation(history *map[string][]float64) Callback {
	return func(env *CallbackEnv) error {
		if *history == nil {
			*history = make(map[string][]float64)
		}
		for name, value := range env.EvalResults {
			(*history)[name] = append((*history)[name], value)
		}
		return nil
	}
}

// CallbackList manages multiple callbacks
type CallbackList struct {
	callbacks []Callback
	env       *CallbackEnv
}

// NewCallbackList creates a new callback list
func NewCallbackList(callbacks ...Callback) *CallbackList {
	return &CallbackList{
		callbacks: callbacks,
		env: &CallbackEnv{
			EvalResults: make(map[string]float64),
		},
	}
}

// BeforeIteration records the iteration start
func (cl *CallbackList) BeforeIteration(iteration int) {
	cl.env.Iteration = iteration
	cl.env.BeginTime = time.Now()
}

// AfterIteration calls callbacks after each iteration
func (cl *CallbackList) AfterIteration(iteration int, evalResults map[string]float64) error {
	cl.env.Iteration = iteration
	cl.env.EndTime = time.Now()
	cl.env.EvalResults = evalResults

	for _, cb := range cl.callbacks {
		if err := cb(cl.env); err != nil {
			return err
		}
	}
	return nil
}

// ShouldStop returns whether training should stop
func (cl *CallbackList) ShouldStop() bool {
	return cl.env.StopTraining
}
