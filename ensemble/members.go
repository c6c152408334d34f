package ensemble

import (
	"github.com/YuminosukeSato/pricecast/config"
	"github.com/YuminosukeSato/pricecast/core/model"
	"github.com/YuminosukeSato/pricecast/pkg/errors"
	"github.com/YuminosukeSato/pricecast/pkg/log"
	"github.com/YuminosukeSato/pricecast/sklearn/lightgbm"
	"github.com/YuminosukeSato/pricecast/sklearn/linear_model"
)

// Member kinds accepted in config.MemberConfig.Kind.
const (
	KindRidge = "ridge"
	KindLGBM  = "lgbm"
)

// MembersFromConfig builds a factory per configured member.
func MembersFromConfig(cfgs []config.MemberConfig) ([]Member, error) {
	members := make([]Member, 0, len(cfgs))
	for _, c := range cfgs {
		c := c
		var factory func() model.Regressor
		switch c.Kind {
		case KindRidge:
			factory = func() model.Regressor { return newRidge(c) }
		case KindLGBM:
			factory = func() model.Regressor { return newLGBM(c) }
		default:
			return nil, errors.NewValidationError("kind", "unknown member kind", c.Kind)
		}
		members = append(members, Member{Name: c.Name, Weight: c.Weight, New: factory})
	}
	return members, nil
}

func newRidge(c config.MemberConfig) *linear_model.Ridge {
	solver := c.Solver
	if solver == "" {
		solver = linear_model.SolverAuto
	}
	opts := []linear_model.RidgeOption{
		linear_model.WithAlpha(c.Alpha),
		linear_model.WithFitIntercept(c.FitIntercept),
		linear_model.WithSolver(solver),
		linear_model.WithRandomState(c.RandomState),
	}
	if c.MaxIter > 0 {
		opts = append(opts, linear_model.WithMaxIter(c.MaxIter))
	}
	if c.Tol > 0 {
		opts = append(opts, linear_model.WithTol(c.Tol))
	}
	return linear_model.NewRidge(opts...)
}

func newLGBM(c config.MemberConfig) *lightgbm.LGBMRegressor {
	reg := lightgbm.NewLGBMRegressor().
		WithLearningRate(c.LearningRate).
		WithMaxDepth(c.MaxDepth).
		WithNumLeaves(c.NumLeaves).
		WithNumIterations(c.NumIterations).
		WithEarlyStopping(c.EarlyStoppingRounds).
		WithValidationFraction(c.ValidationFraction).
		WithRandomState(c.RandomState).
		WithVerboseEval(c.VerboseEval).
		WithLogger(log.GetLoggerWithName("lightgbm").With(log.MemberKey, c.Name))
	if c.Objective != "" {
		reg.WithObjective(c.Objective)
	}
	if c.HuberDelta > 0 {
		reg.WithHuberDelta(c.HuberDelta)
	}
	if c.MaxBin > 0 {
		reg.WithMaxBin(c.MaxBin)
	}
	if c.MinChildSamples > 0 {
		reg.WithMinChildSamples(c.MinChildSamples)
	}
	return reg
}
