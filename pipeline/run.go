// Package pipeline wires the loader, the feature plans and the ensemble
// into the two end-to-end flows and writes their artifacts.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/pricecast/config"
	"github.com/YuminosukeSato/pricecast/core/sparse"
	"github.com/YuminosukeSato/pricecast/dataset"
	"github.com/YuminosukeSato/pricecast/ensemble"
	"github.com/YuminosukeSato/pricecast/features"
	"github.com/YuminosukeSato/pricecast/pkg/errors"
	"github.com/YuminosukeSato/pricecast/pkg/log"
	"github.com/YuminosukeSato/pricecast/report"
	"github.com/YuminosukeSato/pricecast/sklearn/lightgbm"
)

// Flow names.
const (
	FlowEnsemble   = "ensemble"
	FlowPreprocess = "preprocess"
)

// historyModel は学習曲線を持つモデル
type historyModel interface {
	EvalHistory() map[string][]float64
}

// Runner executes one flow. A Runner is single use.
type Runner struct {
	cfg     *config.Config
	runID   string
	logger  log.Logger
	metrics *Metrics
}

// NewRunner creates a runner with a fresh run id.
func NewRunner(cfg *config.Config) *Runner {
	id := uuid.NewString()
	return &Runner{
		cfg:    cfg,
		runID:  id,
		logger: log.GetLoggerWithName("pipeline").With(log.RunIDKey, id),
	}
}

// RunID identifies this run in logs and the manifest.
func (r *Runner) RunID() string { return r.runID }

// Metrics returns the gauges of the last flow, or nil before a run.
func (r *Runner) Metrics() *Metrics { return r.metrics }

func (r *Runner) observeStage(stage string, elapsed time.Duration) {
	r.metrics.ObserveStage(stage, elapsed)
}

func (r *Runner) load(ctx context.Context) (*dataset.Dataset, error) {
	start := time.Now()
	train, test, err := Sources(r.cfg.Input)
	if err != nil {
		return nil, err
	}
	r.logger.Info("loading listings", "train", train.String(), "test", test.String())
	ds, err := dataset.Load(ctx, train, test)
	if err != nil {
		return nil, err
	}
	r.observeStage("load", time.Since(start))
	return ds, nil
}

func (r *Runner) newManifest(flow string, ds *dataset.Dataset, dm *features.DesignMatrix) *Manifest {
	_, cols := dm.X.Dims()
	return &Manifest{
		RunID:     r.runID,
		Flow:      flow,
		CreatedAt: time.Now().UTC(),
		TrainRows: ds.Split.NTrain(),
		TestRows:  ds.Split.NTest(),
		Features:  cols,
		Blocks:    dm.Blocks,
		Files:     map[string]string{},
	}
}

func (r *Runner) finish(m *Manifest) error {
	dir := r.cfg.Output.ArtifactDir
	path := filepath.Join(dir, m.Flow+ManifestFileSuffix)
	if err := WriteJSON(path, m); err != nil {
		return err
	}
	r.metrics.LastSuccess.SetToCurrentTime()
	if mf := r.cfg.Output.MetricsFile; mf != "" {
		if err := ensureDir(filepath.Dir(mf)); err != nil {
			return err
		}
		if err := r.metrics.WriteTextfile(mf); err != nil {
			return err
		}
	}
	r.logger.Info("run finished", "flow", m.Flow, "manifest", path)
	return nil
}

func needsEmbedding(fc config.FeaturesConfig) bool {
	for _, tc := range []config.TextConfig{fc.Name, fc.Category, fc.Description} {
		if tc.Kind == features.KindEmbedding {
			return true
		}
	}
	return false
}

// RunEnsemble loads the listings, builds the sparse design matrix, fits
// the blended ensemble and writes the submission.
func (r *Runner) RunEnsemble(ctx context.Context) (*Manifest, error) {
	r.metrics = NewMetrics(FlowEnsemble)
	start := time.Now()
	if err := ensureDir(r.cfg.Output.ArtifactDir); err != nil {
		return nil, err
	}

	ds, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	var res *features.EmbeddingResources
	if needsEmbedding(r.cfg.Features) {
		if res, err = features.NewEmbeddingResources(r.cfg.Embedding); err != nil {
			return nil, err
		}
	}
	builder := features.NewBuilder(r.cfg.Features, r.cfg.Embedding, res)
	builder.OnStage = r.observeStage
	dm, err := builder.Ensemble(ctx, ds.Frame, ds.Split)
	if err != nil {
		return nil, err
	}
	ds.Frame = nil

	Xtr, err := dm.Train()
	if err != nil {
		return nil, err
	}
	Xte, err := dm.Test()
	if err != nil {
		return nil, err
	}
	r.observeMatrices(Xtr, Xte)

	members, err := ensemble.MembersFromConfig(r.cfg.Models.Members)
	if err != nil {
		return nil, err
	}
	blender, err := ensemble.NewBlender(members...)
	if err != nil {
		return nil, err
	}
	manifest := r.newManifest(FlowEnsemble, ds, dm)
	manifest.Vocabularies = map[string]int{}
	for col, v := range builder.Vocabularies() {
		manifest.Vocabularies[col] = v.Len()
	}
	manifest.Boosters = map[string]lightgbm.Summary{}

	var plotErr error
	blender.OnMember = func(mr ensemble.MemberResult) {
		r.metrics.MemberRMSE.WithLabelValues(mr.Name).Set(mr.Train.RMSE)
		r.metrics.MemberDuration.WithLabelValues(mr.Name).Set(float64(mr.DurationMs) / 1000)
		if lgb, ok := mr.Model.(*lightgbm.LGBMRegressor); ok && lgb.Model != nil {
			manifest.Boosters[mr.Name] = lgb.Model.Summary()
		}
		if err := r.plotMember(mr, manifest); err != nil && plotErr == nil {
			plotErr = err
		}
	}

	fitStart := time.Now()
	result, err := blender.FitPredict(ctx, Xtr, ds.Target(), Xte)
	if err != nil {
		return nil, err
	}
	r.observeStage("fit_predict", time.Since(fitStart))
	if plotErr != nil {
		// 学習曲線は補助成果物なので失敗しても提出ファイルは書く
		r.logger.Warn("learning curve not written", "error", plotErr)
	}

	if err := WriteSubmission(r.cfg.Output.Submission, ds.TestIDs, result.Prices); err != nil {
		return nil, err
	}
	manifest.Files["submission"] = r.cfg.Output.Submission
	manifest.Members = result.Members
	r.observeStage("total", time.Since(start))
	r.logger.Info("submission written",
		"path", r.cfg.Output.Submission,
		log.SamplesKey, len(result.Prices),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	if err := r.finish(manifest); err != nil {
		return nil, err
	}
	return manifest, nil
}

func (r *Runner) observeMatrices(train, test *sparse.CSR) {
	rows, cols := train.Dims()
	r.metrics.ObserveMatrix("train", rows, cols)
	rows, cols = test.Dims()
	r.metrics.ObserveMatrix("test", rows, cols)
}

func (r *Runner) plotMember(mr ensemble.MemberResult, m *Manifest) error {
	dir := r.cfg.Output.PlotDir
	if dir == "" {
		return nil
	}
	hm, ok := mr.Model.(historyModel)
	if !ok {
		return nil
	}
	history := hm.EvalHistory()
	if len(history) == 0 {
		return nil
	}
	path := filepath.Join(dir, mr.Name+"_learning_curve.png")
	if err := report.LearningCurve(path, mr.Name, history); err != nil {
		return errors.Wrapf(err, "plot %s", mr.Name)
	}
	m.Files["curve_"+mr.Name] = path
	return nil
}

// RunPreprocess builds the dense embedding design matrix and writes it,
// together with the raw training prices, for an external model.
func (r *Runner) RunPreprocess(ctx context.Context) (*Manifest, error) {
	r.metrics = NewMetrics(FlowPreprocess)
	start := time.Now()
	dir := r.cfg.Output.ArtifactDir
	if err := ensureDir(dir); err != nil {
		return nil, err
	}

	ds, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	res, err := features.NewEmbeddingResources(r.cfg.Embedding)
	if err != nil {
		return nil, err
	}
	builder := features.NewBuilder(r.cfg.Features, r.cfg.Embedding, res)
	builder.OnStage = r.observeStage
	dm, err := builder.Preprocess(ctx, ds.Frame, ds.Split)
	if err != nil {
		return nil, err
	}
	ds.Frame = nil

	Xtr, err := dm.Train()
	if err != nil {
		return nil, err
	}
	Xte, err := dm.Test()
	if err != nil {
		return nil, err
	}
	r.observeMatrices(Xtr, Xte)

	manifest := r.newManifest(FlowPreprocess, ds, dm)
	writes := []struct {
		key, file string
		write     func(path string) error
	}{
		{"train_x", TrainMatrixFile, func(p string) error { return WriteMatrix(p, Xtr, "run "+r.runID) }},
		{"test_x", TestMatrixFile, func(p string) error { return WriteMatrix(p, Xte, "run "+r.runID) }},
		{"train_y", TrainTargetFile, func(p string) error { return WriteJSON(p, ds.Price) }},
	}
	for _, w := range writes {
		path := filepath.Join(dir, w.file)
		if err := w.write(path); err != nil {
			return nil, err
		}
		manifest.Files[w.key] = path
	}
	r.observeStage("total", time.Since(start))
	r.logger.Info("design matrices written",
		"dir", dir,
		log.FeaturesKey, manifest.Features,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	if err := r.finish(manifest); err != nil {
		return nil, err
	}
	return manifest, nil
}
