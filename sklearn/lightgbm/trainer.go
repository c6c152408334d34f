package lightgbm

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/YuminosukeSato/pricecast/core/parallel"
	"github.com/YuminosukeSato/pricecast/core/sparse"
	"github.com/YuminosukeSato/pricecast/pkg/errors"
	"github.com/YuminosukeSato/pricecast/pkg/log"
)

// TrainingParams contains all training hyperparameters
type TrainingParams struct {
	// Basic parameters
	NumIterations int     `json:"num_iterations"`
	LearningRate  float64 `json:"learning_rate"`
	NumLeaves     int     `json:"num_leaves"`
	MaxDepth      int     `json:"max_depth"` // <= 0 は無制限
	MinDataInLeaf int     `json:"min_data_in_leaf"`

	// Regularization
	Lambda              float64 `json:"lambda_l2"`
	MinGainToSplit      float64 `json:"min_gain_to_split"`
	MinSumHessianInLeaf float64 `json:"min_sum_hessian_in_leaf"`

	// Histogram parameters
	MaxBin int `json:"max_bin"`

	// Objective
	Objective  string  `json:"objective"`
	HuberDelta float64 `json:"huber_delta"`

	// Other
	EarlyStopping int    `json:"early_stopping_rounds"`
	Metric        string `json:"metric"`
}

// histBin はヒストグラムの1ビン
type histBin struct {
	g, h float64
	c    int
}

// SplitInfo contains information about a potential split
type SplitInfo struct {
	Feature   int
	Bin       int
	Threshold float64
	Gain      float64
	valid     bool
}

// ValidationData holds the held-out rows used for early stopping.
type ValidationData struct {
	X *sparse.CSR
	Y []float64
}

// Trainer implements the LightGBM training algorithm
type Trainer struct {
	params    TrainingParams
	objective ObjectiveFunction
	callbacks *CallbackList
	logger    log.Logger
}

// NewTrainer creates a new LightGBM trainer
func NewTrainer(params TrainingParams) *Trainer {
	// Set default values
	if params.NumIterations == 0 {
		params.NumIterations = 100
	}
	if params.LearningRate == 0 {
		params.LearningRate = 0.1
	}
	if params.NumLeaves == 0 {
		params.NumLeaves = 31
	}
	if params.MaxBin == 0 {
		params.MaxBin = 255
	}
	if params.MinDataInLeaf == 0 {
		params.MinDataInLeaf = 20
	}
	if params.MinSumHessianInLeaf == 0 {
		params.MinSumHessianInLeaf = 1e-3
	}
	if params.Metric == "" {
		params.Metric = "rmse"
	}
	return &Trainer{
		params:    params,
		callbacks: NewCallbackList(),
		logger:    log.GetLoggerWithName("lightgbm"),
	}
}

// WithCallbacks sets the callbacks for training
func (t *Trainer) WithCallbacks(callbacks ...Callback) *Trainer {
	t.callbacks = NewCallbackList(callbacks...)
	return t
}

func (t *Trainer) validate() error {
	p := t.params
	switch {
	case p.NumIterations < 1:
		return errors.NewValidationError("num_iterations", "must be positive", p.NumIterations)
	case p.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	case p.NumLeaves < 2:
		return errors.NewValidationError("num_leaves", "must be at least 2", p.NumLeaves)
	case p.MaxBin < 2 || p.MaxBin > math.MaxUint16:
		return errors.NewValidationError("max_bin", "must be in [2, 65535]", p.MaxBin)
	case p.MinDataInLeaf < 1:
		return errors.NewValidationError("min_data_in_leaf", "must be positive", p.MinDataInLeaf)
	case p.Lambda < 0:
		return errors.NewValidationError("lambda_l2", "must be non-negative", p.Lambda)
	case p.Metric != "rmse":
		return errors.NewValidationError("metric", "only rmse is supported", p.Metric)
	}
	return nil
}

// Train fits an ensemble on X/y. When valid is non-nil its RMSE is
// tracked every round and, with EarlyStopping > 0, training stops after
// that many rounds without improvement and the model is truncated to the
// best round.
func (t *Trainer) Train(X *sparse.CSR, y []float64, valid *ValidationData) (*Model, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if rows == 0 {
		return nil, errors.NewModelError("Trainer.Train", "empty data", errors.ErrEmptyData)
	}
	if len(y) != rows {
		return nil, errors.NewDimensionError("Trainer.Train", rows, len(y), 0)
	}
	obj, err := CreateObjectiveFunction(t.params.Objective, &t.params)
	if err != nil {
		return nil, err
	}
	t.objective = obj

	start := time.Now()
	ds := newBinnedDataset(X, t.params.MaxBin)
	t.logger.Debug("dataset binned",
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		"usable_features", len(ds.usable),
		"total_bins", ds.totalBins,
	)

	model := &Model{
		InitScore:    obj.GetInitScore(y),
		NumFeatures:  cols,
		Objective:    obj.Name(),
		LearningRate: t.params.LearningRate,
	}
	pred := make([]float64, rows)
	for i := range pred {
		pred[i] = model.InitScore
	}
	var vpred []float64
	if valid != nil {
		vr, vc := valid.X.Dims()
		if vc != cols {
			return nil, errors.NewDimensionError("Trainer.Train(valid)", cols, vc, 1)
		}
		if len(valid.Y) != vr {
			return nil, errors.NewDimensionError("Trainer.Train(valid)", vr, len(valid.Y), 0)
		}
		vpred = make([]float64, vr)
		for i := range vpred {
			vpred[i] = model.InitScore
		}
	}

	es := NewEarlyStopping(t.params.EarlyStopping, t.params.Metric)
	if valid == nil {
		es.Enabled = false
	}
	grad := make([]float64, rows)
	hess := make([]float64, rows)
	leafOf := make([]int, rows)

	for it := 0; it < t.params.NumIterations; it++ {
		t.callbacks.BeforeIteration(it + 1)
		for i := range grad {
			grad[i] = obj.CalculateGradient(pred[i], y[i])
			hess[i] = obj.CalculateHessian(pred[i], y[i])
		}

		tree := t.growTree(ds, grad, hess, leafOf)
		for i := range pred {
			pred[i] += tree.Nodes[leafOf[i]].LeafValue * tree.ShrinkageRate
		}
		if err := errors.CheckNumericalStability("Trainer.Train", pred, it); err != nil {
			return nil, err
		}
		model.Trees = append(model.Trees, tree)

		evals := map[string]float64{EvalTrainRMSE: rmse(pred, y)}
		if valid != nil {
			vr, _ := valid.X.Dims()
			for i := 0; i < vr; i++ {
				idx, val := valid.X.Row(i)
				vpred[i] += tree.PredictRow(idx, val)
			}
			evals[EvalValidRMSE] = rmse(vpred, valid.Y)
		}
		if err := t.callbacks.AfterIteration(it+1, evals); err != nil {
			return nil, err
		}
		if valid != nil && es.Update(it, evals[EvalValidRMSE]) {
			t.logger.Info("early stopping",
				log.IterationKey, it+1,
				"best_iteration", es.BestIteration+1,
				log.ValidLossKey, es.BestScore,
			)
			break
		}
		if t.callbacks.ShouldStop() {
			break
		}
	}

	if best := es.GetBestIteration(); best >= 0 {
		model.Trees = model.Trees[:best+1]
		model.BestIteration = best + 1
	}
	t.logger.Debug("boosting finished",
		"trees", len(model.Trees),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return model, nil
}

func rmse(pred, y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	s := 0.0
	for i := range y {
		d := pred[i] - y[i]
		s += d * d
	}
	return math.Sqrt(s / float64(len(y)))
}

// leafState は成長中の葉
type leafState struct {
	node  int
	depth int
	rows  []int
	g, h  float64
	hist  []histBin
	best  SplitInfo
}

// growTree は葉単位で木を成長させ、各学習行が落ちた葉のノード番号を leafOf に書く
func (t *Trainer) growTree(ds *binnedDataset, grad, hess []float64, leafOf []int) Tree {
	tree := Tree{ShrinkageRate: t.params.LearningRate}

	all := make([]int, ds.nRows)
	for i := range all {
		all[i] = i
	}
	root := newLeaf(all, 0, grad, hess)
	root.hist = t.buildHistogram(ds, all, grad, hess)
	root.best = t.findBestSplit(ds, root.hist, root.g, root.h, len(all))
	tree.Nodes = append(tree.Nodes, Node{LeftChild: -1, RightChild: -1})
	leaves := []*leafState{root}

	for len(leaves) < t.params.NumLeaves {
		pick := -1
		for k, l := range leaves {
			if !l.best.valid || (t.params.MaxDepth > 0 && l.depth >= t.params.MaxDepth) {
				continue
			}
			if pick < 0 || l.best.Gain > leaves[pick].best.Gain {
				pick = k
			}
		}
		if pick < 0 || leaves[pick].best.Gain <= t.params.MinGainToSplit {
			break
		}
		parent := leaves[pick]
		sp := parent.best

		var left, right []int
		for _, r := range parent.rows {
			if ds.binOf(r, sp.Feature) <= sp.Bin {
				left = append(left, r)
			} else {
				right = append(right, r)
			}
		}
		l := newLeaf(left, parent.depth+1, grad, hess)
		r := newLeaf(right, parent.depth+1, grad, hess)

		// 小さい方だけ走査し、大きい方は親からの差分で求める
		small, large := l, r
		if len(right) < len(left) {
			small, large = r, l
		}
		small.hist = t.buildHistogram(ds, small.rows, grad, hess)
		large.hist = parent.hist
		for k := range large.hist {
			large.hist[k].g -= small.hist[k].g
			large.hist[k].h -= small.hist[k].h
			large.hist[k].c -= small.hist[k].c
		}
		parent.hist = nil
		l.best = t.findBestSplit(ds, l.hist, l.g, l.h, len(l.rows))
		r.best = t.findBestSplit(ds, r.hist, r.g, r.h, len(r.rows))

		l.node = len(tree.Nodes)
		r.node = l.node + 1
		tree.Nodes = append(tree.Nodes,
			Node{LeftChild: -1, RightChild: -1, Depth: l.depth},
			Node{LeftChild: -1, RightChild: -1, Depth: r.depth},
		)
		pn := &tree.Nodes[parent.node]
		pn.SplitFeature = sp.Feature
		pn.Threshold = sp.Threshold
		pn.Gain = sp.Gain
		pn.LeftChild = l.node
		pn.RightChild = r.node

		leaves[pick] = l
		leaves = append(leaves, r)
	}

	for _, l := range leaves {
		n := &tree.Nodes[l.node]
		n.LeafValue = -l.g / (l.h + t.params.Lambda)
		n.LeafCount = len(l.rows)
		for _, r := range l.rows {
			leafOf[r] = l.node
		}
	}
	return tree
}

func newLeaf(rows []int, depth int, grad, hess []float64) *leafState {
	l := &leafState{rows: rows, depth: depth}
	for _, r := range rows {
		l.g += grad[r]
		l.h += hess[r]
	}
	return l
}

// buildHistogram は rows の非ゼロ要素からヒストグラムを作り、
// 各特徴量のゼロビンは葉の合計との差分で埋める
func (t *Trainer) buildHistogram(ds *binnedDataset, rows []int, grad, hess []float64) []histBin {
	hist := make([]histBin, ds.totalBins)
	var G, H float64
	for _, r := range rows {
		g, h := grad[r], hess[r]
		G += g
		H += h
		for k := ds.indptr[r]; k < ds.indptr[r+1]; k++ {
			b := &hist[ds.offsets[ds.features[k]]+int(ds.bins[k])]
			b.g += g
			b.h += h
			b.c++
		}
	}
	n := len(rows)
	for _, j := range ds.usable {
		off := ds.offsets[j]
		m := ds.mappers[j]
		sg, sh, sc := 0.0, 0.0, 0
		for b := 0; b < m.NumBins(); b++ {
			sg += hist[off+b].g
			sh += hist[off+b].h
			sc += hist[off+b].c
		}
		z := &hist[off+m.ZeroBin]
		z.g += G - sg
		z.h += H - sh
		z.c += n - sc
	}
	return hist
}

// findBestSplit は全特徴量のビン境界を試して最大ゲインの分割を返す
// ゲインが同じ場合は特徴量番号・ビン番号の小さい方を選ぶ
func (t *Trainer) findBestSplit(ds *binnedDataset, hist []histBin, G, H float64, n int) SplitInfo {
	if n < 2*t.params.MinDataInLeaf {
		return SplitInfo{}
	}
	var (
		mu    sync.Mutex
		found []SplitInfo
	)
	parallel.ParallelizeWithThreshold(len(ds.usable), 256, func(start, end int) {
		best := SplitInfo{}
		for _, j := range ds.usable[start:end] {
			if s := t.findBestSplitForFeature(ds, hist, j, G, H, n); s.valid && (!best.valid || s.Gain > best.Gain) {
				best = s
			}
		}
		if best.valid {
			mu.Lock()
			found = append(found, best)
			mu.Unlock()
		}
	})
	sort.Slice(found, func(a, b int) bool {
		if found[a].Gain != found[b].Gain {
			return found[a].Gain > found[b].Gain
		}
		return found[a].Feature < found[b].Feature
	})
	if len(found) == 0 {
		return SplitInfo{}
	}
	return found[0]
}

func (t *Trainer) findBestSplitForFeature(ds *binnedDataset, hist []histBin, j int, G, H float64, n int) SplitInfo {
	m := ds.mappers[j]
	off := ds.offsets[j]
	p := t.params
	best := SplitInfo{Feature: j}

	var lg, lh float64
	lc := 0
	for b := 0; b+1 < m.NumBins(); b++ {
		hb := hist[off+b]
		lg += hb.g
		lh += hb.h
		lc += hb.c
		rc := n - lc
		if lc < p.MinDataInLeaf || lh < p.MinSumHessianInLeaf {
			continue
		}
		if rc < p.MinDataInLeaf || H-lh < p.MinSumHessianInLeaf {
			break
		}
		gain := t.calculateSplitGain(lg, lh, G-lg, H-lh, G, H)
		if !best.valid || gain > best.Gain {
			best.Gain = gain
			best.Bin = b
			best.Threshold = m.Bounds[b]
			best.valid = true
		}
	}
	return best
}

// calculateSplitGain calculates the gain from a split
func (t *Trainer) calculateSplitGain(leftGrad, leftHess, rightGrad, rightHess, totalGrad, totalHess float64) float64 {
	// LightGBM split gain formula
	lambda := t.params.Lambda

	leftScore := (leftGrad * leftGrad) / (leftHess + lambda)
	rightScore := (rightGrad * rightGrad) / (rightHess + lambda)
	totalScore := (totalGrad * totalGrad) / (totalHess + lambda)

	return 0.5 * (leftScore + rightScore - totalScore)
}
