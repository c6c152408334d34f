package lightgbm

import (
	"sort"

	"github.com/YuminosukeSato/pricecast/core/parallel"
	"github.com/YuminosukeSato/pricecast/core/sparse"
)

// Node represents a single node in a decision tree
type Node struct {
	LeftChild  int // Left child node ID (-1 if leaf)
	RightChild int // Right child node ID (-1 if leaf)

	// Split information (for non-leaf nodes)
	SplitFeature int     // Feature index used for splitting
	Threshold    float64 // value <= Threshold goes left
	Gain         float64 // Split gain (reduction in loss)

	// Leaf information (for leaf nodes)
	LeafValue float64 // Value at leaf node, before shrinkage
	LeafCount int     // Number of training samples at leaf
	Depth     int
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree represents a single decision tree in the ensemble
type Tree struct {
	ShrinkageRate float64 // Learning rate applied to this tree
	Nodes         []Node  // Nodes[0] is the root
}

// NumLeaves returns the number of leaf nodes.
func (t *Tree) NumLeaves() int {
	n := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			n++
		}
	}
	return n
}

// PredictRow walks the tree for a sparse row given as sorted indices and
// values. Absent features are zero.
func (t *Tree) PredictRow(indices []int, values []float64) float64 {
	id := 0
	for {
		node := &t.Nodes[id]
		if node.IsLeaf() {
			return node.LeafValue * t.ShrinkageRate
		}
		v := 0.0
		if k := sort.SearchInts(indices, node.SplitFeature); k < len(indices) && indices[k] == node.SplitFeature {
			v = values[k]
		}
		if v <= node.Threshold {
			id = node.LeftChild
		} else {
			id = node.RightChild
		}
	}
}

// Model is a trained boosting ensemble.
type Model struct {
	Trees         []Tree
	InitScore     float64
	NumFeatures   int
	BestIteration int // 1-based count of trees kept, 0 if early stopping never ran
	Objective     string
	LearningRate  float64
}

// Predict returns one raw prediction per row of X.
func (m *Model) Predict(X *sparse.CSR) []float64 {
	rows, _ := X.Dims()
	out := make([]float64, rows)
	parallel.ParallelizeWithThreshold(rows, 1000, func(start, end int) {
		for i := start; i < end; i++ {
			idx, val := X.Row(i)
			s := m.InitScore
			for k := range m.Trees {
				s += m.Trees[k].PredictRow(idx, val)
			}
			out[i] = s
		}
	})
	return out
}

// Summary is a JSON-friendly description of the ensemble.
type Summary struct {
	Objective     string  `json:"objective"`
	NumTrees      int     `json:"num_trees"`
	NumFeatures   int     `json:"num_features"`
	BestIteration int     `json:"best_iteration"`
	InitScore     float64 `json:"init_score"`
	LearningRate  float64 `json:"learning_rate"`
	TotalLeaves   int     `json:"total_leaves"`
}

// Summary describes the model.
func (m *Model) Summary() Summary {
	s := Summary{
		Objective:     m.Objective,
		NumTrees:      len(m.Trees),
		NumFeatures:   m.NumFeatures,
		BestIteration: m.BestIteration,
		InitScore:     m.InitScore,
		LearningRate:  m.LearningRate,
	}
	for i := range m.Trees {
		s.TotalLeaves += m.Trees[i].NumLeaves()
	}
	return s
}

// FeatureImportance returns the total split gain per feature.
func (m *Model) FeatureImportance() []float64 {
	imp := make([]float64, m.NumFeatures)
	for i := range m.Trees {
		for _, n := range m.Trees[i].Nodes {
			if !n.IsLeaf() {
				imp[n.SplitFeature] += n.Gain
			}
		}
	}
	return imp
}
