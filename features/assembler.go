package features

import (
	"time"

	"github.com/YuminosukeSato/pricecast/core/sparse"
	"github.com/YuminosukeSato/pricecast/dataset"
	"github.com/YuminosukeSato/pricecast/pkg/errors"
	"github.com/YuminosukeSato/pricecast/pkg/log"
)

// Block is one named sparse feature block over all unified rows.
type Block struct {
	Name   string
	Matrix *sparse.CSR
}

// BlockInfo locates a block inside the design matrix.
type BlockInfo struct {
	Name   string `json:"name"`
	Offset int    `json:"offset"`
	Width  int    `json:"width"`
}

// DesignMatrix は全行(学習+テスト)の特徴量行列と分割境界
type DesignMatrix struct {
	X      *sparse.CSR
	Split  dataset.Split
	Blocks []BlockInfo
}

// Assemble concatenates blocks column-wise in the given order. Every
// block must have split.Total() rows; the first one that does not is
// reported as a ShapeMismatchError naming it.
func Assemble(split dataset.Split, blocks ...Block) (*DesignMatrix, error) {
	start := time.Now()
	mats := make([]*sparse.CSR, len(blocks))
	infos := make([]BlockInfo, len(blocks))
	offset := 0
	for i, b := range blocks {
		if b.Matrix == nil {
			return nil, errors.NewShapeMismatchError(b.Name, split.Total(), 0)
		}
		rows, cols := b.Matrix.Dims()
		if rows != split.Total() {
			return nil, errors.NewShapeMismatchError(b.Name, split.Total(), rows)
		}
		mats[i] = b.Matrix
		infos[i] = BlockInfo{Name: b.Name, Offset: offset, Width: cols}
		offset += cols
	}

	var X *sparse.CSR
	if len(mats) == 0 {
		X = sparse.Zeros(split.Total(), 0)
	} else {
		var err error
		if X, err = sparse.HStack(mats...); err != nil {
			return nil, err
		}
	}

	logger := log.GetLoggerWithName("features")
	for _, info := range infos {
		logger.Debug("block", log.BlockKey, info.Name, log.FeaturesKey, info.Width)
	}
	logger.Info("design matrix assembled",
		log.SamplesKey, split.Total(),
		log.FeaturesKey, offset,
		log.NonZeroKey, X.NNZ(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return &DesignMatrix{X: X, Split: split, Blocks: infos}, nil
}

// Train returns rows [0, n_train).
func (d *DesignMatrix) Train() (*sparse.CSR, error) {
	return d.X.SliceRows(d.Split.TrainRange())
}

// Test returns rows [n_train, n_train+n_test).
func (d *DesignMatrix) Test() (*sparse.CSR, error) {
	return d.X.SliceRows(d.Split.TestRange())
}

// Block returns the location of the named block.
func (d *DesignMatrix) Block(name string) (BlockInfo, bool) {
	for _, b := range d.Blocks {
		if b.Name == name {
			return b, true
		}
	}
	return BlockInfo{}, false
}
