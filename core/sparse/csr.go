// Package sparse provides a compressed sparse row matrix that implements
// gonum's mat.Matrix, together with the composition operations the feature
// pipeline needs: horizontal and vertical stacking and row slicing.
//
// Column indices within a row are kept strictly increasing. Every
// constructor and operation preserves that invariant, which makes At a
// binary search and makes two matrices with the same entries compare
// equal structurally.
package sparse

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pricecast/pkg/errors"
)

// CSR is a compressed sparse row matrix.
type CSR struct {
	rows, cols int
	indptr     []int
	indices    []int
	data       []float64
}

var _ mat.Matrix = (*CSR)(nil)

// NewCSR builds a CSR matrix from raw arrays. The arrays are used without
// copying. indptr must have rows+1 entries and column indices inside each
// row must be strictly increasing and in range.
func NewCSR(rows, cols int, indptr, indices []int, data []float64) (*CSR, error) {
	if rows < 0 || cols < 0 {
		return nil, errors.NewValueError("sparse.NewCSR", "negative dimension")
	}
	if len(indptr) != rows+1 {
		return nil, errors.NewDimensionError("sparse.NewCSR", rows+1, len(indptr), 0)
	}
	if len(indices) != len(data) {
		return nil, errors.NewValueError("sparse.NewCSR", "indices and data lengths differ")
	}
	if indptr[0] != 0 || indptr[rows] != len(data) {
		return nil, errors.NewValueError("sparse.NewCSR", "indptr does not span data")
	}
	for i := 0; i < rows; i++ {
		if indptr[i+1] < indptr[i] {
			return nil, errors.NewValueError("sparse.NewCSR", "indptr is not monotone")
		}
		prev := -1
		for k := indptr[i]; k < indptr[i+1]; k++ {
			j := indices[k]
			if j < 0 || j >= cols {
				return nil, errors.Newf("sparse.NewCSR: column index %d out of range [0,%d) in row %d", j, cols, i)
			}
			if j <= prev {
				return nil, errors.Newf("sparse.NewCSR: column indices not strictly increasing in row %d", i)
			}
			prev = j
		}
	}
	return &CSR{rows: rows, cols: cols, indptr: indptr, indices: indices, data: data}, nil
}

// Zeros returns an all-zero rows×cols matrix.
func Zeros(rows, cols int) *CSR {
	return &CSR{rows: rows, cols: cols, indptr: make([]int, rows+1)}
}

// FromDense stores the non-zero entries of a dense row-major slice.
func FromDense(rows, cols int, values []float64) *CSR {
	b := NewBuilder(cols)
	idx := make([]int, 0, cols)
	val := make([]float64, 0, cols)
	for i := 0; i < rows; i++ {
		idx, val = idx[:0], val[:0]
		for j := 0; j < cols; j++ {
			if v := values[i*cols+j]; v != 0 {
				idx = append(idx, j)
				val = append(val, v)
			}
		}
		b.appendSorted(idx, val)
	}
	return b.Build()
}

// FromMatrix converts any mat.Matrix. A *CSR is returned as is.
func FromMatrix(m mat.Matrix) *CSR {
	if c, ok := m.(*CSR); ok {
		return c
	}
	r, c := m.Dims()
	b := NewBuilder(c)
	idx := make([]int, 0)
	val := make([]float64, 0)
	for i := 0; i < r; i++ {
		idx, val = idx[:0], val[:0]
		for j := 0; j < c; j++ {
			if v := m.At(i, j); v != 0 {
				idx = append(idx, j)
				val = append(val, v)
			}
		}
		b.appendSorted(idx, val)
	}
	return b.Build()
}

// Dims implements mat.Matrix.
func (m *CSR) Dims() (int, int) { return m.rows, m.cols }

// At implements mat.Matrix.
func (m *CSR) At(i, j int) float64 {
	if i < 0 || i >= m.rows {
		panic(mat.ErrRowAccess)
	}
	if j < 0 || j >= m.cols {
		panic(mat.ErrColAccess)
	}
	lo, hi := m.indptr[i], m.indptr[i+1]
	row := m.indices[lo:hi]
	k := sort.SearchInts(row, j)
	if k < len(row) && row[k] == j {
		return m.data[lo+k]
	}
	return 0
}

// T implements mat.Matrix.
func (m *CSR) T() mat.Matrix { return mat.Transpose{Matrix: m} }

// NNZ returns the number of stored entries.
func (m *CSR) NNZ() int { return len(m.data) }

// Row returns views into the column indices and values of row i. The
// slices must not be modified.
func (m *CSR) Row(i int) ([]int, []float64) {
	lo, hi := m.indptr[i], m.indptr[i+1]
	return m.indices[lo:hi], m.data[lo:hi]
}

// RowNNZ returns the number of stored entries in row i.
func (m *CSR) RowNNZ(i int) int { return m.indptr[i+1] - m.indptr[i] }

// DoNonZero calls fn for every stored entry in row-major order.
func (m *CSR) DoNonZero(fn func(i, j int, v float64)) {
	for i := 0; i < m.rows; i++ {
		for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
			fn(i, m.indices[k], m.data[k])
		}
	}
}

// Raw exposes the underlying arrays. They must not be modified.
func (m *CSR) Raw() (indptr, indices []int, data []float64) {
	return m.indptr, m.indices, m.data
}

// MulVecTo computes dst = m·x. dst must have m.rows entries and x m.cols.
func (m *CSR) MulVecTo(dst, x []float64) {
	if len(x) != m.cols || len(dst) != m.rows {
		panic(mat.ErrShape)
	}
	for i := 0; i < m.rows; i++ {
		var s float64
		for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
			s += m.data[k] * x[m.indices[k]]
		}
		dst[i] = s
	}
}

// MulTransVecTo computes dst = mᵀ·x. dst must have m.cols entries.
func (m *CSR) MulTransVecTo(dst, x []float64) {
	if len(x) != m.rows || len(dst) != m.cols {
		panic(mat.ErrShape)
	}
	for j := range dst {
		dst[j] = 0
	}
	for i := 0; i < m.rows; i++ {
		xi := x[i]
		if xi == 0 {
			continue
		}
		for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
			dst[m.indices[k]] += m.data[k] * xi
		}
	}
}

// RowDot returns the dot product of row i with the dense vector w.
func (m *CSR) RowDot(i int, w []float64) float64 {
	var s float64
	for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
		s += m.data[k] * w[m.indices[k]]
	}
	return s
}

// RowSquaredNorm returns the squared L2 norm of row i.
func (m *CSR) RowSquaredNorm(i int) float64 {
	var s float64
	for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
		s += m.data[k] * m.data[k]
	}
	return s
}

// ColumnMeans returns the mean of every column, counting implicit zeros.
func (m *CSR) ColumnMeans() []float64 {
	means := make([]float64, m.cols)
	if m.rows == 0 {
		return means
	}
	for k, j := range m.indices {
		means[j] += m.data[k]
	}
	n := float64(m.rows)
	for j := range means {
		means[j] /= n
	}
	return means
}

// HasNonFinite reports whether any stored value is NaN or ±Inf.
func (m *CSR) HasNonFinite() bool {
	for _, v := range m.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// Equal reports whether a and b have the same shape and identical stored
// structure and values.
func Equal(a, b *CSR) bool {
	if a.rows != b.rows || a.cols != b.cols || len(a.data) != len(b.data) {
		return false
	}
	for i := range a.indptr {
		if a.indptr[i] != b.indptr[i] {
			return false
		}
	}
	for k := range a.indices {
		if a.indices[k] != b.indices[k] || a.data[k] != b.data[k] {
			return false
		}
	}
	return true
}
