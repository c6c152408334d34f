package sparse

import "sort"

// Builder assembles a CSR matrix row by row. Rows are appended in order;
// the number of columns is fixed up front.
type Builder struct {
	cols    int
	indptr  []int
	indices []int
	data    []float64
}

// NewBuilder returns a Builder for matrices with cols columns.
func NewBuilder(cols int) *Builder {
	return &Builder{cols: cols, indptr: []int{0}}
}

// Grow reserves space for nnz more stored entries.
func (b *Builder) Grow(nnz int) {
	if cap(b.indices)-len(b.indices) < nnz {
		idx := make([]int, len(b.indices), len(b.indices)+nnz)
		copy(idx, b.indices)
		b.indices = idx
		val := make([]float64, len(b.data), len(b.data)+nnz)
		copy(val, b.data)
		b.data = val
	}
}

// AddRow appends a row given as parallel index/value slices in any order.
// Duplicate indices are summed and explicit zeros are dropped. Indices
// outside [0, cols) panic.
func (b *Builder) AddRow(indices []int, values []float64) {
	if len(indices) != len(values) {
		panic("sparse: AddRow length mismatch")
	}
	order := make([]int, len(indices))
	for k := range order {
		if indices[k] < 0 || indices[k] >= b.cols {
			panic("sparse: AddRow column index out of range")
		}
		order[k] = k
	}
	sort.Slice(order, func(x, y int) bool { return indices[order[x]] < indices[order[y]] })

	start := len(b.indices)
	for _, k := range order {
		j, v := indices[k], values[k]
		if n := len(b.indices); n > start && b.indices[n-1] == j {
			b.data[n-1] += v
			continue
		}
		b.indices = append(b.indices, j)
		b.data = append(b.data, v)
	}
	// drop zeros, including sums that cancelled
	w := start
	for k := start; k < len(b.indices); k++ {
		if b.data[k] != 0 {
			b.indices[w] = b.indices[k]
			b.data[w] = b.data[k]
			w++
		}
	}
	b.indices = b.indices[:w]
	b.data = b.data[:w]
	b.indptr = append(b.indptr, w)
}

// AddDenseRow appends a dense row of length cols, storing only non-zeros.
func (b *Builder) AddDenseRow(values []float64) {
	if len(values) != b.cols {
		panic("sparse: AddDenseRow length mismatch")
	}
	for j, v := range values {
		if v != 0 {
			b.indices = append(b.indices, j)
			b.data = append(b.data, v)
		}
	}
	b.indptr = append(b.indptr, len(b.indices))
}

// appendSorted appends a row whose indices are already strictly increasing
// and whose values are non-zero.
func (b *Builder) appendSorted(indices []int, values []float64) {
	b.indices = append(b.indices, indices...)
	b.data = append(b.data, values...)
	b.indptr = append(b.indptr, len(b.indices))
}

// Rows returns the number of rows appended so far.
func (b *Builder) Rows() int { return len(b.indptr) - 1 }

// Build returns the assembled matrix. The Builder must not be used after.
func (b *Builder) Build() *CSR {
	return &CSR{
		rows:    len(b.indptr) - 1,
		cols:    b.cols,
		indptr:  b.indptr,
		indices: b.indices,
		data:    b.data,
	}
}
