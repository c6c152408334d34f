package sparse

import (
	"github.com/YuminosukeSato/pricecast/pkg/errors"
)

// HStack concatenates matrices column-wise in the order given. All inputs
// must have the same number of rows.
func HStack(blocks ...*CSR) (*CSR, error) {
	if len(blocks) == 0 {
		return nil, errors.NewValueError("sparse.HStack", "no blocks")
	}
	rows := blocks[0].rows
	cols, nnz := 0, 0
	for i, b := range blocks {
		if b.rows != rows {
			return nil, errors.Newf("sparse.HStack: block %d has %d rows, expected %d", i, b.rows, rows)
		}
		cols += b.cols
		nnz += len(b.data)
	}

	indptr := make([]int, rows+1)
	indices := make([]int, 0, nnz)
	data := make([]float64, 0, nnz)
	for i := 0; i < rows; i++ {
		offset := 0
		for _, b := range blocks {
			for k := b.indptr[i]; k < b.indptr[i+1]; k++ {
				indices = append(indices, b.indices[k]+offset)
				data = append(data, b.data[k])
			}
			offset += b.cols
		}
		indptr[i+1] = len(indices)
	}
	return &CSR{rows: rows, cols: cols, indptr: indptr, indices: indices, data: data}, nil
}

// VStack concatenates matrices row-wise in the order given. All inputs must
// have the same number of columns.
func VStack(blocks ...*CSR) (*CSR, error) {
	if len(blocks) == 0 {
		return nil, errors.NewValueError("sparse.VStack", "no blocks")
	}
	cols := blocks[0].cols
	rows, nnz := 0, 0
	for i, b := range blocks {
		if b.cols != cols {
			return nil, errors.Newf("sparse.VStack: block %d has %d columns, expected %d", i, b.cols, cols)
		}
		rows += b.rows
		nnz += len(b.data)
	}

	indptr := make([]int, 1, rows+1)
	indices := make([]int, 0, nnz)
	data := make([]float64, 0, nnz)
	for _, b := range blocks {
		base := len(indices)
		lo := b.indptr[0]
		indices = append(indices, b.indices[lo:b.indptr[b.rows]]...)
		data = append(data, b.data[lo:b.indptr[b.rows]]...)
		for i := 1; i <= b.rows; i++ {
			indptr = append(indptr, base+b.indptr[i]-lo)
		}
	}
	return &CSR{rows: rows, cols: cols, indptr: indptr, indices: indices, data: data}, nil
}

// SliceRows returns rows [lo, hi) as a new matrix sharing no storage with m.
func (m *CSR) SliceRows(lo, hi int) (*CSR, error) {
	if lo < 0 || hi > m.rows || lo > hi {
		return nil, errors.Newf("sparse.SliceRows: invalid range [%d,%d) for %d rows", lo, hi, m.rows)
	}
	start, end := m.indptr[lo], m.indptr[hi]
	indptr := make([]int, hi-lo+1)
	for i := lo; i <= hi; i++ {
		indptr[i-lo] = m.indptr[i] - start
	}
	indices := make([]int, end-start)
	copy(indices, m.indices[start:end])
	data := make([]float64, end-start)
	copy(data, m.data[start:end])
	return &CSR{rows: hi - lo, cols: m.cols, indptr: indptr, indices: indices, data: data}, nil
}

// SelectRows gathers the given rows, in the given order, into a new matrix.
func (m *CSR) SelectRows(rows []int) (*CSR, error) {
	nnz := 0
	for _, i := range rows {
		if i < 0 || i >= m.rows {
			return nil, errors.Newf("sparse.SelectRows: row %d out of range [0,%d)", i, m.rows)
		}
		nnz += m.indptr[i+1] - m.indptr[i]
	}
	indptr := make([]int, 1, len(rows)+1)
	indices := make([]int, 0, nnz)
	data := make([]float64, 0, nnz)
	for _, i := range rows {
		indices = append(indices, m.indices[m.indptr[i]:m.indptr[i+1]]...)
		data = append(data, m.data[m.indptr[i]:m.indptr[i+1]]...)
		indptr = append(indptr, len(indices))
	}
	return &CSR{rows: len(rows), cols: m.cols, indptr: indptr, indices: indices, data: data}, nil
}
