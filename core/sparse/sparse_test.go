package sparse

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func denseFixture() *mat.Dense {
	return mat.NewDense(4, 3, []float64{
		1, 0, 2,
		0, 0, 0,
		0, 3, 0,
		4, 0, 5,
	})
}

func TestFromMatrixMatchesDense(t *testing.T) {
	d := denseFixture()
	m := FromMatrix(d)

	r, c := m.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 5, m.NNZ())
	assert.True(t, mat.Equal(d, m))
	assert.Equal(t, 0, m.RowNNZ(1))
	assert.True(t, mat.Equal(d.T(), m.T()))
}

func TestNewCSRValidates(t *testing.T) {
	_, err := NewCSR(2, 2, []int{0, 1}, []int{0}, []float64{1})
	assert.Error(t, err, "short indptr")

	_, err = NewCSR(1, 2, []int{0, 2}, []int{1, 0}, []float64{1, 1})
	assert.Error(t, err, "unsorted indices")

	_, err = NewCSR(1, 2, []int{0, 1}, []int{2}, []float64{1})
	assert.Error(t, err, "index out of range")

	m, err := NewCSR(2, 3, []int{0, 1, 3}, []int{2, 0, 1}, []float64{7, 8, 9})
	require.NoError(t, err)
	assert.Equal(t, 7.0, m.At(0, 2))
	assert.Equal(t, 9.0, m.At(1, 1))
	assert.Equal(t, 0.0, m.At(0, 0))
}

func TestBuilderAddRowSortsAndMerges(t *testing.T) {
	b := NewBuilder(5)
	b.AddRow([]int{3, 1, 3, 4}, []float64{1, 2, 2, 0})
	b.AddRow(nil, nil)
	b.AddRow([]int{0, 0}, []float64{1, -1})
	m := b.Build()

	idx, val := m.Row(0)
	assert.Equal(t, []int{1, 3}, idx)
	assert.Equal(t, []float64{2, 3}, val)
	assert.Equal(t, 0, m.RowNNZ(1))
	assert.Equal(t, 0, m.RowNNZ(2), "cancelled entries are dropped")
	rows, _ := m.Dims()
	assert.Equal(t, 3, rows)
}

func TestHStackOrderAndOffsets(t *testing.T) {
	a := FromDense(2, 2, []float64{1, 0, 0, 2})
	b := Zeros(2, 0)
	c := FromDense(2, 3, []float64{0, 3, 0, 4, 0, 5})

	h, err := HStack(a, b, c)
	require.NoError(t, err)
	want := mat.NewDense(2, 5, []float64{
		1, 0, 0, 3, 0,
		0, 2, 4, 0, 5,
	})
	assert.True(t, mat.Equal(want, h))

	_, err = HStack(a, Zeros(3, 1))
	assert.Error(t, err)
}

func TestSliceThenVStackRoundTrip(t *testing.T) {
	m := FromMatrix(denseFixture())
	for split := 0; split <= 4; split++ {
		top, err := m.SliceRows(0, split)
		require.NoError(t, err)
		bottom, err := m.SliceRows(split, 4)
		require.NoError(t, err)

		back, err := VStack(top, bottom)
		require.NoError(t, err)
		assert.True(t, Equal(m, back), "split at %d", split)
	}

	_, err := m.SliceRows(3, 2)
	assert.Error(t, err)
}

func TestSelectRows(t *testing.T) {
	m := FromMatrix(denseFixture())
	s, err := m.SelectRows([]int{3, 0, 3})
	require.NoError(t, err)
	want := mat.NewDense(3, 3, []float64{4, 0, 5, 1, 0, 2, 4, 0, 5})
	assert.True(t, mat.Equal(want, s))

	_, err = m.SelectRows([]int{4})
	assert.Error(t, err)
}

func TestMulVec(t *testing.T) {
	d := denseFixture()
	m := FromMatrix(d)

	x := []float64{1, 2, 3}
	got := make([]float64, 4)
	m.MulVecTo(got, x)
	var want mat.VecDense
	want.MulVec(d, mat.NewVecDense(3, x))
	assert.InDeltaSlice(t, want.RawVector().Data, got, 1e-12)

	u := []float64{1, -1, 2, 0.5}
	gotT := make([]float64, 3)
	m.MulTransVecTo(gotT, u)
	var wantT mat.VecDense
	wantT.MulVec(d.T(), mat.NewVecDense(4, u))
	assert.InDeltaSlice(t, wantT.RawVector().Data, gotT, 1e-12)

	assert.InDelta(t, 1*1+2*3.0, m.RowDot(0, x), 1e-12)
	assert.InDelta(t, 41.0, m.RowSquaredNorm(3), 1e-12)
	assert.InDeltaSlice(t, []float64{1.25, 0.75, 1.75}, m.ColumnMeans(), 1e-12)
}

func TestMatrixMarketRoundTrip(t *testing.T) {
	m := FromMatrix(denseFixture())

	var buf bytes.Buffer
	require.NoError(t, WriteMatrixMarket(&buf, m, "train features"))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "%%MatrixMarket matrix coordinate real general\n%train features\n4 3 5\n"))
	assert.Contains(t, out, "1 1 1\n")
	assert.Contains(t, out, "4 3 5\n")

	back, err := ReadMatrixMarket(&buf)
	require.NoError(t, err)
	assert.True(t, Equal(m, back))
}

func TestReadMatrixMarketRejectsBadInput(t *testing.T) {
	_, err := ReadMatrixMarket(strings.NewReader("%%MatrixMarket matrix array real general\n1 1\n1\n"))
	assert.Error(t, err)

	_, err = ReadMatrixMarket(strings.NewReader("%%MatrixMarket matrix coordinate real general\n2 2 2\n1 1 1\n"))
	assert.Error(t, err, "entry count mismatch")

	_, err = ReadMatrixMarket(strings.NewReader("%%MatrixMarket matrix coordinate real general\n2 2 1\n3 1 1\n"))
	assert.Error(t, err, "out of range")
}
