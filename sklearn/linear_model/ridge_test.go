package linear_model

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pricecast/core/model"
	"github.com/YuminosukeSato/pricecast/core/sparse"
	"github.com/YuminosukeSato/pricecast/pkg/errors"
)

// ridgeProblem builds a sparse design with a known linear signal.
func ridgeProblem(n int) (*sparse.CSR, []float64) {
	rng := rand.New(rand.NewPCG(1, 2))
	coef := []float64{1.5, -2, 0.5, 3}
	b := sparse.NewBuilder(len(coef))
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, len(coef))
		for j := range row {
			if rng.Float64() < 0.6 {
				row[j] = rng.NormFloat64()
			}
		}
		b.AddDenseRow(row)
		y[i] = 2 + rng.NormFloat64()*0.1
		for j, c := range coef {
			y[i] += c * row[j]
		}
	}
	return b.Build(), y
}

// closedForm solves (XcᵀXc + αI)w = Xcᵀyc with dense gonum routines.
func closedForm(t *testing.T, X *sparse.CSR, y []float64, alpha float64, intercept bool) ([]float64, float64) {
	t.Helper()
	n, d := X.Dims()
	dense := mat.DenseCopyOf(X)
	yv := mat.NewVecDense(n, append([]float64(nil), y...))
	var xMean []float64
	var yMean float64
	if intercept {
		xMean = X.ColumnMeans()
		for i := 0; i < n; i++ {
			yMean += y[i] / float64(n)
		}
		for i := 0; i < n; i++ {
			for j := 0; j < d; j++ {
				dense.Set(i, j, dense.At(i, j)-xMean[j])
			}
			yv.SetVec(i, yv.AtVec(i)-yMean)
		}
	}
	var a mat.Dense
	a.Mul(dense.T(), dense)
	for j := 0; j < d; j++ {
		a.Set(j, j, a.At(j, j)+alpha)
	}
	var rhs, w mat.VecDense
	rhs.MulVec(dense.T(), yv)
	require.NoError(t, w.SolveVec(&a, &rhs))
	coef := w.RawVector().Data
	b := yMean
	for j := range xMean {
		b -= xMean[j] * coef[j]
	}
	return coef, b
}

func TestRidgeLSQRMatchesClosedForm(t *testing.T) {
	X, y := ridgeProblem(60)
	for _, intercept := range []bool{false, true} {
		r := NewRidge(WithSolver("lsqr"), WithAlpha(1.25), WithFitIntercept(intercept), WithTol(1e-12), WithMaxIter(200))
		require.NoError(t, r.Fit(X, model.ColumnMatrix(y)))

		want, wantB := closedForm(t, X, y, 1.25, intercept)
		assert.InDeltaSlice(t, want, r.Coef(), 1e-6)
		assert.InDelta(t, wantB, r.Intercept(), 1e-6)
	}
}

func TestRidgeSAGMatchesClosedForm(t *testing.T) {
	X, y := ridgeProblem(60)
	for _, intercept := range []bool{false, true} {
		r := NewRidge(WithSolver("sag"), WithAlpha(1.25), WithFitIntercept(intercept),
			WithTol(1e-10), WithMaxIter(20000), WithRandomState(666))
		require.NoError(t, r.Fit(X, model.ColumnMatrix(y)))

		want, wantB := closedForm(t, X, y, 1.25, intercept)
		assert.InDeltaSlice(t, want, r.Coef(), 1e-2)
		assert.InDelta(t, wantB, r.Intercept(), 1e-2)
	}
}

func TestRidgeSAGDeterministic(t *testing.T) {
	X, y := ridgeProblem(30)
	fit := func() []float64 {
		r := NewRidge(WithSolver("sag"), WithRandomState(666), WithFitIntercept(false))
		require.NoError(t, r.Fit(X, model.ColumnMatrix(y)))
		return r.Coef()
	}
	assert.Equal(t, fit(), fit())
}

func TestRidgePredict(t *testing.T) {
	X, y := ridgeProblem(40)
	r := NewRidge(WithSolver("lsqr"), WithAlpha(1e-6), WithTol(1e-12), WithMaxIter(200))
	require.NoError(t, r.Fit(X, model.ColumnMatrix(y)))

	pred, err := r.Predict(X)
	require.NoError(t, err)
	rows, cols := pred.Dims()
	assert.Equal(t, 40, rows)
	assert.Equal(t, 1, cols)
	for i := 0; i < rows; i++ {
		assert.InDelta(t, y[i], pred.At(i, 0), 0.5)
	}

	// a dense matrix is accepted as well
	densePred, err := r.Predict(mat.DenseCopyOf(X))
	require.NoError(t, err)
	assert.InDelta(t, pred.At(0, 0), densePred.At(0, 0), 1e-12)
}

func TestRidgeErrors(t *testing.T) {
	X, y := ridgeProblem(10)

	_, err := NewRidge().Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = NewRidge(WithSolver("cholesky")).Fit(X, model.ColumnMatrix(y))
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	err = NewRidge().Fit(X, model.ColumnMatrix(y[:5]))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	r := NewRidge()
	require.NoError(t, r.Fit(X, model.ColumnMatrix(y)))
	_, err = r.Predict(sparse.Zeros(2, 3))
	assert.True(t, errors.As(err, &de))
}

func TestRidgeZeroMatrix(t *testing.T) {
	r := NewRidge(WithSolver("sag"))
	require.NoError(t, r.Fit(sparse.Zeros(3, 2), model.ColumnMatrix([]float64{1, 2, 3})))
	assert.Equal(t, []float64{0, 0}, r.Coef())
	assert.InDelta(t, 2.0, r.Intercept(), 1e-12)

	l := NewRidge(WithSolver("lsqr"))
	require.NoError(t, l.Fit(sparse.Zeros(3, 2), model.ColumnMatrix([]float64{1, 2, 3})))
	assert.InDelta(t, 2.0, l.Intercept(), 1e-12)
}
