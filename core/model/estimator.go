package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pricecast/pkg/errors"
)

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 の列ベクトル
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を n×1 の列ベクトルで返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Regressor はアンサンブルが扱う回帰モデルの契約
// X は *sparse.CSR を含む任意の mat.Matrix
type Regressor interface {
	Fitter
	Predictor
}

// ParameterGetter はハイパーパラメータを公開するモデルのインターフェース
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ColumnValues は n×1 の行列を []float64 に変換する
func ColumnValues(op string, y mat.Matrix) ([]float64, error) {
	r, c := y.Dims()
	if c != 1 {
		return nil, errors.NewDimensionError(op, 1, c, 1)
	}
	if v, ok := y.(*mat.VecDense); ok {
		out := make([]float64, r)
		copy(out, v.RawVector().Data)
		return out, nil
	}
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		out[i] = y.At(i, 0)
	}
	return out, nil
}

// ColumnMatrix は []float64 を n×1 の行列として包む（コピーしない）
func ColumnMatrix(v []float64) *mat.Dense {
	if len(v) == 0 {
		return &mat.Dense{}
	}
	return mat.NewDense(len(v), 1, v)
}
