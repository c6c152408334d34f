// Package metrics provides regression scores over prediction slices.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/pricecast/pkg/errors"
)

func check(op string, yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return errors.NewValueError(op, "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	return nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred []float64) (float64, error) {
	if err := check("MSE", yTrue, yPred); err != nil {
		return 0, err
	}
	d := floats.Distance(yTrue, yPred, 2)
	return d * d / float64(len(yTrue)), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred []float64) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred []float64) (float64, error) {
	if err := check("MAE", yTrue, yPred); err != nil {
		return 0, err
	}
	return floats.Distance(yTrue, yPred, 1) / float64(len(yTrue)), nil
}

// R2Score は決定係数（R²）を計算する
func R2Score(yTrue, yPred []float64) (float64, error) {
	if err := check("R2Score", yTrue, yPred); err != nil {
		return 0, err
	}
	mean := stat.Mean(yTrue, nil)
	var tss, rss float64
	for i, v := range yTrue {
		tss += (v - mean) * (v - mean)
		rss += (v - yPred[i]) * (v - yPred[i])
	}
	// 全変動が0の場合（すべてのyTrueが同じ値）
	if tss == 0 {
		return 0, errors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}

// RMSLE は価格空間での対数二乗誤差 sqrt(mean((log1p(p) - log1p(a))²))
// 値は -1 より大きくなければならない
func RMSLE(yTrue, yPred []float64) (float64, error) {
	if err := check("RMSLE", yTrue, yPred); err != nil {
		return 0, err
	}
	var sum float64
	for i, a := range yTrue {
		p := yPred[i]
		if a <= -1 || p <= -1 {
			return 0, errors.NewValueError("RMSLE", "values must be greater than -1")
		}
		d := math.Log1p(p) - math.Log1p(a)
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(yTrue))), nil
}

// Report bundles the scores logged for a fitted model.
type Report struct {
	RMSE float64  `json:"rmse"`
	MAE  float64  `json:"mae"`
	R2   *float64 `json:"r2,omitempty"`
}

// Evaluate computes RMSE, MAE and R². R² is left nil when yTrue is
// constant.
func Evaluate(yTrue, yPred []float64) (Report, error) {
	var r Report
	var err error
	if r.RMSE, err = RMSE(yTrue, yPred); err != nil {
		return r, err
	}
	if r.MAE, err = MAE(yTrue, yPred); err != nil {
		return r, err
	}
	r2, err := R2Score(yTrue, yPred)
	if err == nil {
		r.R2 = &r2
	}
	return r, nil
}
