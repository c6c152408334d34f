// Package model_selection はデータ分割のユーティリティを提供する。
package model_selection

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/pricecast/pkg/errors"
)

// TrainTestSplit はscikit-learn互換の行インデックス分割
// テスト側は ceil(n * testSize) 行。seed が同じなら結果も同じ
//
// 戻り値:
//   - train, test: 元の行番号 (シャッフル後の順)
func TrainTestSplit(n int, testSize float64, seed uint64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTrain <= 0 || nTest <= 0 {
		return nil, nil, errors.NewValueError("TrainTestSplit",
			"the resulting train set would be empty; use more samples or a smaller test_size")
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	perm := rng.Perm(n)
	return perm[nTest:], perm[:nTest], nil
}
