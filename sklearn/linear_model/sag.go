package linear_model

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/pricecast/core/sparse"
)

// sparseInterceptDecay は疎行列入力時の切片更新の減衰率 (sklearn と同じ)
const sparseInterceptDecay = 0.01

// solveSAG は確率的平均勾配法 (SAG) で二乗損失のRidgeを解く
//
// 目的関数は (1/n)·Σ ½(xᵢ·w + b - yᵢ)² + ½·(alpha/n)·||w||²。
// 重みは w = c·v と表し、疎な行に現れない特徴の更新は累積和を使って
// 次に参照されるまで遅延させる。
func solveSAG(X *sparse.CSR, y []float64, alpha float64, fitIntercept bool, maxIter int, tol float64, seed uint64) solution {
	n, d := X.Dims()
	if maxIter == 0 {
		maxIter = 1000
	}
	alphaScaled := alpha / float64(n)

	maxSq := 0.0
	for i := 0; i < n; i++ {
		if s := X.RowSquaredNorm(i); s > maxSq {
			maxSq = s
		}
	}
	if maxSq == 0 {
		// 全ての行がゼロ
		res := solution{coef: make([]float64, d), converged: true}
		if fitIntercept {
			res.intercept = floats.Sum(y) / float64(n)
		}
		return res
	}
	lipschitz := maxSq + alphaScaled
	if fitIntercept {
		lipschitz++
	}
	step := 1 / lipschitz

	var (
		v         = make([]float64, d)
		scale     = 1.0
		sumGrad   = make([]float64, d)
		gradMem   = make([]float64, n)
		seen      = make([]bool, n)
		numSeen   int
		cum       float64
		cumLast   = make([]float64, d)
		intercept float64
		sumGradB  float64
		prev      = make([]float64, d)
		w         = make([]float64, d)
		rng       = rand.New(rand.NewPCG(seed, 0x5a6))
	)
	sync := func(j int) {
		v[j] -= sumGrad[j] * (cum - cumLast[j])
		cumLast[j] = cum
	}
	syncAll := func() {
		for j := range v {
			sync(j)
		}
	}

	res := solution{}
	for epoch := 1; epoch <= maxIter; epoch++ {
		for it := 0; it < n; it++ {
			i := rng.IntN(n)
			idx, val := X.Row(i)
			var dot float64
			for k, j := range idx {
				sync(j)
				dot += val[k] * v[j]
			}
			g := scale*dot + intercept - y[i]
			corr := g - gradMem[i]
			gradMem[i] = g
			if !seen[i] {
				seen[i] = true
				numSeen++
			}
			for k, j := range idx {
				sumGrad[j] += corr * val[k]
			}
			if fitIntercept {
				sumGradB += corr
				intercept -= step * sumGradB / float64(numSeen) * sparseInterceptDecay
			}

			scale *= 1 - step*alphaScaled
			cum += step / (float64(numSeen) * scale)
			if scale < 1e-9 {
				syncAll()
				floats.Scale(scale, v)
				scale = 1
			}
		}

		syncAll()
		maxChange, maxWeight := 0.0, 0.0
		for j := range w {
			w[j] = scale * v[j]
			maxChange = math.Max(maxChange, math.Abs(w[j]-prev[j]))
			maxWeight = math.Max(maxWeight, math.Abs(w[j]))
		}
		copy(prev, w)
		res.nIter = epoch
		if (maxWeight != 0 && maxChange/maxWeight <= tol) || (maxWeight == 0 && maxChange == 0) {
			res.converged = true
			break
		}
	}

	res.coef = append([]float64(nil), w...)
	res.intercept = intercept
	return res
}
