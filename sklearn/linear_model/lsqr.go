package linear_model

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/pricecast/core/sparse"
)

// centeredOperator は X - 1·meanᵀ を陽に作らずに掛け算する
type centeredOperator struct {
	X    *sparse.CSR
	mean []float64 // nil なら中心化しない
}

func (op centeredOperator) mulVec(dst, v []float64) {
	op.X.MulVecTo(dst, v)
	if op.mean == nil {
		return
	}
	shift := floats.Dot(op.mean, v)
	for i := range dst {
		dst[i] -= shift
	}
}

func (op centeredOperator) mulTransVec(dst, u []float64) {
	op.X.MulTransVecTo(dst, u)
	if op.mean == nil {
		return
	}
	floats.AddScaled(dst, -floats.Sum(u), op.mean)
}

// solveLSQR は減衰付き LSQR (Paige & Saunders) で
// min ||Ax - b||² + alpha·||x||² を解く。damp = sqrt(alpha)
// 切片ありの場合は X と y を暗黙に中心化し、最後に切片を復元する
func solveLSQR(X *sparse.CSR, y []float64, alpha float64, fitIntercept bool, maxIter int, tol float64) solution {
	m, n := X.Dims()
	op := centeredOperator{X: X}
	b := append([]float64(nil), y...)
	var yMean float64
	if fitIntercept {
		op.mean = X.ColumnMeans()
		yMean = floats.Sum(y) / float64(m)
		for i := range b {
			b[i] -= yMean
		}
	}
	if maxIter == 0 {
		maxIter = 2 * n
		if maxIter < 10 {
			maxIter = 10
		}
	}

	const conlim = 1e8
	eps := math.Nextafter(1, 2) - 1
	atol, btol := tol, tol
	ctol := 1 / conlim
	damp := math.Sqrt(alpha)
	dampsq := alpha

	x := make([]float64, n)
	u := b
	v := make([]float64, n)
	w := make([]float64, n)
	tmpM := make([]float64, m)
	tmpN := make([]float64, n)

	bnorm := floats.Norm(u, 2)
	beta := bnorm
	var alfa float64
	if beta > 0 {
		floats.Scale(1/beta, u)
		op.mulTransVec(v, u)
		alfa = floats.Norm(v, 2)
	}
	if alfa > 0 {
		floats.Scale(1/alfa, v)
	}
	copy(w, v)

	res := solution{coef: x, converged: true}
	if alfa*beta == 0 {
		res.intercept = yMean - dotMean(op.mean, x)
		return res
	}

	var (
		anorm, acond, ddnorm, res2, xxnorm, z float64
		cs2, sn2                              = -1.0, 0.0
		rhobar, phibar                        = alfa, beta
		itn                                   int
		istop                                 int
	)
	for itn < maxIter {
		itn++
		// u = A v - alfa u
		op.mulVec(tmpM, v)
		for i := range u {
			u[i] = tmpM[i] - alfa*u[i]
		}
		beta = floats.Norm(u, 2)
		if beta > 0 {
			floats.Scale(1/beta, u)
			anorm = math.Sqrt(anorm*anorm + alfa*alfa + beta*beta + dampsq)
			// v = Aᵀ u - beta v
			op.mulTransVec(tmpN, u)
			for j := range v {
				v[j] = tmpN[j] - beta*v[j]
			}
			alfa = floats.Norm(v, 2)
			if alfa > 0 {
				floats.Scale(1/alfa, v)
			}
		}

		// 減衰項の消去
		rhobar1, psi := rhobar, 0.0
		if damp > 0 {
			rhobar1 = math.Hypot(rhobar, damp)
			cs1 := rhobar / rhobar1
			sn1 := damp / rhobar1
			psi = sn1 * phibar
			phibar = cs1 * phibar
		}

		cs, sn, rho := symOrtho(rhobar1, beta)
		if rho == 0 {
			istop = 1
			break
		}
		theta := sn * alfa
		rhobar = -cs * alfa
		phi := cs * phibar
		phibar = sn * phibar
		tau := sn * phi

		t1 := phi / rho
		t2 := -theta / rho
		dknorm := 0.0
		for j := range x {
			dk := w[j] / rho
			dknorm += dk * dk
			x[j] += t1 * w[j]
			w[j] = v[j] + t2*w[j]
		}
		ddnorm += dknorm

		delta := sn2 * rho
		gambar := -cs2 * rho
		rhs := phi - delta*z
		zbar := rhs / gambar
		xnorm := math.Sqrt(xxnorm + zbar*zbar)
		gamma := math.Hypot(gambar, theta)
		cs2 = gambar / gamma
		sn2 = theta / gamma
		z = rhs / gamma
		xxnorm += z * z

		acond = anorm * math.Sqrt(ddnorm)
		res1 := phibar * phibar
		res2 += psi * psi
		rnorm := math.Sqrt(res1 + res2)
		arnorm := alfa * math.Abs(tau)

		test1 := rnorm / bnorm
		test2 := arnorm / (anorm*rnorm + eps)
		test3 := 1 / (acond + eps)
		t1s := test1 / (1 + anorm*xnorm/bnorm)
		rtol := btol + atol*anorm*xnorm/bnorm

		switch {
		case test1 <= rtol, 1+t1s <= 1:
			istop = 1
		case test2 <= atol, 1+test2 <= 1:
			istop = 2
		case test3 <= ctol, 1+test3 <= 1:
			istop = 3
		}
		if istop != 0 {
			break
		}
	}

	res.nIter = itn
	res.converged = istop != 0
	res.intercept = yMean - dotMean(op.mean, x)
	return res
}

func dotMean(mean, x []float64) float64 {
	if mean == nil {
		return 0
	}
	return floats.Dot(mean, x)
}

// symOrtho は安定な Givens 回転 (c, s, r) を返す
func symOrtho(a, b float64) (c, s, r float64) {
	switch {
	case b == 0:
		if a == 0 {
			return 1, 0, 0
		}
		return math.Copysign(1, a), 0, math.Abs(a)
	case a == 0:
		return 0, math.Copysign(1, b), math.Abs(b)
	case math.Abs(b) > math.Abs(a):
		tau := a / b
		s = math.Copysign(1, b) / math.Sqrt(1+tau*tau)
		c = s * tau
		r = b / s
	default:
		tau := b / a
		c = math.Copysign(1, a) / math.Sqrt(1+tau*tau)
		s = c * tau
		r = a / c
	}
	return c, s, r
}
