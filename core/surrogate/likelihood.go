package surrogate

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// logMarginal evaluates the negative log marginal likelihood of normalized
// targets and its gradient with respect to the log hyperparameters
//
//	theta = [log sf2, log l_1 .. log l_D, log noise]
//
// Parameters are clamped into [lo, hi]; outside the box a quadratic penalty
// pulls the optimizer back. The last evaluation is cached because the
// optimizer asks for the value and the gradient at the same point.
type logMarginal struct {
	x      [][]float64
	y      *mat.VecDense
	dim    int
	lo, hi []float64
	jitter float64

	lastTheta []float64
	lastF     float64
	lastGrad  []float64
}

func newLogMarginal(x [][]float64, y []float64, lo, hi []float64, jitter float64) *logMarginal {
	return &logMarginal{
		x:      x,
		y:      mat.NewVecDense(len(y), y),
		dim:    len(x[0]),
		lo:     lo,
		hi:     hi,
		jitter: jitter,
	}
}

func (l *logMarginal) Func(theta []float64) float64 {
	l.eval(theta)
	return l.lastF
}

func (l *logMarginal) Grad(grad, theta []float64) {
	l.eval(theta)
	copy(grad, l.lastGrad)
}

func (l *logMarginal) clamp(theta []float64) (p []float64, penalty float64, dpen []float64) {
	p = make([]float64, len(theta))
	dpen = make([]float64, len(theta))
	weight := float64(len(l.x))
	for k, v := range theta {
		switch {
		case v < l.lo[k]:
			e := l.lo[k] - v
			penalty += weight * e * e
			dpen[k] = -2 * weight * e
			p[k] = l.lo[k]
		case v > l.hi[k]:
			e := v - l.hi[k]
			penalty += weight * e * e
			dpen[k] = 2 * weight * e
			p[k] = l.hi[k]
		default:
			p[k] = v
		}
	}
	return p, penalty, dpen
}

func (l *logMarginal) eval(theta []float64) {
	if l.lastTheta != nil && equalSlices(theta, l.lastTheta) {
		return
	}
	l.lastTheta = append(l.lastTheta[:0], theta...)
	grad := make([]float64, len(theta))
	l.lastGrad = grad

	p, penalty, dpen := l.clamp(theta)
	sf2 := math.Exp(p[0])
	ls := make([]float64, l.dim)
	for d := range ls {
		ls[d] = math.Exp(p[1+d])
	}
	noise := math.Exp(p[l.dim+1])
	k := newKernel(sf2, ls)

	n := len(l.x)
	ks := k.gram(l.x)
	cov := mat.NewSymDense(n, nil)
	cov.CopySym(ks)
	for i := 0; i < n; i++ {
		cov.SetSym(i, i, cov.At(i, i)+noise+l.jitter)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		l.lastF = math.Inf(1)
		return
	}
	alpha := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(alpha, l.y); err != nil {
		l.lastF = math.Inf(1)
		return
	}
	nll := 0.5*mat.Dot(l.y, alpha) + 0.5*chol.LogDet() + 0.5*float64(n)*math.Log(2*math.Pi)

	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		l.lastF = math.Inf(1)
		return
	}
	a := alpha.RawVector().Data
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			w := inv.At(i, j) - a[i]*a[j]
			mult := 2.0
			if i == j {
				mult = 1
				grad[l.dim+1] += w * noise
			}
			wk := mult * w * ks.At(i, j)
			grad[0] += wk
			if i == j {
				continue
			}
			xi, xj := l.x[i], l.x[j]
			for d, w2 := range k.invLS2 {
				diff := xi[d] - xj[d]
				grad[1+d] += wk * diff * diff * w2
			}
		}
	}
	for kk := range grad {
		grad[kk] *= 0.5
		if p[kk] != theta[kk] {
			// clamped: only the penalty drives this coordinate
			grad[kk] = 0
		}
		grad[kk] += dpen[kk]
	}
	l.lastF = nll + penalty
}

func equalSlices(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
