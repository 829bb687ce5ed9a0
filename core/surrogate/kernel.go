package surrogate

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// kernel is an anisotropic squared-exponential covariance scaled by a signal
// variance:
//
//	k(a, b) = sf2 * exp(-0.5 * sum_d (a_d - b_d)^2 / l_d^2)
type kernel struct {
	sf2    float64
	invLS2 []float64
}

func newKernel(sf2 float64, lengthScales []float64) kernel {
	inv := make([]float64, len(lengthScales))
	for d, l := range lengthScales {
		inv[d] = 1 / (l * l)
	}
	return kernel{sf2: sf2, invLS2: inv}
}

func (k kernel) eval(a, b []float64) float64 {
	var s float64
	for d, w := range k.invLS2 {
		diff := a[d] - b[d]
		s += diff * diff * w
	}
	return k.sf2 * math.Exp(-0.5*s)
}

// gram returns the signal covariance of x with itself.
func (k kernel) gram(x [][]float64) *mat.SymDense {
	n := len(x)
	g := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		g.SetSym(i, i, k.sf2)
		for j := 0; j < i; j++ {
			g.SetSym(i, j, k.eval(x[i], x[j]))
		}
	}
	return g
}

// cross returns the m x n covariance between queries q and training inputs x.
func (k kernel) cross(q, x [][]float64) *mat.Dense {
	c := mat.NewDense(len(q), len(x), nil)
	for i, a := range q {
		for j, b := range x {
			c.Set(i, j, k.eval(a, b))
		}
	}
	return c
}
