// Package surrogate implements the Gaussian-process regression model that
// stands in for the expensive ground-truth evaluator once trained.
package surrogate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/voi/core/logger"
	"github.com/kilianp07/voi/core/model"
)

// ErrNotFitted is returned when predicting before a successful Fit.
var ErrNotFitted = errors.New("surrogate not fitted")

// Options configures hyperparameter fitting.
type Options struct {
	// LengthScales is the initial guess, one per input dimension, of the
	// order of each dimension's domain scale. Required: without it the
	// likelihood optimizer settles on length scales unrelated to the input
	// geometry.
	LengthScales []float64
	// ScaleFactor bounds each length scale to [l/f, l*f].
	ScaleFactor    float64
	SignalVariance float64
	SignalBounds   [2]float64
	Noise          float64
	NoiseBounds    [2]float64
	// Restarts is the number of random starts after the informed one.
	// Zero means DefaultRestarts.
	Restarts      int
	MaxIterations int
	Jitter        float64
	// Rand drives the restart locations.
	Rand   *rand.Rand
	Logger logger.Logger
}

func (o *Options) setDefaults() {
	if o.ScaleFactor <= 1 {
		o.ScaleFactor = 100
	}
	if o.SignalVariance <= 0 {
		o.SignalVariance = 1
	}
	if o.SignalBounds == [2]float64{} {
		o.SignalBounds = [2]float64{1e-3, 1e3}
	}
	if o.Noise <= 0 {
		o.Noise = 1e-4
	}
	if o.NoiseBounds == [2]float64{} {
		o.NoiseBounds = [2]float64{1e-10, 1}
	}
	if o.Restarts <= 0 {
		o.Restarts = DefaultRestarts
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = 200
	}
	if o.Jitter <= 0 {
		o.Jitter = 1e-10
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(1, 2))
	}
}

// Hyperparameters are the fitted kernel parameters. SignalVariance and
// Noise are expressed in normalized output units.
type Hyperparameters struct {
	LengthScales   []float64 `json:"length_scales"`
	SignalVariance float64   `json:"signal_variance"`
	Noise          float64   `json:"noise"`
	LogLikelihood  float64   `json:"log_likelihood"`
	Status         string    `json:"status"`
}

type fitted struct {
	x      [][]float64
	alpha  []float64
	chol   mat.Cholesky
	kern   kernel
	yMean  float64
	yStd   float64
	params Hyperparameters
}

// GP is a Gaussian-process regressor with an anisotropic squared-exponential
// kernel, a signal variance and a white-noise term. Targets are normalized to
// zero mean and unit variance before fitting.
//
// Fit must not run concurrently with Predict. Once fitted, Predict and
// PredictWithStd only read state and may be called from many goroutines.
type GP struct {
	opts Options
	st   *fitted
}

// New returns an unfitted GP.
func New(opts Options) *GP {
	opts.setDefaults()
	return &GP{opts: opts}
}

// Hyperparameters returns the fitted parameters.
func (g *GP) Hyperparameters() (Hyperparameters, error) {
	if g.st == nil {
		return Hyperparameters{}, ErrNotFitted
	}
	return g.st.params, nil
}

// Fit trains the model on ts. Hyperparameters maximize the log marginal
// likelihood, optimized with L-BFGS from the informed length scales and then
// from Restarts random log-uniform points inside the bounds.
func (g *GP) Fit(ctx context.Context, ts model.TrainingSet) error {
	if err := ts.Validate(); err != nil {
		return &model.ModelFitError{Reason: "invalid training set", Err: err}
	}
	dim := len(ts.Inputs[0])
	if len(g.opts.LengthScales) != dim {
		return model.NewInvalidInput("length_scales", fmt.Sprintf("%d values for %d input dimensions", len(g.opts.LengthScales), dim))
	}
	for i, l := range g.opts.LengthScales {
		if !(l > 0) || math.IsInf(l, 0) {
			return model.NewInvalidInput(fmt.Sprintf("length_scales[%d]", i), "must be positive")
		}
	}
	x, y, err := dedupe(ts)
	if err != nil {
		return err
	}
	if len(x) < dim+1 {
		return &model.ModelFitError{Reason: fmt.Sprintf("%d distinct points for %d input dimensions, need at least %d", len(x), dim, dim+1)}
	}

	yMean, yStd := stat.MeanStdDev(y, nil)
	if !(yStd > 0) {
		yStd = 1
	}
	yn := make([]float64, len(y))
	for i, v := range y {
		yn[i] = (v - yMean) / yStd
	}

	lo, hi, start := g.logBounds()
	obj := newLogMarginal(x, yn, lo, hi, g.opts.Jitter)
	problem := optimize.Problem{Func: obj.Func, Grad: obj.Grad}

	var (
		best       []float64
		bestF      = math.Inf(1)
		bestStatus string
		lastStatus string
		lastErr    error
	)
	for r := 0; r <= g.opts.Restarts; r++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		x0 := start
		if r > 0 {
			x0 = make([]float64, len(lo))
			for k := range x0 {
				x0[k] = lo[k] + g.opts.Rand.Float64()*(hi[k]-lo[k])
			}
		}
		settings := &optimize.Settings{MajorIterations: g.opts.MaxIterations, GradientThreshold: 1e-6}
		res, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
		if res == nil {
			lastErr = err
			g.debugf("restart %d failed: %v", r, err)
			continue
		}
		lastStatus = res.Status.String()
		if err != nil {
			lastErr = err
		}
		g.debugf("restart %d: nll=%.6g status=%s evals=%d", r, res.F, lastStatus, res.FuncEvaluations)
		if !math.IsInf(res.F, 0) && !math.IsNaN(res.F) && res.F < bestF {
			bestF = res.F
			best = append([]float64(nil), res.X...)
			bestStatus = lastStatus
		}
	}
	if best == nil {
		return &model.ModelFitError{Reason: "no restart reached a finite likelihood", Status: lastStatus, Err: lastErr}
	}

	theta, _, _ := obj.clamp(best)
	st, err := buildState(x, yn, theta, g.opts.Jitter)
	if err != nil {
		return &model.ModelFitError{Reason: "final factorization", Status: bestStatus, Err: err}
	}
	st.yMean, st.yStd = yMean, yStd
	st.params.LogLikelihood = -bestF
	st.params.Status = bestStatus
	g.st = st
	return nil
}

func (g *GP) logBounds() (lo, hi, start []float64) {
	dim := len(g.opts.LengthScales)
	lo = make([]float64, dim+2)
	hi = make([]float64, dim+2)
	start = make([]float64, dim+2)

	lo[0], hi[0] = math.Log(g.opts.SignalBounds[0]), math.Log(g.opts.SignalBounds[1])
	start[0] = math.Log(g.opts.SignalVariance)
	lf := math.Log(g.opts.ScaleFactor)
	for d, l := range g.opts.LengthScales {
		ll := math.Log(l)
		lo[1+d], hi[1+d], start[1+d] = ll-lf, ll+lf, ll
	}
	lo[dim+1], hi[dim+1] = math.Log(g.opts.NoiseBounds[0]), math.Log(g.opts.NoiseBounds[1])
	start[dim+1] = math.Log(g.opts.Noise)
	for k := range start {
		start[k] = math.Min(math.Max(start[k], lo[k]), hi[k])
	}
	return lo, hi, start
}

func (g *GP) debugf(format string, args ...any) {
	if g.opts.Logger != nil {
		g.opts.Logger.Debugf(format, args...)
	}
}

func buildState(x [][]float64, yn, theta []float64, jitter float64) (*fitted, error) {
	dim := len(x[0])
	ls := make([]float64, dim)
	for d := range ls {
		ls[d] = math.Exp(theta[1+d])
	}
	sf2 := math.Exp(theta[0])
	noise := math.Exp(theta[dim+1])
	k := newKernel(sf2, ls)
	cov := k.gram(x)
	for i := range x {
		cov.SetSym(i, i, cov.At(i, i)+noise+jitter)
	}
	st := &fitted{x: x, kern: k}
	if ok := st.chol.Factorize(cov); !ok {
		return nil, errors.New("covariance matrix not positive definite")
	}
	alpha := mat.NewVecDense(len(yn), nil)
	if err := st.chol.SolveVecTo(alpha, mat.NewVecDense(len(yn), yn)); err != nil {
		return nil, err
	}
	st.alpha = alpha.RawVector().Data
	st.params = Hyperparameters{LengthScales: ls, SignalVariance: sf2, Noise: noise}
	return st, nil
}

// dedupe collapses identical inputs. Identical inputs whose costs disagree
// beyond rounding noise make the data inconsistent and fail the fit.
func dedupe(ts model.TrainingSet) ([][]float64, []float64, error) {
	idx := make([]int, ts.Len())
	for i := range idx {
		idx[i] = i
	}
	less := func(a, b []float64) bool {
		for d := range a {
			if a[d] != b[d] {
				return a[d] < b[d]
			}
		}
		return false
	}
	sort.Slice(idx, func(i, j int) bool { return less(ts.Inputs[idx[i]], ts.Inputs[idx[j]]) })

	x := make([][]float64, 0, len(idx))
	y := make([]float64, 0, len(idx))
	for k, i := range idx {
		in := ts.Inputs[i]
		if k > 0 && equalSlices(in, x[len(x)-1]) {
			prev := y[len(y)-1]
			cur := ts.Costs[i]
			tol := 1e-8 * math.Max(1, math.Max(math.Abs(prev), math.Abs(cur)))
			if math.Abs(prev-cur) > tol {
				return nil, nil, &model.ModelFitError{Reason: fmt.Sprintf("duplicate input %v with conflicting costs %g and %g", in, prev, cur)}
			}
			continue
		}
		x = append(x, in)
		y = append(y, ts.Costs[i])
	}
	return x, y, nil
}

// Predict returns the predictive mean at each query point.
func (g *GP) Predict(q []model.JointSample) ([]float64, error) {
	st := g.st
	if st == nil {
		return nil, ErrNotFitted
	}
	if err := st.checkDims(q); err != nil {
		return nil, err
	}
	out := make([]float64, len(q))
	for i, p := range q {
		var m float64
		for j, xj := range st.x {
			m += st.kern.eval(p, xj) * st.alpha[j]
		}
		out[i] = m*st.yStd + st.yMean
	}
	return out, nil
}

// PredictWithStd returns the predictive mean and the standard deviation of
// the latent function at each query point.
func (g *GP) PredictWithStd(q []model.JointSample) (mean, std []float64, err error) {
	st := g.st
	if st == nil {
		return nil, nil, ErrNotFitted
	}
	if err := st.checkDims(q); err != nil {
		return nil, nil, err
	}
	pts := make([][]float64, len(q))
	for i := range q {
		pts[i] = q[i]
	}
	ks := st.kern.cross(pts, st.x)
	var v mat.Dense
	if err := st.chol.SolveTo(&v, ks.T()); err != nil {
		return nil, nil, err
	}
	mean = make([]float64, len(q))
	std = make([]float64, len(q))
	n := len(st.x)
	for i := range q {
		var m, reduce float64
		for j := 0; j < n; j++ {
			kij := ks.At(i, j)
			m += kij * st.alpha[j]
			reduce += kij * v.At(j, i)
		}
		mean[i] = m*st.yStd + st.yMean
		variance := st.kern.sf2 - reduce
		if variance < 0 {
			variance = 0
		}
		std[i] = math.Sqrt(variance) * st.yStd
	}
	return mean, std, nil
}

func (st *fitted) checkDims(q []model.JointSample) error {
	dim := len(st.kern.invLS2)
	for i, p := range q {
		if len(p) != dim {
			return model.NewInvalidInput(fmt.Sprintf("query[%d]", i), fmt.Sprintf("dimension %d, expected %d", len(p), dim))
		}
	}
	return nil
}
