// Package estimator computes the Monte-Carlo expected cost of a design under
// an efficiency distribution, using the surrogate as the cost function.
package estimator

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/voi/core/model"
	"github.com/kilianp07/voi/core/sampling"
)

// Predictor answers batched cost queries over joint samples.
type Predictor interface {
	Predict(q []model.JointSample) ([]float64, error)
}

// Estimator averages surrogate predictions over Samples efficiency draws.
// The result is a noisy estimate of the expected cost: two calls with the
// same design but different draws differ slightly.
type Estimator struct {
	Model   Predictor
	Samples int
}

// Estimate returns the mean predicted cost of design under dist. The draws
// come from rng, which must not be shared with another goroutine.
func (e Estimator) Estimate(rng *rand.Rand, design model.DesignVector, dist model.UncertaintyDistribution) (float64, error) {
	if err := design.Validate(); err != nil {
		return 0, err
	}
	if e.Samples <= 0 {
		return 0, model.NewInvalidInput("n_mc_samples", "must be positive")
	}
	if len(dist.Mean) != design.Buildings() {
		return 0, model.NewInvalidInput("uncertainty.mean", fmt.Sprintf("%d values for %d buildings", len(dist.Mean), design.Buildings()))
	}
	draws, err := sampling.New(rng).SampleUncertainty(e.Samples, dist)
	if err != nil {
		return 0, err
	}
	q := make([]model.JointSample, len(draws))
	for i, u := range draws {
		q[i] = model.Join(design, u)
	}
	costs, err := e.Model.Predict(q)
	if err != nil {
		return 0, fmt.Errorf("surrogate predict: %w", err)
	}
	return stat.Mean(costs, nil), nil
}

// Objective binds the estimator to a distribution, producing a function of
// the design alone for the optimizer. Each call draws fresh samples from
// rng. Errors cannot cross the optimizer boundary, so the first one is kept
// and the objective returns +Inf from then on; check Err after optimizing.
type Objective struct {
	est  Estimator
	rng  *rand.Rand
	dist model.UncertaintyDistribution
	err  error
}

// Bind returns the objective of dist with draws from rng.
func (e Estimator) Bind(rng *rand.Rand, dist model.UncertaintyDistribution) *Objective {
	return &Objective{est: e, rng: rng, dist: dist}
}

// Cost evaluates the objective at x.
func (o *Objective) Cost(x []float64) float64 {
	if o.err != nil {
		return math.Inf(1)
	}
	v, err := o.est.Estimate(o.rng, model.DesignVector(x), o.dist)
	if err != nil {
		o.err = err
		return math.Inf(1)
	}
	return v
}

// Err returns the first estimation failure, if any.
func (o *Objective) Err() error { return o.err }
