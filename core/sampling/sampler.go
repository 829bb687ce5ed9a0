// Package sampling draws the space-filling design samples and the clipped
// normal efficiency draws consumed by the surrogate and the estimator.
package sampling

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kilianp07/voi/core/model"
)

// Sampler draws samples from an explicit random stream. A Sampler is not safe
// for concurrent use; give each goroutine its own.
type Sampler struct {
	rng *rand.Rand
}

// New returns a Sampler reading from rng.
func New(rng *rand.Rand) *Sampler { return &Sampler{rng: rng} }

// LatinHypercube returns n points stratified over the box: every dimension
// is split into n equal strata and each stratum holds exactly one point.
// Pinned dimensions (lower == upper) take the bound value.
func LatinHypercube(rng *rand.Rand, n int, b model.Bounds) [][]float64 {
	dim := b.Dim()
	pts := make([][]float64, n)
	for i := range pts {
		pts[i] = make([]float64, dim)
	}
	for d := 0; d < dim; d++ {
		span := b.Upper[d] - b.Lower[d]
		perm := rng.Perm(n)
		for i := 0; i < n; i++ {
			u := (float64(perm[i]) + rng.Float64()) / float64(n)
			v := b.Lower[d] + u*span
			// guard against rounding past the upper bound
			pts[i][d] = math.Min(v, b.Upper[d])
		}
	}
	return pts
}

// SampleDesigns returns n Latin-hypercube designs inside the bounds.
func (s *Sampler) SampleDesigns(n int, b model.Bounds) ([]model.DesignVector, error) {
	if n <= 0 {
		return nil, model.NewInvalidInput("n_samples", "must be positive")
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	pts := LatinHypercube(s.rng, n, b)
	out := make([]model.DesignVector, n)
	for i, p := range pts {
		out[i] = model.DesignVector(p)
	}
	return out, nil
}

// SampleUncertainty draws n efficiency vectors from Normal(mean, spread) per
// building, clipped to [0,1]. Clipping moves the tail mass outside [0,1]
// onto the interval ends; this is a modeling approximation. A zero spread
// returns the mean without consuming randomness.
func (s *Sampler) SampleUncertainty(n int, dist model.UncertaintyDistribution) ([]model.UncertaintyVector, error) {
	if n <= 0 {
		return nil, model.NewInvalidInput("n_mc_samples", "must be positive")
	}
	if err := dist.Validate(); err != nil {
		return nil, err
	}
	out := make([]model.UncertaintyVector, n)
	if dist.Spread == 0 {
		for i := range out {
			u := make(model.UncertaintyVector, len(dist.Mean))
			for d, m := range dist.Mean {
				u[d] = clip01(m)
			}
			out[i] = u
		}
		return out, nil
	}
	normals := make([]distuv.Normal, len(dist.Mean))
	for d, m := range dist.Mean {
		normals[d] = distuv.Normal{Mu: m, Sigma: dist.Spread, Src: s.rng}
	}
	for i := range out {
		u := make(model.UncertaintyVector, len(normals))
		for d := range normals {
			u[d] = clip01(normals[d].Rand())
		}
		out[i] = u
	}
	return out, nil
}

// SampleJoint returns n joint samples: Latin-hypercube designs paired with
// efficiency draws from the prior.
func (s *Sampler) SampleJoint(n int, b model.Bounds, prior model.UncertaintyDistribution) ([]model.JointSample, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if b.Dim()%2 != 0 {
		return nil, model.NewInvalidInput("design_bounds", fmt.Sprintf("%d dimensions, expected an energy/solar pair per building", b.Dim()))
	}
	if len(prior.Mean) != b.Dim()/2 {
		return nil, model.NewInvalidInput("prior.mean", fmt.Sprintf("%d values for %d buildings", len(prior.Mean), b.Dim()/2))
	}
	designs, err := s.SampleDesigns(n, b)
	if err != nil {
		return nil, err
	}
	effs, err := s.SampleUncertainty(n, prior)
	if err != nil {
		return nil, err
	}
	out := make([]model.JointSample, n)
	for i := range designs {
		out[i] = model.Join(designs[i], effs[i])
	}
	return out, nil
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
