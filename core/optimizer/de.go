// Package optimizer provides the derivative-free global optimizer used to
// choose designs under a noisy Monte-Carlo objective.
package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/voi/core/logger"
	"github.com/kilianp07/voi/core/model"
	"github.com/kilianp07/voi/core/sampling"
)

// Objective is minimized by the optimizer. It may be noisy: repeated calls
// at the same point need not agree.
type Objective func(x []float64) float64

// Termination messages.
const (
	MsgConverged = "optimization terminated successfully"
	MsgMaxGen    = "maximum number of generations exceeded"
	MsgMaxEval   = "maximum number of function evaluations exceeded"
	MsgPinned    = "bounds pin every dimension; evaluated the single feasible point"
)

// Range is a closed interval the mutation factor is dithered within.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Config holds differential-evolution settings.
type Config struct {
	// PopSize multiplies the number of free dimensions to give the
	// population size.
	PopSize        int `json:"pop_size"`
	MaxGenerations int `json:"max_generations"`
	// MaxEvaluations caps objective calls, the initial population included.
	MaxEvaluations int     `json:"max_evaluations"`
	Tol            float64 `json:"tol"`
	Atol           float64 `json:"atol"`
	Mutation       Range   `json:"mutation"`
	Recombination  float64 `json:"recombination"`
}

// SetDefaults applies the usual best1bin settings.
func (c *Config) SetDefaults() {
	if c.PopSize <= 0 {
		c.PopSize = 15
	}
	if c.MaxGenerations <= 0 {
		c.MaxGenerations = 1000
	}
	if c.Tol <= 0 && c.Atol <= 0 {
		c.Tol = 0.01
	}
	if c.Mutation == (Range{}) {
		c.Mutation = Range{Min: 0.5, Max: 1}
	}
	if c.Recombination <= 0 {
		c.Recombination = 0.7
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.Mutation.Min < 0 || c.Mutation.Max > 2 || c.Mutation.Min > c.Mutation.Max {
		return model.NewInvalidInput("optimizer.mutation", "must satisfy 0 <= min <= max <= 2")
	}
	if c.Recombination < 0 || c.Recombination > 1 {
		return model.NewInvalidInput("optimizer.recombination", "must be in [0,1]")
	}
	if c.Tol < 0 || c.Atol < 0 {
		return model.NewInvalidInput("optimizer.tol", "must be non-negative")
	}
	if c.MaxEvaluations < 0 {
		return model.NewInvalidInput("optimizer.max_evaluations", "must not be negative")
	}
	return nil
}

// PopulationSize returns the population used for dim free dimensions.
func (c Config) PopulationSize(dim int) int {
	np := c.PopSize * dim
	if np < 5 {
		np = 5
	}
	return np
}

// CheckBudget reports an evaluation cap too small to evaluate the initial
// population over dim free dimensions.
func (c Config) CheckBudget(dim int) error {
	if dim == 0 || c.MaxEvaluations == 0 {
		return nil
	}
	if np := c.PopulationSize(dim); c.MaxEvaluations < np {
		return model.NewInvalidInput("optimizer.max_evaluations", fmt.Sprintf("%d is below the initial population of %d", c.MaxEvaluations, np))
	}
	return nil
}

// DifferentialEvolution minimizes an objective over a box with the best1bin
// strategy: mutant = best + F*(r0 - r1), binomial crossover, immediate
// replacement. F is dithered per generation within Mutation.
//
// Only the search is seeded through Rand. A noisy objective draws from its
// own stream, so identical seeds give identical results only if that stream
// is seeded as well.
type DifferentialEvolution struct {
	Config Config
	Rand   *rand.Rand
	Logger logger.Logger
}

// New returns an optimizer with cfg defaults applied searching with rng.
func New(cfg Config, rng *rand.Rand, log logger.Logger) *DifferentialEvolution {
	cfg.SetDefaults()
	return &DifferentialEvolution{Config: cfg, Rand: rng, Logger: log}
}

// Minimize searches bounds for the minimum of f.
func (de *DifferentialEvolution) Minimize(ctx context.Context, f Objective, b model.Bounds) (model.OptimizationResult, error) {
	if err := b.Validate(); err != nil {
		return model.OptimizationResult{}, err
	}
	cfg := de.Config
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return model.OptimizationResult{}, err
	}
	rng := de.Rand
	if rng == nil {
		rng = sampling.NewStream(0, 0)
	}

	free := make([]int, 0, b.Dim())
	for d := range b.Lower {
		if b.Lower[d] != b.Upper[d] {
			free = append(free, d)
		}
	}
	x := append([]float64(nil), b.Lower...)
	energy := func(u []float64) float64 {
		for k, d := range free {
			x[d] = b.Lower[d] + u[k]*(b.Upper[d]-b.Lower[d])
		}
		v := f(x)
		if math.IsNaN(v) {
			return math.Inf(1)
		}
		return v
	}

	if len(free) == 0 {
		v := energy(nil)
		return model.OptimizationResult{
			Design:      model.DesignVector(append([]float64(nil), x...)),
			Cost:        v,
			Evaluations: 1,
			Converged:   true,
			Message:     MsgPinned,
		}, nil
	}

	dim := len(free)
	if err := cfg.CheckBudget(dim); err != nil {
		return model.OptimizationResult{}, err
	}
	np := cfg.PopulationSize(dim)
	unit := model.Bounds{Lower: make([]float64, dim), Upper: ones(dim)}
	pop := sampling.LatinHypercube(rng, np, unit)
	energies := make([]float64, np)
	nfev := 0
	for i := range pop {
		energies[i] = energy(pop[i])
		nfev++
	}
	best := floats.MinIdx(energies)

	trial := make([]float64, dim)
	converged := false
	msg := MsgMaxGen
	gen := 0
	for gen = 1; gen <= cfg.MaxGenerations; gen++ {
		if err := ctx.Err(); err != nil {
			return model.OptimizationResult{}, err
		}
		scale := cfg.Mutation.Min + rng.Float64()*(cfg.Mutation.Max-cfg.Mutation.Min)
		stop := false
		for i := 0; i < np; i++ {
			if cfg.MaxEvaluations > 0 && nfev >= cfg.MaxEvaluations {
				msg = MsgMaxEval
				stop = true
				break
			}
			r0, r1 := pickTwo(rng, np, i)
			fill := rng.IntN(dim)
			for j := 0; j < dim; j++ {
				if j == fill || rng.Float64() < cfg.Recombination {
					v := pop[best][j] + scale*(pop[r0][j]-pop[r1][j])
					if v < 0 || v > 1 {
						v = rng.Float64()
					}
					trial[j] = v
				} else {
					trial[j] = pop[i][j]
				}
			}
			e := energy(trial)
			nfev++
			if e <= energies[i] {
				copy(pop[i], trial)
				energies[i] = e
				if e < energies[best] {
					best = i
				}
			}
		}
		if stop {
			break
		}
		if populationConverged(energies, cfg.Tol, cfg.Atol) {
			converged = true
			msg = MsgConverged
			break
		}
		if de.Logger != nil && gen%50 == 0 {
			de.Logger.Debugf("de generation %d: best=%.6g evals=%d", gen, energies[best], nfev)
		}
	}
	if gen > cfg.MaxGenerations {
		gen = cfg.MaxGenerations
	}

	for k, d := range free {
		x[d] = b.Lower[d] + pop[best][k]*(b.Upper[d]-b.Lower[d])
	}
	design := model.DesignVector(append([]float64(nil), x...))
	b.Clip(design)
	return model.OptimizationResult{
		Design:      design,
		Cost:        energies[best],
		Evaluations: nfev,
		Generations: gen,
		Converged:   converged,
		Message:     msg,
	}, nil
}

// populationConverged applies the relative population spread criterion
// std(E) <= atol + tol*|mean(E)|.
func populationConverged(energies []float64, tol, atol float64) bool {
	for _, e := range energies {
		if math.IsInf(e, 0) {
			return false
		}
	}
	mean, std := stat.PopMeanStdDev(energies, nil)
	return std <= atol+tol*math.Abs(mean)
}

// pickTwo returns two distinct indices in [0,n) different from skip.
func pickTwo(rng *rand.Rand, n, skip int) (int, int) {
	a := rng.IntN(n - 1)
	if a >= skip {
		a++
	}
	for {
		c := rng.IntN(n)
		if c != skip && c != a {
			return a, c
		}
	}
}

func ones(n int) []float64 {
	o := make([]float64, n)
	for i := range o {
		o[i] = 1
	}
	return o
}

// Describe formats a result for logs.
func Describe(r model.OptimizationResult) string {
	return fmt.Sprintf("cost=%.6g evals=%d generations=%d converged=%t (%s)", r.Cost, r.Evaluations, r.Generations, r.Converged, r.Message)
}
