package voi

import (
	"fmt"
	"math"

	"github.com/kilianp07/voi/core/batch"
	"github.com/kilianp07/voi/core/model"
)

// ValidationConfig controls the optional ground-truth check of the
// surrogate at the solved designs.
type ValidationConfig struct {
	Enabled bool `json:"enabled"`
	// NDraws is the number of fresh efficiency draws per checked design.
	NDraws int `json:"n_draws"`
	// NPosterior is how many posterior designs are checked besides the
	// prior design. They are spread evenly over the posterior problems.
	NPosterior int `json:"n_posterior"`
}

// Config describes one VoI study.
type Config struct {
	Buildings         int                           `json:"buildings"`
	DesignBounds      model.Bounds                  `json:"design_bounds"`
	Prior             model.UncertaintyDistribution `json:"prior"`
	PosteriorSpread   float64                       `json:"posterior_spread"`
	NSamples          int                           `json:"n_samples"`
	NMCSamples        int                           `json:"n_mc_samples"`
	NPriorSamples     int                           `json:"n_prior_samples"`
	Seed              uint64                        `json:"seed"`
	Workers           int                           `json:"workers"`
	PosteriorWorkers  int                           `json:"posterior_workers"`
	BoundaryTolerance float64                       `json:"boundary_tolerance"`
	Validation        ValidationConfig              `json:"validation"`
}

// SetDefaults fills unset values. Buildings is inferred from the prior mean.
func (c *Config) SetDefaults() {
	if c.Buildings == 0 {
		c.Buildings = len(c.Prior.Mean)
	}
	if c.NSamples == 0 {
		c.NSamples = 200
	}
	if c.NMCSamples == 0 {
		c.NMCSamples = 100
	}
	if c.NPriorSamples == 0 {
		c.NPriorSamples = 16
	}
	if c.Workers <= 0 {
		c.Workers = batch.DefaultWorkers()
	}
	if c.PosteriorWorkers <= 0 {
		c.PosteriorWorkers = 1
	}
	if c.BoundaryTolerance == 0 {
		c.BoundaryTolerance = 0.01
	}
	if c.Validation.Enabled {
		if c.Validation.NDraws == 0 {
			c.Validation.NDraws = 32
		}
		if c.Validation.NPosterior == 0 {
			c.Validation.NPosterior = 4
		}
	}
}

// Validate checks the study is well formed. Errors name the offending field.
func (c Config) Validate() error {
	if c.Buildings <= 0 {
		return model.NewInvalidInput("voi.buildings", "must be positive")
	}
	if err := c.DesignBounds.Validate(); err != nil {
		return fmt.Errorf("voi.design_bounds: %w", err)
	}
	if c.DesignBounds.Dim() != 2*c.Buildings {
		return model.NewInvalidInput("voi.design_bounds", fmt.Sprintf("%d dimensions, expected %d for %d buildings", c.DesignBounds.Dim(), 2*c.Buildings, c.Buildings))
	}
	if err := c.Prior.Validate(); err != nil {
		return fmt.Errorf("voi.prior: %w", err)
	}
	if len(c.Prior.Mean) != c.Buildings {
		return model.NewInvalidInput("voi.prior.mean", fmt.Sprintf("%d values for %d buildings", len(c.Prior.Mean), c.Buildings))
	}
	if math.IsNaN(c.PosteriorSpread) || math.IsInf(c.PosteriorSpread, 0) || c.PosteriorSpread < 0 {
		return model.NewInvalidInput("voi.posterior_spread", "must be a finite non-negative number")
	}
	if c.NSamples <= 0 {
		return model.NewInvalidInput("voi.n_samples", "must be positive")
	}
	if c.NMCSamples <= 0 {
		return model.NewInvalidInput("voi.n_mc_samples", "must be positive")
	}
	if c.NPriorSamples <= 0 {
		return model.NewInvalidInput("voi.n_prior_samples", "must be positive")
	}
	if c.BoundaryTolerance < 0 || c.BoundaryTolerance >= 0.5 {
		return model.NewInvalidInput("voi.boundary_tolerance", "must be in [0, 0.5)")
	}
	if c.Validation.Enabled {
		if c.Validation.NDraws <= 0 {
			return model.NewInvalidInput("voi.validation.n_draws", "must be positive")
		}
		if c.Validation.NPosterior < 0 {
			return model.NewInvalidInput("voi.validation.n_posterior", "must not be negative")
		}
	}
	return nil
}

// lengthScales guesses one surrogate length scale per joint dimension: the
// design range for capacities and the prior spread for efficiencies.
func (c Config) lengthScales() []float64 {
	ls := make([]float64, 0, 3*c.Buildings)
	for i := range c.DesignBounds.Lower {
		span := c.DesignBounds.Upper[i] - c.DesignBounds.Lower[i]
		if span <= 0 {
			span = math.Max(math.Abs(c.DesignBounds.Lower[i]), 1)
		}
		ls = append(ls, span)
	}
	for range c.Buildings {
		ls = append(ls, math.Max(c.Prior.Spread, 0.01))
	}
	return ls
}
