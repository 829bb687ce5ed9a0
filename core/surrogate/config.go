package surrogate

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/kilianp07/voi/core/logger"
	"github.com/kilianp07/voi/core/model"
)

// NoiseConfig sets the white-noise starting value and search range.
type NoiseConfig struct {
	Initial float64 `json:"initial"`
	Lower   float64 `json:"lower"`
	Upper   float64 `json:"upper"`
}

// Config is the user-facing surrogate section. Length scales are optional
// here: when empty the caller derives them from the input domain.
type Config struct {
	Restarts      int         `json:"restarts"`
	LengthScales  []float64   `json:"length_scales"`
	ScaleFactor   float64     `json:"scale_factor"`
	Noise         NoiseConfig `json:"noise"`
	MaxIterations int         `json:"max_iterations"`
}

// DefaultRestarts is the number of random likelihood restarts after the
// informed start when none is configured.
const DefaultRestarts = 3

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.Restarts <= 0 {
		c.Restarts = DefaultRestarts
	}
	if c.Noise.Initial <= 0 {
		c.Noise.Initial = 1e-4
	}
	if c.Noise.Lower <= 0 {
		c.Noise.Lower = 1e-10
	}
	if c.Noise.Upper <= 0 {
		c.Noise.Upper = 1
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 200
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	for i, l := range c.LengthScales {
		if !(l > 0) || math.IsInf(l, 0) {
			return model.NewInvalidInput(fmt.Sprintf("surrogate.length_scales[%d]", i), "must be positive")
		}
	}
	if c.Noise.Lower > c.Noise.Upper {
		return model.NewInvalidInput("surrogate.noise", "lower exceeds upper")
	}
	if c.ScaleFactor != 0 && c.ScaleFactor <= 1 {
		return model.NewInvalidInput("surrogate.scale_factor", "must exceed 1")
	}
	return nil
}

// Options converts the section into GP options. lengthScales is used when
// the section carries none.
func (c Config) Options(lengthScales []float64, rng *rand.Rand, log logger.Logger) Options {
	ls := c.LengthScales
	if len(ls) == 0 {
		ls = lengthScales
	}
	return Options{
		LengthScales:  append([]float64(nil), ls...),
		ScaleFactor:   c.ScaleFactor,
		Noise:         c.Noise.Initial,
		NoiseBounds:   [2]float64{c.Noise.Lower, c.Noise.Upper},
		Restarts:      c.Restarts,
		MaxIterations: c.MaxIterations,
		Rand:          rng,
		Logger:        log,
	}
}
