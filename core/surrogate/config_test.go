package surrogate

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/voi/core/model"
)

func TestConfig_Defaults(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, 1e-4, c.Noise.Initial)
	assert.Equal(t, 1e-10, c.Noise.Lower)
	assert.Equal(t, 1.0, c.Noise.Upper)
	assert.Equal(t, 200, c.MaxIterations)
	assert.Equal(t, DefaultRestarts, c.Restarts)
	assert.NoError(t, c.Validate())
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"zero length scale", Config{LengthScales: []float64{1, 0}}, "surrogate.length_scales[1]"},
		{"nan length scale", Config{LengthScales: []float64{math.NaN()}}, "surrogate.length_scales[0]"},
		{"noise range", Config{Noise: NoiseConfig{Lower: 1, Upper: 0.1}}, "surrogate.noise"},
		{"scale factor", Config{ScaleFactor: 0.5}, "surrogate.scale_factor"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var inv *model.InvalidInputError
			require.True(t, errors.As(tc.cfg.Validate(), &inv))
			assert.Equal(t, tc.field, inv.Field)
		})
	}
}

func TestConfig_Options(t *testing.T) {
	c := Config{Restarts: 2}
	c.SetDefaults()
	derived := []float64{400, 400, 0.1}
	o := c.Options(derived, nil, nil)
	assert.Equal(t, derived, o.LengthScales)
	assert.Equal(t, [2]float64{1e-10, 1}, o.NoiseBounds)
	assert.Equal(t, 2, o.Restarts)
	derived[0] = 1
	assert.Equal(t, 400.0, o.LengthScales[0])

	c.LengthScales = []float64{5, 5, 5}
	assert.Equal(t, []float64{5, 5, 5}, c.Options(derived, nil, nil).LengthScales)
}
