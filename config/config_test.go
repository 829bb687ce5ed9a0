package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/voi/core/model"
)

const sample = `voi:
  design_bounds:
    lower: [1000, 300]
    upper: [1400, 700]
  prior:
    mean: [0.85]
    spread: 0.1
  posterior_spread: 0.01
  n_samples: 120
  seed: 7
optimizer:
  pop_size: 10
evaluator:
  type: district
  conf:
    controller: greedy
    days: 4
metrics:
  sinks:
    - type: nop
history:
  backend: sqlite
`

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", sample))
	require.NoError(t, err)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"buildings", cfg.VoI.Buildings, 1},
		{"n_samples", cfg.VoI.NSamples, 120},
		{"n_mc_samples default", cfg.VoI.NMCSamples, 100},
		{"seed", cfg.VoI.Seed, uint64(7)},
		{"upper", cfg.VoI.DesignBounds.Upper[1], 700.0},
		{"pop_size", cfg.Optimizer.PopSize, 10},
		{"recombination default", cfg.Optimizer.Recombination, 0.7},
		{"noise default", cfg.Surrogate.Noise.Initial, 1e-4},
		{"evaluator", cfg.Evaluator.Type, "district"},
		{"evaluator conf", cfg.Evaluator.Conf["controller"], "greedy"},
		{"metrics sink", cfg.Metrics.Sinks[0].Type, "nop"},
		{"history path", cfg.History.Path, "voi_runs.db"},
		{"log level", cfg.Logging.Level, "info"},
	}
	for _, c := range checks {
		assert.Equal(t, c.want, c.got, c.name)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("VOI_VOI__SEED", "99")
	t.Setenv("VOI_OPTIMIZER__TOL", "0.001")
	cfg, err := Load(writeConfig(t, "config.yaml", sample))
	require.NoError(t, err)
	assert.Equal(t, uint64(99), cfg.VoI.Seed)
	assert.Equal(t, 0.001, cfg.Optimizer.Tol)
}

func TestLoad_JSON(t *testing.T) {
	data := `{"voi":{"design_bounds":{"lower":[0,0],"upper":[10,10]},"prior":{"mean":[0.5],"spread":0.1},"posterior_spread":0.01}}`
	cfg, err := Load(writeConfig(t, "config.json", data))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.VoI.Buildings)
	assert.Equal(t, "jsonl", cfg.History.Backend)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(writeConfig(t, "config.toml", sample))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := `voi:
  design_bounds:
    lower: [0]
    upper: [10]
  prior:
    mean: [0.5]
    spread: 0.1
  posterior_spread: 0.01
`
	_, err = Load(writeConfig(t, "config.yaml", bad))
	var inv *model.InvalidInputError
	require.True(t, errors.As(err, &inv), "got %v", err)
	assert.Equal(t, "voi.design_bounds", inv.Field)

	_, err = Load(writeConfig(t, "config.yaml", sample+"logging:\n  level: loud\n"))
	require.True(t, errors.As(err, &inv), "got %v", err)
	assert.Equal(t, "logging.level", inv.Field)
}

func TestLoggingConfig_Apply(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("APP_ENV", "")
	LoggingConfig{Level: "DEBUG", Console: true}.Apply()
	assert.Equal(t, "debug", os.Getenv("LOG_LEVEL"))
	assert.Equal(t, "dev", os.Getenv("APP_ENV"))

	t.Setenv("LOG_LEVEL", "warn")
	LoggingConfig{Level: "debug"}.Apply()
	assert.Equal(t, "warn", os.Getenv("LOG_LEVEL"))
}
