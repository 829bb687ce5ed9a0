package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/voi/core/factory"
	"github.com/kilianp07/voi/core/metrics"
	"github.com/kilianp07/voi/core/optimizer"
	"github.com/kilianp07/voi/core/runlog"
	"github.com/kilianp07/voi/core/surrogate"
	"github.com/kilianp07/voi/core/voi"
)

// EnvPrefix marks environment overrides. Nested keys are separated by a
// double underscore, e.g. VOI_VOI__SEED=3 or VOI_EVALUATOR__CONF__DAYS=6.
const EnvPrefix = "VOI_"

type Config struct {
	VoI       voi.Config           `json:"voi"`
	Surrogate surrogate.Config     `json:"surrogate"`
	Optimizer optimizer.Config     `json:"optimizer"`
	Evaluator factory.ModuleConfig `json:"evaluator"`
	Metrics   metrics.Config       `json:"metrics"`
	History   runlog.Config        `json:"history"`
	Logging   LoggingConfig        `json:"logging"`
}

// Load reads the YAML or JSON file at path, applies a .env file from the
// working directory when present and then VOI_ environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.VoI.SetDefaults()
	c.Surrogate.SetDefaults()
	c.Optimizer.SetDefaults()
	c.History.SetDefaults()
	c.Logging.SetDefaults()
	if c.Evaluator.Type == "" {
		c.Evaluator.Type = "district"
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	for _, v := range []interface{ Validate() error }{c.VoI, c.Surrogate, c.Optimizer, c.History, c.Logging} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
