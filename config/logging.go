package config

import (
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kilianp07/voi/core/model"
)

// LoggingConfig controls log verbosity and format.
type LoggingConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `json:"level"`
	// Console switches to human-readable output.
	Console bool `json:"console"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks the level name.
func (c LoggingConfig) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Level)); err != nil {
		return model.NewInvalidInput("logging.level", err.Error())
	}
	return nil
}

// Apply exports the settings to the environment read by loggers created
// afterwards. Explicit LOG_LEVEL and APP_ENV values win.
func (c LoggingConfig) Apply() {
	if os.Getenv("LOG_LEVEL") == "" {
		_ = os.Setenv("LOG_LEVEL", strings.ToLower(c.Level))
	}
	if c.Console && os.Getenv("APP_ENV") == "" {
		_ = os.Setenv("APP_ENV", "dev")
	}
}
