// Package runlog keeps a history of finished VoI runs. Only final reports
// are stored; intermediate artifacts never reach disk.
package runlog

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/voi/core/model"
)

// Record summarizes one finished run. The full report is kept alongside so
// a past run can be exported again.
type Record struct {
	RunID            string        `json:"run_id"`
	StartedAt        time.Time     `json:"started_at"`
	FinishedAt       time.Time     `json:"finished_at"`
	Buildings        int           `json:"buildings"`
	Seed             uint64        `json:"seed"`
	Evaluator        string        `json:"evaluator"`
	PriorDesign      []float64     `json:"prior_design"`
	PriorCost        float64       `json:"prior_cost"`
	PreposteriorCost float64       `json:"preposterior_cost"`
	VoIDirect        float64       `json:"voi_direct"`
	VoIRegret        float64       `json:"voi_regret"`
	StdError         float64       `json:"std_error"`
	Warnings         int           `json:"warnings"`
	Report           *model.Report `json:"report,omitempty"`
}

// FromReport builds the history record of rep.
func FromReport(rep *model.Report, evaluator string, seed uint64) Record {
	return Record{
		RunID:            rep.RunID,
		StartedAt:        rep.StartedAt,
		FinishedAt:       rep.FinishedAt,
		Buildings:        rep.Buildings,
		Seed:             seed,
		Evaluator:        evaluator,
		PriorDesign:      append([]float64(nil), rep.PriorDesign...),
		PriorCost:        rep.Estimate.PriorCost,
		PreposteriorCost: rep.Estimate.PreposteriorCost,
		VoIDirect:        rep.Estimate.VoIDirect,
		VoIRegret:        rep.Estimate.VoIRegret,
		StdError:         rep.Estimate.StdError,
		Warnings:         len(rep.Warnings),
		Report:           rep,
	}
}

// Store persists run records.
type Store interface {
	Append(ctx context.Context, rec Record) error
	// List returns up to limit records, most recent first. A non-positive
	// limit returns everything.
	List(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// Config selects the history backend.
type Config struct {
	// Backend is "jsonl", "sqlite" or "none".
	Backend string `json:"backend"`
	Path    string `json:"path"`
	// MaxSizeMB and MaxBackups control JSONL rotation.
	MaxSizeMB  int `json:"max_size_mb"`
	MaxBackups int `json:"max_backups"`
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		switch c.Backend {
		case "sqlite":
			c.Path = "voi_runs.db"
		default:
			c.Path = "voi_runs.jsonl"
		}
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 3
	}
}

// Validate checks the backend is known.
func (c Config) Validate() error {
	switch c.Backend {
	case "jsonl", "sqlite", "none":
		return nil
	default:
		return model.NewInvalidInput("history.backend", fmt.Sprintf("unknown backend %q", c.Backend))
	}
}

// Open returns the store described by cfg, or nil for the "none" backend.
func Open(cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case "jsonl":
		s, err = NewJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups)
	case "sqlite":
		s, err = NewSQLiteStore(cfg.Path)
	case "none":
		return nil, nil
	default:
		return nil, cfg.Validate()
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
