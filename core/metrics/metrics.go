package metrics

import (
	"time"

	"github.com/kilianp07/voi/core/model"
)

// BatchEvent describes one batch of ground-truth evaluations.
type BatchEvent struct {
	RunID    string
	Batch    string
	Size     int
	Duration time.Duration
	Failed   bool
	Time     time.Time
}

// MetricsSink records evaluation batches for observability purposes.
type MetricsSink interface {
	RecordEvaluationBatch(ev BatchEvent) error
}

// SurrogateFitEvent summarizes a surrogate training.
type SurrogateFitEvent struct {
	RunID         string
	Points        int
	LogLikelihood float64
	Duration      time.Duration
	Time          time.Time
}

// SurrogateFitRecorder records surrogate fits.
type SurrogateFitRecorder interface {
	RecordSurrogateFit(ev SurrogateFitEvent) error
}

// OptimizationEvent describes one solved design problem. Problem is "prior"
// or "posterior".
type OptimizationEvent struct {
	RunID    string
	Problem  string
	Index    int
	Result   model.OptimizationResult
	Duration time.Duration
	Time     time.Time
}

// OptimizationRecorder records design optimizations.
type OptimizationRecorder interface {
	RecordOptimization(ev OptimizationEvent) error
}

// EstimateEvent carries the aggregated VoI of a run.
type EstimateEvent struct {
	RunID    string
	Estimate model.VoIEstimate
	Time     time.Time
}

// EstimateRecorder records VoI estimates.
type EstimateRecorder interface {
	RecordEstimate(ev EstimateEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordEvaluationBatch(BatchEvent) error     { return nil }
func (NopSink) RecordSurrogateFit(SurrogateFitEvent) error { return nil }
func (NopSink) RecordOptimization(OptimizationEvent) error { return nil }
func (NopSink) RecordEstimate(EstimateEvent) error         { return nil }
