package metrics

import (
	"errors"
	"io"
)

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordEvaluationBatch forwards the event to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordEvaluationBatch(ev BatchEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordEvaluationBatch(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordSurrogateFit forwards fits to sinks that support them.
func (m *MultiSink) RecordSurrogateFit(ev SurrogateFitEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(SurrogateFitRecorder); ok {
			if err := rec.RecordSurrogateFit(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordOptimization forwards optimizations.
func (m *MultiSink) RecordOptimization(ev OptimizationEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(OptimizationRecorder); ok {
			if err := rec.RecordOptimization(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordEstimate forwards estimates.
func (m *MultiSink) RecordEstimate(ev EstimateEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(EstimateRecorder); ok {
			if err := rec.RecordEstimate(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every sink implementing io.Closer and joins their errors.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
