package metrics

import (
	"errors"
	"io"

	"github.com/kilianp07/voi/core/factory"
)

var sinkRegistry = factory.NewRegistry[MetricsSink]("metrics sink")

func init() {
	_ = RegisterMetricsSink("nop", func(map[string]any) (MetricsSink, error) {
		return NopSink{}, nil
	})
}

// RegisterMetricsSink adds a metrics sink factory identified by name.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinkRegistry.Register(name, f)
}

// NewMetricsSink creates a MetricsSink from the provided configuration.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	if len(cfgs) == 0 {
		return NopSink{}, nil
	}
	if len(cfgs) == 1 {
		return sinkRegistry.Create(cfgs[0])
	}
	sinks := make([]MetricsSink, 0, len(cfgs))
	for _, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			return nil, errors.Join(err, NewMultiSink(sinks...).Close())
		}
		sinks = append(sinks, s)
	}
	return NewMultiSink(sinks...), nil
}

// Close closes s when it holds resources.
func Close(s MetricsSink) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Optimization records ev when s supports optimizations.
func Optimization(s MetricsSink, ev OptimizationEvent) error {
	if r, ok := s.(OptimizationRecorder); ok {
		return r.RecordOptimization(ev)
	}
	return nil
}

// Fit records ev when s supports surrogate fits.
func Fit(s MetricsSink, ev SurrogateFitEvent) error {
	if r, ok := s.(SurrogateFitRecorder); ok {
		return r.RecordSurrogateFit(ev)
	}
	return nil
}

// Estimate records ev when s supports estimates.
func Estimate(s MetricsSink, ev EstimateEvent) error {
	if r, ok := s.(EstimateRecorder); ok {
		return r.RecordEstimate(ev)
	}
	return nil
}
