package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/voi/core/metrics"
)

// PromSink records VoI runs in Prometheus metrics.
type PromSink struct {
	evaluations   *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	optimizations *prometheus.CounterVec
	optEvals      *prometheus.HistogramVec
	boundary      *prometheus.CounterVec
	fitDuration   prometheus.Histogram
	estimate      *prometheus.GaugeVec
}

// NewPromSink registers metrics on the default Prometheus registerer.
// The Prometheus server should be started separately with StartPromServer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voi_evaluations_total",
			Help: "Ground-truth evaluations submitted, by batch and outcome",
		}, []string{"batch", "failed"}),
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voi_evaluation_batch_seconds",
			Help:    "Wall time of a ground-truth evaluation batch",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"batch"}),
		optimizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voi_optimizations_total",
			Help: "Design problems solved, by problem kind and convergence",
		}, []string{"problem", "converged"}),
		optEvals: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voi_optimization_objective_evaluations",
			Help:    "Objective evaluations spent per design problem",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10),
		}, []string{"problem"}),
		boundary: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voi_boundary_optima_total",
			Help: "Solved designs at or near a design bound",
		}, []string{"problem"}),
		fitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "voi_surrogate_fit_seconds",
			Help:    "Wall time of surrogate hyperparameter fitting",
			Buckets: prometheus.DefBuckets,
		}),
		estimate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voi_estimate",
			Help: "Latest VoI estimate components",
		}, []string{"quantity"}),
	}

	if err := register(reg, s.evaluations, func(c prometheus.Collector) { s.evaluations = c.(*prometheus.CounterVec) }); err != nil {
		return nil, err
	}
	if err := register(reg, s.batchDuration, func(c prometheus.Collector) { s.batchDuration = c.(*prometheus.HistogramVec) }); err != nil {
		return nil, err
	}
	if err := register(reg, s.optimizations, func(c prometheus.Collector) { s.optimizations = c.(*prometheus.CounterVec) }); err != nil {
		return nil, err
	}
	if err := register(reg, s.optEvals, func(c prometheus.Collector) { s.optEvals = c.(*prometheus.HistogramVec) }); err != nil {
		return nil, err
	}
	if err := register(reg, s.boundary, func(c prometheus.Collector) { s.boundary = c.(*prometheus.CounterVec) }); err != nil {
		return nil, err
	}
	if err := register(reg, s.fitDuration, func(c prometheus.Collector) { s.fitDuration = c.(prometheus.Histogram) }); err != nil {
		return nil, err
	}
	if err := register(reg, s.estimate, func(c prometheus.Collector) { s.estimate = c.(*prometheus.GaugeVec) }); err != nil {
		return nil, err
	}
	return s, nil
}

// register adds c to reg, handing the existing collector to reuse when the
// same metric was registered before.
func register(reg prometheus.Registerer, c prometheus.Collector, reuse func(prometheus.Collector)) error {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			reuse(are.ExistingCollector)
			return nil
		}
		return err
	}
	return nil
}

// RecordEvaluationBatch counts the batch's evaluations and observes its duration.
func (s *PromSink) RecordEvaluationBatch(ev coremetrics.BatchEvent) error {
	s.evaluations.WithLabelValues(ev.Batch, strconv.FormatBool(ev.Failed)).Add(float64(ev.Size))
	s.batchDuration.WithLabelValues(ev.Batch).Observe(ev.Duration.Seconds())
	return nil
}

// RecordSurrogateFit observes the fit duration.
func (s *PromSink) RecordSurrogateFit(ev coremetrics.SurrogateFitEvent) error {
	s.fitDuration.Observe(ev.Duration.Seconds())
	return nil
}

// RecordOptimization counts solved problems and their boundary optima.
func (s *PromSink) RecordOptimization(ev coremetrics.OptimizationEvent) error {
	s.optimizations.WithLabelValues(ev.Problem, strconv.FormatBool(ev.Result.Converged)).Inc()
	s.optEvals.WithLabelValues(ev.Problem).Observe(float64(ev.Result.Evaluations))
	if n := len(ev.Result.Warnings); n > 0 {
		s.boundary.WithLabelValues(ev.Problem).Add(float64(n))
	}
	return nil
}

// RecordEstimate publishes the latest estimate as gauges.
func (s *PromSink) RecordEstimate(ev coremetrics.EstimateEvent) error {
	e := ev.Estimate
	s.estimate.WithLabelValues("prior_cost").Set(e.PriorCost)
	s.estimate.WithLabelValues("preposterior_cost").Set(e.PreposteriorCost)
	s.estimate.WithLabelValues("voi_direct").Set(e.VoIDirect)
	s.estimate.WithLabelValues("voi_regret").Set(e.VoIRegret)
	s.estimate.WithLabelValues("std_error").Set(e.StdError)
	return nil
}
