package metrics

import "github.com/kilianp07/voi/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr, when set, serves /metrics for the run's duration.
	PrometheusAddr string `json:"prometheus_addr"`
}
