// Package metrics defines the sinks a VoI run reports to. Every sink records
// evaluation batches; optional recorder interfaces cover surrogate fits,
// optimizations and the final estimate. NewMetricsSink returns a MultiSink
// automatically when several sinks are configured.
package metrics
