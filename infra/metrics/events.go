package metrics

import (
	"encoding/json"
	"time"

	coremetrics "github.com/kilianp07/voi/core/metrics"
)

// runEvent is the JSON envelope published by the message sinks.
type runEvent struct {
	Kind  string    `json:"kind"`
	RunID string    `json:"run_id"`
	Time  time.Time `json:"time"`
	Data  any       `json:"data"`
}

// eventSink implements every recorder by encoding events and handing them
// to send. Kafka and MQTT sinks only differ in send.
type eventSink struct {
	send func(kind, runID string, at time.Time, payload []byte) error
}

func (s eventSink) publish(kind, runID string, at time.Time, data any) error {
	payload, err := json.Marshal(runEvent{Kind: kind, RunID: runID, Time: at, Data: data})
	if err != nil {
		return err
	}
	return s.send(kind, runID, at, payload)
}

// RecordEvaluationBatch implements coremetrics.MetricsSink.
func (s eventSink) RecordEvaluationBatch(ev coremetrics.BatchEvent) error {
	return s.publish("evaluation_batch", ev.RunID, ev.Time, map[string]any{
		"batch":       ev.Batch,
		"size":        ev.Size,
		"duration_ms": ev.Duration.Milliseconds(),
		"failed":      ev.Failed,
	})
}

// RecordSurrogateFit implements coremetrics.SurrogateFitRecorder.
func (s eventSink) RecordSurrogateFit(ev coremetrics.SurrogateFitEvent) error {
	return s.publish("surrogate_fit", ev.RunID, ev.Time, map[string]any{
		"points":         ev.Points,
		"log_likelihood": ev.LogLikelihood,
		"duration_ms":    ev.Duration.Milliseconds(),
	})
}

// RecordOptimization implements coremetrics.OptimizationRecorder.
func (s eventSink) RecordOptimization(ev coremetrics.OptimizationEvent) error {
	return s.publish("optimization", ev.RunID, ev.Time, map[string]any{
		"problem":     ev.Problem,
		"index":       ev.Index,
		"result":      ev.Result,
		"duration_ms": ev.Duration.Milliseconds(),
	})
}

// RecordEstimate implements coremetrics.EstimateRecorder.
func (s eventSink) RecordEstimate(ev coremetrics.EstimateEvent) error {
	return s.publish("estimate", ev.RunID, ev.Time, ev.Estimate)
}
