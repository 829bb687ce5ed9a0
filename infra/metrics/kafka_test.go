package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/voi/core/metrics"
	"github.com/kilianp07/voi/core/model"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSink_PublishesEvents(t *testing.T) {
	fw := &fakeWriter{}
	s := newKafkaSinkWithWriter(fw)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordEvaluationBatch(coremetrics.BatchEvent{RunID: "r1", Batch: "training", Size: 200, Duration: 1500 * time.Millisecond, Time: at}))
	require.NoError(t, s.RecordEstimate(coremetrics.EstimateEvent{RunID: "r1", Estimate: model.VoIEstimate{VoIDirect: 42}, Time: at}))
	require.Len(t, fw.msgs, 2)

	assert.Equal(t, "r1", string(fw.msgs[0].Key))
	var ev runEvent
	require.NoError(t, json.Unmarshal(fw.msgs[0].Value, &ev))
	assert.Equal(t, "evaluation_batch", ev.Kind)
	data := ev.Data.(map[string]any)
	assert.Equal(t, "training", data["batch"])
	assert.Equal(t, 1500.0, data["duration_ms"])

	var est runEvent
	require.NoError(t, json.Unmarshal(fw.msgs[1].Value, &est))
	assert.Equal(t, "estimate", est.Kind)
	assert.Equal(t, 42.0, est.Data.(map[string]any)["voi_direct"])

	require.NoError(t, s.Close())
	assert.True(t, fw.closed)
}

func TestKafkaSink_WriteError(t *testing.T) {
	s := newKafkaSinkWithWriter(&fakeWriter{err: errors.New("broker down")})
	err := s.RecordOptimization(coremetrics.OptimizationEvent{RunID: "r1", Problem: "prior"})
	assert.EqualError(t, err, "broker down")
}

func TestNewKafkaSink_RequiresTopic(t *testing.T) {
	_, err := NewKafkaSink([]string{"localhost:9092"}, "")
	assert.Error(t, err)
	s, err := NewKafkaSink([]string{"localhost:9092"}, "voi-runs")
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}
