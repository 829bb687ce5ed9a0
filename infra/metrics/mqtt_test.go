package metrics

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/voi/core/metrics"
	"github.com/kilianp07/voi/core/model"
)

type fakeToken struct {
	err  error
	late bool
}

func (t fakeToken) Wait() bool                     { return !t.late }
func (t fakeToken) WaitTimeout(time.Duration) bool { return !t.late }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeMQTT struct {
	msgs         []published
	tok          fakeToken
	disconnected bool
}

func (f *fakeMQTT) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	f.msgs = append(f.msgs, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return f.tok
}

func (f *fakeMQTT) Disconnect(uint) { f.disconnected = true }

func TestMQTTSink_PublishesPerKind(t *testing.T) {
	cli := &fakeMQTT{}
	s := newMQTTSinkWithClient(cli, "voi/runs/", 1, time.Second)

	require.NoError(t, s.RecordSurrogateFit(coremetrics.SurrogateFitEvent{RunID: "r1", Points: 200}))
	require.NoError(t, s.RecordEstimate(coremetrics.EstimateEvent{RunID: "r1", Estimate: model.VoIEstimate{VoIRegret: 3}}))
	require.Len(t, cli.msgs, 2)
	assert.Equal(t, "voi/runs/surrogate_fit", cli.msgs[0].topic)
	assert.Equal(t, byte(1), cli.msgs[0].qos)
	assert.Equal(t, "voi/runs/estimate", cli.msgs[1].topic)

	var ev runEvent
	require.NoError(t, json.Unmarshal(cli.msgs[0].payload, &ev))
	assert.Equal(t, "r1", ev.RunID)
	assert.Equal(t, 200.0, ev.Data.(map[string]any)["points"])

	require.NoError(t, s.Close())
	assert.True(t, cli.disconnected)
}

func TestMQTTSink_PublishFailures(t *testing.T) {
	s := newMQTTSinkWithClient(&fakeMQTT{tok: fakeToken{late: true}}, "voi", 0, time.Millisecond)
	assert.ErrorContains(t, s.RecordEvaluationBatch(coremetrics.BatchEvent{RunID: "r1"}), "timeout")

	s = newMQTTSinkWithClient(&fakeMQTT{tok: fakeToken{err: errors.New("not authorized")}}, "voi", 0, time.Second)
	assert.EqualError(t, s.RecordOptimization(coremetrics.OptimizationEvent{RunID: "r1"}), "not authorized")
}

func TestNewMQTTSink(t *testing.T) {
	_, err := NewMQTTSink(MQTTConfig{})
	assert.Error(t, err)

	orig := newMQTTClient
	t.Cleanup(func() { newMQTTClient = orig })
	var gotOpts *paho.ClientOptions
	newMQTTClient = func(opts *paho.ClientOptions) (mqttClient, error) {
		gotOpts = opts
		return &fakeMQTT{}, nil
	}
	s, err := NewMQTTSink(MQTTConfig{Broker: "tcp://localhost:1883", ClientID: "voi-test"})
	require.NoError(t, err)
	assert.Equal(t, "voi-test", gotOpts.ClientID)
	assert.Equal(t, 5*time.Second, gotOpts.ConnectTimeout)
	require.NoError(t, s.RecordEstimate(coremetrics.EstimateEvent{RunID: "r"}))

	newMQTTClient = func(*paho.ClientOptions) (mqttClient, error) { return nil, errors.New("refused") }
	_, err = NewMQTTSink(MQTTConfig{Broker: "tcp://localhost:1883"})
	assert.ErrorContains(t, err, "refused")
}
