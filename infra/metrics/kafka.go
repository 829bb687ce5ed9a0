package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer used by KafkaSink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes run events as JSON messages keyed by run ID.
type KafkaSink struct {
	eventSink
	w messageWriter
}

// NewKafkaSink returns a sink writing synchronously to topic.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, errors.New("kafka sink requires brokers and a topic")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireOne,
		Balancer:     &kafka.Hash{},
	}
	return newKafkaSinkWithWriter(w), nil
}

func newKafkaSinkWithWriter(w messageWriter) *KafkaSink {
	const timeout = 5 * time.Second
	k := &KafkaSink{w: w}
	k.send = func(_, runID string, at time.Time, payload []byte) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return w.WriteMessages(ctx, kafka.Message{Key: []byte(runID), Value: payload, Time: at})
	}
	return k
}

// Close flushes and closes the writer.
func (k *KafkaSink) Close() error { return k.w.Close() }
