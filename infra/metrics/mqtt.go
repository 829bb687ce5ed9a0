package metrics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// MQTTConfig configures the MQTT sink.
type MQTTConfig struct {
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	// TopicPrefix is joined with the event kind, e.g. voi/runs/estimate.
	TopicPrefix    string `json:"topic_prefix"`
	QoS            byte   `json:"qos"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

var newMQTTClient = func(opts *paho.ClientOptions) (mqttClient, error) {
	cli := paho.NewClient(opts)
	tok := cli.Connect()
	if !tok.WaitTimeout(opts.ConnectTimeout) {
		return nil, errors.New("mqtt connect timeout")
	}
	if err := tok.Error(); err != nil {
		return nil, err
	}
	return cli, nil
}

// MQTTSink publishes run events as JSON to one topic per event kind.
type MQTTSink struct {
	eventSink
	cli mqttClient
}

// NewMQTTSink connects to the broker.
func NewMQTTSink(cfg MQTTConfig) (*MQTTSink, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt sink requires a broker")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "voi-" + uuid.NewString()[:8]
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "voi/runs"
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetConnectTimeout(timeout).
		SetAutoReconnect(true)
	cli, err := newMQTTClient(opts)
	if err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	return newMQTTSinkWithClient(cli, cfg.TopicPrefix, cfg.QoS, timeout), nil
}

func newMQTTSinkWithClient(cli mqttClient, prefix string, qos byte, timeout time.Duration) *MQTTSink {
	prefix = strings.TrimSuffix(prefix, "/")
	s := &MQTTSink{cli: cli}
	s.send = func(kind, _ string, _ time.Time, payload []byte) error {
		tok := cli.Publish(prefix+"/"+kind, qos, false, payload)
		if !tok.WaitTimeout(timeout) {
			return fmt.Errorf("mqtt publish %s: timeout", kind)
		}
		return tok.Error()
	}
	return s
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() error {
	s.cli.Disconnect(250)
	return nil
}
