// Package telemetry streams run observations to an MQTT broker so that
// experiments can be watched from outside the process. Telemetry is
// optional, a nil Publisher drops everything.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// BrokerURL returns the MQTT broker URL from env or default.
func BrokerURL() string {
	if url := os.Getenv("MQTT_URL"); url != "" {
		return url
	}
	return "tcp://localhost:1883"
}

// StepEvent is the payload published after an environment step.
type StepEvent struct {
	Observation []float64 `json:"observation"`
	Reward      float64   `json:"reward"`
	At          time.Time `json:"at"`
}

// ConnectTimeoutError indicates the broker connection timed out.
type ConnectTimeoutError struct{}

func (e *ConnectTimeoutError) Error() string {
	return "mqtt connect timeout"
}

// PublishTimeoutError indicates a publish was not acknowledged in time.
type PublishTimeoutError struct {
	Topic string
}

func (e *PublishTimeoutError) Error() string {
	return "mqtt publish timeout: " + e.Topic
}

// Publisher sends JSON payloads to an MQTT broker.
type Publisher struct {
	client paho.Client
	mu     sync.Mutex
}

// NewPublisher creates a publisher for the given broker but does not
// connect.
func NewPublisher(brokerURL, clientID string) *Publisher {
	opts := paho.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	return &Publisher{
		client: paho.NewClient(opts),
	}
}

// Connect attempts to connect to the broker.
// Returns an error if connection fails, but does not block indefinitely.
func (p *Publisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return &ConnectTimeoutError{}
	}
	return token.Error()
}

// Publish marshals the payload as JSON and sends it on the topic. A nil
// publisher drops the payload.
func (p *Publisher) Publish(topic string, payload any) error {
	if p == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	token := p.client.Publish(topic, 0, false, data)
	if !token.WaitTimeout(5 * time.Second) {
		return &PublishTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Close disconnects from the broker. Safe on a nil publisher.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.client.Disconnect(1000)
}

// StartPublisher connects to the broker named by MQTT_URL. It returns nil
// when the variable is unset or the broker cannot be reached, so runs
// proceed without telemetry.
func StartPublisher(clientID string) *Publisher {
	if os.Getenv("MQTT_URL") == "" {
		return nil
	}
	p := NewPublisher(BrokerURL(), clientID)
	if err := p.Connect(); err != nil {
		logrus.Warnf("telemetry: failed to connect to %s: %v", BrokerURL(), err)
		return nil
	}
	logrus.Infof("telemetry: publishing to %s", BrokerURL())
	return p
}
