package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const mqttConnectAttempts = 5

// MQTTSink publishes snapshots as JSON on one topic.
type MQTTSink struct {
	client mqtt.Client
	topic  string
	logger *log.Logger
}

// DialMQTT connects to the broker, retrying with exponential backoff.
func DialMQTT(ctx context.Context, broker, clientID, topic string, logger *log.Logger) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			logger.Printf("Failed to connect to MQTT broker: %v", token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, mqttConnectAttempts-1), ctx))
	if err != nil {
		return nil, fmt.Errorf("could not connect to MQTT broker %s: %w", broker, err)
	}

	logger.Printf("Connected to MQTT broker at %s", broker)
	return &MQTTSink{client: client, topic: topic, logger: logger}, nil
}

func (m *MQTTSink) Name() string { return "mqtt" }

// Publish sends the snapshot with QoS 0.
func (m *MQTTSink) Publish(ctx context.Context, s Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	token := m.client.Publish(m.topic, 0, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", m.topic, ctx.Err())
	}
}

// Close disconnects from the broker.
func (m *MQTTSink) Close() {
	if m.client.IsConnected() {
		m.client.Disconnect(250)
		m.logger.Println("MQTT connection closed")
	}
}
