package notification

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/thyholm1234/DOF.not/internal/mqtt"
)

// DefaultTopicPrefix is the topic root when none is configured
const DefaultTopicPrefix = "dofnot/notifications"

// MQTTDeliverer publishes descriptor JSON to <prefix>/<user>
type MQTTDeliverer struct {
	client   mqtt.Client
	prefix   string
	recorder Recorder
}

// NewMQTTDeliverer wraps a broker client
func NewMQTTDeliverer(client mqtt.Client, topicPrefix string, recorder Recorder) *MQTTDeliverer {
	prefix := strings.Trim(strings.TrimSpace(topicPrefix), "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &MQTTDeliverer{client: client, prefix: prefix, recorder: recorder}
}

// Name implements Deliverer
func (m *MQTTDeliverer) Name() string { return "mqtt" }

// Topic returns the topic a user's notifications are published to
func (m *MQTTDeliverer) Topic(userID string) string {
	if userID == "" {
		return m.prefix
	}
	return m.prefix + "/" + userID
}

// Deliver implements Deliverer, connecting first when needed
func (m *MQTTDeliverer) Deliver(ctx context.Context, userID string, descriptors []Descriptor) error {
	if len(descriptors) == 0 {
		return nil
	}
	if !m.client.IsConnected() {
		if err := m.client.Connect(ctx); err != nil {
			return deliveryError(err, m.Name(), userID)
		}
	}

	topic := m.Topic(userID)
	for _, d := range descriptors {
		payload, err := json.Marshal(d)
		if err != nil {
			return deliveryError(err, m.Name(), userID)
		}
		start := time.Now()
		err = m.client.Publish(ctx, topic, payload)
		record(m.recorder, m.Name(), start, err)
		if err != nil {
			return publishError(err, m.Name(), userID, start)
		}
	}
	return nil
}
