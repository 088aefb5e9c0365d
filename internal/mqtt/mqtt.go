// Package mqtt publishes notification payloads to an MQTT broker.
package mqtt

import (
	"context"
	"time"

	"github.com/thyholm1234/DOF.not/internal/logger"
)

// Client is the subset of broker operations delivery needs
type Client interface {
	// Connect connects to the broker, honouring ctx for the handshake
	Connect(ctx context.Context) error
	// Publish sends payload to topic and waits for the broker to accept it
	Publish(ctx context.Context, topic string, payload []byte) error
	IsConnected() bool
	Disconnect()
}

// Config configures a broker connection
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
	Retain   bool

	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// Metrics receives connection and publish events. A nil Metrics is ignored.
type Metrics interface {
	UpdateConnectionStatus(connected bool)
	RecordPublish(size int, duration time.Duration, err error)
}

// DefaultConfig returns timeouts suitable for a small broker
func DefaultConfig() Config {
	return Config{
		ClientID:          "dofnot",
		QoS:               1,
		ConnectTimeout:    15 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// GetLogger returns the package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("mqtt")
}
