package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thyholm1234/DOF.not/internal/errors"
)

type recordingMetrics struct {
	statuses []bool
	publish  int
}

func (m *recordingMetrics) UpdateConnectionStatus(connected bool) {
	m.statuses = append(m.statuses, connected)
}

func (m *recordingMetrics) RecordPublish(int, time.Duration, error) { m.publish++ }

func TestNewClientRequiresBroker(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestNewClientAppliesDefaults(t *testing.T) {
	t.Parallel()

	c, err := NewClient(Config{Broker: "tcp://127.0.0.1:1883"}, nil)
	require.NoError(t, err)

	impl, ok := c.(*client)
	require.True(t, ok)
	def := DefaultConfig()
	assert.Equal(t, def.ClientID, impl.config.ClientID)
	assert.Equal(t, def.PublishTimeout, impl.config.PublishTimeout)
	assert.False(t, c.IsConnected())
}

func TestPublishWhileDisconnected(t *testing.T) {
	t.Parallel()

	metrics := &recordingMetrics{}
	c, err := NewClient(Config{Broker: "tcp://127.0.0.1:1883"}, metrics)
	require.NoError(t, err)

	err = c.Publish(context.Background(), "dofnot/u1", []byte(`{}`))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTConnection))
	assert.Zero(t, metrics.publish)

	// no connection yet, so nothing to tear down
	c.Disconnect()
	assert.Empty(t, metrics.statuses)
}

func TestConnectUnresolvableHost(t *testing.T) {
	t.Parallel()

	c, err := NewClient(Config{Broker: "tcp://broker.invalid:1883", ConnectTimeout: time.Second}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = c.Connect(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTConnection))
}
