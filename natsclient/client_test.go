package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/driftview/errors"
	"github.com/c360/driftview/metric"
	"github.com/c360/driftview/pkg/retry"
)

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", c.URL())
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.IsHealthy())
	assert.Equal(t, -1, c.maxReconnects)
	assert.Equal(t, "driftview", c.clientName)
}

func TestNewClient_Options(t *testing.T) {
	registry := metric.NewMetricsRegistry()

	c, err := NewClient("nats://localhost:4222",
		WithTimeout(time.Second),
		WithMaxReconnects(3),
		WithReconnectWait(50*time.Millisecond),
		WithClientName("slots"),
		WithMetrics(registry),
	)
	require.NoError(t, err)

	assert.Equal(t, time.Second, c.timeout)
	assert.Equal(t, 3, c.maxReconnects)
	assert.Equal(t, 50*time.Millisecond, c.reconnectWait)
	assert.Equal(t, "slots", c.clientName)
	assert.Same(t, registry.CoreMetrics(), c.metrics)
}

func TestNewClient_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		url  string
		opt  ClientOption
	}{
		{"empty url", "", nil},
		{"zero timeout", "nats://x", WithTimeout(0)},
		{"negative reconnect wait", "nats://x", WithReconnectWait(-time.Second)},
		{"empty name", "nats://x", WithClientName("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []ClientOption
			if tt.opt != nil {
				opts = append(opts, tt.opt)
			}
			_, err := NewClient(tt.url, opts...)
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestClient_JetStreamBeforeConnect(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	_, err = c.JetStream()
	assert.True(t, errors.IsTransient(err))
	assert.True(t, errors.Is(err, errors.ErrNoConnection))

	// closing a never-connected client is harmless
	assert.NoError(t, c.Close(context.Background()))
}

func TestClient_ConnectUnreachable(t *testing.T) {
	c, err := NewClient("nats://127.0.0.1:1",
		WithTimeout(50*time.Millisecond),
		WithConnectRetry(retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}),
	)
	require.NoError(t, err)

	err = c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, StatusDisconnected, c.Status())
}

func TestConnectionStatus_String(t *testing.T) {
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "unknown", ConnectionStatus(99).String())
}
