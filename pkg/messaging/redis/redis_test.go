package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroker(t *testing.T) (*RedisBroker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	logger := zerolog.Nop()

	broker, err := NewRedisBroker(Config{URL: "redis://" + mr.Addr()}, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { broker.Close() })
	return broker.(*RedisBroker), mr
}

func TestRedisBroker_PublishSubscribe(t *testing.T) {
	broker, _ := newTestBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := broker.Subscribe(ctx, "notifications")
	require.NoError(t, err)

	require.NoError(t, broker.Publish(ctx, "notifications", map[string]string{"type": "notification.created"}))
	require.NoError(t, broker.Publish(ctx, "notifications", json.RawMessage(`{"type":"raw"}`)))

	select {
	case msg := <-msgs:
		assert.JSONEq(t, `{"type":"notification.created"}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
	select {
	case msg := <-msgs:
		assert.JSONEq(t, `{"type":"raw"}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("no raw message received")
	}
}

func TestRedisBroker_SubscriptionClosesWithContext(t *testing.T) {
	broker, _ := newTestBroker(t)
	ctx, cancel := context.WithCancel(context.Background())

	msgs, err := broker.Subscribe(ctx, "notifications")
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-msgs:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestRedisBroker_PublishFailsWhenServerDown(t *testing.T) {
	broker, mr := newTestBroker(t)
	mr.Close()

	err := broker.Publish(context.Background(), "notifications", []byte(`{}`))
	assert.Error(t, err)
}

func TestNewRedisBroker_InvalidURL(t *testing.T) {
	logger := zerolog.Nop()
	_, err := NewRedisBroker(Config{URL: "://bad"}, &logger)
	assert.Error(t, err)
}
