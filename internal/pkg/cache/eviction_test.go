package cache

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeEviction(t *testing.T) {
	body, err := encodeEviction(EvictionMessage{TenantID: " tenant-a ", Provider: " MercadoPago"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tenantId":"tenant-a","provider":"mercadopago"}`, body)

	body, err = encodeEviction(EvictionMessage{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, body)
}

func TestDecodeEviction(t *testing.T) {
	msg, err := decodeEviction(`{"provider":"stripe"}`)
	require.NoError(t, err)
	assert.Equal(t, EvictionMessage{Provider: "stripe"}, msg)

	_, err = decodeEviction(`not json`)
	assert.Error(t, err)
}

func TestNewEvictionBusDefaultsChannel(t *testing.T) {
	assert.Equal(t, DefaultEvictionChannel, NewEvictionBus(nil, " ").Channel())
	assert.Equal(t, "custom", NewEvictionBus(nil, "custom").Channel())
}

func TestUnconfiguredBus(t *testing.T) {
	var bus *EvictionBus
	assert.Error(t, bus.Publish(context.Background(), EvictionMessage{}))
	assert.Error(t, NewEvictionBus(nil, "").Listen(context.Background(), nil))
}

type recordingEvicter struct {
	mu    sync.Mutex
	calls []EvictionMessage
}

func (r *recordingEvicter) Evict(tenantID, providerName string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, EvictionMessage{TenantID: tenantID, Provider: providerName})
	return 1
}

func (r *recordingEvicter) snapshot() []EvictionMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EvictionMessage(nil), r.calls...)
}

// testRedis connects to TEST_REDIS_ADDR (default localhost:6379) and skips
// the test when no server answers.
func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("Skipping test that requires Redis at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestEvictionBusRoundTrip(t *testing.T) {
	rdb := testRedis(t)
	bus := NewEvictionBus(rdb, "paygate:test-evictions:"+t.Name())
	target := &recordingEvicter{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bus.Listen(ctx, target) }()

	// Publish until the subscription is live; early messages are lost.
	require.Eventually(t, func() bool {
		if err := bus.Publish(context.Background(), EvictionMessage{TenantID: "tenant-a", Provider: "Stripe"}); err != nil {
			return false
		}
		return len(target.snapshot()) > 0
	}, 3*time.Second, 50*time.Millisecond)

	assert.Equal(t, EvictionMessage{TenantID: "tenant-a", Provider: "stripe"}, target.snapshot()[0])

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("listener did not stop")
	}
}
