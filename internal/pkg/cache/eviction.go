package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const DefaultEvictionChannel = "paygate:gateway-evictions"

// EvictionMessage names the cached gateway entries to drop. Empty fields act
// as wildcards.
type EvictionMessage struct {
	TenantID string `json:"tenantId,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// Evicter is satisfied by *gateway.Factory.
type Evicter interface {
	Evict(tenantID, providerName string) int
}

// EvictionBus fans gateway cache evictions out to every instance sharing the
// same Redis. Each instance applies the eviction locally, including the
// publisher.
type EvictionBus struct {
	rdb     *redis.Client
	channel string
}

func NewEvictionBus(rdb *redis.Client, channel string) *EvictionBus {
	if strings.TrimSpace(channel) == "" {
		channel = DefaultEvictionChannel
	}
	return &EvictionBus{rdb: rdb, channel: channel}
}

func (b *EvictionBus) Channel() string {
	return b.channel
}

// Publish announces an eviction to all subscribers.
func (b *EvictionBus) Publish(ctx context.Context, msg EvictionMessage) error {
	if b == nil || b.rdb == nil {
		return errors.New("eviction bus not configured")
	}
	body, err := encodeEviction(msg)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, body).Err()
}

// Listen applies incoming evictions to the local factory until ctx is done.
func (b *EvictionBus) Listen(ctx context.Context, target Evicter) error {
	if b == nil || b.rdb == nil {
		return errors.New("eviction bus not configured")
	}
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	log.Infof("[Cache] Listening for gateway evictions on %s", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			msg, err := decodeEviction(m.Payload)
			if err != nil {
				log.Warnf("[Cache] Dropping malformed eviction message: %v", err)
				continue
			}
			n := target.Evict(msg.TenantID, msg.Provider)
			log.Debugf("[Cache] Evicted %d gateway(s) for tenant=%q provider=%q", n, msg.TenantID, msg.Provider)
		}
	}
}

func encodeEviction(msg EvictionMessage) (string, error) {
	msg.TenantID = strings.TrimSpace(msg.TenantID)
	msg.Provider = strings.ToLower(strings.TrimSpace(msg.Provider))
	body, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func decodeEviction(payload string) (EvictionMessage, error) {
	var msg EvictionMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return EvictionMessage{}, err
	}
	return msg, nil
}
