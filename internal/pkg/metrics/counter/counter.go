package counter

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const webhookKeyPrefix = "paygate:counters:webhooks:"

// Webhook outcome labels.
const (
	OutcomeProcessed        = "processed"
	OutcomeDuplicate        = "duplicate"
	OutcomeIgnored          = "ignored"
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeFailed           = "failed"
)

// WebhookCounters keeps per-gateway webhook outcome counters in a Redis hash
// so they aggregate across instances.
type WebhookCounters struct {
	rdb *redis.Client
}

func NewWebhookCounters(rdb *redis.Client) *WebhookCounters {
	return &WebhookCounters{rdb: rdb}
}

// Add increments the outcome counter for a gateway.
func (w *WebhookCounters) Add(ctx context.Context, gatewayName, outcome string) error {
	return w.rdb.HIncrBy(ctx, webhookKey(gatewayName), outcome, 1).Err()
}

// Snapshot returns the counters of the given gateways, keyed by gateway then
// outcome. Gateways without deliveries are omitted.
func (w *WebhookCounters) Snapshot(ctx context.Context, gatewayNames []string) (map[string]map[string]int64, error) {
	names := append([]string(nil), gatewayNames...)
	sort.Strings(names)

	out := make(map[string]map[string]int64, len(names))
	for _, name := range names {
		data, err := w.rdb.HGetAll(ctx, webhookKey(name)).Result()
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			continue
		}
		counts := make(map[string]int64, len(data))
		for outcome, raw := range data {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				continue
			}
			counts[outcome] = n
		}
		out[name] = counts
	}
	return out, nil
}

// Reset drops the counters of one gateway.
func (w *WebhookCounters) Reset(ctx context.Context, gatewayName string) error {
	return w.rdb.Del(ctx, webhookKey(gatewayName)).Err()
}

func webhookKey(gatewayName string) string {
	name := strings.ToLower(strings.TrimSpace(gatewayName))
	if name == "" {
		name = "unknown"
	}
	return webhookKeyPrefix + name
}
