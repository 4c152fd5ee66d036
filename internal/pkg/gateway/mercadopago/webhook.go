package mercadopago

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/PayGate/internal/pkg/gateway"
)

// ValidateWebhook checks the x-signature header ("ts=<unix>,v1=<hex>")
// against HMAC-SHA256 of "id:<data.id>;request-id:<x-request-id>;ts:<ts>;".
func (a *Adapter) ValidateWebhook(sig gateway.WebhookSignature) bool {
	return verifySignature(sig, a.creds.WebhookSecret, a.tolerance, a.now())
}

func verifySignature(sig gateway.WebhookSignature, secret string, tolerance time.Duration, now time.Time) bool {
	secret = strings.TrimSpace(secret)
	dataID := strings.ToLower(strings.TrimSpace(sig.DataID))
	requestID := strings.TrimSpace(sig.RequestID)
	if secret == "" || dataID == "" || requestID == "" {
		return false
	}

	ts, v1, ok := parseSignatureHeader(sig.Signature)
	if !ok {
		return false
	}
	expected, err := hex.DecodeString(strings.ToLower(v1))
	if err != nil || len(expected) != sha256.Size {
		return false
	}

	if tolerance > 0 {
		signedAt, ok := parseSignatureTime(ts)
		if !ok {
			return false
		}
		if d := now.Sub(signedAt); d > tolerance || d < -tolerance {
			return false
		}
	}

	manifest := "id:" + dataID + ";request-id:" + requestID + ";ts:" + ts + ";"
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return hmac.Equal(mac.Sum(nil), expected)
}

func parseSignatureHeader(header string) (ts, v1 string, ok bool) {
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			v1 = strings.TrimSpace(value)
		}
	}
	return ts, v1, ts != "" && v1 != ""
}

// parseSignatureTime accepts seconds or milliseconds since the epoch.
func parseSignatureTime(ts string) (time.Time, bool) {
	n, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}, false
	}
	if n > 1e12 {
		return time.UnixMilli(n), true
	}
	return time.Unix(n, 0), true
}

// flexID decodes ids the API sends either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type notification struct {
	ID          flexID `json:"id"`
	Type        string `json:"type"`
	Topic       string `json:"topic"`
	Action      string `json:"action"`
	LiveMode    *bool  `json:"live_mode"`
	DateCreated string `json:"date_created"`
	Data        struct {
		ID     flexID `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

// NormalizeEvent maps a notification body ({type, action, data: {id}}) to a
// NormalizedEvent. Notifications usually carry no status, in which case the
// event is flagged RequiresStatusCheck.
func (a *Adapter) NormalizeEvent(payload []byte) gateway.NormalizedEvent {
	return normalize(payload, a.now())
}

func normalize(payload []byte, now time.Time) gateway.NormalizedEvent {
	var n notification
	if len(payload) == 0 || json.Unmarshal(payload, &n) != nil {
		return gateway.UnknownEvent(Name, payload, now)
	}

	rawType := strings.ToLower(strings.TrimSpace(n.Type))
	if rawType == "" {
		rawType = strings.ToLower(strings.TrimSpace(n.Topic))
	}
	resourceID := string(n.Data.ID)
	if resourceID == "" {
		ev := gateway.UnknownEvent(Name, payload, now)
		ev.Metadata.RawType = rawType
		return ev
	}

	ev := gateway.NormalizedEvent{
		Gateway:    Name,
		ResourceID: resourceID,
		Data: map[string]any{
			"notification_id": string(n.ID),
		},
		Metadata: gateway.EventMetadata{
			Action:   n.Action,
			RawType:  rawType,
			LiveMode: n.LiveMode,
		},
		Raw:       append(json.RawMessage(nil), payload...),
		Timestamp: now,
	}
	if n.DateCreated != "" {
		ev.Data["date_created"] = n.DateCreated
	}
	rawStatus := strings.ToLower(strings.TrimSpace(n.Data.Status))
	if rawStatus != "" {
		ev.Data["raw_status"] = rawStatus
	}

	switch rawType {
	case "payment":
		ev.ResourceType = gateway.ResourcePayment
		if status, ok := PaymentStatusMap.Internal(rawStatus); ok {
			ev.Type = gateway.EventTypeForPaymentStatus(status)
			ev.Data["status"] = string(status)
		} else {
			ev.Type = gateway.EventPaymentPending
			ev.Metadata.RequiresStatusCheck = true
		}

	case "subscription_preapproval", "preapproval":
		ev.ResourceType = gateway.ResourceSubscription
		if status, ok := SubscriptionStatusMap.Internal(rawStatus); ok {
			ev.Type = gateway.EventTypeForSubscriptionStatus(status)
			ev.Data["status"] = string(status)
		} else {
			ev.Type = gateway.EventSubscriptionUpdated
			if isCreateAction(n.Action) {
				ev.Type = gateway.EventSubscriptionPending
			}
			ev.Metadata.RequiresStatusCheck = true
		}

	case "subscription_authorized_payment", "authorized_payment":
		ev.ResourceType = gateway.ResourceAuthorizedPayment
		ev.Metadata.IsSubscriptionPayment = true
		status, ok := AuthorizedPaymentStatusMap.Internal(rawStatus)
		if !ok {
			status, ok = PaymentStatusMap.Internal(rawStatus)
		}
		if ok {
			ev.Type = gateway.EventTypeForPaymentStatus(status)
			ev.Data["status"] = string(status)
		} else {
			ev.Type = gateway.EventPaymentPending
			ev.Metadata.RequiresStatusCheck = true
		}

	default:
		unknown := gateway.UnknownEvent(Name, payload, now)
		unknown.ResourceID = resourceID
		unknown.Metadata.RawType = rawType
		unknown.Metadata.Action = n.Action
		return unknown
	}
	return ev
}

func isCreateAction(action string) bool {
	a := strings.ToLower(action)
	return a == "created" || strings.HasSuffix(a, ".created")
}
