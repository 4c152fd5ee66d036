package gateway

// SubscriptionStatus is the canonical subscription vocabulary.
type SubscriptionStatus string

const (
	SubscriptionPending    SubscriptionStatus = "pending"
	SubscriptionAuthorized SubscriptionStatus = "authorized"
	SubscriptionPaused     SubscriptionStatus = "paused"
	SubscriptionCancelled  SubscriptionStatus = "cancelled"
)

// PaymentStatus is the canonical payment vocabulary.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentApproved  PaymentStatus = "approved"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentCancelled PaymentStatus = "cancelled"
)

// SubscriptionStatuses lists every canonical subscription status.
var SubscriptionStatuses = []SubscriptionStatus{
	SubscriptionPending,
	SubscriptionAuthorized,
	SubscriptionPaused,
	SubscriptionCancelled,
}

// PaymentStatuses lists every canonical payment status.
var PaymentStatuses = []PaymentStatus{
	PaymentPending,
	PaymentApproved,
	PaymentFailed,
	PaymentRefunded,
	PaymentCancelled,
}

func (s SubscriptionStatus) Valid() bool {
	for _, known := range SubscriptionStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s PaymentStatus) Valid() bool {
	for _, known := range PaymentStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionCancelled
}

// StatusMap translates provider-native status strings into exactly one
// canonical status. Maps are built once at package init and never mutated.
type StatusMap[S ~string] struct {
	entries map[string]S
}

// NewStatusMap copies entries so later changes to the argument have no effect.
func NewStatusMap[S ~string](entries map[string]S) StatusMap[S] {
	m := make(map[string]S, len(entries))
	for raw, internal := range entries {
		m[raw] = internal
	}
	return StatusMap[S]{entries: m}
}

// Internal returns the canonical status for a raw provider status.
func (m StatusMap[S]) Internal(raw string) (S, bool) {
	s, ok := m.entries[raw]
	return s, ok
}

// Resolve returns the canonical status, or fallback when raw is not mapped.
func (m StatusMap[S]) Resolve(raw string, fallback S) S {
	if s, ok := m.entries[raw]; ok {
		return s
	}
	return fallback
}

// RawStatuses returns every provider status the map knows about.
func (m StatusMap[S]) RawStatuses() []string {
	out := make([]string, 0, len(m.entries))
	for raw := range m.entries {
		out = append(out, raw)
	}
	return out
}

func (m StatusMap[S]) Len() int {
	return len(m.entries)
}
