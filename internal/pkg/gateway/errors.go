package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// CodeNotImplemented is the stable error code surfaced for recognized but
// unintegrated providers.
const CodeNotImplemented = "GATEWAY_NOT_IMPLEMENTED"

var (
	// ErrConfiguration covers caller mistakes: missing tenant, unknown provider,
	// missing credentials. Never retried automatically.
	ErrConfiguration = errors.New("gateway configuration error")

	ErrUnsupportedGateway = errors.New("unsupported payment gateway")

	// ErrProvider matches any failure reported by an upstream provider API.
	ErrProvider = errors.New("payment provider error")

	ErrNotFound = errors.New("payment resource not found")

	// ErrConflict matches provider rejections of a state transition, e.g.
	// cancelling an already cancelled subscription.
	ErrConflict = errors.New("payment provider rejected state transition")

	ErrNotImplemented = errors.New("payment gateway not implemented")
)

// ConfigurationError describes why a gateway could not be resolved.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway configuration error: %s: %v", e.Reason, e.Err)
	}
	return "gateway configuration error: " + e.Reason
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// UnsupportedGatewayError is a configuration error carrying the valid names.
type UnsupportedGatewayError struct {
	Gateway   string
	Supported []string
}

func (e *UnsupportedGatewayError) Error() string {
	return fmt.Sprintf("unsupported payment gateway %q (supported: %s)", e.Gateway, strings.Join(e.Supported, ", "))
}

func (e *UnsupportedGatewayError) Is(target error) bool {
	return target == ErrUnsupportedGateway || target == ErrConfiguration
}

// ProviderError wraps a failed upstream call with enough context for the
// caller to decide whether retrying is safe. Conflict is set by adapters that
// recognise a rejected state transition reported with a status other than 409.
type ProviderError struct {
	Gateway    string
	Operation  string
	StatusCode int
	Message    string
	Err        error
	Conflict   bool
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s failed", e.Gateway, e.Operation)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status=%d", e.StatusCode)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrProvider:
		return true
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict || e.Conflict
	}
	return false
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NotImplementedError is returned by core operations of a provider stub.
type NotImplementedError struct {
	Gateway   string
	Operation string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("%s: gateway %q does not support %s yet", CodeNotImplemented, e.Gateway, e.Operation)
}

func (e *NotImplementedError) Code() string {
	return CodeNotImplemented
}

func (e *NotImplementedError) Is(target error) bool {
	return target == ErrNotImplemented
}
