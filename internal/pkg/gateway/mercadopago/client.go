package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ManuelReschke/PayGate/internal/pkg/gateway"
)

const (
	DefaultAPIBaseURL = "https://api.mercadopago.com"

	maxResponseBytes = 2 << 20
)

// client is a thin REST client bound to one access token.
type client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

func newClient(baseURL, accessToken string, httpClient *http.Client) *client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient:  httpClient,
	}
}

// do sends a JSON request and decodes a 2xx response into out. Non-2xx
// responses become *gateway.ProviderError with the provider message kept.
func (c *client) do(ctx context.Context, operation, method, path string, in, out any) (json.RawMessage, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, &gateway.ProviderError{Gateway: Name, Operation: operation, Err: err}
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &gateway.ProviderError{Gateway: Name, Operation: operation, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &gateway.ProviderError{Gateway: Name, Operation: operation, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &gateway.ProviderError{Gateway: Name, Operation: operation, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &gateway.ProviderError{
			Gateway:    Name,
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw),
		}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, &gateway.ProviderError{
				Gateway:    Name,
				Operation:  operation,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("decode response: %w", err),
			}
		}
	}
	return json.RawMessage(raw), nil
}

// errorMessage extracts the provider's own explanation from an error body.
func errorMessage(raw []byte) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Cause   []struct {
			Code        any    `json:"code"`
			Description string `json:"description"`
		} `json:"cause"`
	}
	if err := json.Unmarshal(raw, &e); err != nil {
		s := strings.TrimSpace(string(raw))
		if len(s) > 200 {
			s = s[:200]
		}
		return s
	}
	msg := e.Message
	if msg == "" {
		msg = e.Error
	}
	if len(e.Cause) > 0 && e.Cause[0].Description != "" && e.Cause[0].Description != msg {
		msg = strings.TrimSpace(msg + " (" + e.Cause[0].Description + ")")
	}
	return msg
}
