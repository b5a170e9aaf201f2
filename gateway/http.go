package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/scopegate/scopegate"
)

// HTTPIntrospector introspects tokens against a remote authorization
// server's RFC 7662 endpoint. Used in the decoupled topology where the
// gateway and the authorization server are separate processes.
type HTTPIntrospector struct {
	endpoint     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

var _ Introspector = (*HTTPIntrospector)(nil)

// NewHTTPIntrospector creates an introspector for the given endpoint URL
// (e.g., "http://localhost:9000/introspect"). The client credentials
// authenticate the gateway to the authorization server.
func NewHTTPIntrospector(endpoint, clientID, clientSecret string) *HTTPIntrospector {
	return &HTTPIntrospector{
		endpoint:     endpoint,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient: &http.Client{
			Timeout: scopegate.DefaultIntrospectionTimeout,
		},
	}
}

// SetHTTPClient replaces the underlying HTTP client, e.g. to adjust the
// timeout or add a custom transport.
func (h *HTTPIntrospector) SetHTTPClient(client *http.Client) {
	h.httpClient = client
}

// Introspect posts the token to the remote introspection endpoint
func (h *HTTPIntrospector) Introspect(ctx context.Context, token string) (*scopegate.IntrospectionResponse, error) {
	form := url.Values{}
	form.Set("token", token)
	form.Set("client_id", h.clientID)
	form.Set("client_secret", h.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("introspection request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("introspection endpoint returned status %d", resp.StatusCode)
	}

	var info scopegate.IntrospectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode introspection response: %w", err)
	}
	return &info, nil
}

// WaitReady polls the endpoint until the remote server answers or the
// deadline passes. Convenience for decoupled deployments starting both
// processes together.
func (h *HTTPIntrospector) WaitReady(ctx context.Context, deadline time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if _, err := h.Introspect(ctx, "readiness-probe"); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("introspection endpoint not ready: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
