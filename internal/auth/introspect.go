// ABOUTME: RFC 7662 token introspection client for the authorization server.
// ABOUTME: Authenticates with the gateway's own client credentials via HTTP Basic auth.

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/2389/compass-gateway/internal/metrics"
)

// introspectPath is the introspection endpoint under the authorization server base URL.
const introspectPath = "/oauth/2.1/introspect"

// ErrIntrospectionUnavailable indicates the introspection call failed at the
// transport level or returned a non-2xx status. Distinct from an inactive
// token so the middleware can answer 503 instead of 401.
var ErrIntrospectionUnavailable = errors.New("introspection request failed")

// ErrMalformedIntrospection indicates the authorization server returned a
// response that is not a JSON object with a boolean "active" field. Kept
// separate from ErrTokenInactive so operators can tell a broken auth server
// apart from a legitimately expired token.
var ErrMalformedIntrospection = errors.New("malformed introspection response")

// IntrospectionResult is the decoded introspection payload for a token.
// Claims holds the full response object for forward compatibility with
// claims the gateway does not interpret.
type IntrospectionResult struct {
	Active    bool
	Subject   string
	Email     string
	Scope     string
	ClientID  string
	TokenType string
	Claims    map[string]any
}

// Introspector performs remote token introspection.
type Introspector interface {
	Introspect(ctx context.Context, token string) (*IntrospectionResult, error)
}

// IntrospectionClient calls the authorization server's introspection endpoint.
type IntrospectionClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       *slog.Logger
}

// IntrospectionConfig contains configuration for the introspection client.
type IntrospectionConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// NewIntrospectionClient creates a client for the authorization server's
// introspection endpoint.
func NewIntrospectionClient(cfg IntrospectionConfig) (*IntrospectionClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("client credentials are required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &IntrospectionClient{
		baseURL:      cfg.BaseURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   httpClient,
		logger:       logger.With("component", "introspection"),
	}, nil
}

// Introspect asks the authorization server whether the token is active.
// The response must be a JSON object with a boolean "active" field; anything
// else fails with ErrMalformedIntrospection.
func (c *IntrospectionClient) Introspect(ctx context.Context, token string) (*IntrospectionResult, error) {
	form := url.Values{"token": {token}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+introspectPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating introspection request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.IntrospectionRequests.WithLabelValues("transport_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrIntrospectionUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.IntrospectionRequests.WithLabelValues("transport_error").Inc()
		c.logger.Warn("introspection returned non-success status", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", ErrIntrospectionUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.IntrospectionRequests.WithLabelValues("transport_error").Inc()
		return nil, fmt.Errorf("%w: reading body: %v", ErrIntrospectionUnavailable, err)
	}

	result, err := parseIntrospectionResponse(body)
	if err != nil {
		metrics.IntrospectionRequests.WithLabelValues("malformed").Inc()
		return nil, err
	}

	if result.Active {
		metrics.IntrospectionRequests.WithLabelValues("active").Inc()
	} else {
		metrics.IntrospectionRequests.WithLabelValues("inactive").Inc()
	}
	return result, nil
}

// parseIntrospectionResponse validates the response shape and extracts the
// claims the gateway understands. This guards against the authorization
// server changing its contract silently.
func parseIntrospectionResponse(body []byte) (*IntrospectionResult, error) {
	var claims map[string]any
	if err := json.Unmarshal(body, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedIntrospection, err)
	}
	if claims == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedIntrospection)
	}

	active, ok := claims["active"].(bool)
	if !ok {
		return nil, fmt.Errorf("%w: missing boolean active field", ErrMalformedIntrospection)
	}

	result := &IntrospectionResult{
		Active: active,
		Claims: claims,
	}
	result.Subject, _ = claims["sub"].(string)
	result.Email, _ = claims["email"].(string)
	result.Scope, _ = claims["scope"].(string)
	result.ClientID, _ = claims["client_id"].(string)
	result.TokenType, _ = claims["token_type"].(string)
	return result, nil
}
