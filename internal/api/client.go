// ABOUTME: HTTP client boundary for the downstream product API.
// ABOUTME: Lists organisations/workspaces and proxies tenant-scoped entity CRUD.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// ErrNotFound indicates the downstream API returned 404 for the resource.
var ErrNotFound = errors.New("resource not found")

// ErrUnauthorized indicates the downstream API rejected the bearer token.
var ErrUnauthorized = errors.New("downstream API rejected token")

// Organisation is an organisation the token's subject can access.
type Organisation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Workspace is a workspace within an organisation.
type Workspace struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Client talks to the downstream product API with the caller's bearer token.
// It holds no credentials of its own; every call is authenticated with the
// token of the end user it is acting for.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Config contains configuration options for the API client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient creates a new product API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		logger:     logger.With("component", "api"),
	}, nil
}

// ListOrganisations returns the organisations accessible to the token's subject.
func (c *Client) ListOrganisations(ctx context.Context, token string) ([]Organisation, error) {
	var orgs []Organisation
	if err := c.getJSON(ctx, token, "/v1/organisations", nil, &orgs); err != nil {
		return nil, fmt.Errorf("listing organisations: %w", err)
	}
	return orgs, nil
}

// ListWorkspaces returns the workspaces within an organisation that the
// token's subject can access.
func (c *Client) ListWorkspaces(ctx context.Context, token, orgID string) ([]Workspace, error) {
	path := "/v1/organisations/" + url.PathEscape(orgID) + "/workspaces"
	var workspaces []Workspace
	if err := c.getJSON(ctx, token, path, nil, &workspaces); err != nil {
		return nil, fmt.Errorf("listing workspaces for org %s: %w", orgID, err)
	}
	return workspaces, nil
}

// getJSON performs a GET request and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, token, path string, query url.Values, out any) error {
	raw, err := c.do(ctx, token, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// do performs an authenticated request and returns the raw response body.
// Non-2xx statuses are mapped to errors; 404 and 401 get sentinel errors so
// callers can discriminate without string matching.
func (c *Client) do(ctx context.Context, token, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling product API: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return data, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	default:
		c.logger.Warn("product API error",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
		)
		return nil, fmt.Errorf("product API returned status %d", resp.StatusCode)
	}
}
