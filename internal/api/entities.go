// ABOUTME: Tenant-scoped entity CRUD calls against the product API.
// ABOUTME: All entity collections share the same REST shape under an org/workspace prefix.

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// tenantPath builds the collection path under the org/workspace prefix.
func tenantPath(orgID, workspaceID, collection string) string {
	return "/v1/orgs/" + url.PathEscape(orgID) +
		"/workspaces/" + url.PathEscape(workspaceID) +
		"/" + collection
}

// CreateEntity creates an entity in the given collection and returns the
// created record as the API sent it.
func (c *Client) CreateEntity(ctx context.Context, token, orgID, workspaceID, collection string, body any) (json.RawMessage, error) {
	raw, err := c.do(ctx, token, http.MethodPost, tenantPath(orgID, workspaceID, collection), nil, body)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", collection, err)
	}
	return raw, nil
}

// ListEntities lists a collection with optional pagination.
func (c *Client) ListEntities(ctx context.Context, token, orgID, workspaceID, collection string, limit, offset int) (json.RawMessage, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}

	raw, err := c.do(ctx, token, http.MethodGet, tenantPath(orgID, workspaceID, collection), query, nil)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", collection, err)
	}
	return raw, nil
}

// GetEntity fetches a single entity by ID.
func (c *Client) GetEntity(ctx context.Context, token, orgID, workspaceID, collection, id string) (json.RawMessage, error) {
	path := tenantPath(orgID, workspaceID, collection) + "/" + url.PathEscape(id)
	raw, err := c.do(ctx, token, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("getting %s %s: %w", collection, id, err)
	}
	return raw, nil
}

// UpdateEntity applies a partial update to an entity.
func (c *Client) UpdateEntity(ctx context.Context, token, orgID, workspaceID, collection, id string, body any) (json.RawMessage, error) {
	path := tenantPath(orgID, workspaceID, collection) + "/" + url.PathEscape(id)
	raw, err := c.do(ctx, token, http.MethodPatch, path, nil, body)
	if err != nil {
		return nil, fmt.Errorf("updating %s %s: %w", collection, id, err)
	}
	return raw, nil
}

// DeleteEntity deletes an entity by ID.
func (c *Client) DeleteEntity(ctx context.Context, token, orgID, workspaceID, collection, id string) error {
	path := tenantPath(orgID, workspaceID, collection) + "/" + url.PathEscape(id)
	if _, err := c.do(ctx, token, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("deleting %s %s: %w", collection, id, err)
	}
	return nil
}
