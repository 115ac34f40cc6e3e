// ABOUTME: Tests for the workspace selection tools.
// ABOUTME: Exercises listing, explicit selection, clearing, and the current_workspace view.

package tools

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/compass-gateway/internal/api"
	"github.com/2389/compass-gateway/internal/tenant"
)

// multiTenantDirectory has enough orgs and workspaces to force a selection.
func multiTenantDirectory() *stubDirectory {
	return &stubDirectory{
		orgs: []api.Organisation{
			{ID: "org-A", Name: "Acme"},
			{ID: "org-B", Name: "Beta"},
		},
		workspaces: map[string][]api.Workspace{
			"org-A": {{ID: "ws-1", Name: "Main"}, {ID: "ws-2", Name: "Labs"}},
			"org-B": {{ID: "ws-3", Name: "Core"}},
		},
	}
}

func newWorkspaceDispatcher(t *testing.T, dir tenant.Directory) *Dispatcher {
	t.Helper()

	selections := tenant.NewSelectionStore(time.Hour, 100)
	t.Cleanup(selections.Close)
	resolver := tenant.NewResolver(selections, dir, nil)

	registry := NewRegistry()
	require.NoError(t, RegisterWorkspaceTools(registry, resolver, dir))

	d, err := NewDispatcher(DispatcherConfig{Registry: registry, Resolver: resolver})
	require.NoError(t, err)
	return d
}

func TestWorkspaceTools_ListOrganisations(t *testing.T) {
	d := newWorkspaceDispatcher(t, multiTenantDirectory())

	result, err := d.Dispatch(authedContext("u1"), "list_organisations", nil)
	require.NoError(t, err)

	assert.False(t, result.IsError)
	assert.JSONEq(t, `[{"id":"org-A","name":"Acme"},{"id":"org-B","name":"Beta"}]`, result.Content)
}

func TestWorkspaceTools_ListWorkspaces(t *testing.T) {
	d := newWorkspaceDispatcher(t, multiTenantDirectory())

	result, err := d.Dispatch(authedContext("u1"), "list_workspaces",
		json.RawMessage(`{"organisation_id":"org-A"}`))
	require.NoError(t, err)

	assert.False(t, result.IsError)
	assert.JSONEq(t, `[{"id":"ws-1","name":"Main"},{"id":"ws-2","name":"Labs"}]`, result.Content)
}

func TestWorkspaceTools_ListWorkspacesRequiresOrganisation(t *testing.T) {
	d := newWorkspaceDispatcher(t, multiTenantDirectory())

	result, err := d.Dispatch(authedContext("u1"), "list_workspaces", nil)
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "organisation_id is required")
}

func TestWorkspaceTools_SelectThenCurrent(t *testing.T) {
	d := newWorkspaceDispatcher(t, multiTenantDirectory())
	ctx := authedContext("u1")

	// Before a selection, tenant-scoped tools prompt for one.
	result, err := d.Dispatch(ctx, "current_workspace", nil)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "Workspace selection required")

	result, err = d.Dispatch(ctx, "select_workspace",
		json.RawMessage(`{"organisation_id":"org-A","workspace_id":"ws-2"}`))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	result, err = d.Dispatch(ctx, "current_workspace", nil)
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"organisation_id":"org-A","workspace_id":"ws-2"}`, result.Content)
}

func TestWorkspaceTools_SelectRejectsInaccessibleWorkspace(t *testing.T) {
	d := newWorkspaceDispatcher(t, multiTenantDirectory())

	// ws-3 belongs to org-B, not org-A.
	result, err := d.Dispatch(authedContext("u1"), "select_workspace",
		json.RawMessage(`{"organisation_id":"org-A","workspace_id":"ws-3"}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestWorkspaceTools_SelectRequiresBothIDs(t *testing.T) {
	d := newWorkspaceDispatcher(t, multiTenantDirectory())

	result, err := d.Dispatch(authedContext("u1"), "select_workspace",
		json.RawMessage(`{"organisation_id":"org-A"}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "required")
}

func TestWorkspaceTools_ClearSelection(t *testing.T) {
	d := newWorkspaceDispatcher(t, multiTenantDirectory())
	ctx := authedContext("u1")

	_, err := d.Dispatch(ctx, "select_workspace",
		json.RawMessage(`{"organisation_id":"org-B","workspace_id":"ws-3"}`))
	require.NoError(t, err)

	result, err := d.Dispatch(ctx, "clear_workspace_selection", nil)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	// The next tenant-scoped call prompts again.
	result, err = d.Dispatch(ctx, "current_workspace", nil)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "Workspace selection required")
}

func TestUnmarshalArgs_EmptyIsValid(t *testing.T) {
	var parsed struct {
		ID string `json:"id"`
	}
	require.NoError(t, unmarshalArgs(nil, &parsed))
	assert.Empty(t, parsed.ID)

	err := unmarshalArgs(json.RawMessage(`{not json`), &parsed)
	assert.ErrorContains(t, err, "invalid arguments")
}
