// ABOUTME: Tests for the dispatch shell.
// ABOUTME: Validates selection prompts, failure containment, panic recovery, and auditing.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/compass-gateway/internal/api"
	"github.com/2389/compass-gateway/internal/auth"
	"github.com/2389/compass-gateway/internal/store"
	"github.com/2389/compass-gateway/internal/tenant"
)

// stubDirectory serves fixed org/workspace listings.
type stubDirectory struct {
	orgs       []api.Organisation
	workspaces map[string][]api.Workspace
	err        error
}

func (d *stubDirectory) ListOrganisations(_ context.Context, _ string) ([]api.Organisation, error) {
	return d.orgs, d.err
}

func (d *stubDirectory) ListWorkspaces(_ context.Context, _ string, orgID string) ([]api.Workspace, error) {
	return d.workspaces[orgID], d.err
}

// memoryAudit collects audit records in memory.
type memoryAudit struct {
	records []*store.ToolInvocation
	err     error
}

func (a *memoryAudit) AppendToolInvocation(_ context.Context, inv *store.ToolInvocation) error {
	a.records = append(a.records, inv)
	return a.err
}

// singleTenantDirectory is the unambiguous one-org/one-workspace setup.
func singleTenantDirectory() *stubDirectory {
	return &stubDirectory{
		orgs: []api.Organisation{{ID: "org-A", Name: "Acme"}},
		workspaces: map[string][]api.Workspace{
			"org-A": {{ID: "ws-1", Name: "Main"}},
		},
	}
}

// authedContext returns a context as the transport auth layer would build it.
func authedContext(subjectID string) context.Context {
	ctx := auth.WithPrincipal(context.Background(), &auth.Principal{SubjectID: subjectID})
	return auth.WithToken(ctx, "tok")
}

func newTestDispatcher(t *testing.T, dir tenant.Directory, audit AuditLog, toolList ...*Tool) *Dispatcher {
	t.Helper()

	selections := tenant.NewSelectionStore(time.Hour, 100)
	t.Cleanup(selections.Close)
	resolver := tenant.NewResolver(selections, dir, nil)

	registry := NewRegistry()
	for _, tool := range toolList {
		require.NoError(t, registry.Register(tool))
	}

	d, err := NewDispatcher(DispatcherConfig{
		Registry: registry,
		Resolver: resolver,
		Audit:    audit,
	})
	require.NoError(t, err)
	return d
}

func echoTool(name string, needsTenant bool) *Tool {
	return &Tool{
		Name:        name,
		Description: "echo",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		NeedsTenant: needsTenant,
		Handler: func(_ context.Context, inv *Invocation) (any, error) {
			out := map[string]string{"subject": inv.Principal.SubjectID}
			if inv.Tenant != nil {
				out["org"] = inv.Tenant.OrgID
				out["workspace"] = inv.Tenant.WorkspaceID
			}
			return out, nil
		},
	}
}

func TestDispatch_ResolvedTenantReachesHandler(t *testing.T) {
	d := newTestDispatcher(t, singleTenantDirectory(), nil, echoTool("echo", true))

	result, err := d.Dispatch(authedContext("u1"), "echo", nil)
	require.NoError(t, err)

	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"subject":"u1","org":"org-A","workspace":"ws-1"}`, result.Content)
}

func TestDispatch_ToolNotFound(t *testing.T) {
	d := newTestDispatcher(t, singleTenantDirectory(), nil)

	_, err := d.Dispatch(authedContext("u1"), "nope", nil)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestDispatch_MissingPrincipal(t *testing.T) {
	d := newTestDispatcher(t, singleTenantDirectory(), nil, echoTool("echo", true))

	_, err := d.Dispatch(context.Background(), "echo", nil)
	assert.Error(t, err)
}

func TestDispatch_SelectionRequired(t *testing.T) {
	dir := &stubDirectory{
		orgs: []api.Organisation{
			{ID: "org-B", Name: "Beta"},
			{ID: "org-C", Name: "Gamma"},
		},
	}
	audit := &memoryAudit{}
	d := newTestDispatcher(t, dir, audit, echoTool("echo", true))

	result, err := d.Dispatch(authedContext("u2"), "echo", nil)
	require.NoError(t, err)

	// Selection required is a structured tool error, not a transport failure.
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "select_workspace")
	assert.Contains(t, result.Content, "- Beta (org-B)")
	assert.Contains(t, result.Content, "- Gamma (org-C)")

	require.Len(t, audit.records, 1)
	assert.Equal(t, store.OutcomeSelectionRequired, audit.records[0].Outcome)
}

func TestDispatch_SelectionRequiredWithWorkspaces(t *testing.T) {
	dir := &stubDirectory{
		orgs: []api.Organisation{{ID: "org-A", Name: "Acme"}},
		workspaces: map[string][]api.Workspace{
			"org-A": {{ID: "ws-1", Name: "Main"}, {ID: "ws-2", Name: "Labs"}},
		},
	}
	d := newTestDispatcher(t, dir, nil, echoTool("echo", true))

	result, err := d.Dispatch(authedContext("u3"), "echo", nil)
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "- Acme (org-A)")
	assert.Contains(t, result.Content, "- Main (ws-1)")
	assert.Contains(t, result.Content, "- Labs (ws-2)")
}

func TestDispatch_NoOrganisations(t *testing.T) {
	d := newTestDispatcher(t, &stubDirectory{}, nil, echoTool("echo", true))

	result, err := d.Dispatch(authedContext("u4"), "echo", nil)
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "does not belong to any organisation")
}

func TestDispatch_HandlerError(t *testing.T) {
	failing := &Tool{
		Name:        "fail",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler: func(_ context.Context, _ *Invocation) (any, error) {
			return nil, errors.New("downstream exploded")
		},
	}
	audit := &memoryAudit{}
	d := newTestDispatcher(t, singleTenantDirectory(), audit, failing)

	result, err := d.Dispatch(authedContext("u1"), "fail", nil)
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Equal(t, "downstream exploded", result.Content)

	require.Len(t, audit.records, 1)
	assert.Equal(t, store.OutcomeError, audit.records[0].Outcome)
	assert.Equal(t, "downstream exploded", audit.records[0].Detail)
}

func TestDispatch_HandlerPanic(t *testing.T) {
	panicking := &Tool{
		Name:        "panic",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler: func(_ context.Context, _ *Invocation) (any, error) {
			panic("boom")
		},
	}
	d := newTestDispatcher(t, singleTenantDirectory(), nil, panicking)

	result, err := d.Dispatch(authedContext("u1"), "panic", nil)
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "internal error")
}

func TestDispatch_AuditFailureDoesNotFailCall(t *testing.T) {
	audit := &memoryAudit{err: errors.New("disk full")}
	d := newTestDispatcher(t, singleTenantDirectory(), audit, echoTool("echo", true))

	result, err := d.Dispatch(authedContext("u1"), "echo", nil)
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestDispatch_AuditRecordsTenant(t *testing.T) {
	audit := &memoryAudit{}
	d := newTestDispatcher(t, singleTenantDirectory(), audit, echoTool("echo", true))

	_, err := d.Dispatch(authedContext("u1"), "echo", nil)
	require.NoError(t, err)

	require.Len(t, audit.records, 1)
	record := audit.records[0]
	assert.Equal(t, "u1", record.SubjectID)
	assert.Equal(t, "org-A", record.OrgID)
	assert.Equal(t, "ws-1", record.WorkspaceID)
	assert.Equal(t, store.OutcomeOK, record.Outcome)
	assert.NotEmpty(t, record.ID)
}

func TestDispatch_TenantFreeToolSkipsResolution(t *testing.T) {
	dir := &stubDirectory{err: errors.New("listing should not be called")}
	d := newTestDispatcher(t, dir, nil, echoTool("free", false))

	result, err := d.Dispatch(authedContext("u1"), "free", nil)
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestFormatSelectionRequired(t *testing.T) {
	msg := formatSelectionRequired(&tenant.Choices{
		Organisations: []api.Organisation{{ID: "org-B", Name: "Beta"}},
	})

	assert.Equal(t, "Workspace selection required. Call select_workspace with an organisation and workspace, then retry.\nOrganisations:\n- Beta (org-B)", msg)
}
