// ABOUTME: Resolves an authenticated subject to an active org/workspace context.
// ABOUTME: Auto-selects only when exactly one org with exactly one workspace exists.

package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/compass-gateway/internal/api"
	"github.com/2389/compass-gateway/internal/metrics"
)

// Terminal resolution failures. Both require account provisioning outside
// this system; retrying without it cannot succeed.
var (
	ErrNoOrganisations = errors.New("no organisations found for this account")
	ErrNoWorkspaces    = errors.New("no workspaces found in this organisation")
)

// Explicit selection failures.
var (
	ErrOrganisationNotAccessible = errors.New("organisation is not accessible to this account")
	ErrWorkspaceNotAccessible    = errors.New("workspace is not accessible in this organisation")
)

// Context is the resolved tenant scope every entity call runs under.
type Context struct {
	OrgID       string
	WorkspaceID string
	Token       string
}

// Resolution is the outcome of a resolution attempt. Exactly one of
// Context or Choices is set: either the tenant is resolved, or the caller
// must present the choices and ask the user to select explicitly. Using a
// variant instead of an error forces callers to handle the ambiguous case.
type Resolution struct {
	Context *Context
	Choices *Choices
}

// Choices carries the options a user must pick from when resolution is
// ambiguous. Workspaces is nil unless the organisation was already
// unambiguous and only the workspace needs choosing.
type Choices struct {
	Organisations []api.Organisation
	Workspaces    []api.Workspace
}

// Directory lists what the subject's token can access. Implemented by the
// product API client.
type Directory interface {
	ListOrganisations(ctx context.Context, token string) ([]api.Organisation, error)
	ListWorkspaces(ctx context.Context, token, orgID string) ([]api.Workspace, error)
}

// Resolver determines the active tenant context for a subject.
type Resolver struct {
	store     *SelectionStore
	directory Directory
	logger    *slog.Logger
}

// NewResolver creates a tenant resolver over the given selection store and directory.
func NewResolver(store *SelectionStore, directory Directory, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:     store,
		directory: directory,
		logger:    logger.With("component", "tenant"),
	}
}

// Resolve determines the (org, workspace) pair for the subject.
//
// A stored selection wins immediately and is not re-verified against the
// live listings; that staleness window (up to the store TTL) is a
// deliberate tradeoff to keep the common path free of listing calls.
// Otherwise the subject's organisations are listed: zero is terminal, more
// than one demands explicit selection, exactly one narrows to its
// workspaces under the same rule. Only the one-org/one-workspace case is
// auto-selected and persisted — never a guess across tenants.
func (r *Resolver) Resolve(ctx context.Context, token, subjectID string) (Resolution, error) {
	if selection, ok := r.store.Get(subjectID); ok {
		return Resolution{Context: &Context{
			OrgID:       selection.OrgID,
			WorkspaceID: selection.WorkspaceID,
			Token:       token,
		}}, nil
	}

	orgs, err := r.directory.ListOrganisations(ctx, token)
	if err != nil {
		return Resolution{}, err
	}

	switch len(orgs) {
	case 0:
		return Resolution{}, ErrNoOrganisations
	case 1:
		// proceed to workspace listing below
	default:
		r.logger.Info("workspace selection required",
			"subject_id", subjectID,
			"org_count", len(orgs),
		)
		return Resolution{Choices: &Choices{Organisations: orgs}}, nil
	}

	org := orgs[0]
	workspaces, err := r.directory.ListWorkspaces(ctx, token, org.ID)
	if err != nil {
		return Resolution{}, err
	}

	switch len(workspaces) {
	case 0:
		return Resolution{}, ErrNoWorkspaces
	case 1:
		workspace := workspaces[0]
		r.store.Set(subjectID, org.ID, workspace.ID)
		metrics.WorkspaceAutoSelects.Inc()
		r.logger.Info("workspace auto-selected",
			"subject_id", subjectID,
			"org_id", org.ID,
			"workspace_id", workspace.ID,
		)
		return Resolution{Context: &Context{
			OrgID:       org.ID,
			WorkspaceID: workspace.ID,
			Token:       token,
		}}, nil
	default:
		r.logger.Info("workspace selection required",
			"subject_id", subjectID,
			"org_id", org.ID,
			"workspace_count", len(workspaces),
		)
		return Resolution{Choices: &Choices{Organisations: orgs, Workspaces: workspaces}}, nil
	}
}

// Select records an explicit org/workspace choice after verifying the
// subject can actually access the pair. Selections are never stored
// speculatively: a typo'd or stale workspace ID must not scope future calls.
func (r *Resolver) Select(ctx context.Context, token, subjectID, orgID, workspaceID string) error {
	orgs, err := r.directory.ListOrganisations(ctx, token)
	if err != nil {
		return err
	}
	if !containsOrg(orgs, orgID) {
		return fmt.Errorf("%w: %s", ErrOrganisationNotAccessible, orgID)
	}

	workspaces, err := r.directory.ListWorkspaces(ctx, token, orgID)
	if err != nil {
		return err
	}
	if !containsWorkspace(workspaces, workspaceID) {
		return fmt.Errorf("%w: %s", ErrWorkspaceNotAccessible, workspaceID)
	}

	r.store.Set(subjectID, orgID, workspaceID)
	r.logger.Info("workspace selected",
		"subject_id", subjectID,
		"org_id", orgID,
		"workspace_id", workspaceID,
	)
	return nil
}

// ClearSelection forgets the subject's stored selection.
func (r *Resolver) ClearSelection(subjectID string) {
	r.store.Clear(subjectID)
	r.logger.Info("workspace selection cleared", "subject_id", subjectID)
}

func containsOrg(orgs []api.Organisation, id string) bool {
	for _, o := range orgs {
		if o.ID == id {
			return true
		}
	}
	return false
}

func containsWorkspace(workspaces []api.Workspace, id string) bool {
	for _, w := range workspaces {
		if w.ID == id {
			return true
		}
	}
	return false
}
