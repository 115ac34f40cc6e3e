// ABOUTME: Workspace and organisation tools: listing, explicit selection, clearing.
// ABOUTME: These run without a resolved tenant so users can escape the selection prompt.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2389/compass-gateway/internal/tenant"
)

// RegisterWorkspaceTools registers the workspace selection tools.
func RegisterWorkspaceTools(reg *Registry, resolver *tenant.Resolver, directory tenant.Directory) error {
	h := &workspaceHandlers{resolver: resolver, directory: directory}

	toolList := []*Tool{
		{
			Name:        "list_organisations",
			Description: "List the organisations your account can access",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
			Handler:     h.ListOrganisations,
		},
		{
			Name:        "list_workspaces",
			Description: "List the workspaces within an organisation",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"organisation_id":{"type":"string"}},"required":["organisation_id"]}`),
			Handler:     h.ListWorkspaces,
		},
		{
			Name:        "select_workspace",
			Description: "Choose the organisation and workspace that scope all other tools",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"organisation_id":{"type":"string"},"workspace_id":{"type":"string"}},"required":["organisation_id","workspace_id"]}`),
			Handler:     h.SelectWorkspace,
		},
		{
			Name:        "clear_workspace_selection",
			Description: "Forget the stored workspace selection and be prompted again",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
			Handler:     h.ClearSelection,
		},
		{
			Name:        "current_workspace",
			Description: "Show the organisation and workspace currently in use",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
			NeedsTenant: true,
			Handler:     h.CurrentWorkspace,
		},
	}

	for _, t := range toolList {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

type workspaceHandlers struct {
	resolver  *tenant.Resolver
	directory tenant.Directory
}

func (h *workspaceHandlers) ListOrganisations(ctx context.Context, inv *Invocation) (any, error) {
	orgs, err := h.directory.ListOrganisations(ctx, inv.Token)
	if err != nil {
		return nil, err
	}
	return orgs, nil
}

func (h *workspaceHandlers) ListWorkspaces(ctx context.Context, inv *Invocation) (any, error) {
	var args struct {
		OrganisationID string `json:"organisation_id"`
	}
	if err := unmarshalArgs(inv.Args, &args); err != nil {
		return nil, err
	}
	if args.OrganisationID == "" {
		return nil, errors.New("organisation_id is required")
	}

	workspaces, err := h.directory.ListWorkspaces(ctx, inv.Token, args.OrganisationID)
	if err != nil {
		return nil, err
	}
	return workspaces, nil
}

func (h *workspaceHandlers) SelectWorkspace(ctx context.Context, inv *Invocation) (any, error) {
	var args struct {
		OrganisationID string `json:"organisation_id"`
		WorkspaceID    string `json:"workspace_id"`
	}
	if err := unmarshalArgs(inv.Args, &args); err != nil {
		return nil, err
	}
	if args.OrganisationID == "" || args.WorkspaceID == "" {
		return nil, errors.New("organisation_id and workspace_id are required")
	}

	if err := h.resolver.Select(ctx, inv.Token, inv.Principal.SubjectID, args.OrganisationID, args.WorkspaceID); err != nil {
		return nil, err
	}
	return fmt.Sprintf("Workspace %s in organisation %s is now active.", args.WorkspaceID, args.OrganisationID), nil
}

func (h *workspaceHandlers) ClearSelection(_ context.Context, inv *Invocation) (any, error) {
	h.resolver.ClearSelection(inv.Principal.SubjectID)
	return "Workspace selection cleared. The next tool call will prompt for selection if needed.", nil
}

func (h *workspaceHandlers) CurrentWorkspace(_ context.Context, inv *Invocation) (any, error) {
	return map[string]string{
		"organisation_id": inv.Tenant.OrgID,
		"workspace_id":    inv.Tenant.WorkspaceID,
	}, nil
}

// unmarshalArgs decodes tool arguments, treating absent args as an empty object.
func unmarshalArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
