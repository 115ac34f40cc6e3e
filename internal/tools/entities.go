// ABOUTME: CRUD tools for the product entities, generated from a descriptor table.
// ABOUTME: Thin wrappers: validate arguments, then delegate to the product API client.

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yuin/goldmark"

	"github.com/2389/compass-gateway/internal/api"
)

// entityDef describes one product entity exposed as CRUD tools.
type entityDef struct {
	singular    string
	plural      string
	collection  string
	description string
	// transform mutates the request body before it is sent downstream.
	transform func(body map[string]any) error
}

// entityDefs lists every entity the gateway exposes. Knowledge documents
// get a markdown transform: the downstream API stores HTML.
var entityDefs = []entityDef{
	{singular: "opportunity", plural: "opportunities", collection: "opportunities",
		description: "a customer problem or opportunity under discovery"},
	{singular: "solution", plural: "solutions", collection: "solutions",
		description: "a proposed solution linked to an opportunity"},
	{singular: "goal", plural: "goals", collection: "goals",
		description: "a product goal or outcome"},
	{singular: "knowledge_document", plural: "knowledge_documents", collection: "knowledge-documents",
		description: "a knowledge base document", transform: renderKnowledgeContent},
	{singular: "feedback", plural: "feedback_items", collection: "feedback",
		description: "a piece of customer feedback"},
	{singular: "insight", plural: "insights", collection: "insights",
		description: "an insight derived from customer feedback"},
}

// RegisterEntityTools registers create/list/get/update/delete tools for
// every product entity.
func RegisterEntityTools(reg *Registry, client *api.Client) error {
	for _, def := range entityDefs {
		h := &entityHandlers{def: def, client: client}

		toolList := []*Tool{
			{
				Name:        "create_" + def.singular,
				Description: "Create " + def.description,
				InputSchema: json.RawMessage(`{"type":"object","additionalProperties":true}`),
				NeedsTenant: true,
				Handler:     h.Create,
			},
			{
				Name:        "list_" + def.plural,
				Description: "List " + def.plural + " in the active workspace",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"limit":{"type":"integer"},"offset":{"type":"integer"}}}`),
				NeedsTenant: true,
				Handler:     h.List,
			},
			{
				Name:        "get_" + def.singular,
				Description: "Get a single " + def.singular + " by ID",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
				NeedsTenant: true,
				Handler:     h.Get,
			},
			{
				Name:        "update_" + def.singular,
				Description: "Update fields of a " + def.singular,
				InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"],"additionalProperties":true}`),
				NeedsTenant: true,
				Handler:     h.Update,
			},
			{
				Name:        "delete_" + def.singular,
				Description: "Delete a " + def.singular + " by ID",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
				NeedsTenant: true,
				Handler:     h.Delete,
			},
		}

		for _, t := range toolList {
			if err := reg.Register(t); err != nil {
				return err
			}
		}
	}
	return nil
}

type entityHandlers struct {
	def    entityDef
	client *api.Client
}

func (h *entityHandlers) Create(ctx context.Context, inv *Invocation) (any, error) {
	body := map[string]any{}
	if err := unmarshalArgs(inv.Args, &body); err != nil {
		return nil, err
	}
	if h.def.transform != nil {
		if err := h.def.transform(body); err != nil {
			return nil, err
		}
	}

	return h.client.CreateEntity(ctx, inv.Token, inv.Tenant.OrgID, inv.Tenant.WorkspaceID, h.def.collection, body)
}

func (h *entityHandlers) List(ctx context.Context, inv *Invocation) (any, error) {
	var args struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}
	if err := unmarshalArgs(inv.Args, &args); err != nil {
		return nil, err
	}

	return h.client.ListEntities(ctx, inv.Token, inv.Tenant.OrgID, inv.Tenant.WorkspaceID, h.def.collection, args.Limit, args.Offset)
}

func (h *entityHandlers) Get(ctx context.Context, inv *Invocation) (any, error) {
	id, err := requiredID(inv.Args)
	if err != nil {
		return nil, err
	}

	return h.client.GetEntity(ctx, inv.Token, inv.Tenant.OrgID, inv.Tenant.WorkspaceID, h.def.collection, id)
}

func (h *entityHandlers) Update(ctx context.Context, inv *Invocation) (any, error) {
	body := map[string]any{}
	if err := unmarshalArgs(inv.Args, &body); err != nil {
		return nil, err
	}
	id, _ := body["id"].(string)
	if id == "" {
		return nil, errors.New("id is required")
	}
	delete(body, "id")

	if h.def.transform != nil {
		if err := h.def.transform(body); err != nil {
			return nil, err
		}
	}

	return h.client.UpdateEntity(ctx, inv.Token, inv.Tenant.OrgID, inv.Tenant.WorkspaceID, h.def.collection, id, body)
}

func (h *entityHandlers) Delete(ctx context.Context, inv *Invocation) (any, error) {
	id, err := requiredID(inv.Args)
	if err != nil {
		return nil, err
	}

	if err := h.client.DeleteEntity(ctx, inv.Token, inv.Tenant.OrgID, inv.Tenant.WorkspaceID, h.def.collection, id); err != nil {
		return nil, err
	}
	return fmt.Sprintf("Deleted %s %s.", h.def.singular, id), nil
}

// requiredID extracts the mandatory id argument.
func requiredID(args json.RawMessage) (string, error) {
	var parsed struct {
		ID string `json:"id"`
	}
	if err := unmarshalArgs(args, &parsed); err != nil {
		return "", err
	}
	if parsed.ID == "" {
		return "", errors.New("id is required")
	}
	return parsed.ID, nil
}

// renderKnowledgeContent converts a content_markdown argument to the
// content_html field the downstream API stores.
func renderKnowledgeContent(body map[string]any) error {
	src, ok := body["content_markdown"].(string)
	if !ok || src == "" {
		return nil
	}

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		return fmt.Errorf("rendering markdown: %w", err)
	}
	body["content_html"] = buf.String()
	delete(body, "content_markdown")
	return nil
}
