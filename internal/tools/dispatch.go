// ABOUTME: Dispatch shell that wraps every tool invocation.
// ABOUTME: Resolves tenant context, renders selection prompts, and contains all failures.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/compass-gateway/internal/auth"
	"github.com/2389/compass-gateway/internal/metrics"
	"github.com/2389/compass-gateway/internal/store"
	"github.com/2389/compass-gateway/internal/tenant"
)

// AuditLog receives a record for every dispatched invocation. Audit
// failures are logged and swallowed; they never fail the tool call.
type AuditLog interface {
	AppendToolInvocation(ctx context.Context, inv *store.ToolInvocation) error
}

// Result is the outcome of a dispatched tool call, ready to be rendered
// as MCP tool output. IsError results are expected protocol-level answers
// (the calling agent can read them and recover); they are not transport
// failures.
type Result struct {
	Content string
	IsError bool
}

// Dispatcher runs tool calls inside a resolved tenant context.
type Dispatcher struct {
	registry *Registry
	resolver *tenant.Resolver
	audit    AuditLog
	logger   *slog.Logger
}

// DispatcherConfig contains configuration options for the Dispatcher.
type DispatcherConfig struct {
	Registry *Registry
	Resolver *tenant.Resolver
	Audit    AuditLog // optional
	Logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over the given registry and resolver.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("resolver is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		registry: cfg.Registry,
		resolver: cfg.Resolver,
		audit:    cfg.Audit,
		logger:   logger.With("component", "dispatch"),
	}, nil
}

// Dispatch runs the named tool for the authenticated principal in the
// request context. The principal must have been placed there by the
// transport's auth layer before dispatch; a missing principal is a
// programming error, not a user-facing condition.
//
// Every failure inside the tool body — handler errors, panics, tenant
// resolution failures — comes back as an IsError Result. Only a missing
// tool or missing principal is returned as an error to the transport.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args json.RawMessage) (*Result, error) {
	tool := d.registry.Get(name)
	if tool == nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	principal := auth.FromContext(ctx)
	if principal == nil {
		return nil, errors.New("no authenticated principal in context")
	}
	token := auth.TokenFromContext(ctx)

	requestID := uuid.New().String()
	start := time.Now()

	inv := &Invocation{
		Principal: principal,
		Token:     token,
		Args:      args,
	}

	if tool.NeedsTenant {
		resolution, err := d.resolver.Resolve(ctx, token, principal.SubjectID)
		if err != nil {
			result := &Result{Content: resolutionErrorMessage(err), IsError: true}
			d.finish(ctx, tool, inv, requestID, start, store.OutcomeError, result.Content)
			return result, nil
		}
		if resolution.Choices != nil {
			// Expected and recoverable: the agent selects a workspace and retries.
			d.logger.Info("workspace selection required",
				"tool_name", name,
				"request_id", requestID,
				"subject_id", principal.SubjectID,
			)
			result := &Result{Content: formatSelectionRequired(resolution.Choices), IsError: true}
			d.finish(ctx, tool, inv, requestID, start, store.OutcomeSelectionRequired, "")
			return result, nil
		}
		inv.Tenant = resolution.Context
	}

	output, err := d.runHandler(ctx, tool, inv, requestID)
	if err != nil {
		d.logger.Warn("tool execution failed",
			"tool_name", name,
			"request_id", requestID,
			"error", err,
		)
		result := &Result{Content: err.Error(), IsError: true}
		d.finish(ctx, tool, inv, requestID, start, store.OutcomeError, err.Error())
		return result, nil
	}

	content, err := renderOutput(output)
	if err != nil {
		d.logger.Warn("tool output encoding failed",
			"tool_name", name,
			"request_id", requestID,
			"error", err,
		)
		result := &Result{Content: "tool produced unencodable output", IsError: true}
		d.finish(ctx, tool, inv, requestID, start, store.OutcomeError, err.Error())
		return result, nil
	}

	d.finish(ctx, tool, inv, requestID, start, store.OutcomeOK, "")
	return &Result{Content: content}, nil
}

// runHandler executes the tool handler, converting a panic into an error
// so a single misbehaving tool cannot take the process down.
func (d *Dispatcher) runHandler(ctx context.Context, tool *Tool, inv *Invocation, requestID string) (output any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool handler panicked",
				"tool_name", tool.Name,
				"request_id", requestID,
				"panic", r,
			)
			output = nil
			err = fmt.Errorf("internal error in tool %s", tool.Name)
		}
	}()
	return tool.Handler(ctx, inv)
}

// finish records metrics and the audit trail for a completed dispatch.
func (d *Dispatcher) finish(ctx context.Context, tool *Tool, inv *Invocation, requestID string, start time.Time, outcome, detail string) {
	metrics.ToolInvocations.WithLabelValues(tool.Name, outcome).Inc()

	if d.audit == nil {
		return
	}

	record := &store.ToolInvocation{
		ID:        requestID,
		SubjectID: inv.Principal.SubjectID,
		ToolName:  tool.Name,
		Outcome:   outcome,
		Duration:  time.Since(start),
		Detail:    detail,
	}
	if inv.Tenant != nil {
		record.OrgID = inv.Tenant.OrgID
		record.WorkspaceID = inv.Tenant.WorkspaceID
	}

	if err := d.audit.AppendToolInvocation(ctx, record); err != nil {
		d.logger.Warn("audit append failed",
			"tool_name", tool.Name,
			"request_id", requestID,
			"error", err,
		)
	}
}

// resolutionErrorMessage turns resolver failures into user-actionable text.
// Terminal tenant-empty conditions get a clear explanation instead of a
// stack trace; anything else keeps its message for diagnostics.
func resolutionErrorMessage(err error) string {
	switch {
	case errors.Is(err, tenant.ErrNoOrganisations):
		return "Your account does not belong to any organisation. Ask an administrator to add you to one, then try again."
	case errors.Is(err, tenant.ErrNoWorkspaces):
		return "Your organisation has no workspaces. Create one in the product first, then try again."
	default:
		return "Could not resolve your workspace: " + err.Error()
	}
}

// formatSelectionRequired renders the available choices so the calling
// agent can invoke select_workspace and retry.
func formatSelectionRequired(choices *tenant.Choices) string {
	var b strings.Builder
	b.WriteString("Workspace selection required. Call select_workspace with an organisation and workspace, then retry.\n")
	b.WriteString("Organisations:\n")
	for _, org := range choices.Organisations {
		fmt.Fprintf(&b, "- %s (%s)\n", org.Name, org.ID)
	}
	if len(choices.Workspaces) > 0 {
		b.WriteString("Workspaces:\n")
		for _, ws := range choices.Workspaces {
			fmt.Fprintf(&b, "- %s (%s)\n", ws.Name, ws.ID)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderOutput converts a handler's return value into tool output text.
func renderOutput(output any) (string, error) {
	switch v := output.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.RawMessage:
		return string(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
