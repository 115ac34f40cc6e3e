// ABOUTME: Tool invocation audit entity and store methods
// ABOUTME: Records who invoked which tool against which tenant, and how it went

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Invocation outcomes.
const (
	OutcomeOK                = "ok"
	OutcomeError             = "error"
	OutcomeSelectionRequired = "selection_required"
)

// ToolInvocation is a single audit record of a dispatched tool call.
type ToolInvocation struct {
	ID          string
	SubjectID   string
	ToolName    string
	OrgID       string // empty when the call never reached a resolved tenant
	WorkspaceID string
	Outcome     string
	Duration    time.Duration
	Timestamp   time.Time
	Detail      string // human-readable error text, empty on success
}

// InvocationFilter specifies filtering options for listing invocations.
type InvocationFilter struct {
	SubjectID string
	ToolName  string
	Since     *time.Time
	Limit     int // default 100, max 1000
}

// AppendToolInvocation appends an audit record for a dispatched tool call.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendToolInvocation(ctx context.Context, inv *ToolInvocation) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.Timestamp.IsZero() {
		inv.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO tool_invocations (invocation_id, subject_id, tool_name, org_id, workspace_id, outcome, duration_ms, ts, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		inv.ID,
		inv.SubjectID,
		inv.ToolName,
		inv.OrgID,
		inv.WorkspaceID,
		inv.Outcome,
		inv.Duration.Milliseconds(),
		inv.Timestamp,
		inv.Detail,
	)
	if err != nil {
		return fmt.Errorf("inserting tool invocation: %w", err)
	}
	return nil
}

// ListToolInvocations returns audit records matching the filter, newest first.
func (s *SQLiteStore) ListToolInvocations(ctx context.Context, filter InvocationFilter) ([]*ToolInvocation, error) {
	query := `
		SELECT invocation_id, subject_id, tool_name, org_id, workspace_id, outcome, duration_ms, ts, detail
		FROM tool_invocations
		WHERE 1=1
	`
	var args []any

	if filter.SubjectID != "" {
		query += " AND subject_id = ?"
		args = append(args, filter.SubjectID)
	}
	if filter.ToolName != "" {
		query += " AND tool_name = ?"
		args = append(args, filter.ToolName)
	}
	if filter.Since != nil {
		query += " AND ts >= ?"
		args = append(args, *filter.Since)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	query += " ORDER BY ts DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tool invocations: %w", err)
	}
	defer rows.Close()

	var invocations []*ToolInvocation
	for rows.Next() {
		inv := &ToolInvocation{}
		var durationMS int64
		if err := rows.Scan(
			&inv.ID,
			&inv.SubjectID,
			&inv.ToolName,
			&inv.OrgID,
			&inv.WorkspaceID,
			&inv.Outcome,
			&durationMS,
			&inv.Timestamp,
			&inv.Detail,
		); err != nil {
			return nil, fmt.Errorf("scanning tool invocation: %w", err)
		}
		inv.Duration = time.Duration(durationMS) * time.Millisecond
		invocations = append(invocations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tool invocations: %w", err)
	}

	return invocations, nil
}
