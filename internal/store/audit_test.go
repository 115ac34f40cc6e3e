// ABOUTME: Tests for the SQLite audit store.
// ABOUTME: Validates insertion, filtering, ordering, and limit clamping.

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendToolInvocation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inv := &ToolInvocation{
		SubjectID:   "u1",
		ToolName:    "create_opportunity",
		OrgID:       "org-A",
		WorkspaceID: "ws-1",
		Outcome:     OutcomeOK,
		Duration:    42 * time.Millisecond,
	}
	require.NoError(t, s.AppendToolInvocation(ctx, inv))

	assert.NotEmpty(t, inv.ID, "ID should be generated")
	assert.False(t, inv.Timestamp.IsZero(), "timestamp should be generated")

	got, err := s.ListToolInvocations(ctx, InvocationFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "create_opportunity", got[0].ToolName)
	assert.Equal(t, 42*time.Millisecond, got[0].Duration)
}

func TestListToolInvocations_Filtering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, inv := range []*ToolInvocation{
		{SubjectID: "u1", ToolName: "list_goals", Outcome: OutcomeOK},
		{SubjectID: "u1", ToolName: "create_goal", Outcome: OutcomeError, Detail: "boom"},
		{SubjectID: "u2", ToolName: "list_goals", Outcome: OutcomeSelectionRequired},
	} {
		require.NoError(t, s.AppendToolInvocation(ctx, inv))
	}

	bySubject, err := s.ListToolInvocations(ctx, InvocationFilter{SubjectID: "u1"})
	require.NoError(t, err)
	assert.Len(t, bySubject, 2)

	byTool, err := s.ListToolInvocations(ctx, InvocationFilter{ToolName: "list_goals"})
	require.NoError(t, err)
	assert.Len(t, byTool, 2)

	both, err := s.ListToolInvocations(ctx, InvocationFilter{SubjectID: "u2", ToolName: "list_goals"})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, OutcomeSelectionRequired, both[0].Outcome)
}

func TestListToolInvocations_Since(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := &ToolInvocation{
		SubjectID: "u1",
		ToolName:  "list_goals",
		Outcome:   OutcomeOK,
		Timestamp: time.Now().UTC().Add(-2 * time.Hour),
	}
	require.NoError(t, s.AppendToolInvocation(ctx, old))
	require.NoError(t, s.AppendToolInvocation(ctx, &ToolInvocation{
		SubjectID: "u1",
		ToolName:  "list_goals",
		Outcome:   OutcomeOK,
	}))

	since := time.Now().UTC().Add(-time.Hour)
	recent, err := s.ListToolInvocations(ctx, InvocationFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestListToolInvocations_Limit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendToolInvocation(ctx, &ToolInvocation{
			SubjectID: "u1",
			ToolName:  "list_goals",
			Outcome:   OutcomeOK,
		}))
	}

	got, err := s.ListToolInvocations(ctx, InvocationFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
