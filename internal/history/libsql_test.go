package history

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emarren/vaultflow/pkg/schema"
)

func newTestLibSQL(t *testing.T) *LibSQLRecorder {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "history.db")
	r, err := NewLibSQLRecorder(context.Background(), "file:"+dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestLibSQLRecorder_RunRoundTrip(t *testing.T) {
	r := newTestLibSQL(t)
	ctx := context.Background()

	require.NoError(t, r.StartRun(ctx, &Run{
		ID:           "run-1",
		WorkflowName: "daily",
		TriggerMode:  schema.TriggerModeEvent,
		State:        schema.RunStateRunning,
	}))
	require.NoError(t, r.FinishRun(ctx, "run-1", schema.RunStateFailed, "boom"))

	got, err := r.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "daily", got.WorkflowName)
	assert.Equal(t, schema.TriggerModeEvent, got.TriggerMode)
	assert.Equal(t, schema.RunStateFailed, got.State)
	assert.Equal(t, "boom", got.Error)
	assert.NotNil(t, got.FinishedAt)
}

func TestLibSQLRecorder_StepTwoPhase(t *testing.T) {
	r := newTestLibSQL(t)
	ctx := context.Background()

	require.NoError(t, r.StartRun(ctx, &Run{ID: "run-1", WorkflowName: "wf", State: schema.RunStateRunning}))
	require.NoError(t, r.BeginStep(ctx, &Entry{
		RunID:         "run-1",
		Seq:           1,
		NodeID:        "load",
		NodeType:      schema.NodeTypeNoteRead,
		ResolvedInput: json.RawMessage(`{"path":"a.md"}`),
	}))

	entries, err := r.ListEntries(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.JSONEq(t, `{"path":"a.md"}`, string(entries[0].ResolvedInput))
	assert.Nil(t, entries[0].Output)
	assert.Nil(t, entries[0].FinishedAt)

	require.NoError(t, r.FinishStep(ctx, "run-1", 1, StepResult{
		Output:      json.RawMessage(`{"content":"hello"}`),
		Diagnostics: []string{"TEMPLATE_WARNING: variable \"x\" is not defined"},
	}))

	entries, err = r.ListEntries(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.JSONEq(t, `{"content":"hello"}`, string(entries[0].Output))
	require.Len(t, entries[0].Diagnostics, 1)
	assert.NotNil(t, entries[0].FinishedAt)
}

func TestLibSQLRecorder_DuplicateRunID(t *testing.T) {
	r := newTestLibSQL(t)
	ctx := context.Background()

	require.NoError(t, r.StartRun(ctx, &Run{ID: "run-1", WorkflowName: "wf", State: schema.RunStateRunning}))
	require.Error(t, r.StartRun(ctx, &Run{ID: "run-1", WorkflowName: "wf", State: schema.RunStateRunning}))
}

func TestLibSQLRecorder_ListRunsFilter(t *testing.T) {
	r := newTestLibSQL(t)
	ctx := context.Background()

	require.NoError(t, r.StartRun(ctx, &Run{ID: "a", WorkflowName: "daily", State: schema.RunStateRunning}))
	require.NoError(t, r.StartRun(ctx, &Run{ID: "b", WorkflowName: "weekly", State: schema.RunStateRunning}))
	require.NoError(t, r.FinishRun(ctx, "a", schema.RunStateCompleted, ""))
	require.NoError(t, r.FinishRun(ctx, "b", schema.RunStateCancelled, ""))

	runs, err := r.ListRuns(ctx, RunFilter{WorkflowName: "daily"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "a", runs[0].ID)

	runs, err = r.ListRuns(ctx, RunFilter{States: []schema.RunState{schema.RunStateCancelled}})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "b", runs[0].ID)
}

func TestLibSQLRecorder_UnknownIDs(t *testing.T) {
	r := newTestLibSQL(t)
	ctx := context.Background()

	_, err := r.GetRun(ctx, "ghost")
	require.Error(t, err)
	var fe *schema.FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeNotFound, fe.Code)

	require.Error(t, r.FinishRun(ctx, "ghost", schema.RunStateCompleted, ""))
	require.Error(t, r.FinishStep(ctx, "ghost", 1, StepResult{}))
}

func TestLibSQLRecorder_MigrationsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	r1, err := NewLibSQLRecorder(ctx, "file:"+dbPath)
	require.NoError(t, err)
	require.NoError(t, r1.StartRun(ctx, &Run{ID: "a", WorkflowName: "wf", State: schema.RunStateRunning}))
	require.NoError(t, r1.Close())

	// Reopening replays no migrations and keeps existing rows.
	r2, err := NewLibSQLRecorder(ctx, "file:"+dbPath)
	require.NoError(t, err)
	defer r2.Close()
	got, err := r2.GetRun(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "wf", got.WorkflowName)
}
