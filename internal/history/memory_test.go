package history

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emarren/vaultflow/pkg/schema"
)

func TestMemoryRecorder_RunLifecycle(t *testing.T) {
	r := NewMemoryRecorder()
	ctx := context.Background()

	err := r.StartRun(ctx, &Run{
		ID:           "run-1",
		WorkflowName: "daily",
		TriggerMode:  schema.TriggerModePanel,
		State:        schema.RunStateRunning,
	})
	require.NoError(t, err)

	// Duplicate run IDs are rejected.
	err = r.StartRun(ctx, &Run{ID: "run-1"})
	require.Error(t, err)

	require.NoError(t, r.FinishRun(ctx, "run-1", schema.RunStateCompleted, ""))

	got, err := r.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, schema.RunStateCompleted, got.State)
	assert.NotNil(t, got.FinishedAt)
	assert.False(t, got.StartedAt.IsZero())
}

func TestMemoryRecorder_StepTwoPhase(t *testing.T) {
	r := NewMemoryRecorder()
	ctx := context.Background()

	require.NoError(t, r.StartRun(ctx, &Run{ID: "run-1", WorkflowName: "wf", State: schema.RunStateRunning}))

	require.NoError(t, r.BeginStep(ctx, &Entry{
		RunID:         "run-1",
		Seq:           1,
		NodeID:        "load",
		NodeType:      schema.NodeTypeNoteRead,
		ResolvedInput: json.RawMessage(`{"path":"a.md"}`),
	}))

	// Entry exists before finalization, with no output yet.
	entries, err := r.ListEntries(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
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
	assert.Len(t, entries[0].Diagnostics, 1)
	assert.NotNil(t, entries[0].FinishedAt)
}

func TestMemoryRecorder_EntriesOrderedBySeq(t *testing.T) {
	r := NewMemoryRecorder()
	ctx := context.Background()

	require.NoError(t, r.StartRun(ctx, &Run{ID: "run-1", WorkflowName: "wf", State: schema.RunStateRunning}))
	for _, seq := range []int{3, 1, 2} {
		require.NoError(t, r.BeginStep(ctx, &Entry{RunID: "run-1", Seq: seq, NodeID: "n", NodeType: schema.NodeTypeSet}))
	}

	entries, err := r.ListEntries(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 1, entries[0].Seq)
	assert.Equal(t, 3, entries[2].Seq)
}

func TestMemoryRecorder_ListRunsFilter(t *testing.T) {
	r := NewMemoryRecorder()
	ctx := context.Background()

	require.NoError(t, r.StartRun(ctx, &Run{ID: "a", WorkflowName: "daily", State: schema.RunStateCompleted}))
	require.NoError(t, r.StartRun(ctx, &Run{ID: "b", WorkflowName: "daily", State: schema.RunStateFailed}))
	require.NoError(t, r.StartRun(ctx, &Run{ID: "c", WorkflowName: "weekly", State: schema.RunStateCompleted}))

	runs, err := r.ListRuns(ctx, RunFilter{WorkflowName: "daily"})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = r.ListRuns(ctx, RunFilter{States: []schema.RunState{schema.RunStateFailed}})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "b", runs[0].ID)

	runs, err = r.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestMemoryRecorder_UnknownRun(t *testing.T) {
	r := NewMemoryRecorder()
	ctx := context.Background()

	_, err := r.GetRun(ctx, "ghost")
	require.Error(t, err)
	var fe *schema.FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeNotFound, fe.Code)

	assert.Error(t, r.FinishRun(ctx, "ghost", schema.RunStateCompleted, ""))
	assert.Error(t, r.BeginStep(ctx, &Entry{RunID: "ghost", Seq: 1}))
}
