package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/emarren/vaultflow/pkg/schema"
)

// Run is the persisted record of one workflow execution.
type Run struct {
	ID           string             `json:"id"`
	WorkflowName string             `json:"workflow_name"`
	TriggerMode  schema.TriggerMode `json:"trigger_mode"`
	State        schema.RunState    `json:"state"`
	Error        string             `json:"error,omitempty"`
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   *time.Time         `json:"finished_at,omitempty"`
}

// Entry is one step of a run's history. An entry is created before the node
// handler executes and finalized afterwards, so an interrupted run still
// shows which step it died in.
type Entry struct {
	RunID         string          `json:"run_id"`
	Seq           int             `json:"seq"`
	NodeID        string          `json:"node_id"`
	NodeType      schema.NodeType `json:"node_type"`
	ResolvedInput json.RawMessage `json:"resolved_input,omitempty"`
	Output        json.RawMessage `json:"output,omitempty"`
	Diagnostics   []string        `json:"diagnostics,omitempty"`
	Error         string          `json:"error,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
}

// StepResult finalizes a previously begun entry.
type StepResult struct {
	Output      json.RawMessage
	Diagnostics []string
	Error       string
}

// RunFilter narrows ListRuns results. Zero values match everything.
type RunFilter struct {
	WorkflowName string
	States       []schema.RunState
	Limit        int
}

// Recorder is the append-only history store. Entries are never updated after
// finalization and never deleted.
// Implementations must be safe for concurrent use.
type Recorder interface {
	StartRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, runID string, state schema.RunState, errMsg string) error

	BeginStep(ctx context.Context, entry *Entry) error
	FinishStep(ctx context.Context, runID string, seq int, result StepResult) error

	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
	ListEntries(ctx context.Context, runID string) ([]*Entry, error)

	Close() error
}
