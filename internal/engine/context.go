package engine

import (
	"github.com/emarren/vaultflow/internal/expressions"
	"github.com/emarren/vaultflow/pkg/schema"
)

// ExecutionContext carries the mutable state of one run through the
// scheduler and into node handlers. Sub-workflow runs get their own context
// with a fresh scope; nothing is shared with the parent except the depth
// counter and trigger mode.
type ExecutionContext struct {
	RunID        string
	WorkflowName string
	TriggerMode  schema.TriggerMode
	Scope        *expressions.Scope

	// Depth is the sub-workflow nesting level, zero for top-level runs.
	Depth int
}

// NewExecutionContext creates a context with an optional seed scope.
func NewExecutionContext(runID, workflowName string, mode schema.TriggerMode, seed map[string]any) *ExecutionContext {
	return &ExecutionContext{
		RunID:        runID,
		WorkflowName: workflowName,
		TriggerMode:  mode,
		Scope:        expressions.NewScopeFrom(seed),
	}
}
