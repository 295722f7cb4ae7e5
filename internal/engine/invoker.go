package engine

import (
	"context"

	"github.com/emarren/vaultflow/pkg/schema"
)

// WorkflowLoader resolves a workflow definition by name. The document-store
// loader implements this.
type WorkflowLoader interface {
	LoadWorkflow(ctx context.Context, name string) (*schema.WorkflowDefinition, error)
}

// SubworkflowInvoker runs a named workflow as a child of an existing run.
// The workflow node handler calls it.
type SubworkflowInvoker interface {
	Invoke(ctx context.Context, parent *ExecutionContext, name string, inputs map[string]any) (map[string]any, error)
}

const defaultMaxDepth = 16

// Invoker implements SubworkflowInvoker over a loader and a scheduler. A
// child run gets its own run ID, history, and a scope seeded exclusively
// from the caller's input mapping; parent variables never leak in.
type Invoker struct {
	loader    WorkflowLoader
	scheduler *Scheduler
	maxDepth  int
}

// NewInvoker creates an invoker. maxDepth bounds workflow-calls-workflow
// nesting; zero takes the default.
func NewInvoker(loader WorkflowLoader, scheduler *Scheduler, maxDepth int) *Invoker {
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	return &Invoker{loader: loader, scheduler: scheduler, maxDepth: maxDepth}
}

// Invoke loads and runs the named workflow, returning the child's final
// scope. A child that fails or is cancelled fails the calling node.
func (inv *Invoker) Invoke(ctx context.Context, parent *ExecutionContext, name string, inputs map[string]any) (map[string]any, error) {
	depth := parent.Depth + 1
	if depth > inv.maxDepth {
		return nil, schema.NewErrorf(schema.ErrCodeSubworkflow,
			"sub-workflow nesting exceeds %d levels calling %q", inv.maxDepth, name)
	}

	def, err := inv.loader.LoadWorkflow(ctx, name)
	if err != nil {
		return nil, schema.AsFlowError(err, schema.ErrCodeSubworkflow)
	}

	result, err := inv.scheduler.Run(ctx, RunRequest{
		Definition:  def,
		TriggerMode: parent.TriggerMode,
		InitialVars: inputs,
		Depth:       depth,
	})
	if err != nil {
		return nil, schema.AsFlowError(err, schema.ErrCodeSubworkflow)
	}

	switch result.State {
	case schema.RunStateCompleted:
		return result.Scope, nil
	case schema.RunStateCancelled:
		return nil, schema.NewErrorf(schema.ErrCodeCancelled, "sub-workflow %q cancelled", name)
	default:
		fe := schema.NewErrorf(schema.ErrCodeSubworkflow, "sub-workflow %q failed", name)
		if result.Err != nil {
			fe = fe.WithCause(result.Err).WithDetails(map[string]any{"cause": result.Err.Error()})
		}
		return nil, fe
	}
}

var _ SubworkflowInvoker = (*Invoker)(nil)
