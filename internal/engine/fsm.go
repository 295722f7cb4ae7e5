package engine

import (
	"sync"

	"github.com/emarren/vaultflow/pkg/schema"
)

// validRunTransitions defines the allowed run state transitions. Terminal
// states admit none.
var validRunTransitions = map[schema.RunState][]schema.RunState{
	schema.RunStateReady:     {schema.RunStateRunning, schema.RunStateCancelled},
	schema.RunStateRunning:   {schema.RunStateSuspended, schema.RunStateCompleted, schema.RunStateFailed, schema.RunStateCancelled},
	schema.RunStateSuspended: {schema.RunStateRunning, schema.RunStateFailed, schema.RunStateCancelled},
	schema.RunStateCompleted: {},
	schema.RunStateFailed:    {},
	schema.RunStateCancelled: {},
}

// TransitionHook observes run state transitions, for logging.
type TransitionHook func(runID string, from, to schema.RunState)

// RunFSM tracks the lifecycle state of a single run and rejects transitions
// outside the table.
type RunFSM struct {
	mu    sync.Mutex
	runID string
	state schema.RunState
	hooks []TransitionHook
}

// NewRunFSM creates an FSM in the ready state.
func NewRunFSM(runID string, hooks ...TransitionHook) *RunFSM {
	return &RunFSM{
		runID: runID,
		state: schema.RunStateReady,
		hooks: hooks,
	}
}

// State returns the current state.
func (f *RunFSM) State() schema.RunState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Transition moves the run to the target state, or fails with an
// INVALID_STATE_TRANSITION error.
func (f *RunFSM) Transition(to schema.RunState) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !isValidRunTransition(f.state, to) {
		return schema.NewErrorf(schema.ErrCodeInvalidState,
			"invalid run transition: %s -> %s", f.state, to).
			WithDetails(map[string]any{"run_id": f.runID, "from": string(f.state), "to": string(to)})
	}

	from := f.state
	f.state = to
	for _, hook := range f.hooks {
		hook(f.runID, from, to)
	}
	return nil
}

func isValidRunTransition(from, to schema.RunState) bool {
	for _, allowed := range validRunTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
