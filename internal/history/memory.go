package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/emarren/vaultflow/pkg/schema"
)

// MemoryRecorder keeps history in memory. Used by tests and by hosts that
// opt out of persistence.
type MemoryRecorder struct {
	mu      sync.RWMutex
	runs    map[string]*Run
	entries map[string][]*Entry
}

// NewMemoryRecorder creates an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{
		runs:    make(map[string]*Run),
		entries: make(map[string][]*Entry),
	}
}

func (r *MemoryRecorder) StartRun(ctx context.Context, run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[run.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeStore, "run %q already recorded", run.ID)
	}
	cp := *run
	if cp.StartedAt.IsZero() {
		cp.StartedAt = time.Now().UTC()
	}
	r.runs[run.ID] = &cp
	return nil
}

func (r *MemoryRecorder) FinishRun(ctx context.Context, runID string, state schema.RunState, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[runID]
	if !ok {
		return notFound("run", runID)
	}
	now := time.Now().UTC()
	run.State = state
	run.Error = errMsg
	run.FinishedAt = &now
	return nil
}

func (r *MemoryRecorder) BeginStep(ctx context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[entry.RunID]; !ok {
		return notFound("run", entry.RunID)
	}
	cp := *entry
	if cp.StartedAt.IsZero() {
		cp.StartedAt = time.Now().UTC()
	}
	r.entries[entry.RunID] = append(r.entries[entry.RunID], &cp)
	return nil
}

func (r *MemoryRecorder) FinishStep(ctx context.Context, runID string, seq int, result StepResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries[runID] {
		if e.Seq == seq {
			now := time.Now().UTC()
			e.Output = result.Output
			e.Diagnostics = append([]string(nil), result.Diagnostics...)
			e.Error = result.Error
			e.FinishedAt = &now
			return nil
		}
	}
	return notFound("history entry", runID)
}

func (r *MemoryRecorder) GetRun(ctx context.Context, id string) (*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, notFound("run", id)
	}
	cp := *run
	return &cp, nil
}

func (r *MemoryRecorder) ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Run
	for _, run := range r.runs {
		if filter.WorkflowName != "" && run.WorkflowName != filter.WorkflowName {
			continue
		}
		if len(filter.States) > 0 && !containsState(filter.States, run.State) {
			continue
		}
		cp := *run
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *MemoryRecorder) ListEntries(ctx context.Context, runID string) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.entries[runID]
	out := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (r *MemoryRecorder) Close() error { return nil }

func containsState(states []schema.RunState, s schema.RunState) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}

func notFound(resource, id string) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

var _ Recorder = (*MemoryRecorder)(nil)
