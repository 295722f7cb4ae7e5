// Package trigger matches document-store events and cron schedules against
// workflow bindings and produces the initial scope for event-triggered runs.
package trigger

import (
	"context"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/emarren/vaultflow/internal/expressions"
	"github.com/emarren/vaultflow/pkg/schema"
)

// DefaultModifyDebounce is the quiescence window for modify events. Editors
// save in bursts; a burst collapses into a single run carrying the last
// observed content, fired once the path has been quiet this long.
const DefaultModifyDebounce = 5 * time.Second

// Event is one document-store event as seen by the matcher.
type Event struct {
	Type    schema.EventType
	Path    string
	OldPath string // rename only
	Content string // loaded lazily by the caller when a binding needs it
}

// Binding subscribes a workflow to events. A binding matches when the event
// type is listed, a glob matches the path, and the optional CEL filter
// accepts the event.
type Binding struct {
	Workflow string             `json:"workflow"`
	Events   []schema.EventType `json:"events"`
	Globs    []string           `json:"globs"`
	Filter   string             `json:"filter,omitempty"`
}

// Activation is one workflow the matcher decided to run, with the initial
// scope built from the event.
type Activation struct {
	Workflow string
	Scope    map[string]any
}

// pendingModify buffers the newest modify event for a path until the
// quiescence window elapses.
type pendingModify struct {
	ev    Event
	timer *time.Timer
}

// Matcher evaluates events against a fixed set of bindings. Non-modify
// events produce activations synchronously from Match. Modify events are
// debounced per path: the latest event is buffered and its activations are
// delivered through the sink after the path has been quiet for the debounce
// window, so a save burst yields one run with the final content.
// Safe for concurrent use.
type Matcher struct {
	bindings []Binding
	filters  *expressions.CELEngine
	logger   *slog.Logger
	debounce time.Duration
	sink     func(Activation)

	mu      sync.Mutex
	pending map[string]*pendingModify
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithDebounce overrides the modify quiescence window. Zero disables
// debouncing entirely; modify events then activate synchronously like every
// other event type.
func WithDebounce(d time.Duration) MatcherOption {
	return func(m *Matcher) { m.debounce = d }
}

// WithSink installs the receiver for debounce-deferred activations.
func WithSink(fn func(Activation)) MatcherOption {
	return func(m *Matcher) { m.sink = fn }
}

// NewMatcher creates a matcher over the given bindings.
func NewMatcher(bindings []Binding, filters *expressions.CELEngine, logger *slog.Logger, opts ...MatcherOption) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Matcher{
		bindings: bindings,
		filters:  filters,
		logger:   logger,
		debounce: DefaultModifyDebounce,
		pending:  make(map[string]*pendingModify),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match feeds one event through the bindings. Modify events return nil and
// are delivered via the sink after the quiescence window; a newer modify on
// the same path replaces the buffered one and restarts the window. All other
// event types return their activations directly.
func (m *Matcher) Match(ctx context.Context, ev Event) []Activation {
	if ev.Type == schema.EventModify && m.debounce > 0 {
		m.buffer(ev)
		return nil
	}
	return m.evaluate(ctx, ev)
}

// Flush immediately evaluates and clears every buffered modify event,
// returning the activations. Callers use it on shutdown so a pending burst
// is not lost.
func (m *Matcher) Flush(ctx context.Context) []Activation {
	m.mu.Lock()
	drained := make([]Event, 0, len(m.pending))
	for path, p := range m.pending {
		p.timer.Stop()
		drained = append(drained, p.ev)
		delete(m.pending, path)
	}
	m.mu.Unlock()

	var out []Activation
	for _, ev := range drained {
		out = append(out, m.evaluate(ctx, ev)...)
	}
	return out
}

func (m *Matcher) buffer(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.pending[ev.Path]; ok {
		p.ev = ev
		p.timer.Reset(m.debounce)
		return
	}
	p := &pendingModify{ev: ev}
	eventPath := ev.Path
	p.timer = time.AfterFunc(m.debounce, func() { m.fire(eventPath) })
	m.pending[eventPath] = p
}

// fire delivers the buffered event for a path once its window elapses.
func (m *Matcher) fire(eventPath string) {
	m.mu.Lock()
	p, ok := m.pending[eventPath]
	if ok {
		delete(m.pending, eventPath)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	for _, act := range m.evaluate(context.Background(), p.ev) {
		if m.sink == nil {
			m.logger.Warn("dropping debounced activation: no sink installed",
				slog.String("workflow", act.Workflow),
				slog.String("path", eventPath),
			)
			continue
		}
		m.sink(act)
	}
}

// evaluate runs an event through every binding. A filter that fails to
// compile or evaluate rejects its binding and is logged; other bindings
// still match.
func (m *Matcher) evaluate(ctx context.Context, ev Event) []Activation {
	var out []Activation
	for _, b := range m.bindings {
		if !eventListed(b.Events, ev.Type) {
			continue
		}
		if !globMatches(b.Globs, ev.Path) {
			continue
		}
		if b.Filter != "" {
			ok, err := m.filters.EvaluateBool(ctx, b.Filter, map[string]any{
				"event":   string(ev.Type),
				"path":    ev.Path,
				"oldPath": ev.OldPath,
				"content": ev.Content,
			})
			if err != nil {
				m.logger.Warn("trigger filter rejected binding",
					slog.String("workflow", b.Workflow),
					slog.String("filter", b.Filter),
					slog.String("error", err.Error()),
				)
				continue
			}
			if !ok {
				continue
			}
		}
		out = append(out, Activation{Workflow: b.Workflow, Scope: EventScope(ev)})
	}
	return out
}

// EventScope builds the reserved event variables seeded into the run scope.
// __eventFile__ is a descriptor, so templates can reach {{__eventFile__.name}}
// and friends. Content is carried only for event types that have current
// content: create, modify, and file-open.
func EventScope(ev Event) map[string]any {
	scope := map[string]any{
		schema.VarEventType:     string(ev.Type),
		schema.VarEventFilePath: ev.Path,
		schema.VarEventFile: map[string]any{
			"name":   path.Base(ev.Path),
			"path":   ev.Path,
			"folder": path.Dir(ev.Path),
		},
	}
	switch ev.Type {
	case schema.EventCreate, schema.EventModify, schema.EventFileOpen:
		scope[schema.VarEventFileContent] = ev.Content
	}
	if ev.Type == schema.EventRename {
		scope[schema.VarEventOldPath] = ev.OldPath
	}
	return scope
}

func eventListed(events []schema.EventType, t schema.EventType) bool {
	for _, e := range events {
		if e == t {
			return true
		}
	}
	return false
}

// globMatches reports whether any pattern matches the path. A binding with no
// globs matches every path. Invalid patterns never match.
func globMatches(globs []string, p string) bool {
	if len(globs) == 0 {
		return true
	}
	for _, g := range globs {
		if ok, err := doublestar.Match(g, p); err == nil && ok {
			return true
		}
	}
	return false
}
