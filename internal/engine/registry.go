package engine

import (
	"context"
	"sync"

	"github.com/emarren/vaultflow/pkg/schema"
)

// HandlerRequest is what a node handler receives: the node, its
// template-resolved parameters, and the run's execution context.
type HandlerRequest struct {
	Node   *schema.Node
	Params map[string]any
	Exec   *ExecutionContext
}

// HandlerResult is what a node handler returns. Output is bound to the
// node's output variable when BindOutput is set; Branch carries the
// condition outcome of if and while nodes.
type HandlerResult struct {
	Output      any
	BindOutput  bool
	Branch      *bool
	Diagnostics []string
}

// HandlerFunc executes one node.
type HandlerFunc func(ctx context.Context, req *HandlerRequest) (*HandlerResult, error)

// Handler pairs a handler function with its execution traits.
type Handler struct {
	Fn HandlerFunc

	// Interactive handlers block on user input; the scheduler suspends the
	// run around them.
	Interactive bool

	// RawParamKeys names parameters excluded from template resolution
	// because the handler interprets them itself (conditions, expression
	// bodies, jq programs).
	RawParamKeys []string
}

// Registry maps node types to handlers. The set is closed at wiring time;
// running a workflow whose type has no handler is a handler error.
type Registry struct {
	mu       sync.RWMutex
	handlers map[schema.NodeType]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[schema.NodeType]Handler)}
}

// Register binds a handler to a node type, replacing any previous binding.
func (r *Registry) Register(t schema.NodeType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = h
}

// Get returns the handler for a node type.
func (r *Registry) Get(t schema.NodeType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[t]
	return h, ok
}

// Types returns every registered node type.
func (r *Registry) Types() []schema.NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]schema.NodeType, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	return out
}
