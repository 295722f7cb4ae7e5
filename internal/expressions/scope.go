package expressions

import "encoding/json"

// Scope is the flat variable map of a single workflow run. Handlers read and
// write it between steps; event triggers seed it with reserved variables.
// Values are deep-copied on write so later mutations of caller-held maps and
// slices cannot alter what a previous step recorded.
type Scope struct {
	vars map[string]any
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{vars: make(map[string]any)}
}

// NewScopeFrom creates a scope seeded with the given variables.
func NewScopeFrom(seed map[string]any) *Scope {
	s := NewScope()
	for k, v := range seed {
		s.Set(k, v)
	}
	return s
}

// Get returns the value bound to name and whether it exists.
func (s *Scope) Get(name string) (any, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Set binds name to a deep copy of value. Rebinding an existing name
// replaces the previous value.
func (s *Scope) Set(name string, value any) {
	s.vars[name] = deepCopyAny(value)
}

// Delete removes a binding. Missing names are a no-op.
func (s *Scope) Delete(name string) {
	delete(s.vars, name)
}

// Snapshot returns a deep copy of all bindings, for history records and
// expression environments.
func (s *Scope) Snapshot() map[string]any {
	return deepCopyMap(s.vars)
}

// Len returns the number of bindings.
func (s *Scope) Len() int {
	return len(s.vars)
}

// deepCopyMap creates a deep copy of a map[string]any.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = deepCopyAny(v)
	}
	return cp
}

// deepCopyAny recursively deep-copies maps and slices. Primitives are value
// types and pass through unchanged.
func deepCopyAny(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cp := make([]any, len(val))
		for i, item := range val {
			cp[i] = deepCopyAny(item)
		}
		return cp
	case json.RawMessage:
		if val == nil {
			return nil
		}
		cp := make(json.RawMessage, len(val))
		copy(cp, val)
		return cp
	default:
		return v
	}
}
