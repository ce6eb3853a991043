package expressions

import "encoding/json"

// Scope is the variable bag threaded through one workflow run.
//
// Top-level keys hold the trigger payload, user credentials and every step
// output stored via outputAs. Loop bindings are layered on with Push and
// removed by the returned pop function, restoring whatever they shadowed.
// A Scope belongs to a single run and is not safe for concurrent use.
type Scope struct {
	vars map[string]any
}

// NewScope creates a Scope seeded with a deep copy of initial.
func NewScope(initial map[string]any) *Scope {
	vars := deepCopyMap(initial)
	if vars == nil {
		vars = make(map[string]any)
	}
	return &Scope{vars: vars}
}

// Vars returns the live variable map used for resolution. Callers must not mutate it.
func (s *Scope) Vars() map[string]any {
	return s.vars
}

// Get returns a top-level variable.
func (s *Scope) Get(name string) (any, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Set stores a top-level variable, replacing any previous value.
func (s *Scope) Set(name string, value any) {
	s.vars[name] = value
}

// Resolve resolves value against the scope's current variables.
func (s *Scope) Resolve(value any) any {
	return Resolve(value, s.vars)
}

// Push binds names for the duration of a nested block. The returned func
// restores the previous bindings and must be called exactly once.
func (s *Scope) Push(bindings map[string]any) (pop func()) {
	type saved struct {
		value  any
		exists bool
	}
	prev := make(map[string]saved, len(bindings))
	for name, v := range bindings {
		old, ok := s.vars[name]
		prev[name] = saved{value: old, exists: ok}
		s.vars[name] = v
	}
	return func() {
		for name, p := range prev {
			if p.exists {
				s.vars[name] = p.value
			} else {
				delete(s.vars, name)
			}
		}
	}
}

// Snapshot returns a deep copy of the current variables.
func (s *Scope) Snapshot() map[string]any {
	return deepCopyMap(s.vars)
}

// --- Deep copy utilities ---

// deepCopyMap creates a deep copy of a map[string]any.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = DeepCopy(v)
	}
	return cp
}

// DeepCopy recursively copies maps and slices of JSON-like values.
// Scalars are returned as-is.
func DeepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cp := make([]any, len(val))
		for i, item := range val {
			cp[i] = DeepCopy(item)
		}
		return cp
	case map[string]string:
		cp := make(map[string]string, len(val))
		for k, s := range val {
			cp[k] = s
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
