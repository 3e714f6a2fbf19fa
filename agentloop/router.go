package agentloop

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Capability is a named, independently invokable operation with a declared
// parameter schema. Execute may have arbitrary external effects; the router
// itself is side-effect-free beyond dispatch.
type Capability struct {
	Name        string                                                      `json:"name"`
	Description string                                                      `json:"description"`
	Parameters  map[string]any                                              `json:"parameters"`
	Execute     func(ctx context.Context, args map[string]any) (any, error) `json:"-"`
}

// ToolResult is the uniform envelope every dispatch produces. Exactly one of
// Result/Error is meaningful, gated by Success.
type ToolResult struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Router is the single source of truth mapping capability name to
// capability. Dependencies a capability needs (process managers, browser
// handles) are bound at registration time rather than held as package state.
type Router struct {
	caps map[string]Capability
	mu   sync.RWMutex
}

// NewRouter creates an empty Router and registers any given capabilities.
func NewRouter(caps ...Capability) *Router {
	r := &Router{caps: make(map[string]Capability)}
	for _, c := range caps {
		r.Register(c)
	}
	return r
}

// Register inserts or replaces a capability by name. Idempotent.
func (r *Router) Register(c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps[c.Name] = c
}

// Has reports whether a capability with the given name is registered.
func (r *Router) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.caps[name]
	return ok
}

// List returns the registered capabilities sorted by name, for introspection
// and for advertising the toolset to the model.
func (r *Router) List() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	caps := make([]Capability, 0, len(r.caps))
	for _, c := range r.caps {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i].Name < caps[j].Name })
	return caps
}

// Names returns the names of all registered capabilities, sorted.
func (r *Router) Names() []string {
	caps := r.List()
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = c.Name
	}
	return names
}

// Count returns the number of registered capabilities.
func (r *Router) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.caps)
}

// Dispatch looks up and invokes a capability, normalizing both success and
// failure into a ToolResult. An unknown name or a failing capability is a
// normal, non-fatal outcome reported back into the conversation; Dispatch
// never returns an error.
func (r *Router) Dispatch(ctx context.Context, name string, args map[string]any) (result ToolResult) {
	r.mu.RLock()
	c, ok := r.caps[name]
	r.mu.RUnlock()

	if !ok {
		return ToolResult{Success: false, Error: fmt.Sprintf("capability not found: %q", name)}
	}

	defer func() {
		if p := recover(); p != nil {
			result = ToolResult{Success: false, Error: fmt.Sprintf("capability %q panicked: %v", name, p)}
		}
	}()

	if args == nil {
		args = map[string]any{}
	}
	value, err := c.Execute(ctx, args)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}
	}
	return ToolResult{Success: true, Result: value}
}
