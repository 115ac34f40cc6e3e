// ABOUTME: Registry for the gateway's callable tools.
// ABOUTME: Manages registration, lookup by name, and listing in registration order.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/2389/compass-gateway/internal/auth"
	"github.com/2389/compass-gateway/internal/tenant"
)

// ErrToolCollision indicates a tool name is already registered.
var ErrToolCollision = errors.New("tool name collision")

// ErrToolNotFound indicates the requested tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// Invocation carries everything a tool handler needs for one call.
// Tenant is nil for tools registered with NeedsTenant false.
type Invocation struct {
	Principal *auth.Principal
	Token     string
	Tenant    *tenant.Context
	Args      json.RawMessage
}

// Handler executes a tool call. The returned value is marshaled to JSON
// unless it is already a string or json.RawMessage.
type Handler func(ctx context.Context, inv *Invocation) (any, error)

// Tool is a callable tool definition plus its handler.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	NeedsTenant bool
	Handler     Handler
}

// Registry holds the registered tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool. Returns ErrToolCollision if the name is taken.
func (r *Registry) Register(t *Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolCollision, t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Get returns the tool with the given name, or nil.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// List returns all tools in registration order.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*Tool, len(r.order))
	for i, name := range r.order {
		list[i] = r.tools[name]
	}
	return list
}
