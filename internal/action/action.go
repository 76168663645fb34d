// Package action defines the invocable step implementations and the
// name-based registry the scheduler resolves them from. Registration is an
// explicit startup step performed by the command wiring, not an import-time
// side effect.
package action

import (
	"context"
	"fmt"
	"sync"

	"github.com/stepline-org/stepline/internal/errs"
)

// Action is a named step implementation invoked with a parameter mapping.
type Action interface {
	Run(ctx context.Context, params Params) error
}

// Func adapts a plain function to the Action interface.
type Func func(ctx context.Context, params Params) error

// Run implements Action.
func (f Func) Run(ctx context.Context, params Params) error {
	return f(ctx, params)
}

// Registry maps action names to implementations.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// Register adds an action under the given name, replacing any previous
// registration.
func (r *Registry) Register(name string, act Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = act
}

// Resolve returns the action registered under the given name. An unknown
// name is a configuration error.
func (r *Registry) Resolve(name string) (Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	act, ok := r.actions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrActionNotFound, name)
	}
	return act, nil
}

// Names returns the registered action names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	return names
}

// Builtin returns a registry with all builtin actions registered.
func Builtin() *Registry {
	reg := NewRegistry()
	reg.Register("command", &commandAction{})
	reg.Register("http", newHTTPAction())
	reg.Register("filesystem", &filesystemAction{})
	reg.Register("print", &printAction{})
	return reg
}
