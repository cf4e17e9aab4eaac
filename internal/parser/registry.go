// Package parser implements the Parser Registry (§4.6): an immutable,
// process-local map from parser name to a pure extraction function.
package parser

import (
	"sync"

	"github.com/grishkovelli/asc/internal/apperrors"
	"github.com/grishkovelli/asc/internal/model"
)

// Func extracts structured data from a fetched response body. It must
// be pure: no network or store access, no shared mutable state.
type Func func(body string, job model.Job) (map[string]any, error)

// Registry is a process-local, write-once map from parser name to
// extraction function.
type Registry struct {
	mu     sync.RWMutex
	funcs  map[string]Func
	frozen bool
}

// New returns an empty Registry. Populate it with Register, then call
// Freeze before sharing it with workers.
func New() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register adds fn under name. Panics if called after Freeze, since
// that would violate the registry's immutable-after-initialization
// contract.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic("parser: Register called on a frozen registry")
	}
	r.funcs[name] = fn
}

// Freeze marks the registry read-only. Subsequent Register calls
// panic.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Get returns the named parser function, or UnknownParserError if no
// such name was registered.
func (r *Registry) Get(name string) (Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	if !ok {
		return nil, apperrors.NewUnknownParserError(name)
	}
	return fn, nil
}
