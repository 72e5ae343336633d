// Package registry implements the process-wide local function registry:
// a write-once-at-bootstrap, read-many map from name to in-process
// transform.
package registry

import (
	"context"
	"sync"

	"github.com/gearforge/gearforge/internal/errs"
)

// Fn is a locally dispatched transform: JSON-shaped input in, JSON-shaped
// output out. Functions must be pure or idempotent for retry safety; this
// is documented convention, not enforced by the registry.
type Fn func(ctx context.Context, input any) (any, error)

// Registry is a name -> Fn map, safe for concurrent lookup. Mutation is
// expected only at process bootstrap.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Fn
}

// New returns an empty registry. Use NewSeeded (or register built-ins
// yourself) before serving traffic.
func New() *Registry {
	return &Registry{funcs: make(map[string]Fn)}
}

// Register adds or overwrites the function bound to name. Overwriting is
// silent; callers that care about collisions must check Lookup first.
func (r *Registry) Register(name string, fn Fn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Lookup returns the function bound to name, or a LocalFnMissing error.
func (r *Registry) Lookup(name string) (Fn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	if !ok {
		return nil, errs.New(errs.LocalFnMissing, "no local function registered: "+name)
	}
	return fn, nil
}

// NewSeeded returns a Registry pre-populated with the built-in functions
// (echoGear and the pluggable outlets). Most callers should use this
// rather than New, which starts empty.
func NewSeeded(invalidator PathInvalidator, putter BlobPutter) *Registry {
	r := New()
	r.Register("echoGear", EchoGear)
	r.Register("revalidate", Revalidate(invalidator))
	r.Register("uploadBlob", UploadBlob(putter))
	return r
}
