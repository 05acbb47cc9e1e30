package engine

import (
	"sort"
	"sync"

	"github.com/ArcetriAdaptiveOptics/SpecuLab/errors"
)

// Entry is a registered step function with its declarations.
type Entry struct {
	// Name is the registry key.
	Name string
	// Description documents the step for catalogs and UIs.
	Description string
	// AcceptsPreview declares the privileged preview parameter: the
	// Runner injects its preview-mode flag under PreviewParam.
	AcceptsPreview bool

	fn any
}

// Func returns the registered step function.
func (e *Entry) Func() any { return e.fn }

// RegisterOption configures a registration.
type RegisterOption func(*Entry)

// WithPreview declares that the step accepts the reserved preview
// parameter.
func WithPreview() RegisterOption {
	return func(e *Entry) { e.AcceptsPreview = true }
}

// WithDescription attaches a human-readable description to the step.
func WithDescription(desc string) RegisterOption {
	return func(e *Entry) { e.Description = desc }
}

// Registry provides named step lookup for pipeline assembly. Collaborators
// register their step functions through this API; the engine never scans
// or loads foreign code.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds a step function under name. The function must have one of
// the four step shapes; unclassifiable values are rejected up front with a
// classification error. Re-registering a name replaces the previous entry.
func (r *Registry) Register(name string, fn any, opts ...RegisterOption) error {
	if name == "" {
		return errors.InvalidInput("step name must not be empty")
	}
	if _, err := Classify(fn); err != nil {
		return err
	}

	entry := &Entry{Name: name, fn: fn}
	for _, opt := range opts {
		opt(entry)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = entry
	return nil
}

// MustRegister is Register but panics on error. For package init blocks.
func (r *Registry) MustRegister(name string, fn any, opts ...RegisterOption) {
	if err := r.Register(name, fn, opts...); err != nil {
		panic(err)
	}
}

// Get retrieves a step entry by name.
func (r *Registry) Get(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// List returns sorted names of all registered steps.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
