package analysis

import (
	"fmt"
	"slices"
	"sync"
)

// Registry indexes analyzers by name and by supported task type. The
// registry is shared across concurrent incident runs: reads dominate, writes
// happen at startup or when plugins come and go.
type Registry struct {
	mu        sync.RWMutex
	analyzers map[string]Analyzer
	byType    map[TaskType][]string // registration order per type
}

// NewRegistry creates an empty analyzer registry.
func NewRegistry() *Registry {
	return &Registry{
		analyzers: make(map[string]Analyzer),
		byType:    make(map[TaskType][]string),
	}
}

// Register adds an analyzer, keyed by its Name. Registering the same name
// again replaces the instance without duplicating its type-list entries, so
// selection order stays stable across re-registration.
func (r *Registry) Register(a Analyzer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := a.Name()
	r.analyzers[name] = a

	for _, t := range a.TaskTypes() {
		if !slices.Contains(r.byType[t], name) {
			r.byType[t] = append(r.byType[t], name)
		}
	}
}

// Unregister removes the named analyzer from every index. Unknown names are
// a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.analyzers[name]
	if !ok {
		return
	}
	delete(r.analyzers, name)

	for _, t := range a.TaskTypes() {
		r.byType[t] = slices.DeleteFunc(r.byType[t], func(n string) bool {
			return n == name
		})
	}
}

// Select returns the analyzers that declare the task's type and whose
// CanHandle precondition passes, in registration order (first registered is
// preferred; there is no other tie-break). An unknown task type yields an
// empty slice, not an error.
func (r *Registry) Select(task *Task) []Analyzer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.byType[task.Type]
	out := make([]Analyzer, 0, len(names))
	for _, name := range names {
		a, ok := r.analyzers[name]
		if ok && a.CanHandle(task) {
			out = append(out, a)
		}
	}
	return out
}

// Get retrieves an analyzer by name.
func (r *Registry) Get(name string) (Analyzer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.analyzers[name]
	return a, ok
}

// All returns every registered analyzer name in no particular order.
func (r *Registry) All() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.analyzers))
	for name := range r.analyzers {
		out = append(out, name)
	}
	return out
}

// SupportedTaskTypes returns the task types with at least one registered
// analyzer.
func (r *Registry) SupportedTaskTypes() []TaskType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TaskType, 0, len(r.byType))
	for t, names := range r.byType {
		if len(names) > 0 {
			out = append(out, t)
		}
	}
	return out
}

// Validate gates dynamically supplied analyzers before registration. The
// compiler enforces the method set; what remains to check at runtime is that
// the value is usable: non-nil, non-empty name, and declared task types
// within the closed type set.
func (r *Registry) Validate(a Analyzer) error {
	if a == nil {
		return fmt.Errorf("analyzer is nil")
	}
	if a.Name() == "" {
		return fmt.Errorf("analyzer has an empty name")
	}
	types := a.TaskTypes()
	if len(types) == 0 {
		return fmt.Errorf("analyzer %q declares no task types", a.Name())
	}
	for _, t := range types {
		if !t.Valid() {
			return fmt.Errorf("analyzer %q declares unknown task type %q", a.Name(), t)
		}
	}
	return nil
}
