package work

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Definition binds a job to its trigger.
type Definition struct {
	Config JobConfig

	// Schedule is a six-field cron spec (with seconds) or a descriptor such as "@every 1s".
	Schedule string

	// StartupDelay, when positive, adds one extra run this long after the scheduler starts.
	StartupDelay time.Duration

	Runner Runner
}

// Registry holds all registered job definitions keyed by name.
type Registry struct {
	defs map[string]*Definition
	mu   sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds a definition. A definition with the same name is replaced.
func (r *Registry) Register(def *Definition) error {
	if def == nil {
		return fmt.Errorf("nil job definition")
	}
	if err := def.Config.Validate(); err != nil {
		return err
	}
	if def.Schedule == "" {
		return fmt.Errorf("job %s: schedule is required", def.Config.Name)
	}
	if def.Runner == nil {
		return fmt.Errorf("job %s: runner is required", def.Config.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Config.Name] = def
	return nil
}

// Get returns a definition by name, or nil if not found.
func (r *Registry) Get(name string) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defs[name]
}

// Has returns true if a job with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.defs[name]
	return ok
}

// Count returns the number of registered jobs.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Names returns all registered job names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the definitions ordered by name.
func (r *Registry) All() []*Definition {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Definition, 0, len(names))
	for _, name := range names {
		if def, ok := r.defs[name]; ok {
			out = append(out, def)
		}
	}
	return out
}
