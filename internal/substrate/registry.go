package substrate

import (
	"fmt"
	"sort"
	"sync"
)

// Names of the built-in substrates.
const (
	NameGoroutine = "goroutine"
	NameProcess   = "process"
)

// ForInProcess maps the in-process construction flag to a substrate name.
func ForInProcess(inProcess bool) string {
	if inProcess {
		return NameGoroutine
	}
	return NameProcess
}

// Registry holds named substrates and resolves which one a pool is built on.
type Registry struct {
	mu         sync.RWMutex
	substrates map[string]Substrate
}

// NewRegistry creates an empty substrate registry.
func NewRegistry() *Registry {
	return &Registry{
		substrates: make(map[string]Substrate),
	}
}

// Register adds a substrate to the registry under the given name.
func (r *Registry) Register(name string, s Substrate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.substrates[name] = s
}

// Resolve returns the substrate registered under name.
func (r *Registry) Resolve(name string) (Substrate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.substrates[name]
	if !ok {
		return nil, fmt.Errorf("substrate %q is not registered", name)
	}
	return s, nil
}

// Names returns the registered substrate names, sorted for stable output.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.substrates))
	for name := range r.substrates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
