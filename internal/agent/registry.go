package agent

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kpeterse/crew/internal/work"
)

// Constructor builds a client from opaque JSON configuration. The agent
// binary identifies clients by name because a factory function cannot cross
// the process isolation boundary.
type Constructor func(cfg json.RawMessage) (work.Client, error)

// Registry maps client names to constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates an empty client registry.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
	}
}

// Register adds a constructor under the given name.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = ctor
}

// Resolve returns the constructor registered under name.
func (r *Registry) Resolve(name string) (Constructor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ctor, ok := r.constructors[name]
	if !ok {
		return nil, fmt.Errorf("client %q is not registered (have: %s)", name, strings.Join(r.names(), ", "))
	}
	return ctor, nil
}

// Factory resolves name and curries the configuration into a work.Factory.
func (r *Registry) Factory(name string, cfg json.RawMessage) (work.Factory, error) {
	ctor, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return func() (work.Client, error) {
		return ctor(cfg)
	}, nil
}

// Names returns the registered client names, sorted for stable output.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with the built-in demo clients.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ClientEcho, NewEchoClient)
	r.Register(ClientSleep, NewSleepClient)
	return r
}
