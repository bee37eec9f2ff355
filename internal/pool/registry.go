package pool

import (
	"sync"

	"github.com/kpeterse/crew/internal/work"
)

// pendingRegistry maps correlation tokens to unresolved futures. Only the
// façade inserts and only the delivery manager removes; the lock covers the
// remaining insert-vs-lookup races since goroutines do not serialize map
// access implicitly.
type pendingRegistry struct {
	mu      sync.Mutex
	futures map[work.Token]*Future
}

func newPendingRegistry() *pendingRegistry {
	return &pendingRegistry{
		futures: make(map[work.Token]*Future),
	}
}

func (r *pendingRegistry) put(token work.Token, f *Future) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.futures[token] = f
}

// take removes and returns the future registered under token, if any.
func (r *pendingRegistry) take(token work.Token) (*Future, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.futures[token]
	if ok {
		delete(r.futures, token)
	}
	return f, ok
}

func (r *pendingRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.futures)
}
