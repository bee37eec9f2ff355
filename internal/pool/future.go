package pool

import (
	"context"
	"errors"
	"sync"
)

// ErrUnresolved is returned by Result when the future has not resolved yet.
var ErrUnresolved = errors.New("future not yet resolved")

// Future is a handle to a result that is not available yet. It resolves
// exactly once, with either a success value or a failure cause, and callers
// distinguish the two via the error return alone — a failed request surfaces
// through the same interface shape as a successful one.
type Future struct {
	done chan struct{}

	mu       sync.Mutex
	resolved bool
	value    any
	err      error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Done returns a channel closed when the future resolves.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future resolves or ctx expires.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the resolved value or failure without blocking.
func (f *Future) Result() (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.resolved {
		return nil, ErrUnresolved
	}
	return f.value, f.err
}

// resolve settles the future at most once; it reports whether this call was
// the one that settled it.
func (f *Future) resolve(value any, err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolved {
		return false
	}
	f.resolved = true
	f.value = value
	f.err = err
	close(f.done)
	return true
}
