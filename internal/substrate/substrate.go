// Package substrate abstracts the concurrency primitives the pool is built
// on: unbounded queues, a set-once shutdown signal, and worker spawning.
// Two implementations exist: goroutines sharing memory, and isolated
// subprocesses communicating over serialized frames. The substrate is
// selected once at pool construction and fixed for the pool's lifetime.
package substrate

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/kpeterse/crew/internal/work"
)

// Queue is an unbounded FIFO shared between producers and consumers.
// Put never blocks on capacity; backpressure is deliberately not provided.
type Queue[T any] interface {
	// Put appends an item.
	Put(item T)

	// Get removes and returns the oldest item, waiting up to timeout for one
	// to arrive. A non-positive timeout waits indefinitely. The second return
	// value is false when the wait expired with nothing to return.
	Get(timeout time.Duration) (T, bool)

	// Len reports the current number of queued items.
	Len() int
}

// Signal is a binary, idempotent, observable shutdown condition.
// Once set it is never unset.
type Signal interface {
	Set()
	IsSet() bool
}

// Handle tracks one spawned worker.
type Handle interface {
	// Join blocks until the worker has fully terminated or ctx expires.
	Join(ctx context.Context) error
}

// WorkerConfig describes one worker to spawn. Substrates consume the fields
// relevant to them: the goroutine substrate runs Run directly, while the
// process substrate launches its agent binary and identifies the client by
// ClientName/ClientConfig, since a Go function cannot cross a process
// boundary.
type WorkerConfig struct {
	// ID identifies the worker in logs.
	ID string

	// Run is the worker loop executed by in-process substrates.
	Run func(in Queue[work.Request], out Queue[work.Response], stop Signal)

	// ClientName names a client constructor in the agent's registry.
	ClientName string

	// ClientConfig is opaque JSON handed to the named constructor.
	ClientConfig json.RawMessage

	// PollInterval bounds the worker's dequeue wait so the shutdown signal
	// is observed even with no inbound work. Zero selects the default.
	PollInterval time.Duration

	Logger *slog.Logger
}

// Substrate is the primitive factory: matching queue, signal, and
// worker-spawn constructors for one concurrency model.
type Substrate interface {
	Name() string
	NewRequestQueue() Queue[work.Request]
	NewResponseQueue() Queue[work.Response]
	NewSignal() Signal

	// StartWorker spawns one worker consuming in and producing to out until
	// stop is set. Workers are started eagerly; the returned handle joins on
	// full termination.
	StartWorker(cfg WorkerConfig, in Queue[work.Request], out Queue[work.Response], stop Signal) (Handle, error)
}
