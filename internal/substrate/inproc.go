package substrate

import (
	"context"
	"errors"

	"github.com/kpeterse/crew/internal/work"
)

// goroutineSubstrate binds all primitives to the shared address space:
// in-memory queues, a channel-backed signal, and goroutine workers. Cheap,
// but limited to single-runtime parallelism with shared-fate failure.
type goroutineSubstrate struct{}

// NewGoroutine returns the in-process substrate.
func NewGoroutine() Substrate {
	return goroutineSubstrate{}
}

func (goroutineSubstrate) Name() string { return NameGoroutine }

func (goroutineSubstrate) NewRequestQueue() Queue[work.Request] {
	return NewQueue[work.Request]()
}

func (goroutineSubstrate) NewResponseQueue() Queue[work.Response] {
	return NewQueue[work.Response]()
}

func (goroutineSubstrate) NewSignal() Signal {
	return NewSignal()
}

func (goroutineSubstrate) StartWorker(cfg WorkerConfig, in Queue[work.Request], out Queue[work.Response], stop Signal) (Handle, error) {
	if cfg.Run == nil {
		return nil, errors.New("goroutine substrate requires a worker loop")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		cfg.Run(in, out, stop)
	}()

	return &goroutineHandle{done: done}, nil
}

type goroutineHandle struct {
	done chan struct{}
}

func (h *goroutineHandle) Join(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
