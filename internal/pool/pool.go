package pool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kpeterse/crew/internal/deadletter"
	"github.com/kpeterse/crew/internal/substrate"
	"github.com/kpeterse/crew/internal/work"
	"github.com/kpeterse/crew/internal/worker"
)

// ErrPoolClosed is returned by submissions that observe a shut-down pool.
// Detection is best-effort: a submission racing Shutdown may instead be
// accepted and never delivered (a documented precondition violation, not a
// guaranteed error).
var ErrPoolClosed = errors.New("pool is shut down")

// Config parameterizes pool construction.
type Config struct {
	// Substrate supplies the concurrency primitives (required). It is fixed
	// for the pool's lifetime.
	Substrate substrate.Substrate

	// Factory constructs each worker's client. Required by in-process
	// substrates; ignored by the process substrate, which builds clients
	// from ClientName inside the worker process.
	Factory work.Factory

	// ClientName and ClientConfig identify the client for substrates whose
	// workers cannot receive a Go function.
	ClientName   string
	ClientConfig json.RawMessage

	// Count is the number of workers; defaults to the host's available
	// parallel execution units.
	Count int

	// PollInterval bounds worker dequeue waits between shutdown checks.
	PollInterval time.Duration

	// DeadLetters, when non-nil, records responses the delivery manager
	// had to discard.
	DeadLetters *deadletter.Store

	Logger *slog.Logger
}

// Pool distributes opaque requests across a fixed set of workers and
// delivers each result back to the caller that submitted it via a Future.
// Submission never blocks on worker availability (the input queue buffers
// unboundedly) and completions of independently submitted requests carry
// no ordering guarantee.
type Pool struct {
	id     string
	sub    substrate.Substrate
	logger *slog.Logger

	in   substrate.Queue[work.Request]
	out  substrate.Queue[work.Response]
	stop substrate.Signal

	tokens  TokenGenerator
	pending *pendingRegistry

	workers     []substrate.Handle
	managerDone chan struct{}

	deadLetters *deadletter.Store

	closed       atomic.Bool
	shutdownOnce sync.Once
	shutdownDone chan struct{}
}

// New builds the pool and eagerly starts the delivery manager and all
// workers on the configured substrate.
func New(cfg Config) (*Pool, error) {
	if cfg.Substrate == nil {
		return nil, errors.New("pool requires a substrate")
	}

	count := cfg.Count
	if count <= 0 {
		count = runtime.NumCPU()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		id:           ulid.Make().String(),
		sub:          cfg.Substrate,
		logger:       logger,
		in:           cfg.Substrate.NewRequestQueue(),
		out:          cfg.Substrate.NewResponseQueue(),
		stop:         cfg.Substrate.NewSignal(),
		pending:      newPendingRegistry(),
		managerDone:  make(chan struct{}),
		deadLetters:  cfg.DeadLetters,
		shutdownDone: make(chan struct{}),
	}

	// Exactly one delivery manager, always in-process.
	go p.deliver()

	for i := 0; i < count; i++ {
		wcfg := substrate.WorkerConfig{
			ID:           ulid.Make().String(),
			ClientName:   cfg.ClientName,
			ClientConfig: cfg.ClientConfig,
			PollInterval: cfg.PollInterval,
			Logger:       logger,
		}
		if cfg.Factory != nil {
			workerID := wcfg.ID
			factory := cfg.Factory
			poll := cfg.PollInterval
			wcfg.Run = func(in substrate.Queue[work.Request], out substrate.Queue[work.Response], stop substrate.Signal) {
				_ = worker.Run(worker.Config{
					ID:           workerID,
					Factory:      factory,
					PollInterval: poll,
					Logger:       logger,
				}, in, out, stop)
			}
		}

		h, err := cfg.Substrate.StartWorker(wcfg, p.in, p.out, p.stop)
		if err != nil {
			startErr := fmt.Errorf("start worker %d: %w", i, err)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = p.Shutdown(ctx)
			return nil, startErr
		}
		p.workers = append(p.workers, h)
	}

	logger.Info("pool started",
		"pool_id", p.id,
		"substrate", cfg.Substrate.Name(),
		"workers", count,
	)

	return p, nil
}

// ID returns the pool's instance identifier.
func (p *Pool) ID() string {
	return p.id
}

// Execute submits a request and returns a future resolved, exactly once,
// with the outcome of a single client invocation on one worker. Submission
// is non-blocking; resolution happens asynchronously.
func (p *Pool) Execute(payload any) (*Future, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	token := p.tokens.Next()
	fut := newFuture()

	// Register before enqueuing so the token is pending by the time any
	// worker can respond.
	p.pending.put(token, fut)
	p.in.Put(work.NewRequest(token, payload))

	submissionsTotal.WithLabelValues(modeTracked).Inc()
	pendingFutures.Inc()

	return fut, nil
}

// ExecuteSilently submits a fire-and-forget request: no future is
// registered and the caller has no way to observe completion or failure.
func (p *Pool) ExecuteSilently(payload any) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	p.in.Put(work.NewSilentRequest(payload))
	submissionsTotal.WithLabelValues(modeSilent).Inc()
	return nil
}

// Shutdown sets the shutdown signal, wakes the delivery manager with a
// sentinel response, and waits for every worker and the manager to
// terminate or ctx to expire. It is idempotent: later calls wait on the
// same teardown. Requests still queued when the signal lands may be dropped
// with their futures never resolved.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() {
		p.closed.Store(true)
		p.logger.Info("pool shutting down", "pool_id", p.id)

		p.stop.Set()
		p.out.Put(work.SentinelResponse())

		go func() {
			defer close(p.shutdownDone)
			for _, h := range p.workers {
				if err := h.Join(context.Background()); err != nil {
					p.logger.Warn("worker terminated with error", "pool_id", p.id, "error", err)
				}
			}
			<-p.managerDone
			p.logger.Info("pool stopped", "pool_id", p.id)
		}()
	})

	select {
	case <-p.shutdownDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats is a point-in-time snapshot of pool state.
type Stats struct {
	PoolID           string `json:"pool_id"`
	Substrate        string `json:"substrate"`
	Workers          int    `json:"workers"`
	PendingFutures   int    `json:"pending_futures"`
	InputQueueDepth  int    `json:"input_queue_depth"`
	OutputQueueDepth int    `json:"output_queue_depth"`
}

// Stats reports current pool state for diagnostics.
func (p *Pool) Stats() Stats {
	return Stats{
		PoolID:           p.id,
		Substrate:        p.sub.Name(),
		Workers:          len(p.workers),
		PendingFutures:   p.pending.len(),
		InputQueueDepth:  p.in.Len(),
		OutputQueueDepth: p.out.Len(),
	}
}
