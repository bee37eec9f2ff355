// Package worker implements the execution worker loop: dequeue a request,
// drive the privately owned client, enqueue the tagged result. The same loop
// runs inside a goroutine on the in-process substrate and inside the agent
// binary on the process substrate.
package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kpeterse/crew/internal/substrate"
	"github.com/kpeterse/crew/internal/work"
)

// DefaultPollInterval bounds the dequeue wait so the shutdown signal is
// re-checked periodically even when no work arrives.
const DefaultPollInterval = time.Second

// Config parameterizes one worker.
type Config struct {
	// ID identifies the worker in logs.
	ID string

	// Factory constructs the worker's client. It is called exactly once,
	// after the worker has started, so client resources are created inside
	// the worker's own execution context.
	Factory work.Factory

	// PollInterval overrides DefaultPollInterval when positive.
	PollInterval time.Duration

	Logger *slog.Logger
}

// Run executes the worker loop until stop is set. A failing client call is
// reported as a failure response, never retried, and never terminates the
// loop; only a factory error or the shutdown signal ends the worker. Exit is
// not preemptive: the current dequeue/execute cycle finishes first.
func Run(cfg Config, in substrate.Queue[work.Request], out substrate.Queue[work.Response], stop substrate.Signal) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	logger.Info("worker starting", "worker_id", cfg.ID)

	client, err := cfg.Factory()
	if err != nil {
		logger.Error("construct client", "worker_id", cfg.ID, "error", err)
		return fmt.Errorf("construct client: %w", err)
	}
	if c, ok := client.(io.Closer); ok {
		defer c.Close()
	}

	ctx := context.Background()

	for !stop.IsSet() {
		req, ok := in.Get(poll)
		if !ok {
			continue
		}
		// Discard empty items rather than bothering the client with them.
		if req.Payload == nil && !req.Tracked {
			continue
		}

		resp := execute(ctx, client, req)
		if resp.IsFailure {
			logger.Warn("request failed", "worker_id", cfg.ID, "work_id", uint64(req.WorkID), "error", resp.Err)
		} else {
			logger.Debug("request executed", "worker_id", cfg.ID, "work_id", uint64(req.WorkID))
		}
		out.Put(resp)
	}

	logger.Info("worker shutting down", "worker_id", cfg.ID)
	return nil
}

// execute invokes the client once, converting an error or panic into a
// failure response so a bad request can never take the worker down.
func execute(ctx context.Context, client work.Client, req work.Request) (resp work.Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = work.Failure(req, fmt.Errorf("client panic: %v", r))
		}
	}()

	result, err := client.Execute(ctx, req.Payload)
	if err != nil {
		return work.Failure(req, err)
	}
	return work.Success(req, result)
}
