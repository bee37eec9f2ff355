// Package agent implements the worker side of the process substrate: the
// runtime inside each crew-worker subprocess. It decodes request frames from
// stdin into a local queue, drives the shared worker loop against a client
// built from its named-constructor registry, and encodes response frames
// back onto stdout. Shutdown arrives as a shutdown frame or stdin EOF.
package agent

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kpeterse/crew/internal/substrate"
	"github.com/kpeterse/crew/internal/substrate/proc"
	"github.com/kpeterse/crew/internal/work"
	"github.com/kpeterse/crew/internal/worker"
)

// encoderPoll is how often the encoder re-checks for worker completion
// while the response queue is idle.
const encoderPoll = 50 * time.Millisecond

// Config parameterizes one agent run.
type Config struct {
	// WorkerID identifies this worker in logs.
	WorkerID string

	// ClientName selects a constructor from the registry.
	ClientName string

	// ClientConfig is handed to the constructor unchanged.
	ClientConfig []byte

	// Registry defaults to DefaultRegistry when nil.
	Registry *Registry

	// PollInterval is forwarded to the worker loop.
	PollInterval time.Duration

	Logger *slog.Logger
}

// Run executes one worker against the frame streams. It returns after the
// worker loop has terminated and all pending responses have been flushed.
func Run(cfg Config, stdin io.Reader, stdout io.Writer) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = DefaultRegistry()
	}

	ctor, err := reg.Resolve(cfg.ClientName)
	if err != nil {
		return err
	}

	in := substrate.NewQueue[work.Request]()
	out := substrate.NewQueue[work.Response]()
	stop := substrate.NewSignal()
	fw := &frameWriter{w: stdout}

	// The hello frame is sent from inside the factory so it reports actual
	// client readiness, not just process startup.
	factory := func() (work.Client, error) {
		client, err := ctor(cfg.ClientConfig)
		if err != nil {
			return nil, err
		}
		if err := fw.write(&proc.Frame{Type: proc.FrameTypeHello}); err != nil {
			return nil, fmt.Errorf("send hello: %w", err)
		}
		return client, nil
	}

	go decode(logger, stdin, in, out, stop)

	workerDone := make(chan struct{})
	encoderDone := make(chan struct{})
	go encode(logger, fw, out, workerDone, encoderDone)

	runErr := worker.Run(worker.Config{
		ID:           cfg.WorkerID,
		Factory:      factory,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	}, in, out, stop)

	close(workerDone)
	<-encoderDone

	return runErr
}

// decode moves request frames from stdin onto the local input queue and sets
// the shutdown signal when the host says so or the stream ends.
func decode(logger *slog.Logger, stdin io.Reader, in substrate.Queue[work.Request], out substrate.Queue[work.Response], stop substrate.Signal) {
	defer stop.Set()

	r := bufio.NewReader(stdin)
	for {
		frame, err := proc.ReadFrame(r)
		if err == io.EOF {
			return
		}
		if err != nil {
			logger.Error("read host frame", "error", err)
			return
		}

		switch frame.Type {
		case proc.FrameTypeRequest:
			if frame.Request == nil {
				continue
			}
			req, err := proc.DecodeRequest(frame.Request)
			if err != nil {
				logger.Warn("decode request frame", "work_id", frame.Request.WorkID, "error", err)
				bad := work.Request{WorkID: work.Token(frame.Request.WorkID), Tracked: frame.Request.Tracked}
				if bad.Tracked {
					out.Put(work.Failure(bad, err))
				}
				continue
			}
			in.Put(req)
		case proc.FrameTypeShutdown:
			logger.Info("shutdown frame received")
			return
		default:
			logger.Warn("unexpected frame from host", "type", frame.Type)
		}
	}
}

// encode flushes the response queue to stdout as frames, draining whatever
// remains after the worker loop has exited.
func encode(logger *slog.Logger, fw *frameWriter, out substrate.Queue[work.Response], workerDone <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		resp, ok := out.Get(encoderPoll)
		if !ok {
			select {
			case <-workerDone:
				if out.Len() == 0 {
					return
				}
			default:
			}
			continue
		}

		frame, err := proc.EncodeResponse(resp)
		if err != nil {
			logger.Warn("unserializable response", "work_id", resp.WorkID, "error", err)
			if !resp.Tracked {
				continue
			}
			frame, err = proc.EncodeResponse(work.Failure(
				work.Request{WorkID: resp.WorkID, Tracked: true},
				fmt.Errorf("serialize response: %w", err),
			))
			if err != nil {
				continue
			}
		}

		if err := fw.write(frame); err != nil {
			logger.Error("write response frame", "error", err)
			return
		}
	}
}

// frameWriter serializes frame writes from the encoder and the factory's
// hello onto one stream.
type frameWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (fw *frameWriter) write(f *proc.Frame) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return proc.WriteFrame(fw.w, f)
}
