// Package proc implements the isolated-process substrate. Workers run as
// subprocesses of the host and exchange length-prefixed JSON frames over
// stdin/stdout, so every queued item pays a serialization cost but a crash
// in one worker cannot corrupt another's memory.
//
// The shared request/response queues live in the host process; per child, a
// feeder goroutine competitively pulls requests from the shared input queue
// onto the child's stdin, and a collector goroutine moves response frames
// from the child's stdout onto the shared output queue. The delivery manager
// never runs here — futures cannot cross the isolation boundary.
package proc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/kpeterse/crew/internal/substrate"
	"github.com/kpeterse/crew/internal/work"
)

// defaultPollInterval bounds the feeder's dequeue wait between shutdown
// checks.
const defaultPollInterval = 200 * time.Millisecond

// Options configures how worker subprocesses are launched.
type Options struct {
	// Command is the path to the worker agent binary.
	Command string

	// Args are placed before the client flags on the child command line.
	Args []string

	// Env entries are appended to the inherited environment.
	Env []string

	Logger *slog.Logger
}

// Substrate launches worker subprocesses speaking the frame protocol.
type Substrate struct {
	opts Options
}

// New creates the process substrate.
func New(opts Options) *Substrate {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Substrate{opts: opts}
}

func (s *Substrate) Name() string { return substrate.NameProcess }

func (s *Substrate) NewRequestQueue() substrate.Queue[work.Request] {
	return substrate.NewQueue[work.Request]()
}

func (s *Substrate) NewResponseQueue() substrate.Queue[work.Response] {
	return substrate.NewQueue[work.Response]()
}

func (s *Substrate) NewSignal() substrate.Signal {
	return substrate.NewSignal()
}

// StartWorker launches one agent subprocess and starts its pumps.
func (s *Substrate) StartWorker(cfg substrate.WorkerConfig, in substrate.Queue[work.Request], out substrate.Queue[work.Response], stop substrate.Signal) (substrate.Handle, error) {
	if s.opts.Command == "" {
		return nil, fmt.Errorf("process substrate requires a worker command")
	}
	if cfg.ClientName == "" {
		return nil, fmt.Errorf("process substrate requires a client name")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = s.opts.Logger
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	args := append([]string{}, s.opts.Args...)
	args = append(args, "--client", cfg.ClientName)
	if len(cfg.ClientConfig) > 0 {
		args = append(args, "--client-config", string(cfg.ClientConfig))
	}

	cmd := exec.Command(s.opts.Command, args...)
	cmd.Env = append(os.Environ(), s.opts.Env...)
	cmd.Env = append(cmd.Env, "CREW_WORKER_ID="+cfg.ID)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker process: %w", err)
	}

	logger.Info("worker process started", "worker_id", cfg.ID, "pid", cmd.Process.Pid)

	h := &processHandle{done: make(chan struct{})}
	collectorDone := make(chan struct{})
	stderrDone := make(chan struct{})

	go relayStderr(logger, cfg.ID, stderr, stderrDone)
	go collect(logger, cfg.ID, stdout, out, collectorDone)
	go feed(logger, cfg.ID, stdin, in, out, stop, collectorDone, poll)

	// Wait may only run after both read pipes have been drained.
	go func() {
		<-collectorDone
		<-stderrDone
		if err := cmd.Wait(); err != nil {
			h.err = fmt.Errorf("worker process %s: %w", cfg.ID, err)
		}
		close(h.done)
	}()

	return h, nil
}

// feed pulls requests from the shared input queue and writes them to the
// child's stdin. On shutdown it sends one shutdown frame and closes the
// pipe; if the child disappears first, the request in hand is failed and the
// rest of the backlog is left for sibling workers.
func feed(logger *slog.Logger, workerID string, stdin io.WriteCloser, in substrate.Queue[work.Request], out substrate.Queue[work.Response], stop substrate.Signal, childGone <-chan struct{}, poll time.Duration) {
	defer stdin.Close()

	for {
		if stop.IsSet() {
			if err := WriteFrame(stdin, &Frame{Type: FrameTypeShutdown}); err != nil {
				logger.Debug("write shutdown frame", "worker_id", workerID, "error", err)
			}
			return
		}
		select {
		case <-childGone:
			return
		default:
		}

		req, ok := in.Get(poll)
		if !ok {
			continue
		}

		frame, err := EncodeRequest(req)
		if err != nil {
			logger.Warn("unserializable request", "worker_id", workerID, "work_id", req.WorkID, "error", err)
			if req.Tracked {
				out.Put(work.Failure(req, fmt.Errorf("serialize request: %w", err)))
			}
			continue
		}

		if err := WriteFrame(stdin, frame); err != nil {
			logger.Error("write request frame", "worker_id", workerID, "error", err)
			if req.Tracked {
				out.Put(work.Failure(req, fmt.Errorf("worker pipe: %w", err)))
			}
			return
		}
	}
}

// collect reads frames from the child's stdout and moves responses onto the
// shared output queue until the stream ends.
func collect(logger *slog.Logger, workerID string, stdout io.Reader, out substrate.Queue[work.Response], done chan<- struct{}) {
	defer close(done)

	r := bufio.NewReader(stdout)
	for {
		frame, err := ReadFrame(r)
		if err == io.EOF {
			return
		}
		if err != nil {
			// A corrupt frame desynchronizes the stream; stop reading.
			logger.Error("read worker frame", "worker_id", workerID, "error", err)
			return
		}

		switch frame.Type {
		case FrameTypeHello:
			logger.Info("worker ready", "worker_id", workerID)
		case FrameTypeResponse:
			if frame.Response == nil {
				logger.Warn("response frame without body", "worker_id", workerID)
				continue
			}
			resp, err := DecodeResponse(frame.Response)
			if err != nil {
				logger.Warn("decode response frame", "worker_id", workerID, "error", err)
				continue
			}
			out.Put(resp)
		default:
			logger.Warn("unexpected frame from worker", "worker_id", workerID, "type", frame.Type)
		}
	}
}

// relayStderr forwards the child's stderr lines into the host logger.
func relayStderr(logger *slog.Logger, workerID string, stderr io.Reader, done chan<- struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		logger.Debug("worker output", "worker_id", workerID, "line", scanner.Text())
	}
}

type processHandle struct {
	done chan struct{}
	err  error
}

func (h *processHandle) Join(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
