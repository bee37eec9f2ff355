package pool_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kpeterse/crew/internal/deadletter"
	"github.com/kpeterse/crew/internal/pool"
	"github.com/kpeterse/crew/internal/substrate"
	"github.com/kpeterse/crew/internal/work"
)

// doubler doubles integer payloads and fails on -1, counting invocations.
type doubler struct {
	calls atomic.Int64
}

func (d *doubler) Execute(_ context.Context, req any) (any, error) {
	d.calls.Add(1)
	n, ok := req.(int)
	if !ok {
		return req, nil
	}
	if n == -1 {
		return nil, errors.New("refused payload -1")
	}
	return n * 2, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestPool(t *testing.T, cfg pool.Config) *pool.Pool {
	t.Helper()

	if cfg.Substrate == nil {
		cfg.Substrate = substrate.NewGoroutine()
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}

	p, err := pool.New(cfg)
	if err != nil {
		t.Fatalf("pool.New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})
	return p
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestPoolDeliversEachResultToItsSubmitter(t *testing.T) {
	client := &doubler{}
	p := newTestPool(t, pool.Config{
		Factory: func() (work.Client, error) { return client, nil },
		Count:   3,
	})

	payloads := []int{5, 7, 9}
	futures := make([]*pool.Future, len(payloads))
	for i, n := range payloads {
		fut, err := p.Execute(n)
		if err != nil {
			t.Fatalf("Execute(%d): %v", n, err)
		}
		futures[i] = fut
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i, fut := range futures {
		got, err := fut.Wait(ctx)
		if err != nil {
			t.Fatalf("Wait for payload %d: %v", payloads[i], err)
		}
		if got != payloads[i]*2 {
			t.Errorf("result for %d = %v, want %d", payloads[i], got, payloads[i]*2)
		}
	}
}

func TestPoolFailureResolvesFutureAndPoolSurvives(t *testing.T) {
	client := &doubler{}
	p := newTestPool(t, pool.Config{
		Factory: func() (work.Client, error) { return client, nil },
		Count:   2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fut, err := p.Execute(-1)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := fut.Wait(ctx); err == nil {
		t.Fatal("failed request resolved without error")
	}

	// The failure must not take the pool down.
	fut2, err := p.Execute(10)
	if err != nil {
		t.Fatalf("Execute after failure: %v", err)
	}
	got, err := fut2.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait after failure: %v", err)
	}
	if got != 20 {
		t.Errorf("result = %v, want 20", got)
	}
}

func TestPoolExecuteSilently(t *testing.T) {
	client := &doubler{}
	p := newTestPool(t, pool.Config{
		Factory: func() (work.Client, error) { return client, nil },
		Count:   1,
	})

	if err := p.ExecuteSilently(3); err != nil {
		t.Fatalf("ExecuteSilently: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return client.calls.Load() == 1
	}, "silent request was never executed")

	if n := p.Stats().PendingFutures; n != 0 {
		t.Errorf("pending futures = %d, want 0 for a silent submission", n)
	}
}

func TestPoolManyConcurrentSubmissions(t *testing.T) {
	const n = 100

	client := &doubler{}
	p := newTestPool(t, pool.Config{
		Factory: func() (work.Client, error) { return client, nil },
		Count:   4,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			fut, err := p.Execute(v)
			if err != nil {
				errs <- err
				return
			}
			got, err := fut.Wait(ctx)
			if err != nil {
				errs <- err
				return
			}
			if got != v*2 {
				errs <- fmt.Errorf("result for %d = %v, want %d", v, got, v*2)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return p.Stats().PendingFutures == 0
	}, "pending futures did not drain")
}

func TestPoolShutdownIsIdempotent(t *testing.T) {
	client := &doubler{}
	p, err := pool.New(pool.Config{
		Substrate:    substrate.NewGoroutine(),
		Factory:      func() (work.Client, error) { return client, nil },
		Count:        2,
		PollInterval: 10 * time.Millisecond,
		Logger:       discardLogger(),
	})
	if err != nil {
		t.Fatalf("pool.New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}

	if _, err := p.Execute(1); !errors.Is(err, pool.ErrPoolClosed) {
		t.Errorf("Execute after shutdown = %v, want ErrPoolClosed", err)
	}
	if err := p.ExecuteSilently(1); !errors.Is(err, pool.ErrPoolClosed) {
		t.Errorf("ExecuteSilently after shutdown = %v, want ErrPoolClosed", err)
	}
}

func TestPoolStats(t *testing.T) {
	client := &doubler{}
	p := newTestPool(t, pool.Config{
		Factory: func() (work.Client, error) { return client, nil },
		Count:   3,
	})

	stats := p.Stats()
	if stats.PoolID == "" || stats.PoolID != p.ID() {
		t.Errorf("PoolID = %q, want the pool's id %q", stats.PoolID, p.ID())
	}
	if stats.Substrate != substrate.NameGoroutine {
		t.Errorf("Substrate = %q, want %q", stats.Substrate, substrate.NameGoroutine)
	}
	if stats.Workers != 3 {
		t.Errorf("Workers = %d, want 3", stats.Workers)
	}
}

func TestPoolRecordsUntrackedDrops(t *testing.T) {
	store, err := deadletter.Open(filepath.Join(t.TempDir(), "deadletters.db"))
	if err != nil {
		t.Fatalf("deadletter.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	client := &doubler{}
	p := newTestPool(t, pool.Config{
		Factory:     func() (work.Client, error) { return client, nil },
		Count:       1,
		DeadLetters: store,
	})

	if err := p.ExecuteSilently(-1); err != nil {
		t.Fatalf("ExecuteSilently: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		_, total, err := store.List(context.Background(), 10, 0)
		return err == nil && total == 1
	}, "dropped response was never recorded")

	entries, _, err := store.List(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	e := entries[0]
	if e.Tracked {
		t.Error("recorded entry is marked tracked")
	}
	if !e.IsFailure || e.Failure == "" {
		t.Errorf("entry = %+v, want the failure cause recorded", e)
	}
	if e.Reason != "untracked" {
		t.Errorf("reason = %q, want %q", e.Reason, "untracked")
	}
}

func TestPoolRequiresSubstrate(t *testing.T) {
	if _, err := pool.New(pool.Config{}); err == nil {
		t.Fatal("pool.New accepted a config without a substrate")
	}
}
