package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kpeterse/crew/internal/deadletter"
	"github.com/kpeterse/crew/internal/pool"
	"github.com/kpeterse/crew/internal/substrate"
	"github.com/kpeterse/crew/internal/work"
)

// doublingClient doubles numeric payloads and fails on -1, mirroring what a
// real protocol client would do with a bad request.
type doublingClient struct{}

func (doublingClient) Execute(_ context.Context, req any) (any, error) {
	if n, ok := req.(float64); ok {
		if n == -1 {
			return nil, errors.New("refused payload -1")
		}
		return n * 2, nil
	}
	return req, nil
}

func newTestServer(t *testing.T, dl *deadletter.Store) *Server {
	t.Helper()

	p, err := pool.New(pool.Config{
		Substrate:    substrate.NewGoroutine(),
		Factory:      func() (work.Client, error) { return doublingClient{}, nil },
		Count:        2,
		PollInterval: 10 * time.Millisecond,
		DeadLetters:  dl,
		Logger:       slog.New(slog.NewJSONHandler(io.Discard, nil)),
	})
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

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewServer(":0", p, dl, logger)
}

func TestPanicRecovery(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.Router().Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/panic")
	if err != nil {
		t.Fatalf("GET /panic: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t, nil)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	req, _ := http.NewRequest("OPTIONS", ts.URL+"/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS /healthz: %v", err)
	}
	defer resp.Body.Close()

	if v := resp.Header.Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", v, "*")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
