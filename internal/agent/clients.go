package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kpeterse/crew/internal/work"
)

// Built-in client names.
const (
	ClientEcho  = "echo"
	ClientSleep = "sleep"
)

// echoClient doubles numeric payloads, refuses -1, and echoes everything
// else back unchanged.
type echoClient struct{}

// NewEchoClient constructs the echo demo client. It takes no configuration.
func NewEchoClient(json.RawMessage) (work.Client, error) {
	return echoClient{}, nil
}

func (echoClient) Execute(_ context.Context, req any) (any, error) {
	if n, ok := asNumber(req); ok {
		if n == -1 {
			return nil, fmt.Errorf("echo client refused payload -1")
		}
		return n * 2, nil
	}
	return req, nil
}

// sleepClientConfig configures the sleep client.
type sleepClientConfig struct {
	DelayMS int `json:"delay_ms"`
}

// sleepClient delays each request before echoing it, for saturation demos.
type sleepClient struct {
	delay time.Duration
}

// NewSleepClient constructs the sleep demo client.
// Config: {"delay_ms": N}, default 100.
func NewSleepClient(cfg json.RawMessage) (work.Client, error) {
	conf := sleepClientConfig{DelayMS: 100}
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &conf); err != nil {
			return nil, fmt.Errorf("sleep client config: %w", err)
		}
	}
	if conf.DelayMS < 0 {
		return nil, fmt.Errorf("sleep client config: delay_ms must be >= 0")
	}
	return sleepClient{delay: time.Duration(conf.DelayMS) * time.Millisecond}, nil
}

func (c sleepClient) Execute(_ context.Context, req any) (any, error) {
	time.Sleep(c.delay)
	return req, nil
}

// asNumber normalizes the numeric types a payload may arrive as; values that
// crossed the process boundary come back as float64 or json.Number.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
