package agent_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kpeterse/crew/internal/agent"
)

func TestEchoClientDoublesNumbers(t *testing.T) {
	client, err := agent.NewEchoClient(nil)
	if err != nil {
		t.Fatalf("NewEchoClient: %v", err)
	}

	tests := []struct {
		payload any
		want    any
	}{
		{5, float64(10)},
		{float64(7), float64(14)},
		{int64(9), float64(18)},
		{"hello", "hello"},
	}
	for _, tt := range tests {
		got, err := client.Execute(context.Background(), tt.payload)
		if err != nil {
			t.Errorf("Execute(%v): %v", tt.payload, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Execute(%v) = %v, want %v", tt.payload, got, tt.want)
		}
	}
}

func TestEchoClientRefusesMinusOne(t *testing.T) {
	client, _ := agent.NewEchoClient(nil)

	_, err := client.Execute(context.Background(), -1)
	if err == nil {
		t.Fatal("Execute(-1) succeeded")
	}
}

func TestSleepClientConfig(t *testing.T) {
	if _, err := agent.NewSleepClient([]byte(`{"delay_ms": -5}`)); err == nil {
		t.Error("negative delay accepted")
	}
	if _, err := agent.NewSleepClient([]byte(`{not json`)); err == nil {
		t.Error("malformed config accepted")
	}

	client, err := agent.NewSleepClient([]byte(`{"delay_ms": 0}`))
	if err != nil {
		t.Fatalf("NewSleepClient: %v", err)
	}
	got, err := client.Execute(context.Background(), "payload")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != "payload" {
		t.Errorf("Execute = %v, want the payload back", got)
	}
}

func TestSleepClientDelays(t *testing.T) {
	client, err := agent.NewSleepClient([]byte(`{"delay_ms": 50}`))
	if err != nil {
		t.Fatalf("NewSleepClient: %v", err)
	}

	start := time.Now()
	if _, err := client.Execute(context.Background(), 1); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Execute returned after %v, want at least ~50ms", elapsed)
	}
}

func TestRegistryResolveUnknown(t *testing.T) {
	reg := agent.DefaultRegistry()

	_, err := reg.Resolve("tcp")
	if err == nil {
		t.Fatal("Resolve of unregistered client succeeded")
	}
	if !strings.Contains(err.Error(), agent.ClientEcho) {
		t.Errorf("error %q does not list available clients", err)
	}
}

func TestRegistryFactoryCurriesConfig(t *testing.T) {
	reg := agent.DefaultRegistry()

	factory, err := reg.Factory(agent.ClientSleep, []byte(`{"delay_ms": 0}`))
	if err != nil {
		t.Fatalf("Factory: %v", err)
	}
	client, err := factory()
	if err != nil {
		t.Fatalf("factory call: %v", err)
	}
	if _, err := client.Execute(context.Background(), 1); err != nil {
		t.Errorf("Execute: %v", err)
	}

	if _, err := reg.Factory("tcp", nil); err == nil {
		t.Error("Factory for unregistered client succeeded")
	}
}

func TestRegistryNames(t *testing.T) {
	names := agent.DefaultRegistry().Names()
	if len(names) != 2 || names[0] != agent.ClientEcho || names[1] != agent.ClientSleep {
		t.Errorf("Names = %v, want [%s %s]", names, agent.ClientEcho, agent.ClientSleep)
	}
}
