package config

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/kpeterse/crew/internal/agent"
	"github.com/kpeterse/crew/internal/substrate"
)

const (
	defaultListenAddr = ":8080"
	defaultSubstrate  = substrate.NameProcess
	defaultWorkerBin  = "crew-worker"
	defaultClient     = agent.ClientEcho

	envListenAddr   = "CREW_LISTEN_ADDR"
	envLogLevel     = "CREW_LOG_LEVEL"
	envSubstrate    = "CREW_SUBSTRATE"
	envWorkerCount  = "CREW_WORKER_COUNT"
	envWorkerBin    = "CREW_WORKER_BIN"
	envClient       = "CREW_CLIENT"
	envClientConfig = "CREW_CLIENT_CONFIG"
	envDeadLetterDB = "CREW_DEADLETTER_DB"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr   string
	LogLevel     slog.Level
	Substrate    string
	WorkerCount  int // 0 means the pool default (available parallelism)
	WorkerBin    string
	Client       string
	ClientConfig json.RawMessage
	DeadLetterDB string // empty disables the dead-letter store
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr: defaultListenAddr,
		LogLevel:   slog.LevelInfo,
		Substrate:  defaultSubstrate,
		WorkerBin:  defaultWorkerBin,
		Client:     defaultClient,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envSubstrate); v != "" {
		cfg.Substrate = v
	}
	if v := os.Getenv(envWorkerCount); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WorkerCount = n
		}
	}
	if v := os.Getenv(envWorkerBin); v != "" {
		cfg.WorkerBin = v
	}
	if v := os.Getenv(envClient); v != "" {
		cfg.Client = v
	}
	if v := os.Getenv(envClientConfig); v != "" {
		cfg.ClientConfig = json.RawMessage(v)
	}
	if v := os.Getenv(envDeadLetterDB); v != "" {
		cfg.DeadLetterDB = v
	}

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
