package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/kpeterse/crew/internal/agent"
	"github.com/kpeterse/crew/internal/api"
	"github.com/kpeterse/crew/internal/config"
	"github.com/kpeterse/crew/internal/deadletter"
	"github.com/kpeterse/crew/internal/pool"
	"github.com/kpeterse/crew/internal/substrate"
	"github.com/kpeterse/crew/internal/substrate/proc"
)

const poolShutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("crew: starting",
		"listen_addr", cfg.ListenAddr,
		"substrate", cfg.Substrate,
		"client", cfg.Client,
	)

	var dl *deadletter.Store
	if cfg.DeadLetterDB != "" {
		var err error
		dl, err = deadletter.Open(cfg.DeadLetterDB)
		if err != nil {
			log.Fatalf("failed to open dead-letter store: %v", err)
		}
		defer dl.Close()
	}

	reg := substrate.NewRegistry()
	reg.Register(substrate.NameGoroutine, substrate.NewGoroutine())
	reg.Register(substrate.NameProcess, proc.New(proc.Options{
		Command: cfg.WorkerBin,
		Logger:  logger,
	}))

	sub, err := reg.Resolve(cfg.Substrate)
	if err != nil {
		log.Fatalf("failed to resolve substrate: %v (have: %v)", err, reg.Names())
	}

	// The same named-client registry serves both substrates: the goroutine
	// substrate calls the constructor directly, the process substrate hands
	// the name to the agent binary.
	factory, err := agent.DefaultRegistry().Factory(cfg.Client, cfg.ClientConfig)
	if err != nil {
		log.Fatalf("failed to resolve client: %v", err)
	}

	p, err := pool.New(pool.Config{
		Substrate:    sub,
		Factory:      factory,
		ClientName:   cfg.Client,
		ClientConfig: cfg.ClientConfig,
		Count:        cfg.WorkerCount,
		DeadLetters:  dl,
		Logger:       logger,
	})
	if err != nil {
		log.Fatalf("failed to start pool: %v", err)
	}

	srv := api.NewServer(cfg.ListenAddr, p, dl, logger)
	runErr := srv.Run()

	ctx, cancel := context.WithTimeout(context.Background(), poolShutdownTimeout)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		logger.Error("pool shutdown", "error", err)
	}

	if runErr != nil {
		log.Fatalf("server error: %v", runErr)
	}
}
