// The crew-worker binary is one execution worker of the process substrate.
// It is launched by the host, receives work as length-prefixed JSON frames
// on stdin, and writes results to stdout; stderr carries its logs.
package main

import (
	"flag"
	"os"

	"github.com/kpeterse/crew/internal/agent"
	"github.com/kpeterse/crew/internal/config"
)

func main() {
	clientName := flag.String("client", agent.ClientEcho, "named client to construct")
	clientConfig := flag.String("client-config", "", "JSON configuration for the client")
	pollInterval := flag.Duration("poll-interval", 0, "dequeue wait between shutdown checks")
	flag.Parse()

	cfg := config.Load()
	logger := config.NewLogger(os.Stderr, cfg.LogLevel)

	err := agent.Run(agent.Config{
		WorkerID:     os.Getenv("CREW_WORKER_ID"),
		ClientName:   *clientName,
		ClientConfig: []byte(*clientConfig),
		PollInterval: *pollInterval,
		Logger:       logger,
	}, os.Stdin, os.Stdout)
	if err != nil {
		logger.Error("worker failed", "error", err)
		os.Exit(1)
	}
}
