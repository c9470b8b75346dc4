// Command relay is the Network Next relay data-plane daemon: it binds one
// external UDP address, forwards the closed packet-type vocabulary spec.md
// describes between clients, peer relays and game servers, and reports
// aggregated stats to the backend on a slow cadence.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/networknext/relay/internal/config"
	"github.com/networknext/relay/internal/logging"
	"github.com/networknext/relay/internal/relay"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code: 0 on a clean shutdown, 1 on any
// initialisation failure, matching spec.md §6's exit-code contract.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "relay: configuration error:", err)
		return 1
	}

	log, err := logging.New(cfg.LogFile, os.Getenv("RELAY_DEBUG") != "")
	if err != nil {
		fmt.Fprintln(os.Stderr, "relay: failed to open log file:", err)
		return 1
	}

	log.Info("starting relay",
		"instance_id", cfg.InstanceID,
		"address", cfg.RelayAddress.String(),
		"processor_count", cfg.ProcessorCount,
		"backend_hostname", cfg.BackendHostname,
	)

	r, err := relay.New(cfg, log)
	if err != nil {
		log.Error("failed to initialise relay", "error", err)
		return 1
	}
	defer r.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := r.Run(ctx); err != nil {
		log.Error("relay exited with error", "error", err)
		return 1
	}

	log.Info("relay shut down cleanly")
	return 0
}
