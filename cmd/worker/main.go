// Command worker runs a single worker process implementing the Worker
// Control Loop from spec.md §4.6: lease a batch from the coordinator, fan
// it out across local execution units, report the result, and repeat.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vaultcrack/recoverd/internal/config"
	"github.com/vaultcrack/recoverd/internal/coordclient"
	"github.com/vaultcrack/recoverd/internal/logging"
	"github.com/vaultcrack/recoverd/internal/workerpool"
	"github.com/vaultcrack/recoverd/internal/workerrun"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWorker()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log := logging.New("worker", logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	cpuCount, err := workerpool.LogicalCPUCount()
	if err != nil {
		log.WithError(err).Warn("cpu discovery degraded, falling back to reported count")
	}
	scaledCPUCount := int(float64(cpuCount) * cfg.CPUUsageRatio)
	if scaledCPUCount <= 0 {
		scaledCPUCount = 1
	}

	log.WithFields(map[string]interface{}{
		"worker_id":    cfg.WorkerID,
		"server_url":   cfg.ServerURL,
		"cpu_count":    scaledCPUCount,
		"max_workers":  cfg.MaxWorkers,
	}).Info("starting worker")

	client := coordclient.New(cfg.ServerURL, cfg.APIToken)
	runner := workerrun.New(client, cfg.WorkerID, scaledCPUCount, cfg.MaxWorkers, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := runner.Loop(ctx); err != nil {
		return fmt.Errorf("worker loop: %w", err)
	}

	log.Info("worker stopped")
	return nil
}
