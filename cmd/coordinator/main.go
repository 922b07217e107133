// Command coordinator runs the distributed passphrase-recovery coordinator:
// the candidate store, lease manager, terminal latch, stats cache,
// liveness registry, and authenticated request surface from spec.md §2.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/vaultcrack/recoverd/internal/api"
	"github.com/vaultcrack/recoverd/internal/auth"
	"github.com/vaultcrack/recoverd/internal/config"
	"github.com/vaultcrack/recoverd/internal/latch"
	"github.com/vaultcrack/recoverd/internal/liveness"
	"github.com/vaultcrack/recoverd/internal/logging"
	"github.com/vaultcrack/recoverd/internal/metrics"
	"github.com/vaultcrack/recoverd/internal/startuptime"
	"github.com/vaultcrack/recoverd/internal/statscache"
	"github.com/vaultcrack/recoverd/internal/store"
	"github.com/vaultcrack/recoverd/internal/sweeper"
	"github.com/vaultcrack/recoverd/internal/walletdesc"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadCoordinator()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log := logging.New("coordinator", logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.WithFields(map[string]interface{}{
		"db_name": cfg.DBName,
		"host":    cfg.Host,
		"port":    cfg.Port,
	}).Info("starting coordinator")

	desc, err := walletdesc.Load(cfg.WalletDescriptorPath)
	if err != nil {
		return fmt.Errorf("load wallet descriptor: %w", err)
	}

	st, err := store.Open(cfg.DBName)
	if err != nil {
		return fmt.Errorf("open candidate store: %w", err)
	}
	defer st.Close()

	lt, err := latch.Open(cfg.FoundMarkerPath)
	if err != nil {
		return fmt.Errorf("open terminal latch: %w", err)
	}

	startedAt, err := startuptime.Load(cfg.StartupTimePath)
	if err != nil {
		return fmt.Errorf("load startup time: %w", err)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		log.WithFields(map[string]interface{}{"addr": cfg.RedisAddr}).Info("stats cache write-through to redis enabled")
	}

	sw, err := sweeper.New(st, cfg.SweepIntervalMinutes, log)
	if err != nil {
		return fmt.Errorf("build sweeper: %w", err)
	}
	sw.Start()
	defer sw.Stop()

	server := api.New(api.Config{
		Store:         st,
		Latch:         lt,
		Liveness:      liveness.New(),
		Stats:         statscache.New(redisClient, cfg.DBName),
		Sweeper:       sw,
		Auth:          auth.New(cfg.APIToken),
		Metrics:       metrics.New(),
		Descriptor:    desc,
		Logger:        log,
		DBName:        cfg.DBName,
		ResetAllowed:  cfg.ResetAllowed(),
		StartedAt:     startedAt,
		DashboardHTML: api.DashboardHTML,
	})

	mux := http.NewServeMux()
	mux.Handle("/", server.Routes())
	mux.Handle("/metrics", metrics.Handler())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithFields(map[string]interface{}{"addr": httpServer.Addr}).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen and serve: %w", err)
		}
	case <-sigCh:
		log.Info("shutdown signal received")
	}

	// A second signal forces an immediate exit (spec.md §7's only other
	// fatal path besides a missing store at startup).
	go func() {
		<-sigCh
		log.Warn("second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("coordinator stopped")
	return nil
}
