package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rbazzell/distributed-systems-project/internal/api"
	"github.com/rbazzell/distributed-systems-project/internal/config"
	"github.com/rbazzell/distributed-systems-project/internal/executor"
	"github.com/rbazzell/distributed-systems-project/internal/transport"
)

const registerInterval = 2 * time.Second

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel).With("worker_id", cfg.WorkerID)

	logger.Info("worker: starting",
		"listen_addr", cfg.ListenAddr,
		"worker_url", cfg.WorkerURL,
		"coordinator_url", cfg.CoordinatorURL,
		"base_case", cfg.BaseCase,
	)

	client := transport.NewClient(cfg.CoordinatorURL, transport.Options{
		Timeout:      cfg.RequestTimeout,
		RetryMax:     cfg.RetryMax,
		RetryWaitMin: cfg.RetryWaitMin,
		RetryWaitMax: cfg.RetryWaitMax,
		Logger:       logger,
	})
	exec := executor.New(client, cfg.BaseCase, logger)
	srv := api.NewWorkerServer(cfg.ListenAddr, exec, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go register(ctx, client, cfg, logger)

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
	exec.Wait()
}

// register announces the worker until the coordinator accepts it or ctx ends.
func register(ctx context.Context, client *transport.Client, cfg config.Config, logger *slog.Logger) {
	ticker := time.NewTicker(registerInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		err := client.Register(ctx, cfg.WorkerID, cfg.WorkerURL)
		if err == nil {
			logger.Info("registered with coordinator", "attempts", attempt)
			return
		}
		logger.Warn("registration failed, retrying", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
