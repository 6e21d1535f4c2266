package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rbazzell/distributed-systems-project/internal/api"
	"github.com/rbazzell/distributed-systems-project/internal/config"
	"github.com/rbazzell/distributed-systems-project/internal/scheduler"
	"github.com/rbazzell/distributed-systems-project/internal/store"
	"github.com/rbazzell/distributed-systems-project/internal/transport"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("coordinator: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	dispatcher := transport.NewClient("", transport.Options{
		Timeout:      cfg.RequestTimeout,
		RetryMax:     cfg.RetryMax,
		RetryWaitMin: cfg.RetryWaitMin,
		RetryWaitMax: cfg.RetryWaitMax,
		Logger:       logger,
	})
	sched := scheduler.New(dispatcher, db, logger)
	srv := api.NewServer(cfg.ListenAddr, sched, db, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
