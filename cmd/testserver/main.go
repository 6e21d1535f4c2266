// testserver runs a coordinator and several workers in one process, each on
// its own loopback port, for local end-to-end testing.
// Usage: go run ./cmd/testserver
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rbazzell/distributed-systems-project/internal/api"
	"github.com/rbazzell/distributed-systems-project/internal/config"
	"github.com/rbazzell/distributed-systems-project/internal/executor"
	"github.com/rbazzell/distributed-systems-project/internal/scheduler"
	"github.com/rbazzell/distributed-systems-project/internal/store"
	"github.com/rbazzell/distributed-systems-project/internal/transport"
)

const defaultWorkers = 3

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	workers := defaultWorkers
	if v := os.Getenv("STRASSEN_TESTSERVER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			workers = n
		}
	}

	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	opts := transport.Options{
		Timeout:      cfg.RequestTimeout,
		RetryMax:     cfg.RetryMax,
		RetryWaitMin: cfg.RetryWaitMin,
		RetryWaitMax: cfg.RetryWaitMax,
		Logger:       logger,
	}

	coordLn, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("listen %s: %v", cfg.ListenAddr, err)
	}
	coordURL := "http://" + coordLn.Addr().String()

	sched := scheduler.New(transport.NewClient("", opts), db, logger)
	coord := api.NewServer(cfg.ListenAddr, sched, db, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return coord.Serve(ctx, coordLn) })

	client := transport.NewClient(coordURL, opts)
	var execs []*executor.Executor
	for i := range workers {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			log.Fatalf("listen worker %d: %v", i+1, err)
		}
		id := fmt.Sprintf("worker%d", i+1)
		wlog := logger.With("worker_id", id)

		exec := executor.New(transport.NewClient(coordURL, opts), cfg.BaseCase, wlog)
		execs = append(execs, exec)
		srv := api.NewWorkerServer(ln.Addr().String(), exec, wlog)
		g.Go(func() error { return srv.Serve(ctx, ln) })

		if err := client.Register(ctx, id, "http://"+ln.Addr().String()); err != nil {
			log.Fatalf("register %s: %v", id, err)
		}
	}

	logger.Info("testserver: ready", "coordinator_url", coordURL, "workers", workers)
	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
	for _, exec := range execs {
		exec.Wait()
	}
}
