package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hbarnett99/so-you-made-a-mix/internal/jobs"
	"github.com/hbarnett99/so-you-made-a-mix/internal/server"
	"github.com/hbarnett99/so-you-made-a-mix/internal/services"
	"github.com/hbarnett99/so-you-made-a-mix/internal/shared"
	"github.com/hbarnett99/so-you-made-a-mix/internal/worker"
	"github.com/urfave/cli/v3"
)

// Serve runs the API server until interrupted.
//
// The job store, orchestrator and janitor live for the lifetime of the process; in-flight dispatches are
// cancelled once the listener stops.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := shared.WithLogger(r.logger, "component", "server")
	enhancer, db, err := r.buildEnhancer(logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		logger.Info("candidate cache enabled", "path", r.config.Database.Path)
	}

	staging := r.config.Downloads.StagingDir
	if err := os.MkdirAll(staging, 0755); err != nil {
		return fmt.Errorf("failed to create staging dir: %w", err)
	}

	store := jobs.NewMemoryStore(jobs.WithRetention(r.config.Downloads.Retention))
	dispatcher := services.NewWorkerClient(r.config.Worker.URL, r.httpClient, r.retry())
	orchestrator := jobs.NewOrchestrator(store, enhancer, dispatcher, shared.WithLogger(r.logger, "component", "orchestrator"))
	delivery := jobs.NewDelivery(store, staging, shared.WithLogger(r.logger, "component", "delivery"))
	janitor := jobs.NewJanitor(store, staging, r.config.Downloads.CleanupInterval, shared.WithLogger(r.logger, "component", "janitor"))

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go janitor.Run(janitorCtx)

	router := server.NewBasicRouter()
	router.Use(server.Recover(logger), server.AccessLog(logger))
	router.Mount(server.NewAPIHandler(enhancer, store, orchestrator, delivery, logger))

	addr := r.config.Server.Addr()
	if a := cmd.String("addr"); a != "" {
		addr = a
	}

	logger.Info("starting API server", "addr", addr, "worker", r.config.Worker.URL, "staging", staging)
	srv := server.NewServer(addr, router, logger,
		server.WithLockDir(staging),
		server.WithShutdownTimeout(r.config.Server.ShutdownTimeout),
		server.OnShutdown(orchestrator.Shutdown),
		server.OnShutdown(stopJanitor),
	)
	return srv.ListenAndServe(ctx)
}

// Worker runs the archive worker until interrupted.
func (r *Runner) Worker(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := shared.WithLogger(r.logger, "component", "worker")
	fetcher, err := worker.NewCommandFetcher(r.config.Worker.FetchCommand)
	if err != nil {
		return err
	}

	staging := r.config.Downloads.StagingDir
	if err := os.MkdirAll(staging, 0755); err != nil {
		return fmt.Errorf("failed to create staging dir: %w", err)
	}

	api := r.apiClient(cmd)
	w := worker.New(api, fetcher, staging,
		worker.WithRateLimit(r.config.Worker.RateLimit),
		worker.WithTrackTimeout(r.config.Worker.TrackTimeout),
		worker.WithLogger(logger),
	)

	router := server.NewBasicRouter()
	router.Use(server.Recover(logger), server.AccessLog(logger))
	router.Mount(worker.NewHandler(w))

	addr := r.config.Worker.Addr()
	if a := cmd.String("addr"); a != "" {
		addr = a
	}

	logger.Info("starting archive worker", "addr", addr, "staging", staging, "command", r.config.Worker.FetchCommand)
	srv := server.NewServer(addr, router, logger,
		server.WithShutdownTimeout(r.config.Server.ShutdownTimeout),
		server.OnShutdown(w.Shutdown),
	)
	return srv.ListenAndServe(ctx)
}
