package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mohans/nsforge/asyncx"
	"github.com/mohans/nsforge/internal/app"
	"github.com/mohans/nsforge/internal/config"
	"github.com/mohans/nsforge/internal/lifecycle"
	"github.com/mohans/nsforge/internal/logging"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("worker exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	sweeper, err := lifecycle.NewSweeper(a.Status, cfg.SweepSchedule, cfg.SweepLimit, logger)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	processor := asyncx.NewProcessor(a.Redis, asyncx.ProcessorConfig{
		Concurrency:     cfg.WorkerConcurrency,
		Queues:          map[string]int{a.Jobs.Queue(): 1},
		ShutdownTimeout: 30 * time.Second,
	}, logger)

	mux := asynq.NewServeMux()
	mux.Handle(lifecycle.TypeRegisterDomain, a.Manager.RegisterHandler())

	logger.Info("worker running", "queue", a.Jobs.Queue(), "concurrency", cfg.WorkerConcurrency)
	// Run blocks until SIGINT or SIGTERM and shuts the server down.
	return processor.Run(mux)
}
