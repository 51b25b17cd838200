package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/esathiyasekhar/FinanceTracker/internal/app"
	"github.com/esathiyasekhar/FinanceTracker/internal/config"
	"github.com/esathiyasekhar/FinanceTracker/internal/jobs"
	"github.com/esathiyasekhar/FinanceTracker/internal/jobs/inmemory"
	"github.com/esathiyasekhar/FinanceTracker/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (or set FT_CONFIG env)")
	runNow := flag.Bool("run-now", false, "Publish every scheduled job once at startup")
	flag.Parse()

	// Initialize logger
	log := logger.New("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	log = logger.New(cfg.LogLevel)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid timezone")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	// Jobs live in memory; a restart drops whatever is queued.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore, inmemory.WithLogger(log))

	log.Info().Msg("Starting worker service")
	if err := jobQueue.Start(ctx, application.HandleJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	scheduler := jobs.NewScheduler(jobQueue, loc, log)
	if err := scheduler.Add(cfg.Schedule.Snapshot, jobs.JobTypeSnapshotTables); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule snapshots")
	}
	if err := scheduler.Add(cfg.Schedule.Mirror, jobs.JobTypeMirrorLedgers); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule ledger mirror")
	}
	scheduler.Start()

	if *runNow {
		scheduler.Enqueue(ctx, jobs.JobTypeSnapshotTables)
		scheduler.Enqueue(ctx, jobs.JobTypeMirrorLedgers)
	}

	log.Info().Int("scheduled", scheduler.Len()).Msg("Worker service started, waiting for jobs...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	scheduler.Stop(shutdownCtx)
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancel()

	log.Info().Msg("Worker service stopped")
}
