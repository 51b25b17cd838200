package main

import (
	"context"
	"flag"

	"github.com/esathiyasekhar/FinanceTracker/internal/bigquery"
	"github.com/esathiyasekhar/FinanceTracker/internal/config"
	"github.com/esathiyasekhar/FinanceTracker/internal/logger"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to a YAML config file (or set FT_CONFIG env)")
		projectID  = flag.String("project", "", "GCP project ID (overrides config and GCP_PROJECT_ID env)")
		datasetID  = flag.String("dataset", "", "BigQuery dataset ID (overrides config)")
		appliedBy  = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		dryRun     = flag.Bool("dry-run", false, "List the migrations without applying them")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	log = logger.New(cfg.LogLevel)

	if *projectID != "" {
		cfg.BigQuery.Project = *projectID
	}
	if *datasetID != "" {
		cfg.BigQuery.Dataset = *datasetID
	}
	if cfg.BigQuery.Project == "" {
		log.Fatal().Msg("A GCP project is required: set -project, bigquery.project or GCP_PROJECT_ID")
	}

	migrations, err := bigquery.Migrations(cfg.BigQuery.Project, cfg.BigQuery.Dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}

	if *dryRun {
		for _, m := range migrations {
			log.Info().Int("version", m.Version).Str("name", m.Name).Str("checksum", m.Checksum[:12]).Msg("Migration")
		}
		return
	}

	ctx := context.Background()
	migrator, err := bigquery.NewMigrator(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset, *appliedBy, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to BigQuery")
	}
	defer migrator.Close()

	log.Info().Str("project", cfg.BigQuery.Project).Str("dataset", cfg.BigQuery.Dataset).Msg("Connected to BigQuery")

	applied, err := migrator.Run(ctx, migrations)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
	if applied == 0 {
		log.Info().Msg("No new migrations to apply. Dataset is up to date.")
		return
	}
	log.Info().Int("applied", applied).Msg("Migrations applied")
}
