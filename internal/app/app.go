// Package app builds the finance service and its supporting infrastructure
// from configuration. The API server, the worker and the CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/esathiyasekhar/FinanceTracker/internal/bigquery"
	"github.com/esathiyasekhar/FinanceTracker/internal/cache"
	"github.com/esathiyasekhar/FinanceTracker/internal/config"
	"github.com/esathiyasekhar/FinanceTracker/internal/finance"
	"github.com/esathiyasekhar/FinanceTracker/internal/gridsync"
	"github.com/esathiyasekhar/FinanceTracker/internal/jobs"
	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/esathiyasekhar/FinanceTracker/internal/remote/inmemory"
	"github.com/esathiyasekhar/FinanceTracker/internal/repository"
	"github.com/esathiyasekhar/FinanceTracker/internal/schema"
	"github.com/esathiyasekhar/FinanceTracker/internal/snapshot"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

var (
	// ErrSnapshotsDisabled is returned by snapshot jobs when no bucket is configured.
	ErrSnapshotsDisabled = errors.New("snapshots are disabled: no bucket configured")

	// ErrMirrorDisabled is returned by mirror jobs when no project is configured.
	ErrMirrorDisabled = errors.New("ledger mirror is disabled: no BigQuery project configured")
)

// App holds the wired components.
type App struct {
	Config     config.Config
	Client     *remote.Client
	Repository *repository.Repository
	Service    *finance.Service

	// Archive is nil when snapshots are disabled.
	Archive *snapshot.Archive
	// Mirror is nil when the ledger mirror is disabled.
	Mirror *bigquery.Mirror

	log     zerolog.Logger
	closers []func() error
}

type options struct {
	store  remote.Store
	blobs  snapshot.Blobs
	ledger bigquery.LedgerEventWriter
}

// Option overrides a component that would otherwise be built from config.
type Option func(*options)

// WithStore uses store as the remote backend.
func WithStore(store remote.Store) Option {
	return func(o *options) { o.store = store }
}

// WithBlobs enables snapshots over blobs regardless of the configured bucket.
func WithBlobs(blobs snapshot.Blobs) Option {
	return func(o *options) { o.blobs = blobs }
}

// WithLedgerWriter enables the ledger mirror over w regardless of the
// configured project.
func WithLedgerWriter(w bigquery.LedgerEventWriter) Option {
	return func(o *options) { o.ledger = w }
}

// New wires the application. Callers must Close the returned App.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("New: %w", err)
	}

	a := &App{Config: cfg, log: log}

	store := o.store
	if store == nil {
		store, err = a.newStore(ctx)
		if err != nil {
			return nil, err
		}
	}

	blobs := o.blobs
	if blobs == nil && cfg.Snapshot.Bucket != "" {
		gcs, err := snapshot.NewGCSBlobs(ctx, cfg.Snapshot.Bucket)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("New: %w", err)
		}
		a.closers = append(a.closers, gcs.Close)
		blobs = gcs
	}

	clientOpts := []remote.Option{
		remote.WithRetry(cfg.Retry.MaxRetries, cfg.Retry.BaseDelay),
		remote.WithLogger(log),
	}
	if cfg.RateLimit.PerSecond > 0 {
		clientOpts = append(clientOpts, remote.WithRateLimit(rate.Limit(cfg.RateLimit.PerSecond), cfg.RateLimit.Burst))
	}
	if blobs != nil {
		a.Archive = snapshot.New(blobs, cfg.Snapshot.Prefix, snapshot.WithLogger(log))
		clientOpts = append(clientOpts, remote.WithSnapshotter(a.Archive))
	}
	a.Client = remote.NewClient(store, clientOpts...)

	tables := cache.New(a.Client, cache.WithTTL(cfg.CacheTTL), cache.WithLogger(log))
	a.Client.OnWrite(tables.Invalidate)

	a.Repository = repository.New(a.Client, tables, log)
	a.Service = finance.NewService(a.Repository, gridsync.New(a.Repository, log),
		finance.WithLocation(loc),
		finance.WithLogger(log),
	)

	ledger := o.ledger
	if ledger == nil && cfg.BigQuery.Project != "" {
		bq, err := bigquery.NewBigQueryLedgerRepository(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("New: %w", err)
		}
		a.closers = append(a.closers, bq.Close)
		if err := bq.EnsureTable(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("New: %w", err)
		}
		ledger = bq
	}
	if ledger != nil {
		a.Mirror = bigquery.NewMirror(ledger, log)
	}

	log.Info().
		Str("backend", cfg.Backend).
		Bool("snapshots", a.Archive != nil).
		Bool("mirror", a.Mirror != nil).
		Str("timezone", loc.String()).
		Msg("Application wired")
	return a, nil
}

func (a *App) newStore(ctx context.Context) (remote.Store, error) {
	switch a.Config.Backend {
	case config.BackendMemory:
		a.log.Warn().Msg("Using the in-memory backend, data is lost on exit")
		return inmemory.NewStore(), nil
	default:
		var opts []option.ClientOption
		if a.Config.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(a.Config.CredentialsFile))
		}
		store, err := remote.NewSheetsStore(ctx, a.Config.SpreadsheetID, opts...)
		if err != nil {
			return nil, fmt.Errorf("newStore: %w", err)
		}
		return store, nil
	}
}

// Provision creates missing tables and repairs headers, logging what changed.
func (a *App) Provision(ctx context.Context) error {
	results, err := a.Repository.Provision(ctx)
	if err != nil {
		return fmt.Errorf("Provision: %w", err)
	}
	for _, r := range results {
		if r.Changed() {
			a.log.Info().Interface("result", r).Msg("Table provisioned")
		}
	}
	return nil
}

// TableNames returns every declared table in provisioning order.
func TableNames() []string {
	var names []string
	for _, def := range schema.All() {
		names = append(names, string(def.Table))
	}
	return names
}

// HandleJob runs one background job. It is the queue's job handler.
func (a *App) HandleJob(ctx context.Context, job jobs.Job) error {
	sj, ok := job.(*jobs.SyncJob)
	if !ok {
		return fmt.Errorf("HandleJob: unexpected job %T", job)
	}
	log := a.log.With().Str("job_id", sj.JobID).Str("job_type", string(sj.Type)).Logger()

	switch sj.Type {
	case jobs.JobTypeSnapshotTables:
		if a.Archive == nil {
			return ErrSnapshotsDisabled
		}
		tables := sj.Tables
		if len(tables) == 0 {
			tables = TableNames()
		}
		uris, err := a.Archive.SaveAll(ctx, a.Client, tables)
		if err != nil {
			return fmt.Errorf("HandleJob: %w", err)
		}
		sj.Result = fmt.Sprintf("%d tables archived", len(uris))
		log.Info().Strs("uris", uris).Msg("Tables archived")

	case jobs.JobTypeMirrorLedgers:
		if a.Mirror == nil {
			return ErrMirrorDisabled
		}
		l, txs, err := a.Service.Ledgers(ctx)
		if err != nil {
			return fmt.Errorf("HandleJob: %w", err)
		}
		n, err := a.Mirror.Run(ctx, l, txs)
		if err != nil {
			return fmt.Errorf("HandleJob: %w", err)
		}
		sj.Result = fmt.Sprintf("%d ledger events mirrored", n)

	default:
		return fmt.Errorf("HandleJob: unknown job type %q", sj.Type)
	}
	return nil
}

// Close releases cloud clients.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
