package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/esathiyasekhar/FinanceTracker/internal/app"
	"github.com/esathiyasekhar/FinanceTracker/internal/config"
	"github.com/esathiyasekhar/FinanceTracker/internal/domain"
	"github.com/esathiyasekhar/FinanceTracker/internal/export"
	"github.com/esathiyasekhar/FinanceTracker/internal/jobs"
	"github.com/esathiyasekhar/FinanceTracker/internal/logger"
	"github.com/esathiyasekhar/FinanceTracker/internal/parse"
	"github.com/esathiyasekhar/FinanceTracker/internal/schema"
	"github.com/rs/zerolog"
	"github.com/urfave/cli"
)

func main() {
	cmdApp := cli.NewApp()
	cmdApp.Name = "financetracker"
	cmdApp.Usage = "Household finance tracker over Google Sheets"
	cmdApp.Flags = []cli.Flag{
		cli.StringFlag{Name: "config", Usage: "Path to a YAML config file", EnvVar: "FT_CONFIG"},
	}

	periodFlags := []cli.Flag{
		cli.IntFlag{Name: "year", Usage: "Year of the month to show (defaults to the current year)"},
		cli.StringFlag{Name: "month", Usage: "Month to show, by number or name (defaults to the current month)"},
	}

	cmdApp.Commands = []cli.Command{
		{
			Name:   "provision",
			Usage:  "Create missing tables and repair their headers",
			Action: withApp(runProvision),
		},
		{
			Name:   "dashboard",
			Usage:  "Print the monthly dashboard as JSON",
			Flags:  periodFlags,
			Action: withApp(runDashboard),
		},
		{
			Name:   "cards",
			Usage:  "Print the reconciled card bills of a month as JSON",
			Flags:  periodFlags,
			Action: withApp(runCards),
		},
		{
			Name:      "detect-source",
			Usage:     "Show which card or bank a statement filename belongs to",
			ArgsUsage: "FILENAME",
			Action:    withApp(runDetectSource),
		},
		{
			Name:  "export",
			Usage: "Write every table to an Excel workbook",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "out", Value: "finance.xlsx", Usage: "Output .xlsx path"},
			},
			Action: withApp(runExport),
		},
		{
			Name:  "snapshot",
			Usage: "Archive tables to cloud storage",
			Flags: []cli.Flag{
				cli.StringSliceFlag{Name: "table", Usage: "Table to archive (repeatable, defaults to all)"},
			},
			Action: withApp(runSnapshot),
		},
		{
			Name:  "restore",
			Usage: "Rewrite a table from a snapshot",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "uri", Usage: "gs:// URI of the snapshot"},
				cli.StringFlag{Name: "table", Usage: "Restore the latest snapshot of this table"},
			},
			Action: withApp(runRestore),
		},
		{
			Name:   "mirror",
			Usage:  "Mirror the payment ledgers and transactions to BigQuery",
			Action: withApp(runMirror),
		},
	}

	if err := cmdApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type action func(ctx context.Context, c *cli.Context, a *app.App, log zerolog.Logger) error

// withApp loads config, wires the application and runs fn with it.
func withApp(fn action) func(c *cli.Context) error {
	return func(c *cli.Context) error {
		cfg, err := config.Load(c.GlobalString("config"))
		if err != nil {
			return err
		}
		log := logger.New(cfg.LogLevel)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		ctx = logger.WithContext(ctx, log)

		a, err := app.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		return fn(ctx, c, a, log)
	}
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func periodFlag(c *cli.Context, a *app.App) (domain.Period, error) {
	p := domain.PeriodOf(a.Service.Today())
	if c.IsSet("year") {
		p.Year = c.Int("year")
	}
	if m := c.String("month"); m != "" {
		month, ok := parse.Month(m)
		if !ok {
			return domain.Period{}, fmt.Errorf("invalid month %q", m)
		}
		p.Month = month
	}
	if !p.Valid() {
		return domain.Period{}, fmt.Errorf("invalid period %v", p)
	}
	return p, nil
}

func runProvision(ctx context.Context, c *cli.Context, a *app.App, log zerolog.Logger) error {
	results, err := a.Repository.Provision(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("%-16s %+v\n", r.Table, r)
	}
	return nil
}

func runDashboard(ctx context.Context, c *cli.Context, a *app.App, log zerolog.Logger) error {
	period, err := periodFlag(c, a)
	if err != nil {
		return err
	}
	return printJSON(a.Service.Dashboard(ctx, period))
}

func runCards(ctx context.Context, c *cli.Context, a *app.App, log zerolog.Logger) error {
	period, err := periodFlag(c, a)
	if err != nil {
		return err
	}
	cards, unavailable := a.Service.CardOverview(ctx, period)
	for _, t := range unavailable {
		log.Warn().Str("table", string(t)).Msg("Table unavailable")
	}
	return printJSON(cards)
}

func runDetectSource(ctx context.Context, c *cli.Context, a *app.App, log zerolog.Logger) error {
	filename := c.Args().First()
	if filename == "" {
		return errors.New("usage: detect-source FILENAME")
	}
	fmt.Println(a.Service.DetectSource(ctx, filename))
	return nil
}

func runExport(ctx context.Context, c *cli.Context, a *app.App, log zerolog.Logger) error {
	path := c.String("out")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.Write(ctx, a.Repository, f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("Exported %d tables to %s\n", len(schema.All()), path)
	return nil
}

func runSnapshot(ctx context.Context, c *cli.Context, a *app.App, log zerolog.Logger) error {
	job := &jobs.SyncJob{JobID: "cli", Type: jobs.JobTypeSnapshotTables, Tables: c.StringSlice("table"), Trigger: "cli"}
	for _, t := range job.Tables {
		if _, err := schema.ParseTable(t); err != nil {
			return err
		}
	}
	if err := a.HandleJob(ctx, job); err != nil {
		return err
	}
	fmt.Println(job.Result)
	return nil
}

func runRestore(ctx context.Context, c *cli.Context, a *app.App, log zerolog.Logger) error {
	if a.Archive == nil {
		return app.ErrSnapshotsDisabled
	}
	uri := c.String("uri")
	if uri == "" {
		table := c.String("table")
		if table == "" {
			return errors.New("one of --uri or --table is required")
		}
		if _, err := schema.ParseTable(table); err != nil {
			return err
		}
		latest, err := a.Archive.Latest(ctx, table)
		if err != nil {
			return err
		}
		uri = latest
	}

	snap, err := a.Archive.Restore(ctx, a.Client, uri)
	if err != nil {
		return err
	}
	fmt.Printf("Restored %s (%d rows) from %s taken at %s\n", snap.Table, len(snap.Rows), uri, snap.TakenAt.Format(time.RFC3339))
	return nil
}

func runMirror(ctx context.Context, c *cli.Context, a *app.App, log zerolog.Logger) error {
	job := &jobs.SyncJob{JobID: "cli", Type: jobs.JobTypeMirrorLedgers, Trigger: "cli"}
	if err := a.HandleJob(ctx, job); err != nil {
		return err
	}
	fmt.Println(job.Result)
	return nil
}
