// Package remote is the transport over the remote tabular store. The Store
// interface exposes only the primitives the store really has (read a whole
// table, append rows, clear, delete a row by position); Client layers the
// retry policy, call pacing, pre-replace snapshots and write notifications
// on top of a Store.
package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Client is the rate-limit-aware, retrying client used by the rest of the
// module. It is safe for concurrent use.
type Client struct {
	store      Store
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	snapshots  Snapshotter
	log        zerolog.Logger

	mu        sync.RWMutex
	observers []func(table string)
}

// Option configures a Client.
type Option func(*Client)

// WithRetry overrides the retry budget and the backoff base delay.
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
		if baseDelay >= 0 {
			c.baseDelay = baseDelay
		}
	}
}

// WithRateLimit paces every remote call through a token bucket. A limit of
// rate.Inf disables pacing.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		if limit == rate.Inf {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithSleep replaces the backoff sleep; tests use it to avoid real delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// WithSnapshotter saves the current content of a table before every replace.
func WithSnapshotter(s Snapshotter) Option {
	return func(c *Client) { c.snapshots = s }
}

// WithLogger sets the logger used for retry and write events.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient wraps store with the default retry policy (5 retries, 2s base
// delay) and no pacing.
func NewClient(store Store, opts ...Option) *Client {
	c := &Client{
		store:      store,
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		sleep:      sleepContext,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnWrite registers fn to run after every write that reached the store,
// including partially applied replaces.
func (c *Client) OnWrite(fn func(table string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

func (c *Client) notify(table string) {
	c.mu.RLock()
	observers := append([]func(string){}, c.observers...)
	c.mu.RUnlock()
	for _, fn := range observers {
		fn(table)
	}
}

// ReadAll returns the header and all data rows of table.
func (c *Client) ReadAll(ctx context.Context, table string) (*Table, error) {
	var t *Table
	err := c.retry(ctx, "read_all", table, func() error {
		var err error
		t, err = c.store.ReadAll(ctx, table)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ReadAll %s: %w", table, err)
	}
	return t, nil
}

// AppendRow appends one row whose values are ordered to the header.
func (c *Client) AppendRow(ctx context.Context, table string, row []string) error {
	return c.AppendRows(ctx, table, [][]string{row})
}

// AppendRows appends a batch of rows in one call.
func (c *Client) AppendRows(ctx context.Context, table string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	err := c.retry(ctx, "append_rows", table, func() error {
		return c.store.AppendRows(ctx, table, rows)
	})
	if err != nil {
		return fmt.Errorf("AppendRows %s: %w", table, err)
	}

	c.log.Debug().Str("table", table).Int("rows", len(rows)).Msg("Appended rows")
	c.notify(table)
	return nil
}

// ReplaceAll clears table, writes columns as the header and then rows.
// Readers that hit the table between the clear and the final append see it
// empty.
func (c *Client) ReplaceAll(ctx context.Context, table string, columns []string, rows [][]string) error {
	if c.snapshots != nil {
		current, err := c.ReadAll(ctx, table)
		if err != nil {
			return fmt.Errorf("ReplaceAll %s: reading current content: %w", table, err)
		}
		if err := c.snapshot(ctx, current); err != nil {
			return err
		}
	}
	return c.replace(ctx, table, columns, rows)
}

// ReplaceAllIfUnchanged performs ReplaceAll only when the table still has the
// version the caller read. Otherwise it returns a *ConflictError and the table
// is left untouched.
func (c *Client) ReplaceAllIfUnchanged(ctx context.Context, table, version string, columns []string, rows [][]string) error {
	current, err := c.ReadAll(ctx, table)
	if err != nil {
		return fmt.Errorf("ReplaceAllIfUnchanged %s: reading current content: %w", table, err)
	}
	if got := Version(current); got != version {
		return &ConflictError{Table: table, Expected: version, Current: got}
	}
	if c.snapshots != nil {
		if err := c.snapshot(ctx, current); err != nil {
			return err
		}
	}
	return c.replace(ctx, table, columns, rows)
}

func (c *Client) snapshot(ctx context.Context, current *Table) error {
	uri, err := c.snapshots.Save(ctx, current)
	if err != nil {
		return fmt.Errorf("snapshot %s before replace: %w", current.Name, err)
	}
	c.log.Debug().Str("table", current.Name).Str("snapshot", uri).Msg("Saved table snapshot")
	return nil
}

func (c *Client) replace(ctx context.Context, table string, columns []string, rows [][]string) (err error) {
	mutated := false
	defer func() {
		if mutated {
			c.notify(table)
		}
	}()

	if err := c.retry(ctx, "clear", table, func() error {
		return c.store.Clear(ctx, table)
	}); err != nil {
		return fmt.Errorf("ReplaceAll %s: clearing: %w", table, err)
	}
	mutated = true

	if err := c.retry(ctx, "append_header", table, func() error {
		return c.store.AppendRows(ctx, table, [][]string{columns})
	}); err != nil {
		return fmt.Errorf("ReplaceAll %s: writing header: %w", table, err)
	}

	if len(rows) > 0 {
		if err := c.retry(ctx, "append_rows", table, func() error {
			return c.store.AppendRows(ctx, table, rows)
		}); err != nil {
			return fmt.Errorf("ReplaceAll %s: writing rows: %w", table, err)
		}
	}

	c.log.Debug().Str("table", table).Int("rows", len(rows)).Msg("Replaced table")
	return nil
}

// DeleteRowAt removes the row at position (1-based, the header is row 1).
func (c *Client) DeleteRowAt(ctx context.Context, table string, position int) error {
	if position < 2 {
		return fmt.Errorf("DeleteRowAt %s: position %d would remove the header", table, position)
	}
	err := c.retry(ctx, "delete_row", table, func() error {
		return c.store.DeleteRow(ctx, table, position)
	})
	if err != nil {
		return fmt.Errorf("DeleteRowAt %s: %w", table, err)
	}

	c.log.Debug().Str("table", table).Int("position", position).Msg("Deleted row")
	c.notify(table)
	return nil
}

// Tables lists the existing tables.
func (c *Client) Tables(ctx context.Context) ([]string, error) {
	var names []string
	err := c.retry(ctx, "tables", "", func() error {
		var err error
		names, err = c.store.Tables(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("Tables: %w", err)
	}
	return names, nil
}

// CreateTable adds table with header as its first row.
func (c *Client) CreateTable(ctx context.Context, table string, header []string) error {
	err := c.retry(ctx, "create_table", table, func() error {
		return c.store.CreateTable(ctx, table, header)
	})
	if err != nil {
		return fmt.Errorf("CreateTable %s: %w", table, err)
	}
	c.notify(table)
	return nil
}

// SetHeader overwrites the header row of table.
func (c *Client) SetHeader(ctx context.Context, table string, header []string) error {
	err := c.retry(ctx, "set_header", table, func() error {
		return c.store.SetHeader(ctx, table, header)
	})
	if err != nil {
		return fmt.Errorf("SetHeader %s: %w", table, err)
	}
	c.notify(table)
	return nil
}
