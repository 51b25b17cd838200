// Package repository loads tables as schema-enforced collections and writes
// entity changes back to the remote store.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/esathiyasekhar/FinanceTracker/internal/schema"
	"github.com/rs/zerolog"
)

// ErrUnavailable is returned when a table cannot be read.
var ErrUnavailable = errors.New("repository: table unavailable")

// Remote is the subset of the remote client the repository writes through.
type Remote interface {
	ReadAll(ctx context.Context, table string) (*remote.Table, error)
	AppendRows(ctx context.Context, table string, rows [][]string) error
	ReplaceAllIfUnchanged(ctx context.Context, table, version string, columns []string, rows [][]string) error
	DeleteRowAt(ctx context.Context, table string, position int) error
	Tables(ctx context.Context) ([]string, error)
	CreateTable(ctx context.Context, table string, header []string) error
	SetHeader(ctx context.Context, table string, header []string) error
}

// TableReader serves reads, normally from the table cache.
type TableReader interface {
	Get(ctx context.Context, table string) (*remote.Table, error)
}

// invalidator is implemented by readers that keep copies, such as the cache.
type invalidator interface {
	Invalidate(table string)
}

// Repository is the entity store over the remote tables.
type Repository struct {
	client Remote
	reads  TableReader
	log    zerolog.Logger
}

// New creates a repository. Reads go through reads when it is non-nil and
// straight to client otherwise.
func New(client Remote, reads TableReader, log zerolog.Logger) *Repository {
	r := &Repository{client: client, reads: reads, log: log}
	if r.reads == nil {
		r.reads = directReader{client}
	}
	return r
}

type directReader struct{ c Remote }

func (d directReader) Get(ctx context.Context, table string) (*remote.Table, error) {
	return d.c.ReadAll(ctx, table)
}

// Load reads table and shapes it to its declared columns. An empty table
// yields an empty collection with the declared header; a failed read yields
// an error wrapping ErrUnavailable.
func (r *Repository) Load(ctx context.Context, table schema.Table) (*Collection, error) {
	def, ok := schema.Lookup(table)
	if !ok {
		return nil, fmt.Errorf("Load: unknown table %q", table)
	}
	raw, err := r.reads.Get(ctx, string(table))
	if err != nil {
		return nil, fmt.Errorf("Load %s: %w: %w", table, ErrUnavailable, err)
	}
	return newCollection(def, raw), nil
}

// LoadFresh is Load straight from the remote store, bypassing the cache.
// Write actions build on it so their version checks and next IDs reflect
// edits made to the spreadsheet by hand.
func (r *Repository) LoadFresh(ctx context.Context, table schema.Table) (*Collection, error) {
	def, ok := schema.Lookup(table)
	if !ok {
		return nil, fmt.Errorf("LoadFresh: unknown table %q", table)
	}
	raw, err := r.client.ReadAll(ctx, string(table))
	if err != nil {
		return nil, fmt.Errorf("LoadFresh %s: %w: %w", table, ErrUnavailable, err)
	}
	return newCollection(def, raw), nil
}

// LoadOrEmpty is Load for read-only views: a failed read is logged and
// reported as an empty collection in StateUnavailable.
func (r *Repository) LoadOrEmpty(ctx context.Context, table schema.Table) *Collection {
	c, err := r.Load(ctx, table)
	if err == nil {
		return c
	}
	r.log.Warn().Err(err).Str("table", string(table)).Msg("Table unavailable, using empty collection")
	return emptyCollection(schema.MustLookup(table), StateUnavailable)
}

// Append adds records to the end of table, each ordered to the table's
// current header.
func (r *Repository) Append(ctx context.Context, table schema.Table, records ...remote.Record) error {
	if len(records) == 0 {
		return nil
	}
	c, err := r.Load(ctx, table)
	if err != nil {
		return fmt.Errorf("Append: %w", err)
	}
	if err := r.client.AppendRows(ctx, string(table), c.rows(records)); err != nil {
		return fmt.Errorf("Append %s: %w", table, err)
	}
	return nil
}

// Replace rewrites table with records. It fails with remote.ErrVersionConflict
// when the table changed after c was loaded; the cached copy is then dropped
// so the next load sees the current content.
func (r *Repository) Replace(ctx context.Context, c *Collection, records []remote.Record) error {
	if c.State() == StateUnavailable {
		return fmt.Errorf("Replace %s: %w", c.Table, ErrUnavailable)
	}
	if err := r.client.ReplaceAllIfUnchanged(ctx, string(c.Table), c.Version, c.Header, c.rows(records)); err != nil {
		if errors.Is(err, remote.ErrVersionConflict) {
			if inv, ok := r.reads.(invalidator); ok {
				inv.Invalidate(string(c.Table))
			}
		}
		return fmt.Errorf("Replace %s: %w", c.Table, err)
	}
	r.log.Debug().Str("table", string(c.Table)).Int("rows", len(records)).Msg("Replaced table")
	return nil
}

// UpdateByID applies patch to the record whose ID matches id and rewrites the
// table. It returns false without writing when no record matches.
func (r *Repository) UpdateByID(ctx context.Context, c *Collection, id string, patch remote.Record) (bool, error) {
	i := c.indexOf(id)
	if i < 0 {
		return false, nil
	}

	updated := c.Clone()
	for k, v := range patch {
		if k == schema.ColID {
			continue
		}
		if _, known := updated.Records[i][k]; !known {
			updated.Header = append(updated.Header, k)
			for _, rec := range updated.Records {
				rec[k] = ""
			}
		}
		updated.Records[i][k] = v
	}

	if err := r.Replace(ctx, updated, updated.Records); err != nil {
		return false, fmt.Errorf("UpdateByID %s: %w", id, err)
	}
	return true, nil
}

// DeleteByID removes the row whose ID matches id. It reads the table fresh
// from the remote store so the row position is current, and returns false
// without further calls when no row matches.
func (r *Repository) DeleteByID(ctx context.Context, table schema.Table, id string) (bool, error) {
	raw, err := r.client.ReadAll(ctx, string(table))
	if err != nil {
		return false, fmt.Errorf("DeleteByID %s: %w: %w", table, ErrUnavailable, err)
	}
	i := indexOfID(raw.Records, id)
	if i < 0 {
		return false, nil
	}
	if err := r.client.DeleteRowAt(ctx, string(table), i+2); err != nil {
		return false, fmt.Errorf("DeleteByID %s: %w", table, err)
	}
	r.log.Debug().Str("table", string(table)).Str("id", id).Int("position", i+2).Msg("Deleted row")
	return true, nil
}
