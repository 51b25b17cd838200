// Package cache keeps recently read tables in memory for a short time so
// that one user action does not re-read the same table from the remote
// store several times.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a table read stays fresh.
const DefaultTTL = 60 * time.Second

// Reader is the read side of the remote client.
type Reader interface {
	ReadAll(ctx context.Context, table string) (*remote.Table, error)
}

type entry struct {
	table    *remote.Table
	loadedAt time.Time
}

// Cache is a TTL cache of whole tables keyed by table name. It is safe for
// concurrent use; concurrent misses for the same table share one read.
type Cache struct {
	reader Reader
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger

	mu      sync.RWMutex
	entries map[string]entry
	gen     uint64 // bumped by Invalidate; reads started before it are not stored
	group   singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// New creates a cache reading through reader.
func New(reader Reader, opts ...Option) *Cache {
	c := &Cache{
		reader:  reader,
		ttl:     DefaultTTL,
		now:     time.Now,
		log:     zerolog.Nop(),
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a copy of table, reading it from the remote store when there is
// no entry younger than the TTL. Failed reads are not cached.
func (c *Cache) Get(ctx context.Context, table string) (*remote.Table, error) {
	c.mu.RLock()
	e, ok := c.entries[table]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.loadedAt) < c.ttl {
		return e.table.Clone(), nil
	}

	v, err, shared := c.group.Do(table, func() (interface{}, error) {
		c.mu.RLock()
		gen := c.gen
		c.mu.RUnlock()

		t, err := c.reader.ReadAll(ctx, table)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.entries[table] = entry{table: t, loadedAt: c.now()}
		}
		c.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Debug().Str("table", table).Bool("shared", shared).Msg("Refreshed table cache")
	return v.(*remote.Table).Clone(), nil
}

// Invalidate drops every entry. It has the signature of a remote write
// observer; the table argument is ignored because writes can affect views
// derived from several tables.
func (c *Cache) Invalidate(table string) {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.gen++
	c.mu.Unlock()
	c.group.Forget(table)
}

// Len returns the number of cached tables.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
