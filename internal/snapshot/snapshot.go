// Package snapshot archives the full content of remote tables as JSON
// objects in cloud storage and restores tables from them.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Snapshot is the archived content of one table.
type Snapshot struct {
	Table   string     `json:"table"`
	TakenAt time.Time  `json:"taken_at"`
	Version string     `json:"version"`
	Header  []string   `json:"header"`
	Rows    [][]string `json:"rows"`
}

// Reader reads tables to archive.
type Reader interface {
	ReadAll(ctx context.Context, table string) (*remote.Table, error)
}

// Replacer rewrites a table from a snapshot.
type Replacer interface {
	ReplaceAll(ctx context.Context, table string, columns []string, rows [][]string) error
}

// Archive saves and loads snapshots under a prefix of a bucket. Objects are
// named prefix/<table>/<UTC timestamp>-<id>.json so names sort by time.
type Archive struct {
	blobs  Blobs
	prefix string
	now    func() time.Time
	log    zerolog.Logger
}

// Option configures an Archive.
type Option func(*Archive)

// WithClock injects the time source used to name snapshots.
func WithClock(now func() time.Time) Option {
	return func(a *Archive) { a.now = now }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(a *Archive) { a.log = log }
}

// New creates an archive over blobs.
func New(blobs Blobs, prefix string, opts ...Option) *Archive {
	a := &Archive{
		blobs:  blobs,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Archive) tableDir(table string) string {
	return path.Join(a.prefix, table) + "/"
}

// Save archives t and returns the URI of the stored object.
func (a *Archive) Save(ctx context.Context, t *remote.Table) (string, error) {
	taken := a.now().UTC()
	snap := Snapshot{
		Table:   t.Name,
		TakenAt: taken,
		Version: remote.Version(t),
		Header:  append([]string{}, t.Header...),
		Rows:    t.Values(),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("Save %s: encoding: %w", t.Name, err)
	}

	object := a.tableDir(t.Name) + taken.Format("20060102T150405.000Z") + "-" + uuid.NewString()[:8] + ".json"
	if err := a.blobs.Put(ctx, object, data); err != nil {
		return "", fmt.Errorf("Save %s: %w", t.Name, err)
	}

	uri := URI(a.blobs.Bucket(), object)
	a.log.Info().Str("table", t.Name).Int("rows", len(snap.Rows)).Str("uri", uri).Msg("Table snapshot saved")
	return uri, nil
}

// SaveAll reads and archives every table in tables. It stops at the first
// failure and returns the URIs saved so far.
func (a *Archive) SaveAll(ctx context.Context, r Reader, tables []string) ([]string, error) {
	uris := make([]string, 0, len(tables))
	for _, table := range tables {
		t, err := r.ReadAll(ctx, table)
		if err != nil {
			return uris, fmt.Errorf("SaveAll: reading %s: %w", table, err)
		}
		uri, err := a.Save(ctx, t)
		if err != nil {
			return uris, fmt.Errorf("SaveAll: %w", err)
		}
		uris = append(uris, uri)
	}
	return uris, nil
}

// Fetch loads the snapshot stored at uri.
func (a *Archive) Fetch(ctx context.Context, uri string) (*Snapshot, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	if bucket != a.blobs.Bucket() {
		return nil, fmt.Errorf("Fetch: %s is not in bucket %s", uri, a.blobs.Bucket())
	}
	data, err := a.blobs.Get(ctx, object)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("Fetch: decoding %s: %w", uri, err)
	}
	return &snap, nil
}

// Latest returns the URI of the newest snapshot of table.
func (a *Archive) Latest(ctx context.Context, table string) (string, error) {
	names, err := a.blobs.List(ctx, a.tableDir(table))
	if err != nil {
		return "", fmt.Errorf("Latest %s: %w", table, err)
	}
	var candidates []string
	for _, n := range names {
		if strings.HasSuffix(n, ".json") {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("Latest %s: %w", table, ErrNotFound)
	}
	sort.Strings(candidates)
	return URI(a.blobs.Bucket(), candidates[len(candidates)-1]), nil
}

// Restore rewrites the snapshot's table with the snapshot's content.
func (a *Archive) Restore(ctx context.Context, w Replacer, uri string) (*Snapshot, error) {
	snap, err := a.Fetch(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("Restore: %w", err)
	}
	if snap.Table == "" || len(snap.Header) == 0 {
		return nil, fmt.Errorf("Restore: %s has no table header", uri)
	}
	if err := w.ReplaceAll(ctx, snap.Table, snap.Header, snap.Rows); err != nil {
		return nil, fmt.Errorf("Restore %s: %w", snap.Table, err)
	}

	a.log.Info().Str("table", snap.Table).Int("rows", len(snap.Rows)).Str("uri", uri).Msg("Table restored from snapshot")
	return snap, nil
}
