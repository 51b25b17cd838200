package remote

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	// ErrRateLimited marks a failure the remote store reports as a quota or
	// rate-limit rejection. Stores return it (or an error wrapping it) so the
	// Client can retry.
	ErrRateLimited = errors.New("remote: rate limited")

	// ErrTableNotFound is returned when a named table does not exist.
	ErrTableNotFound = errors.New("remote: table not found")

	// ErrVersionConflict is returned by ReplaceAllIfUnchanged when the table
	// changed after the caller read it.
	ErrVersionConflict = errors.New("remote: version conflict")
)

// ConflictError carries both versions of a rejected replace.
type ConflictError struct {
	Table    string
	Expected string
	Current  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("remote: table %q changed since it was read (expected version %s, found %s)",
		e.Table, short(e.Expected), short(e.Current))
}

// Is lets errors.Is(err, ErrVersionConflict) match.
func (e *ConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}

func short(v string) string {
	if len(v) > 12 {
		return v[:12]
	}
	return v
}

// Record is one data row keyed by header name.
type Record map[string]string

// Clone returns an independent copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is the full content of one remote table: the header row followed by
// data rows in sheet order.
type Table struct {
	Name    string
	Header  []string
	Records []Record
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{
		Name:    t.Name,
		Header:  append([]string(nil), t.Header...),
		Records: make([]Record, len(t.Records)),
	}
	for i, r := range t.Records {
		out.Records[i] = r.Clone()
	}
	return out
}

// Values returns the records as ordered rows aligned to the header.
func (t *Table) Values() [][]string {
	rows := make([][]string, len(t.Records))
	for i, r := range t.Records {
		rows[i] = Align(t.Header, r)
	}
	return rows
}

// Align orders the values of r by columns; missing columns are empty.
func Align(columns []string, r Record) []string {
	row := make([]string, len(columns))
	for i, c := range columns {
		row[i] = r[c]
	}
	return row
}

// Version fingerprints the header and the ordered cell values of t. Two
// reads of an unchanged table yield the same version.
func Version(t *Table) string {
	if t == nil {
		return ""
	}
	h := sha256.New()
	writeRow := func(cells []string) {
		for _, c := range cells {
			fmt.Fprintf(h, "%d:%s", len(c), c)
		}
		h.Write([]byte{'\n'})
	}
	writeRow(t.Header)
	for _, row := range t.Values() {
		writeRow(row)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Store is the set of primitives the remote tabular store offers. Positions
// are 1-based and the header occupies row 1. Implementations do not retry.
type Store interface {
	// ReadAll returns the header and every data row of table.
	ReadAll(ctx context.Context, table string) (*Table, error)

	// AppendRows appends rows after the last non-empty row of table.
	AppendRows(ctx context.Context, table string, rows [][]string) error

	// Clear removes every cell of table, including the header.
	Clear(ctx context.Context, table string) error

	// DeleteRow removes the row at the 1-based position and shifts the rest up.
	DeleteRow(ctx context.Context, table string, position int) error

	// Tables lists the tables that currently exist.
	Tables(ctx context.Context) ([]string, error)

	// CreateTable adds a new table whose first row is header.
	CreateTable(ctx context.Context, table string, header []string) error

	// SetHeader overwrites row 1 of table with header.
	SetHeader(ctx context.Context, table string, header []string) error
}

// Snapshotter keeps a copy of a table's content before it is destructively
// replaced.
type Snapshotter interface {
	Save(ctx context.Context, t *Table) (string, error)
}
