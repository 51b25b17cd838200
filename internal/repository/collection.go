package repository

import (
	"strings"

	"github.com/esathiyasekhar/FinanceTracker/internal/parse"
	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/esathiyasekhar/FinanceTracker/internal/schema"
)

// State tells a caller whether an empty collection is really empty.
type State int

const (
	// StateLoaded means the table was read and has rows.
	StateLoaded State = iota
	// StateEmpty means the table was read and has no data rows.
	StateEmpty
	// StateUnavailable means the table could not be read; the collection is
	// an empty placeholder and must not be written back.
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateEmpty:
		return "empty"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Collection is the in-memory, schema-enforced snapshot of one table.
type Collection struct {
	Table   schema.Table
	Header  []string
	Records []remote.Record

	// Version identifies the remote content this snapshot was built from.
	Version string

	state State
}

// newCollection shapes a raw table to the declared schema: declared columns
// missing from the header are appended and every record carries every
// header column.
func newCollection(def schema.Definition, raw *remote.Table) *Collection {
	c := &Collection{
		Table:   def.Table,
		Header:  append([]string(nil), raw.Header...),
		Version: remote.Version(raw),
	}
	present := make(map[string]bool, len(c.Header))
	for _, h := range c.Header {
		present[h] = true
	}
	for _, col := range def.ColumnNames() {
		if !present[col] {
			c.Header = append(c.Header, col)
		}
	}

	for _, r := range raw.Records {
		if blank(r) {
			continue
		}
		rec := make(remote.Record, len(c.Header))
		for _, h := range c.Header {
			rec[h] = r[h]
		}
		c.Records = append(c.Records, rec)
	}

	c.state = StateLoaded
	if len(c.Records) == 0 {
		c.state = StateEmpty
	}
	return c
}

func emptyCollection(def schema.Definition, state State) *Collection {
	return &Collection{
		Table:  def.Table,
		Header: def.ColumnNames(),
		state:  state,
	}
}

func blank(r remote.Record) bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// State reports how the collection was obtained.
func (c *Collection) State() State { return c.state }

// Len returns the number of records.
func (c *Collection) Len() int { return len(c.Records) }

// Clone returns a deep copy.
func (c *Collection) Clone() *Collection {
	out := &Collection{
		Table:   c.Table,
		Header:  append([]string(nil), c.Header...),
		Records: make([]remote.Record, len(c.Records)),
		Version: c.Version,
		state:   c.state,
	}
	for i, r := range c.Records {
		out.Records[i] = r.Clone()
	}
	return out
}

// Filter returns the records for which keep is true.
func (c *Collection) Filter(keep func(remote.Record) bool) []remote.Record {
	var out []remote.Record
	for _, r := range c.Records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// Find returns the record whose ID matches id after normalization.
func (c *Collection) Find(id string) (remote.Record, bool) {
	i := c.indexOf(id)
	if i < 0 {
		return nil, false
	}
	return c.Records[i], true
}

func (c *Collection) indexOf(id string) int {
	return indexOfID(c.Records, id)
}

func indexOfID(records []remote.Record, id string) int {
	want := parse.NormalizeID(id)
	if want == "" {
		return -1
	}
	for i, r := range records {
		if parse.NormalizeID(r[schema.ColID]) == want {
			return i
		}
	}
	return -1
}

// rows returns the records ordered to the header.
func (c *Collection) rows(records []remote.Record) [][]string {
	out := make([][]string, len(records))
	for i, r := range records {
		out[i] = remote.Align(c.Header, r)
	}
	return out
}

// NextID returns one more than the largest numeric ID in c. Missing and
// non-numeric IDs count as 0, so an empty collection yields 1.
func NextID(c *Collection) int {
	max := 0
	for _, r := range c.Records {
		if n := parse.ID(r[schema.ColID]); n > max {
			max = n
		}
	}
	return max + 1
}

// CheckDuplicate reports whether any record other than excludingID has the
// same value in column, compared trimmed and case-insensitively.
func CheckDuplicate(c *Collection, column, value, excludingID string) bool {
	want := strings.ToLower(strings.TrimSpace(value))
	if want == "" {
		return false
	}
	skip := parse.NormalizeID(excludingID)
	for _, r := range c.Records {
		if skip != "" && parse.NormalizeID(r[schema.ColID]) == skip {
			continue
		}
		if strings.ToLower(strings.TrimSpace(r[column])) == want {
			return true
		}
	}
	return false
}
