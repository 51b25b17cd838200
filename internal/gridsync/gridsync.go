// Package gridsync applies the edits made in an editable grid back to the
// remote table they came from.
//
// A sync cycle either deletes the rows flagged for deletion and stops, or
// writes every other edit with a single full-table replace. Deletes are
// positional, so mixing them with a replace in one cycle would act on stale
// positions; the next cycle picks up the remaining edits.
package gridsync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/esathiyasekhar/FinanceTracker/internal/parse"
	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/esathiyasekhar/FinanceTracker/internal/repository"
	"github.com/esathiyasekhar/FinanceTracker/internal/schema"
	"github.com/rs/zerolog"
)

// Row is one grid row as the user left it.
type Row struct {
	Record remote.Record `json:"record"`
	Delete bool          `json:"delete"`

	// Origin is the ID (or business key) of the row as it was loaded, so an
	// edit of the ID or key cells still lands on that row. Empty for rows
	// added in the grid.
	Origin string `json:"origin,omitempty"`
}

// ErrDuplicateKey is returned when the edits leave two rows with the same ID
// or business key. Nothing is written.
var ErrDuplicateKey = errors.New("duplicate row key")

// RowsOf returns the records of c as grid rows carrying their origin.
func RowsOf(c *repository.Collection) []Row {
	def, _ := schema.Lookup(c.Table)
	rows := make([]Row, len(c.Records))
	for i, r := range c.Records {
		rows[i] = Row{Record: r.Clone(), Origin: rowKey(def, r)}
	}
	return rows
}

// Outcome names what a sync cycle did.
type Outcome string

const (
	NoChanges Outcome = "no_changes"
	Deleted   Outcome = "deleted"
	Replaced  Outcome = "replaced"
)

// Result is the outcome of one cycle.
type Result struct {
	Outcome    Outcome  `json:"outcome"`
	DeletedIDs []string `json:"deleted_ids,omitempty"`
	Updated    int      `json:"updated,omitempty"`
	Added      int      `json:"added,omitempty"`
}

// Writer is the repository surface the engine writes through.
type Writer interface {
	DeleteByID(ctx context.Context, table schema.Table, id string) (bool, error)
	Replace(ctx context.Context, c *repository.Collection, records []remote.Record) error
}

// Engine runs sync cycles.
type Engine struct {
	repo Writer
	log  zerolog.Logger
}

// New creates an engine.
func New(repo Writer, log zerolog.Logger) *Engine {
	return &Engine{repo: repo, log: log}
}

// Sync applies edited to the table base was loaded from. Edited rows are
// matched to base rows by their Origin, or by ID (or the table's business
// key) when Origin is empty, so edits made over a filtered view leave the
// rows outside the view untouched. When the grid holds as many rows as the
// table, rows whose key cells were edited are paired in order with the base
// rows nothing else matched. Rows that match nothing are appended; tables
// with an ID column get fresh IDs for rows that carry none.
func (e *Engine) Sync(ctx context.Context, base *repository.Collection, edited []Row) (Result, error) {
	def, ok := schema.Lookup(base.Table)
	if !ok {
		return Result{}, fmt.Errorf("Sync: unknown table %q", base.Table)
	}
	if !def.HasID() && len(def.Key) == 0 {
		return Result{}, fmt.Errorf("Sync %s: table has neither an ID column nor a key", base.Table)
	}

	var toDelete []remote.Record
	var remaining []Row
	for _, r := range edited {
		if r.Delete {
			toDelete = append(toDelete, r.Record)
			continue
		}
		remaining = append(remaining, r)
	}

	if len(toDelete) > 0 {
		return e.deleteRows(ctx, def, toDelete)
	}

	merged, updated, added := merge(def, base, remaining)
	if updated == 0 && added == 0 {
		return Result{Outcome: NoChanges}, nil
	}
	if k, dup := duplicateKey(def, base.Records, merged); dup {
		return Result{}, fmt.Errorf("Sync %s: %w: %s", base.Table, ErrDuplicateKey, strings.ReplaceAll(k, "\x1f", "/"))
	}
	if err := e.repo.Replace(ctx, base, merged); err != nil {
		return Result{}, fmt.Errorf("Sync %s: %w", base.Table, err)
	}

	e.log.Info().
		Str("table", string(base.Table)).
		Int("updated", updated).
		Int("added", added).
		Msg("Grid changes saved")
	return Result{Outcome: Replaced, Updated: updated, Added: added}, nil
}

func (e *Engine) deleteRows(ctx context.Context, def schema.Definition, rows []remote.Record) (Result, error) {
	if !def.HasID() {
		return Result{}, fmt.Errorf("Sync %s: rows can only be deleted from tables with an ID column", def.Table)
	}
	res := Result{Outcome: Deleted}
	for _, r := range rows {
		id := strings.TrimSpace(r[schema.ColID])
		if id == "" {
			continue
		}
		found, err := e.repo.DeleteByID(ctx, def.Table, id)
		if err != nil {
			return res, fmt.Errorf("Sync %s: deleting %s: %w", def.Table, id, err)
		}
		if found {
			res.DeletedIDs = append(res.DeletedIDs, parse.NormalizeID(id))
		}
	}
	e.log.Info().Str("table", string(def.Table)).Strs("ids", res.DeletedIDs).Msg("Grid rows deleted")
	return res, nil
}

func rowKey(def schema.Definition, r remote.Record) string {
	if def.HasID() {
		return parse.NormalizeID(r[schema.ColID])
	}
	parts := make([]string, len(def.Key))
	empty := true
	for i, col := range def.Key {
		parts[i] = normalizeCell(def.Kind(col), r[col])
		if parts[i] != "" {
			empty = false
		}
	}
	if empty {
		return ""
	}
	return strings.Join(parts, "\x1f")
}

// merge returns base's records with edits applied, plus how many rows were
// changed and added.
func merge(def schema.Definition, base *repository.Collection, edited []Row) ([]remote.Record, int, int) {
	merged := make([]remote.Record, len(base.Records))
	index := make(map[string]int, len(base.Records))
	for i, r := range base.Records {
		merged[i] = r.Clone()
		if k := rowKey(def, r); k != "" {
			index[k] = i
		}
	}

	target := make([]int, len(edited))
	claimed := make([]bool, len(merged))
	for j, r := range edited {
		target[j] = -1
		k := r.Origin
		if k == "" {
			k = rowKey(def, r.Record)
		}
		if i, ok := index[k]; ok && k != "" && !claimed[i] {
			target[j] = i
			claimed[i] = true
		}
	}

	// A full grid whose key cells were edited: pair the unmatched keyed rows
	// with the unclaimed base rows in order.
	if len(edited) == len(base.Records) {
		next := 0
		for j, r := range edited {
			if target[j] >= 0 || r.Origin != "" || rowKey(def, r.Record) == "" {
				continue
			}
			for next < len(claimed) && claimed[next] {
				next++
			}
			if next == len(claimed) {
				break
			}
			target[j] = next
			claimed[next] = true
		}
	}

	nextID := repository.NextID(base)
	updated, added := 0, 0
	for j, r := range edited {
		if i := target[j]; i >= 0 {
			changed := false
			for col, v := range r.Record {
				if _, known := merged[i][col]; !known {
					continue
				}
				if normalizeCell(def.Kind(col), v) != normalizeCell(def.Kind(col), merged[i][col]) {
					merged[i][col] = v
					changed = true
				}
			}
			if changed {
				updated++
			}
			continue
		}

		if blankRecord(r.Record) {
			continue
		}
		rec := make(remote.Record, len(base.Header))
		for _, h := range base.Header {
			rec[h] = r.Record[h]
		}
		if def.HasID() && strings.TrimSpace(rec[schema.ColID]) == "" {
			rec[schema.ColID] = strconv.Itoa(nextID)
			nextID++
		}
		merged = append(merged, rec)
		added++
	}
	return merged, updated, added
}

// duplicateKey reports the first ID or business key held by more records in
// merged than in base. Duplicates already present in base are left alone.
func duplicateKey(def schema.Definition, base, merged []remote.Record) (string, bool) {
	before := keyCounts(def, base)
	after := keyCounts(def, merged)
	for _, r := range merged {
		k := rowKey(def, r)
		if k != "" && after[k] > 1 && after[k] > before[k] {
			return k, true
		}
	}
	return "", false
}

func keyCounts(def schema.Definition, records []remote.Record) map[string]int {
	counts := make(map[string]int, len(records))
	for _, r := range records {
		if k := rowKey(def, r); k != "" {
			counts[k]++
		}
	}
	return counts
}

// normalizeCell makes cells that differ only in formatting compare equal.
func normalizeCell(kind schema.Kind, v string) string {
	switch kind {
	case schema.KindAmount:
		return parse.Amount(v).String()
	case schema.KindInt:
		return parse.NormalizeID(v)
	case schema.KindMonth:
		if m, ok := parse.Month(v); ok {
			return m.String()
		}
	case schema.KindDate:
		if d, ok := parse.Date(v); ok {
			return d.String()
		}
	}
	return strings.TrimSpace(v)
}

func blankRecord(r remote.Record) bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
