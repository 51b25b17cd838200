package repository

import (
	"context"
	"fmt"

	"github.com/esathiyasekhar/FinanceTracker/internal/schema"
)

// ProvisionResult describes what Provision changed for one table.
type ProvisionResult struct {
	Table        schema.Table
	Created      bool
	AddedColumns []string
}

// Changed reports whether the table was touched.
func (p ProvisionResult) Changed() bool {
	return p.Created || len(p.AddedColumns) > 0
}

// Provision makes sure every declared table exists and carries every
// declared column. Missing tables are created with the full header; existing
// tables only get missing columns appended to their header. Nothing is ever
// removed or reordered.
func (r *Repository) Provision(ctx context.Context) ([]ProvisionResult, error) {
	existing, err := r.client.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("Provision: listing tables: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[name] = true
	}

	var results []ProvisionResult
	for _, def := range schema.All() {
		res := ProvisionResult{Table: def.Table}
		name := string(def.Table)

		if !have[name] {
			if err := r.client.CreateTable(ctx, name, def.ColumnNames()); err != nil {
				return results, fmt.Errorf("Provision: creating %s: %w", name, err)
			}
			res.Created = true
			r.log.Info().Str("table", name).Msg("Created table")
			results = append(results, res)
			continue
		}

		raw, err := r.client.ReadAll(ctx, name)
		if err != nil {
			return results, fmt.Errorf("Provision: reading %s: %w", name, err)
		}
		present := make(map[string]bool, len(raw.Header))
		for _, h := range raw.Header {
			present[h] = true
		}
		header := append([]string(nil), raw.Header...)
		for _, col := range def.ColumnNames() {
			if !present[col] {
				header = append(header, col)
				res.AddedColumns = append(res.AddedColumns, col)
			}
		}
		if len(res.AddedColumns) > 0 {
			if err := r.client.SetHeader(ctx, name, header); err != nil {
				return results, fmt.Errorf("Provision: extending header of %s: %w", name, err)
			}
			r.log.Info().Str("table", name).Strs("columns", res.AddedColumns).Msg("Added missing columns")
		}
		results = append(results, res)
	}
	return results, nil
}
