package gridsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/esathiyasekhar/FinanceTracker/internal/remote/inmemory"
	"github.com/esathiyasekhar/FinanceTracker/internal/repository"
	"github.com/esathiyasekhar/FinanceTracker/internal/schema"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

var paymentsHeader = []string{"ID", "CardID", "Year", "Month", "Date", "Amount", "Note"}

func setup(t *testing.T) (*Engine, *repository.Repository, *inmemory.Store) {
	t.Helper()
	store := inmemory.NewStore()
	store.Seed("Card_Payments", paymentsHeader,
		[]string{"1", "1", "2025", "October", "2025-10-05", "2000", "first"},
		[]string{"2", "1", "2025", "October", "2025-10-12", "1000", "second"},
		[]string{"3", "2", "2025", "October", "2025-10-15", "750", "other card"},
	)
	client := remote.NewClient(store, remote.WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))
	repo := repository.New(client, nil, zerolog.Nop())
	return New(repo, zerolog.Nop()), repo, store
}

func gridOf(c *repository.Collection) []Row {
	rows := make([]Row, len(c.Records))
	for i, r := range c.Records {
		rows[i] = Row{Record: r.Clone()}
	}
	return rows
}

func TestSync_DeleteThenStop(t *testing.T) {
	ctx := context.Background()
	engine, repo, store := setup(t)

	base, err := repo.Load(ctx, schema.CardPayments)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	grid := gridOf(base)
	grid[1].Delete = true
	// An edit in the same cycle is not applied.
	grid[0].Record["Note"] = "edited"

	store.ResetCalls()
	res, err := engine.Sync(ctx, base, grid)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if res.Outcome != Deleted {
		t.Errorf("Expected outcome %q, got %q", Deleted, res.Outcome)
	}

	var deletes, clears int
	for _, c := range store.Calls() {
		switch c.Op {
		case "DeleteRow":
			deletes++
			if c.Position != 3 {
				t.Errorf("Expected delete at position 3, got %d", c.Position)
			}
		case "Clear", "AppendRows":
			clears++
		}
	}
	if deletes != 1 || clears != 0 {
		t.Errorf("Expected exactly one delete and no replace, got %d deletes and %d writes", deletes, clears)
	}

	want := [][]string{
		paymentsHeader,
		{"1", "1", "2025", "October", "2025-10-05", "2000", "first"},
		{"3", "2", "2025", "October", "2025-10-15", "750", "other card"},
	}
	if diff := cmp.Diff(want, store.Rows("Card_Payments")); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestSync_NoChangesMakesNoCalls(t *testing.T) {
	ctx := context.Background()
	engine, repo, store := setup(t)

	base, _ := repo.Load(ctx, schema.CardPayments)
	grid := gridOf(base)
	// Formatting-only differences are not changes.
	grid[0].Record["Amount"] = "2000.00"
	grid[0].Record["Month"] = "oct"

	store.ResetCalls()
	res, err := engine.Sync(ctx, base, grid)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if res.Outcome != NoChanges {
		t.Errorf("Expected %q, got %q", NoChanges, res.Outcome)
	}
	if calls := store.Calls(); len(calls) != 0 {
		t.Errorf("Expected no remote calls, got %+v", calls)
	}
}

func TestSync_FilteredViewEditKeepsOtherRows(t *testing.T) {
	ctx := context.Background()
	engine, repo, store := setup(t)

	base, _ := repo.Load(ctx, schema.CardPayments)
	// The grid shows card 1 only.
	var grid []Row
	for _, r := range base.Filter(func(r remote.Record) bool { return r["CardID"] == "1" }) {
		grid = append(grid, Row{Record: r.Clone()})
	}
	grid[1].Record["Amount"] = "1500"
	grid = append(grid, Row{Record: remote.Record{"CardID": "1", "Year": "2025", "Month": "October", "Amount": "300"}})

	store.ResetCalls()
	res, err := engine.Sync(ctx, base, grid)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if res.Outcome != Replaced || res.Updated != 1 || res.Added != 1 {
		t.Errorf("Unexpected result: %+v", res)
	}
	if got := store.CallCount("Clear"); got != 1 {
		t.Errorf("Expected exactly one replace, got %d clears", got)
	}

	rows := store.Rows("Card_Payments")
	if len(rows) != 5 {
		t.Fatalf("Expected header plus 4 rows, got %d", len(rows))
	}
	if rows[2][5] != "1500" {
		t.Errorf("Expected edited amount, got %q", rows[2][5])
	}
	if rows[3][0] != "3" || rows[3][6] != "other card" {
		t.Errorf("Expected row outside the view untouched, got %v", rows[3])
	}
	if rows[4][0] != "4" {
		t.Errorf("Expected new row to get ID 4, got %q", rows[4][0])
	}
}

func TestSync_KeyedTable(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	store.Seed("Bank_Balances", []string{"BankID", "Year", "Month", "Balance"},
		[]string{"1", "2025", "October", "10000"},
		[]string{"2", "2025", "October", "5000"},
	)
	client := remote.NewClient(store)
	repo := repository.New(client, nil, zerolog.Nop())
	engine := New(repo, zerolog.Nop())

	base, _ := repo.Load(ctx, schema.BankBalances)
	grid := []Row{{Record: remote.Record{"BankID": "2.0", "Year": "2025", "Month": "Oct", "Balance": "6500"}}}

	res, err := engine.Sync(ctx, base, grid)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if res.Outcome != Replaced || res.Updated != 1 {
		t.Errorf("Unexpected result: %+v", res)
	}
	want := [][]string{
		{"BankID", "Year", "Month", "Balance"},
		{"1", "2025", "October", "10000"},
		{"2", "2025", "October", "6500"},
	}
	if diff := cmp.Diff(want, store.Rows("Bank_Balances")); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}

	grid[0].Delete = true
	if _, err := engine.Sync(ctx, base, grid); err == nil {
		t.Error("Expected deleting from a table without IDs to fail")
	}
}

func TestSync_EditedIDChangesRowInPlace(t *testing.T) {
	ctx := context.Background()
	engine, repo, store := setup(t)

	base, _ := repo.Load(ctx, schema.CardPayments)
	grid := gridOf(base)
	grid[1].Record["ID"] = "5"

	res, err := engine.Sync(ctx, base, grid)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if res.Outcome != Replaced || res.Updated != 1 || res.Added != 0 {
		t.Errorf("Unexpected result: %+v", res)
	}
	want := [][]string{
		paymentsHeader,
		{"1", "1", "2025", "October", "2025-10-05", "2000", "first"},
		{"5", "1", "2025", "October", "2025-10-12", "1000", "second"},
		{"3", "2", "2025", "October", "2025-10-15", "750", "other card"},
	}
	if diff := cmp.Diff(want, store.Rows("Card_Payments")); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestSync_EditedKeyOverFilteredViewUsesOrigin(t *testing.T) {
	ctx := context.Background()
	header := schema.MustLookup(schema.Statements).ColumnNames()
	store := inmemory.NewStore()
	store.Seed("Statements", header,
		[]string{"1", "2025", "October", "2025-10-01", "5000", "0", "", "0", "2025-10-21"},
		[]string{"2", "2025", "October", "2025-10-03", "800", "0", "", "0", "2025-10-23"},
	)
	repo := repository.New(remote.NewClient(store), nil, zerolog.Nop())
	engine := New(repo, zerolog.Nop())

	base, _ := repo.Load(ctx, schema.Statements)
	view := base.Clone()
	view.Records = base.Filter(func(r remote.Record) bool { return r["CardID"] == "1" })
	grid := RowsOf(view)
	grid[0].Record["Month"] = "November"

	res, err := engine.Sync(ctx, base, grid)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if res.Updated != 1 || res.Added != 0 {
		t.Errorf("Unexpected result: %+v", res)
	}
	want := [][]string{
		header,
		{"1", "2025", "November", "2025-10-01", "5000", "0", "", "0", "2025-10-21"},
		{"2", "2025", "October", "2025-10-03", "800", "0", "", "0", "2025-10-23"},
	}
	if diff := cmp.Diff(want, store.Rows("Statements")); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestSync_RejectsDuplicateKey(t *testing.T) {
	ctx := context.Background()
	engine, repo, store := setup(t)

	base, _ := repo.Load(ctx, schema.CardPayments)
	grid := RowsOf(base)
	grid[1].Record["ID"] = "1"

	store.ResetCalls()
	if _, err := engine.Sync(ctx, base, grid); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}
	if calls := store.Calls(); len(calls) != 0 {
		t.Errorf("Expected no remote calls, got %+v", calls)
	}
}
