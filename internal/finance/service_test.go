package finance

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/esathiyasekhar/FinanceTracker/internal/cache"
	"github.com/esathiyasekhar/FinanceTracker/internal/domain"
	"github.com/esathiyasekhar/FinanceTracker/internal/gridsync"
	"github.com/esathiyasekhar/FinanceTracker/internal/reconcile"
	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/esathiyasekhar/FinanceTracker/internal/remote/inmemory"
	"github.com/esathiyasekhar/FinanceTracker/internal/repository"
	"github.com/esathiyasekhar/FinanceTracker/internal/schema"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	october = domain.Period{Year: 2025, Month: time.October}
	now     = time.Date(2025, time.October, 20, 10, 0, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService(t *testing.T, provision bool) (*Service, *inmemory.Store) {
	t.Helper()
	store := inmemory.NewStore()
	client := remote.NewClient(store, remote.WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))
	tables := cache.New(client)
	client.OnWrite(tables.Invalidate)
	repo := repository.New(client, tables, zerolog.Nop())
	if provision {
		if _, err := repo.Provision(context.Background()); err != nil {
			t.Fatalf("Provision failed: %v", err)
		}
	}
	svc := NewService(repo, gridsync.New(repo, zerolog.Nop()),
		WithClock(func() time.Time { return now }),
		WithLocation(time.UTC),
	)
	store.ResetCalls()
	return svc, store
}

func writes(store *inmemory.Store) int {
	n := 0
	for _, c := range store.Calls() {
		if c.Op != "ReadAll" && c.Op != "Tables" {
			n++
		}
	}
	return n
}

func TestAddCard(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, true)

	card, err := svc.AddCard(ctx, CardInput{Name: "Visa Card", Limit: dec("100000"), MatchCode: "4321"})
	if err != nil {
		t.Fatalf("AddCard failed: %v", err)
	}
	if card.ID != "1" || card.GraceDays != domain.DefaultGraceDays {
		t.Errorf("Unexpected card: %+v", card)
	}

	tests := []struct {
		name    string
		in      CardInput
		wantErr error
		noCalls bool
	}{
		{"missing name", CardInput{Name: "  "}, ErrMissingField, true},
		{"negative limit", CardInput{Name: "Amex", Limit: dec("-1")}, ErrInvalidAmount, true},
		{"duplicate name", CardInput{Name: "  visa card  "}, ErrDuplicate, false},
		{"duplicate match code", CardInput{Name: "Amex", MatchCode: "4321"}, ErrDuplicate, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.ResetCalls()
			_, err := svc.AddCard(ctx, tt.in)
			if !errors.Is(err, tt.wantErr) || !errors.Is(err, ErrValidation) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
			if tt.noCalls && len(store.Calls()) != 0 {
				t.Errorf("Expected no remote calls, got %+v", store.Calls())
			}
			if writes(store) != 0 {
				t.Errorf("Expected no writes, got %+v", store.Calls())
			}
		})
	}

	second, err := svc.AddCard(ctx, CardInput{Name: "Visa Card 2"})
	if err != nil {
		t.Fatalf("AddCard failed: %v", err)
	}
	if second.ID != "2" {
		t.Errorf("Expected ID 2, got %s", second.ID)
	}
}

func TestUpdateAndDeleteCard(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, true)
	visa, _ := svc.AddCard(ctx, CardInput{Name: "Visa"})
	_, _ = svc.AddCard(ctx, CardInput{Name: "Amex"})

	if _, err := svc.UpdateCard(ctx, visa.ID, CardInput{Name: "amex"}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Expected duplicate error when renaming onto another card, got %v", err)
	}
	ok, err := svc.UpdateCard(ctx, visa.ID, CardInput{Name: "Visa", Limit: dec("50000"), GraceDays: 18})
	if err != nil || !ok {
		t.Fatalf("UpdateCard = (%v, %v)", ok, err)
	}
	ok, err = svc.UpdateCard(ctx, "99", CardInput{Name: "Ghost"})
	if err != nil || ok {
		t.Errorf("UpdateCard on missing id = (%v, %v), want (false, nil)", ok, err)
	}

	views, _ := svc.CardOverview(ctx, october)
	if len(views) != 2 || views[0].Card.GraceDays != 18 || !views[0].Card.Limit.Equal(dec("50000")) {
		t.Errorf("Unexpected cards after update: %+v", views)
	}

	ok, err = svc.DeleteCard(ctx, visa.ID)
	if err != nil || !ok {
		t.Fatalf("DeleteCard = (%v, %v)", ok, err)
	}
	views, _ = svc.CardOverview(ctx, october)
	if len(views) != 1 || views[0].Card.Name != "Amex" {
		t.Errorf("Unexpected cards after delete: %+v", views)
	}
}

func TestSaveStatement(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, true)
	card, _ := svc.AddCard(ctx, CardInput{Name: "Visa", GraceDays: 20})

	stmt, err := svc.SaveStatement(ctx, StatementInput{
		CardID:   card.ID,
		Period:   october,
		StmtDate: civil.Date{Year: 2025, Month: time.October, Day: 3},
		Billed:   dec("5000"),
	})
	if err != nil {
		t.Fatalf("SaveStatement failed: %v", err)
	}
	if want := (civil.Date{Year: 2025, Month: time.October, Day: 23}); stmt.DueDate != want {
		t.Errorf("Expected due date %v, got %v", want, stmt.DueDate)
	}

	if _, err := svc.RecordCardPayment(ctx, CardPaymentInput{CardID: card.ID, Period: october, Amount: dec("2000")}); err != nil {
		t.Fatalf("RecordCardPayment failed: %v", err)
	}
	if _, err := svc.RecordCardPayment(ctx, CardPaymentInput{CardID: card.ID, Period: october, Amount: dec("1000")}); err != nil {
		t.Fatalf("RecordCardPayment failed: %v", err)
	}

	// Saving again replaces the row and carries the reconciled paid amount.
	stmt, err = svc.SaveStatement(ctx, StatementInput{
		CardID:   card.ID,
		Period:   october,
		StmtDate: civil.Date{Year: 2025, Month: time.October, Day: 3},
		DueDate:  civil.Date{Year: 2025, Month: time.October, Day: 25},
		Billed:   dec("5000"),
		Unbilled: dec("750"),
	})
	if err != nil {
		t.Fatalf("SaveStatement failed: %v", err)
	}
	if !stmt.Paid.Equal(dec("3000")) {
		t.Errorf("Expected stored paid 3000, got %s", stmt.Paid)
	}
	if rows := store.Rows("Statements"); len(rows) != 2 {
		t.Errorf("Expected exactly one statement row, got %d rows", len(rows)-1)
	}

	views, _ := svc.CardOverview(ctx, october)
	due := views[0].Due
	if !due.Remaining.Equal(dec("2000")) || due.Status != reconcile.StatusDueSoon || len(views[0].Payments) != 2 {
		t.Errorf("Unexpected reconciled due: %+v", due)
	}

	if _, err := svc.SaveStatement(ctx, StatementInput{CardID: "42", Period: october}); !errors.Is(err, ErrUnknownRef) {
		t.Errorf("Expected unknown card error, got %v", err)
	}
}

func TestRecordCardPayment_Validation(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, true)

	for _, amount := range []string{"0", "-5"} {
		_, err := svc.RecordCardPayment(ctx, CardPaymentInput{CardID: "1", Period: october, Amount: dec(amount)})
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("amount %s: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	if len(store.Calls()) != 0 {
		t.Errorf("Expected validation before any remote call, got %+v", store.Calls())
	}
}

func TestRecordLoanPayment(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, true)

	loan, err := svc.AddLoan(ctx, LoanInput{Source: "HDFC", Type: "Home", Principal: dec("3000"), EMI: dec("1200")})
	if err != nil {
		t.Fatalf("AddLoan failed: %v", err)
	}
	if !loan.Outstanding.Equal(dec("3000")) || loan.Status != domain.LoanActive || loan.DueDay != 5 {
		t.Errorf("Unexpected loan: %+v", loan)
	}

	views, _ := svc.LoanOverview(ctx, october)
	if len(views) != 1 || views[0].Paid || views[0].Status != reconcile.StatusOverdue {
		t.Fatalf("Expected unpaid overdue loan before payment, got %+v", views)
	}

	if _, err := svc.RecordLoanPayment(ctx, LoanPaymentInput{LoanID: loan.ID, Amount: dec("1200")}); err != nil {
		t.Fatalf("RecordLoanPayment failed: %v", err)
	}
	if _, err := svc.RecordLoanPayment(ctx, LoanPaymentInput{LoanID: loan.ID, Amount: dec("5000"), Type: "prepayment"}); err != nil {
		t.Fatalf("RecordLoanPayment failed: %v", err)
	}

	views, _ = svc.LoanOverview(ctx, october)
	if !views[0].Paid || len(views[0].Repayments) != 2 {
		t.Errorf("Expected paid loan with 2 repayments, got %+v", views[0])
	}
	if !views[0].Loan.Outstanding.Equal(decimal.Zero) {
		t.Errorf("Expected outstanding floored at 0, got %s", views[0].Loan.Outstanding)
	}
	if views[0].Repayments[1].Type != domain.RepaymentPrepayment {
		t.Errorf("Expected canonical repayment type, got %q", views[0].Repayments[1].Type)
	}

	if _, err := svc.RecordLoanPayment(ctx, LoanPaymentInput{LoanID: loan.ID, Amount: dec("1"), Type: "Bribe"}); !errors.Is(err, ErrInvalidType) {
		t.Errorf("Expected ErrInvalidType, got %v", err)
	}
}

func TestRecordLoanPayment_AfterHandEditOfCachedLoans(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, true)

	loan, err := svc.AddLoan(ctx, LoanInput{Source: "SBI", Type: "Car", Principal: dec("10000"), EMI: dec("1000")})
	if err != nil {
		t.Fatalf("AddLoan failed: %v", err)
	}
	// Warm the cache, then change the sheet behind its back.
	svc.LoanOverview(ctx, october)
	rows := store.Rows("Loans")
	header, edited := rows[0], rows[1]
	for i, col := range header {
		if col == "Rate" {
			edited[i] = "8.5"
		}
	}
	store.Seed("Loans", header, edited)

	for i := 0; i < 2; i++ {
		if _, err := svc.RecordLoanPayment(ctx, LoanPaymentInput{LoanID: loan.ID, Amount: dec("1000")}); err != nil {
			t.Fatalf("RecordLoanPayment #%d failed: %v", i+1, err)
		}
	}

	views, _ := svc.LoanOverview(ctx, october)
	if len(views) != 1 || len(views[0].Repayments) != 2 {
		t.Fatalf("Expected one loan with 2 repayments, got %+v", views)
	}
	if !views[0].Loan.Outstanding.Equal(dec("8000")) {
		t.Errorf("Expected outstanding 8000, got %s", views[0].Loan.Outstanding)
	}
	if !views[0].Loan.Rate.Equal(dec("8.5")) {
		t.Errorf("Expected the hand edit to survive, got rate %s", views[0].Loan.Rate)
	}
}

func TestRecordLoanPayment_FailedAppendRestoresOutstanding(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, true)

	loan, err := svc.AddLoan(ctx, LoanInput{Source: "SBI", Type: "Car", Principal: dec("10000"), EMI: dec("1000")})
	if err != nil {
		t.Fatalf("AddLoan failed: %v", err)
	}
	// The outstanding replace writes the header and the rows; the third
	// append is the repayment.
	store.FailNext("AppendRows", nil, nil, errors.New("backend down"))

	if _, err := svc.RecordLoanPayment(ctx, LoanPaymentInput{LoanID: loan.ID, Amount: dec("1000")}); err == nil {
		t.Fatal("Expected the failed append to be reported")
	}

	views, _ := svc.LoanOverview(ctx, october)
	if len(views) != 1 || len(views[0].Repayments) != 0 {
		t.Fatalf("Expected no repayment, got %+v", views)
	}
	if !views[0].Loan.Outstanding.Equal(dec("10000")) {
		t.Errorf("Expected outstanding restored to 10000, got %s", views[0].Loan.Outstanding)
	}
}

func TestMarkEMIPaid_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, true)
	card, _ := svc.AddCard(ctx, CardInput{Name: "Visa"})

	if _, err := svc.AddEMI(ctx, EMIInput{CardID: "9", Item: "Phone", MonthlyEMI: dec("500")}); !errors.Is(err, ErrUnknownRef) {
		t.Errorf("Expected unknown card error, got %v", err)
	}
	emi, err := svc.AddEMI(ctx, EMIInput{CardID: card.ID, Item: "Phone", TotalVal: dec("6000"), MonthlyEMI: dec("500")})
	if err != nil {
		t.Fatalf("AddEMI failed: %v", err)
	}
	if emi.Beneficiary != "Self" || emi.Tenure != 12 {
		t.Errorf("Expected defaults applied, got %+v", emi)
	}

	first, err := svc.MarkEMIPaid(ctx, emi.ID, october)
	if err != nil || !first {
		t.Fatalf("MarkEMIPaid = (%v, %v), want (true, nil)", first, err)
	}
	second, err := svc.MarkEMIPaid(ctx, emi.ID, october)
	if err != nil || second {
		t.Fatalf("second MarkEMIPaid = (%v, %v), want (false, nil)", second, err)
	}
	if rows := store.Rows("EMI_Log"); len(rows) != 2 {
		t.Errorf("Expected a single log row, got %d", len(rows)-1)
	}

	views, _ := svc.EMIOverview(ctx, october)
	if len(views) != 1 || !views[0].Paid || len(views[0].Log) != 1 {
		t.Errorf("Unexpected EMI overview: %+v", views)
	}
}

func TestSaveBankBalances_ReplacesOnlyThePeriod(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, true)
	hdfc, _ := svc.AddBank(ctx, BankInput{Name: "HDFC"})
	icici, _ := svc.AddBank(ctx, BankInput{Name: "ICICI", Type: "current"})

	if _, err := svc.AddBank(ctx, BankInput{Name: "hdfc "}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Expected duplicate bank error, got %v", err)
	}

	sept := october.Previous()
	if err := svc.SaveBankBalances(ctx, sept, map[string]decimal.Decimal{hdfc.ID: dec("900")}); err != nil {
		t.Fatalf("SaveBankBalances failed: %v", err)
	}
	if err := svc.SaveBankBalances(ctx, october, map[string]decimal.Decimal{hdfc.ID: dec("1000"), icici.ID: dec("250")}); err != nil {
		t.Fatalf("SaveBankBalances failed: %v", err)
	}
	if err := svc.SaveBankBalances(ctx, october, map[string]decimal.Decimal{hdfc.ID: dec("1100"), icici.ID: dec("250")}); err != nil {
		t.Fatalf("SaveBankBalances failed: %v", err)
	}

	want := [][]string{
		{"BankID", "Year", "Month", "Balance"},
		{"1", "2025", "September", "900"},
		{"1", "2025", "October", "1100"},
		{"2", "2025", "October", "250"},
	}
	if diff := cmp.Diff(want, store.Rows("Bank_Balances")); diff != "" {
		t.Errorf("balances mismatch (-want +got):\n%s", diff)
	}

	d := svc.Dashboard(ctx, october)
	if !d.NetLiquidity.Equal(dec("1350")) {
		t.Errorf("Expected net liquidity 1350, got %s", d.NetLiquidity)
	}

	if err := svc.SaveBankBalances(ctx, october, map[string]decimal.Decimal{"77": dec("1")}); !errors.Is(err, ErrUnknownRef) {
		t.Errorf("Expected unknown bank error, got %v", err)
	}
}

func TestSaveBankBalances_RejectsSameBankUnderTwoSpellings(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, true)
	if _, err := svc.AddBank(ctx, BankInput{Name: "HDFC"}); err != nil {
		t.Fatalf("AddBank failed: %v", err)
	}
	store.ResetCalls()

	err := svc.SaveBankBalances(ctx, october, map[string]decimal.Decimal{"1": dec("100"), "1.0": dec("200")})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	for _, op := range []string{"Clear", "AppendRows", "DeleteRow"} {
		if got := store.CallCount(op); got != 0 {
			t.Errorf("Expected no writes, got %d %s calls", got, op)
		}
	}
	if got := len(store.Rows("Bank_Balances")); got > 1 {
		t.Errorf("Expected no balance rows, got %d", got-1)
	}
}

func TestImportCandidates(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, true)
	if _, err := svc.AddTransaction(ctx, TransactionInput{Type: "income", Amount: dec("50000"), Category: "Salary"}); err != nil {
		t.Fatalf("AddTransaction failed: %v", err)
	}

	candidates := []domain.Candidate{
		{Date: civil.Date{Year: 2025, Month: time.September, Day: 28}, Amount: dec("120.50"), Description: "Groceries"},
		{Amount: dec("0"), Description: "zero"},
		{Amount: dec("-40"), Description: "refund"},
		{Amount: dec("99")},
	}
	store.ResetCalls()
	stored, err := svc.ImportCandidates(ctx, october, "Card: Visa", candidates)
	if err != nil {
		t.Fatalf("ImportCandidates failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("Expected 2 imported, got %d", len(stored))
	}
	if stored[0].ID != "2" || stored[1].ID != "3" {
		t.Errorf("Expected sequential IDs 2 and 3, got %s and %s", stored[0].ID, stored[1].ID)
	}
	if stored[0].Period.Month != time.September || stored[1].Period != october {
		t.Errorf("Unexpected periods: %v, %v", stored[0].Period, stored[1].Period)
	}
	if stored[1].Notes != "Upload" || stored[1].SourceAccount != "Card: Visa" || stored[1].Category != "Statement" {
		t.Errorf("Unexpected defaults: %+v", stored[1])
	}
	if got := store.CallCount("AppendRows"); got != 1 {
		t.Errorf("Expected one batched append, got %d", got)
	}

	txs, err := svc.Transactions(ctx, october)
	if err != nil {
		t.Fatalf("Transactions failed: %v", err)
	}
	if len(txs) != 2 {
		t.Errorf("Expected 2 October transactions, got %d", len(txs))
	}
}

func TestDetectSource(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, true)
	_, _ = svc.AddCard(ctx, CardInput{Name: "Visa", MatchCode: "4321"})
	_, _ = svc.AddBank(ctx, BankInput{Name: "HDFC", MatchCode: "HDFC"})

	tests := map[string]string{
		"statement_4321_oct.xlsx": "Card: Visa",
		"HDFC_savings.csv":        "Bank: HDFC",
		"random.csv":              "Unknown",
	}
	for filename, want := range tests {
		if got := svc.DetectSource(ctx, filename); got != want {
			t.Errorf("DetectSource(%q) = %q, want %q", filename, got, want)
		}
	}
}

func TestDashboard_ReportsUnavailableTables(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, false)
	store.Seed("Bank_Balances", []string{"BankID", "Year", "Month", "Balance"}, []string{"1", "2025", "October", "500"})

	d := svc.Dashboard(ctx, october)
	if !d.NetLiquidity.Equal(dec("500")) {
		t.Errorf("Expected liquidity from the readable table, got %s", d.NetLiquidity)
	}
	if len(d.Unavailable) != 7 {
		t.Errorf("Expected 7 unavailable tables, got %v", d.Unavailable)
	}
}

func TestSyncGrid(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, true)
	_, _ = svc.AddBank(ctx, BankInput{Name: "HDFC"})
	_, _ = svc.AddBank(ctx, BankInput{Name: "ICICI"})

	grid, err := svc.Grid(ctx, schema.Banks, nil)
	if err != nil {
		t.Fatalf("Grid failed: %v", err)
	}
	stale := grid.Version
	_, _ = svc.AddBank(ctx, BankInput{Name: "Axis"})

	rows := []gridsync.Row{{Record: remote.Record{"ID": "1", "Name": "HDFC Bank"}}}
	if _, err := svc.SyncGrid(ctx, schema.Banks, stale, rows); !errors.Is(err, remote.ErrVersionConflict) {
		t.Fatalf("Expected version conflict, got %v", err)
	}

	fresh, _ := svc.Grid(ctx, schema.Banks, map[string]string{"ID": "1"})
	if fresh.Len() != 1 {
		t.Fatalf("Expected narrowed grid of 1 row, got %d", fresh.Len())
	}
	res, err := svc.SyncGrid(ctx, schema.Banks, fresh.Version, rows)
	if err != nil {
		t.Fatalf("SyncGrid failed: %v", err)
	}
	if res.Outcome != gridsync.Replaced {
		t.Errorf("Expected replace, got %+v", res)
	}
	if got := store.Rows("Banks"); len(got) != 4 || got[1][1] != "HDFC Bank" {
		t.Errorf("Unexpected banks table: %v", got)
	}
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, true)

	if err := svc.SetSetting(ctx, "last_mirror", "2025-10-01"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if err := svc.SetSetting(ctx, "last_mirror", "2025-10-20"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	got, err := svc.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"last_mirror": "2025-10-20"}, got); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
}
