package finance

import (
	"context"
	"fmt"

	"github.com/esathiyasekhar/FinanceTracker/internal/domain"
	"github.com/esathiyasekhar/FinanceTracker/internal/gridsync"
	"github.com/esathiyasekhar/FinanceTracker/internal/reconcile"
	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/esathiyasekhar/FinanceTracker/internal/repository"
	"github.com/esathiyasekhar/FinanceTracker/internal/schema"
)

// DashboardView is the monthly dashboard plus the tables that could not be
// read while building it.
type DashboardView struct {
	reconcile.Dashboard
	Unavailable []schema.Table `json:"unavailable,omitempty"`
}

// Dashboard builds the monthly summary. Unreadable tables are reported in
// the view instead of failing it.
func (s *Service) Dashboard(ctx context.Context, period domain.Period) DashboardView {
	l, unavailable := s.loadLedger(ctx,
		schema.Cards, schema.Statements, schema.CardPayments,
		schema.Loans, schema.LoanRepayments,
		schema.ActiveEMIs, schema.EMILog,
		schema.BankBalances,
	)
	return DashboardView{
		Dashboard:   reconcile.BuildDashboard(l, period, s.Today()),
		Unavailable: unavailable,
	}
}

// CardView is one card with its reconciled bill and this month's payments.
type CardView struct {
	Card     domain.Card          `json:"card"`
	Due      reconcile.CardDue    `json:"due"`
	Payments []domain.CardPayment `json:"payments"`
}

// CardOverview reconciles every card for period.
func (s *Service) CardOverview(ctx context.Context, period domain.Period) ([]CardView, []schema.Table) {
	l, unavailable := s.loadLedger(ctx, schema.Cards, schema.Statements, schema.CardPayments)
	today := s.Today()

	out := make([]CardView, 0, len(l.Cards))
	for _, c := range l.Cards {
		v := CardView{
			Card:     c,
			Due:      reconcile.CardDueFor(c.ID, period, l.Statements, l.Payments, today),
			Payments: []domain.CardPayment{},
		}
		for _, p := range l.Payments {
			if p.CardID == c.ID && p.Period == period {
				v.Payments = append(v.Payments, p)
			}
		}
		out = append(out, v)
	}
	return out, unavailable
}

// LoanView is one active loan with its repayments dated in the month.
type LoanView struct {
	reconcile.LoanDue
	Repayments []domain.LoanRepayment `json:"repayments"`
}

// LoanOverview derives the monthly state of every active loan.
func (s *Service) LoanOverview(ctx context.Context, period domain.Period) ([]LoanView, []schema.Table) {
	l, unavailable := s.loadLedger(ctx, schema.Loans, schema.LoanRepayments)

	var out []LoanView
	for _, due := range reconcile.LoansFor(l, period, s.Today()) {
		v := LoanView{LoanDue: due, Repayments: []domain.LoanRepayment{}}
		for _, r := range l.Repayments {
			if r.LoanID == due.Loan.ID && r.PaymentDate.IsValid() && period.Contains(r.PaymentDate) {
				v.Repayments = append(v.Repayments, r)
			}
		}
		out = append(out, v)
	}
	return out, unavailable
}

// EMIView is one active installment plan with its log entries for the month.
type EMIView struct {
	reconcile.EMIDue
	Log []domain.EMILogEntry `json:"log"`
}

// EMIOverview reports whether each active installment plan was paid in period.
func (s *Service) EMIOverview(ctx context.Context, period domain.Period) ([]EMIView, []schema.Table) {
	l, unavailable := s.loadLedger(ctx, schema.ActiveEMIs, schema.EMILog)

	var out []EMIView
	for _, due := range reconcile.EMIsFor(l, period) {
		v := EMIView{EMIDue: due, Log: []domain.EMILogEntry{}}
		for _, e := range l.EMILog {
			if e.EMIID == due.EMI.ID && e.Period == period {
				v.Log = append(v.Log, e)
			}
		}
		out = append(out, v)
	}
	return out, unavailable
}

// Grid returns table for editing, optionally narrowed to the rows whose
// columns equal the given values.
func (s *Service) Grid(ctx context.Context, table schema.Table, where map[string]string) (*repository.Collection, error) {
	c, err := s.store.Load(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("Grid: %w", err)
	}
	if len(where) == 0 {
		return c, nil
	}
	narrowed := c.Clone()
	narrowed.Records = c.Filter(func(r remote.Record) bool {
		for col, want := range where {
			if r[col] != want {
				return false
			}
		}
		return true
	})
	return narrowed, nil
}

// SyncGrid applies grid edits to table. When version is set it must match
// the table as it is now, otherwise remote.ErrVersionConflict is returned and
// nothing is written.
func (s *Service) SyncGrid(ctx context.Context, table schema.Table, version string, rows []gridsync.Row) (gridsync.Result, error) {
	defer s.lock()()

	base, err := s.store.LoadFresh(ctx, table)
	if err != nil {
		return gridsync.Result{}, fmt.Errorf("SyncGrid: %w", err)
	}
	if version != "" && version != base.Version {
		return gridsync.Result{}, fmt.Errorf("SyncGrid: %w", &remote.ConflictError{Table: string(table), Expected: version, Current: base.Version})
	}
	res, err := s.grid.Sync(ctx, base, rows)
	if err != nil {
		return res, fmt.Errorf("SyncGrid: %w", err)
	}
	return res, nil
}
