package finance

import (
	"context"
	"fmt"

	"github.com/esathiyasekhar/FinanceTracker/internal/domain"
	"github.com/esathiyasekhar/FinanceTracker/internal/reconcile"
	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/esathiyasekhar/FinanceTracker/internal/repository"
	"github.com/esathiyasekhar/FinanceTracker/internal/schema"
)

func convert[T any](c *repository.Collection, from func(remote.Record) T) []T {
	out := make([]T, 0, c.Len())
	for _, r := range c.Records {
		out = append(out, from(r))
	}
	return out
}

// loadLedger reads the given tables for a read view. Tables that cannot be
// read contribute nothing and are reported back.
func (s *Service) loadLedger(ctx context.Context, tables ...schema.Table) (reconcile.Ledger, []schema.Table) {
	var l reconcile.Ledger
	var unavailable []schema.Table
	for _, t := range tables {
		c := s.store.LoadOrEmpty(ctx, t)
		if c.State() == repository.StateUnavailable {
			unavailable = append(unavailable, t)
		}
		switch t {
		case schema.Cards:
			l.Cards = convert(c, domain.CardFromRecord)
		case schema.Statements:
			l.Statements = convert(c, domain.StatementFromRecord)
		case schema.CardPayments:
			l.Payments = convert(c, domain.CardPaymentFromRecord)
		case schema.Loans:
			l.Loans = convert(c, domain.LoanFromRecord)
		case schema.LoanRepayments:
			l.Repayments = convert(c, domain.LoanRepaymentFromRecord)
		case schema.ActiveEMIs:
			l.EMIs = convert(c, domain.EMIFromRecord)
		case schema.EMILog:
			l.EMILog = convert(c, domain.EMILogEntryFromRecord)
		case schema.Banks:
			l.Banks = convert(c, domain.BankFromRecord)
		case schema.BankBalances:
			l.Balances = convert(c, domain.BankBalanceFromRecord)
		}
	}
	return l, unavailable
}

// Ledgers reads the append-only ledgers and the transactions in full. Unlike
// the read views it fails when any of them cannot be read.
func (s *Service) Ledgers(ctx context.Context) (reconcile.Ledger, []domain.Transaction, error) {
	tables := []schema.Table{schema.CardPayments, schema.LoanRepayments, schema.EMILog, schema.Transactions}
	loaded := make(map[schema.Table]*repository.Collection, len(tables))
	for _, t := range tables {
		c, err := s.store.Load(ctx, t)
		if err != nil {
			return reconcile.Ledger{}, nil, fmt.Errorf("Ledgers: %w", err)
		}
		loaded[t] = c
	}
	l := reconcile.Ledger{
		Payments:   convert(loaded[schema.CardPayments], domain.CardPaymentFromRecord),
		Repayments: convert(loaded[schema.LoanRepayments], domain.LoanRepaymentFromRecord),
		EMILog:     convert(loaded[schema.EMILog], domain.EMILogEntryFromRecord),
	}
	return l, convert(loaded[schema.Transactions], domain.TransactionFromRecord), nil
}
