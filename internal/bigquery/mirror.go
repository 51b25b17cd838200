package bigquery

import (
	"context"
	"fmt"
	"time"

	"github.com/esathiyasekhar/FinanceTracker/internal/domain"
	"github.com/esathiyasekhar/FinanceTracker/internal/reconcile"
	"github.com/esathiyasekhar/FinanceTracker/internal/schema"
	"github.com/rs/zerolog"
)

// BuildLedgerEvents flattens the ledgers of l and txs into event rows. Entries
// without an ID or with a zero amount are skipped.
func BuildLedgerEvents(l reconcile.Ledger, txs []domain.Transaction, mirroredAt time.Time) []*LedgerEventRow {
	var rows []*LedgerEventRow
	add := func(table schema.Table, id string, row *LedgerEventRow) {
		if id == "" || row.Amount == nil || row.Amount.Sign() == 0 {
			return
		}
		row.EventID = string(table) + ":" + id
		row.SourceTable = string(table)
		row.SourceID = id
		row.MirroredTS = mirroredAt
		rows = append(rows, row)
	}

	for _, p := range l.Payments {
		add(schema.CardPayments, p.ID, &LedgerEventRow{
			EventType:   EventCardPayment,
			EntityID:    nullString(p.CardID),
			EventDate:   nullDate(p.Date),
			PeriodYear:  int64(p.Period.Year),
			PeriodMonth: int64(p.Period.Month),
			Amount:      p.Amount.Rat(),
			Direction:   DirectionOut,
			Notes:       nullString(p.Note),
		})
	}
	for _, r := range l.Repayments {
		period := domain.PeriodOf(r.PaymentDate)
		add(schema.LoanRepayments, r.ID, &LedgerEventRow{
			EventType:   EventLoanRepayment,
			EntityID:    nullString(r.LoanID),
			EventDate:   nullDate(r.PaymentDate),
			PeriodYear:  int64(period.Year),
			PeriodMonth: int64(period.Month),
			Amount:      r.Amount.Rat(),
			Direction:   DirectionOut,
			Category:    nullString(r.Type),
		})
	}
	for _, e := range l.EMILog {
		add(schema.EMILog, e.ID, &LedgerEventRow{
			EventType:   EventEMIInstallment,
			EntityID:    nullString(e.EMIID),
			EventDate:   nullDate(e.Date),
			PeriodYear:  int64(e.Period.Year),
			PeriodMonth: int64(e.Period.Month),
			Amount:      e.Amount.Rat(),
			Direction:   DirectionOut,
		})
	}
	for _, t := range txs {
		direction := DirectionOut
		if t.Type == domain.TypeIncome {
			direction = DirectionIn
		}
		add(schema.Transactions, t.ID, &LedgerEventRow{
			EventType:   EventTransaction,
			EventDate:   nullDate(t.Date),
			PeriodYear:  int64(t.Period.Year),
			PeriodMonth: int64(t.Period.Month),
			Amount:      t.Amount.Rat(),
			Direction:   direction,
			Category:    nullString(t.Category),
			Account:     nullString(t.SourceAccount),
			Notes:       nullString(t.Notes),
		})
	}
	return rows
}

// Mirror copies ledger entries into BigQuery.
type Mirror struct {
	writer LedgerEventWriter
	now    func() time.Time
	log    zerolog.Logger
}

// NewMirror creates a mirror writing through w.
func NewMirror(w LedgerEventWriter, log zerolog.Logger) *Mirror {
	return &Mirror{writer: w, now: time.Now, log: log}
}

// Run mirrors l and txs and returns the number of events written.
func (m *Mirror) Run(ctx context.Context, l reconcile.Ledger, txs []domain.Transaction) (int, error) {
	rows := BuildLedgerEvents(l, txs, m.now().UTC())
	if err := m.writer.InsertLedgerEvents(ctx, rows); err != nil {
		return 0, fmt.Errorf("Mirror: %w", err)
	}
	m.log.Info().Int("events", len(rows)).Msg("Ledger events mirrored")
	return len(rows), nil
}
