// Package bigquery mirrors the append-only ledgers of the spreadsheet into a
// BigQuery table for analysis. The spreadsheet stays the system of record.
package bigquery

import (
	"context"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// LedgerEventWriter stores mirrored ledger events.
type LedgerEventWriter interface {
	// InsertLedgerEvents streams rows into the ledger_events table. Rows carry
	// a stable insert ID, so re-mirroring the same entries is deduplicated on
	// a best-effort basis.
	InsertLedgerEvents(ctx context.Context, rows []*LedgerEventRow) error
}

// Event types.
const (
	EventCardPayment    = "card_payment"
	EventLoanRepayment  = "loan_repayment"
	EventEMIInstallment = "emi_installment"
	EventTransaction    = "transaction"
)

// Directions.
const (
	DirectionIn  = "IN"
	DirectionOut = "OUT"
)

// LedgerEventRow is one ledger entry in finance.ledger_events.
type LedgerEventRow struct {
	// EventID is "<source table>:<source id>" and doubles as the insert ID.
	EventID     string `bigquery:"event_id" json:"event_id"`
	EventType   string `bigquery:"event_type" json:"event_type"`
	SourceTable string `bigquery:"source_table" json:"source_table"`
	SourceID    string `bigquery:"source_id" json:"source_id"`

	// EntityID is the card, loan or installment plan the entry belongs to.
	EntityID bigquery.NullString `bigquery:"entity_id" json:"entity_id,omitempty"`

	EventDate   bigquery.NullDate `bigquery:"event_date" json:"event_date,omitempty"`
	PeriodYear  int64             `bigquery:"period_year" json:"period_year"`
	PeriodMonth int64             `bigquery:"period_month" json:"period_month"`

	Amount    *big.Rat `bigquery:"amount" json:"amount"`
	Direction string   `bigquery:"direction" json:"direction"`

	Category bigquery.NullString `bigquery:"category" json:"category,omitempty"`
	Account  bigquery.NullString `bigquery:"account" json:"account,omitempty"`
	Notes    bigquery.NullString `bigquery:"notes" json:"notes,omitempty"`

	MirroredTS time.Time `bigquery:"mirrored_ts" json:"mirrored_ts"`
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func nullDate(d civil.Date) bigquery.NullDate {
	return bigquery.NullDate{Date: d, Valid: d.IsValid()}
}
