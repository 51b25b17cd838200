package domain

import (
	"cloud.google.com/go/civil"
	"github.com/esathiyasekhar/FinanceTracker/internal/parse"
	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/shopspring/decimal"
)

// Transaction types.
const (
	TypeIncome  = "Income"
	TypeExpense = "Expense"
)

// CategoryStatement marks transactions imported from an uploaded statement.
const CategoryStatement = "Statement"

// Transaction is one income or expense entry.
// Amount is always positive; Type carries the direction.
type Transaction struct {
	ID            string          `json:"id"`
	Date          civil.Date      `json:"date"`
	Period        Period          `json:"period"`
	Type          string          `json:"type"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	Notes         string          `json:"notes,omitempty"`
	SourceAccount string          `json:"source_account,omitempty"`
}

// TransactionFromRecord converts a Transactions row.
func TransactionFromRecord(r remote.Record) Transaction {
	p, _ := ParsePeriod(r["Year"], r["Month"])
	return Transaction{
		ID:            parse.NormalizeID(r["ID"]),
		Date:          dateOf(r["Date"]),
		Period:        p,
		Type:          r["Type"],
		Category:      r["Category"],
		Amount:        parse.Amount(r["Amount"]),
		Notes:         r["Notes"],
		SourceAccount: r["SourceAccount"],
	}
}

// Record converts t to a Transactions row.
func (t Transaction) Record() remote.Record {
	return remote.Record{
		"ID":            t.ID,
		"Date":          dateCell(t.Date),
		"Year":          t.Period.YearCell(),
		"Month":         t.Period.MonthCell(),
		"Type":          t.Type,
		"Category":      t.Category,
		"Amount":        amountCell(t.Amount),
		"Notes":         t.Notes,
		"SourceAccount": t.SourceAccount,
	}
}

// Candidate is a transaction proposed by an upload parser, not yet stored.
type Candidate struct {
	Date        civil.Date      `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	SourceLabel string          `json:"source_label"`
}
