package domain

import (
	"cloud.google.com/go/civil"
	"github.com/esathiyasekhar/FinanceTracker/internal/parse"
	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/shopspring/decimal"
)

// DefaultGraceDays is the statement-to-due-date gap used when a card has none.
const DefaultGraceDays = 20

// Card is a credit card.
type Card struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	First4    string          `json:"first4,omitempty"`
	Last4     string          `json:"last4,omitempty"`
	Limit     decimal.Decimal `json:"limit"`
	GraceDays int             `json:"grace_days"`
	MatchCode string          `json:"match_code,omitempty"`
}

// CardFromRecord converts a Cards row.
func CardFromRecord(r remote.Record) Card {
	grace, ok := parse.Int(r["GraceDays"])
	if !ok {
		grace = DefaultGraceDays
	}
	return Card{
		ID:        parse.NormalizeID(r["ID"]),
		Name:      r["Name"],
		First4:    r["First4"],
		Last4:     r["Last4"],
		Limit:     parse.Amount(r["Limit"]),
		GraceDays: grace,
		MatchCode: r["MatchCode"],
	}
}

// Record converts c to a Cards row.
func (c Card) Record() remote.Record {
	return remote.Record{
		"ID":        c.ID,
		"Name":      c.Name,
		"First4":    c.First4,
		"Last4":     c.Last4,
		"Limit":     amountCell(c.Limit),
		"GraceDays": intCell(c.GraceDays),
		"MatchCode": c.MatchCode,
	}
}

// Statement is the billed summary of one card for one month. There is at
// most one per (CardID, Period).
type Statement struct {
	CardID       string          `json:"card_id"`
	Period       Period          `json:"period"`
	StmtDate     civil.Date      `json:"stmt_date"`
	Billed       decimal.Decimal `json:"billed"`
	Unbilled     decimal.Decimal `json:"unbilled"`
	UnbilledDate civil.Date      `json:"unbilled_date"`
	// Paid is the stored paid figure. It can be stale; reconciliation prefers
	// the payment ledger.
	Paid    decimal.Decimal `json:"paid"`
	DueDate civil.Date      `json:"due_date"`
}

// StatementFromRecord converts a Statements row.
func StatementFromRecord(r remote.Record) Statement {
	p, _ := ParsePeriod(r["Year"], r["Month"])
	return Statement{
		CardID:       parse.NormalizeID(r["CardID"]),
		Period:       p,
		StmtDate:     dateOf(r["StmtDate"]),
		Billed:       parse.Amount(r["Billed"]),
		Unbilled:     parse.Amount(r["Unbilled"]),
		UnbilledDate: dateOf(r["UnbilledDate"]),
		Paid:         parse.Amount(r["Paid"]),
		DueDate:      dateOf(r["DueDate"]),
	}
}

// Record converts s to a Statements row.
func (s Statement) Record() remote.Record {
	return remote.Record{
		"CardID":       s.CardID,
		"Year":         s.Period.YearCell(),
		"Month":        s.Period.MonthCell(),
		"StmtDate":     dateCell(s.StmtDate),
		"Billed":       amountCell(s.Billed),
		"Unbilled":     amountCell(s.Unbilled),
		"UnbilledDate": dateCell(s.UnbilledDate),
		"Paid":         amountCell(s.Paid),
		"DueDate":      dateCell(s.DueDate),
	}
}

// CardPayment is one entry of the append-only card payment ledger.
type CardPayment struct {
	ID     string          `json:"id"`
	CardID string          `json:"card_id"`
	Period Period          `json:"period"`
	Date   civil.Date      `json:"date"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note,omitempty"`
}

// CardPaymentFromRecord converts a Card_Payments row.
func CardPaymentFromRecord(r remote.Record) CardPayment {
	p, _ := ParsePeriod(r["Year"], r["Month"])
	return CardPayment{
		ID:     parse.NormalizeID(r["ID"]),
		CardID: parse.NormalizeID(r["CardID"]),
		Period: p,
		Date:   dateOf(r["Date"]),
		Amount: parse.Amount(r["Amount"]),
		Note:   r["Note"],
	}
}

// Record converts p to a Card_Payments row.
func (p CardPayment) Record() remote.Record {
	return remote.Record{
		"ID":     p.ID,
		"CardID": p.CardID,
		"Year":   p.Period.YearCell(),
		"Month":  p.Period.MonthCell(),
		"Date":   dateCell(p.Date),
		"Amount": amountCell(p.Amount),
		"Note":   p.Note,
	}
}
