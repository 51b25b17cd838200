// Package reconcile derives what is owed and what has been paid from the
// stored entities. Payment ledgers are the source of truth; stored summary
// figures are used only when no ledger entry exists.
//
// Everything here is pure: callers pass in the entities and today's date.
package reconcile

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/esathiyasekhar/FinanceTracker/internal/domain"
	"github.com/shopspring/decimal"
)

// Status is the payment state of an obligation for a month.
type Status string

const (
	StatusPaid        Status = "Paid"
	StatusOverdue     Status = "Overdue"
	StatusDueSoon     Status = "DueSoon"
	StatusUpcoming    Status = "Upcoming"
	StatusNoStatement Status = "NoStatement"
)

// DueSoonDays is how close a due date must be to count as due soon.
const DueSoonDays = 5

// Epsilon is the remaining amount under which a bill counts as paid.
var Epsilon = decimal.NewFromInt(1)

// CardDue is the reconciled state of one card for one month.
type CardDue struct {
	CardID         string          `json:"card_id"`
	Period         domain.Period   `json:"period"`
	HasStatement   bool            `json:"has_statement"`
	Billed         decimal.Decimal `json:"billed"`
	Unbilled       decimal.Decimal `json:"unbilled"`
	StoredPaid     decimal.Decimal `json:"stored_paid"`
	PaidFromLedger decimal.Decimal `json:"paid_from_ledger"`
	Payments       int             `json:"payments"`
	Paid           decimal.Decimal `json:"paid"`
	Remaining      decimal.Decimal `json:"remaining"`
	DueDate        civil.Date      `json:"due_date"`
	DaysUntilDue   int             `json:"days_until_due"`
	Status         Status          `json:"status"`
}

// FindStatement returns the statement of cardID for period.
func FindStatement(statements []domain.Statement, cardID string, period domain.Period) (domain.Statement, bool) {
	for _, s := range statements {
		if s.CardID == cardID && s.Period == period {
			return s, true
		}
	}
	return domain.Statement{}, false
}

// CardPaidFromLedger sums the ledger payments of cardID for period and
// reports how many there were.
func CardPaidFromLedger(payments []domain.CardPayment, cardID string, period domain.Period) (decimal.Decimal, int) {
	sum := decimal.Zero
	n := 0
	for _, p := range payments {
		if p.CardID == cardID && p.Period == period {
			sum = sum.Add(p.Amount)
			n++
		}
	}
	return sum, n
}

// ReconcileStatement computes paid and remaining for one statement. The
// ledger sum wins whenever the ledger has entries for the statement.
func ReconcileStatement(s domain.Statement, payments []domain.CardPayment, today civil.Date) CardDue {
	due := CardDue{
		CardID:       s.CardID,
		Period:       s.Period,
		HasStatement: true,
		Billed:       s.Billed,
		Unbilled:     s.Unbilled,
		StoredPaid:   s.Paid,
		DueDate:      s.DueDate,
	}
	due.PaidFromLedger, due.Payments = CardPaidFromLedger(payments, s.CardID, s.Period)

	due.Paid = s.Paid
	if due.Payments > 0 {
		due.Paid = due.PaidFromLedger
	}
	due.Remaining = decimal.Max(decimal.Zero, due.Billed.Sub(due.Paid))

	if s.DueDate.IsValid() {
		due.DaysUntilDue = s.DueDate.DaysSince(today)
	}
	due.Status = statusOf(due.Remaining, s.DueDate, today)
	return due
}

// CardDueFor is ReconcileStatement for a card and period that may have no
// statement; such cards report StatusNoStatement.
func CardDueFor(cardID string, period domain.Period, statements []domain.Statement, payments []domain.CardPayment, today civil.Date) CardDue {
	s, ok := FindStatement(statements, cardID, period)
	if !ok {
		paid, n := CardPaidFromLedger(payments, cardID, period)
		return CardDue{
			CardID:         cardID,
			Period:         period,
			PaidFromLedger: paid,
			Payments:       n,
			Paid:           paid,
			Status:         StatusNoStatement,
		}
	}
	return ReconcileStatement(s, payments, today)
}

func statusOf(remaining decimal.Decimal, dueDate, today civil.Date) Status {
	if remaining.LessThanOrEqual(Epsilon) {
		return StatusPaid
	}
	return dueStatus(dueDate, today)
}

// dueStatus classifies an unpaid obligation by its due date.
func dueStatus(dueDate, today civil.Date) Status {
	if !dueDate.IsValid() {
		return StatusUpcoming
	}
	days := dueDate.DaysSince(today)
	switch {
	case days < 0:
		return StatusOverdue
	case days <= DueSoonDays:
		return StatusDueSoon
	default:
		return StatusUpcoming
	}
}

// LoanPaid reports whether any repayment of loanID is dated within period.
// Repayments with unparseable dates are ignored.
func LoanPaid(repayments []domain.LoanRepayment, loanID string, period domain.Period) bool {
	for _, r := range repayments {
		if r.LoanID == loanID && r.PaymentDate.IsValid() && period.Contains(r.PaymentDate) {
			return true
		}
	}
	return false
}

// EMIPaid reports whether the installment log has an entry for emiID and period.
func EMIPaid(log []domain.EMILogEntry, emiID string, period domain.Period) bool {
	for _, e := range log {
		if e.EMIID == emiID && e.Period == period {
			return true
		}
	}
	return false
}

// NetLiquidity sums the bank balances recorded for period.
func NetLiquidity(balances []domain.BankBalance, period domain.Period) decimal.Decimal {
	sum := decimal.Zero
	for _, b := range balances {
		if b.Period == period {
			sum = sum.Add(b.Balance)
		}
	}
	return sum
}

// Liability is the card liability of one month.
type Liability struct {
	TotalBilled   decimal.Decimal `json:"total_billed"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	TotalUnbilled decimal.Decimal `json:"total_unbilled"`
	Total         decimal.Decimal `json:"total"`
}

// TotalLiability is max(0, billed - paid) + unbilled across the statements of
// period, with paid reconciled per statement.
func TotalLiability(statements []domain.Statement, payments []domain.CardPayment, period domain.Period, today civil.Date) Liability {
	l := Liability{TotalBilled: decimal.Zero, TotalPaid: decimal.Zero, TotalUnbilled: decimal.Zero}
	for _, s := range statements {
		if s.Period != period {
			continue
		}
		due := ReconcileStatement(s, payments, today)
		l.TotalBilled = l.TotalBilled.Add(due.Billed)
		l.TotalPaid = l.TotalPaid.Add(due.Paid)
		l.TotalUnbilled = l.TotalUnbilled.Add(due.Unbilled)
	}
	l.Total = decimal.Max(decimal.Zero, l.TotalBilled.Sub(l.TotalPaid)).Add(l.TotalUnbilled)
	return l
}

// LoanDue is the state of one loan for one month.
type LoanDue struct {
	Loan    domain.Loan `json:"loan"`
	Paid    bool        `json:"paid"`
	DueDate civil.Date  `json:"due_date"`
	Status  Status      `json:"status"`
}

// LoanDueFor derives the monthly state of l. The due date is the loan's due
// day within period, clamped to the month's last day.
func LoanDueFor(l domain.Loan, repayments []domain.LoanRepayment, period domain.Period, today civil.Date) LoanDue {
	due := LoanDue{Loan: l, Paid: LoanPaid(repayments, l.ID, period)}
	if l.DueDay > 0 {
		due.DueDate = dayIn(period, l.DueDay)
	}
	if due.Paid {
		due.Status = StatusPaid
		return due
	}
	due.Status = dueStatus(due.DueDate, today)
	return due
}

func dayIn(p domain.Period, day int) civil.Date {
	last := time.Date(p.Year, p.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		day = last
	}
	return civil.Date{Year: p.Year, Month: p.Month, Day: day}
}

// EMIDue is the state of one installment plan for one month.
type EMIDue struct {
	EMI  domain.EMI `json:"emi"`
	Paid bool       `json:"paid"`
}
