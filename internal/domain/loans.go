package domain

import (
	"cloud.google.com/go/civil"
	"github.com/esathiyasekhar/FinanceTracker/internal/parse"
	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/shopspring/decimal"
)

// Loan statuses.
const (
	LoanActive = "Active"
	LoanClosed = "Closed"
)

// Repayment types.
const (
	RepaymentEMI        = "EMI"
	RepaymentPrepayment = "Prepayment"
)

// Loan is a borrowing repaid in monthly instalments.
type Loan struct {
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	Type        string          `json:"type"`
	Category    string          `json:"category,omitempty"`
	Collateral  string          `json:"collateral,omitempty"`
	Principal   decimal.Decimal `json:"principal"`
	Rate        decimal.Decimal `json:"rate"`
	EMI         decimal.Decimal `json:"emi"`
	Tenure      int             `json:"tenure"`
	StartDate   civil.Date      `json:"start_date"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Status      string          `json:"status"`
	DueDay      int             `json:"due_day,omitempty"`
	MatchCode   string          `json:"match_code,omitempty"`
}

// LoanFromRecord converts a Loans row.
func LoanFromRecord(r remote.Record) Loan {
	tenure, _ := parse.Int(r["Tenure"])
	dueDay, _ := parse.Int(r["DueDay"])
	return Loan{
		ID:          parse.NormalizeID(r["ID"]),
		Source:      r["Source"],
		Type:        r["Type"],
		Category:    r["Category"],
		Collateral:  r["Collateral"],
		Principal:   parse.Amount(r["Principal"]),
		Rate:        parse.Amount(r["Rate"]),
		EMI:         parse.Amount(r["EMI"]),
		Tenure:      tenure,
		StartDate:   dateOf(r["StartDate"]),
		Outstanding: parse.Amount(r["Outstanding"]),
		Status:      r["Status"],
		DueDay:      dueDay,
		MatchCode:   r["MatchCode"],
	}
}

// Record converts l to a Loans row.
func (l Loan) Record() remote.Record {
	dueDay := ""
	if l.DueDay > 0 {
		dueDay = intCell(l.DueDay)
	}
	return remote.Record{
		"ID":          l.ID,
		"Source":      l.Source,
		"Type":        l.Type,
		"Category":    l.Category,
		"Collateral":  l.Collateral,
		"Principal":   amountCell(l.Principal),
		"Rate":        amountCell(l.Rate),
		"EMI":         amountCell(l.EMI),
		"Tenure":      intCell(l.Tenure),
		"StartDate":   dateCell(l.StartDate),
		"Outstanding": amountCell(l.Outstanding),
		"Status":      l.Status,
		"DueDay":      dueDay,
		"MatchCode":   l.MatchCode,
	}
}

// Active reports whether the loan still needs servicing. A blank status
// counts as active.
func (l Loan) Active() bool {
	return l.Status == "" || l.Status == LoanActive
}

// LoanRepayment is one entry of the append-only loan repayment ledger.
type LoanRepayment struct {
	ID          string          `json:"id"`
	LoanID      string          `json:"loan_id"`
	PaymentDate civil.Date      `json:"payment_date"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
}

// LoanRepaymentFromRecord converts a Loan_Repayments row.
func LoanRepaymentFromRecord(r remote.Record) LoanRepayment {
	return LoanRepayment{
		ID:          parse.NormalizeID(r["ID"]),
		LoanID:      parse.NormalizeID(r["LoanID"]),
		PaymentDate: dateOf(r["PaymentDate"]),
		Amount:      parse.Amount(r["Amount"]),
		Type:        r["Type"],
	}
}

// Record converts p to a Loan_Repayments row.
func (p LoanRepayment) Record() remote.Record {
	return remote.Record{
		"ID":          p.ID,
		"LoanID":      p.LoanID,
		"PaymentDate": dateCell(p.PaymentDate),
		"Amount":      amountCell(p.Amount),
		"Type":        p.Type,
	}
}
