package domain

import (
	"cloud.google.com/go/civil"
	"github.com/esathiyasekhar/FinanceTracker/internal/parse"
	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/shopspring/decimal"
)

// Installment plan defaults.
const (
	DefaultBeneficiary = "Self"
	DefaultEMITenure   = 12
)

// EMI is an installment plan carried on a credit card.
type EMI struct {
	ID          string          `json:"id"`
	CardID      string          `json:"card_id"`
	Item        string          `json:"item"`
	Beneficiary string          `json:"beneficiary"`
	TotalVal    decimal.Decimal `json:"total_value"`
	MonthlyEMI  decimal.Decimal `json:"monthly_emi"`
	Start       civil.Date      `json:"start"`
	Tenure      int             `json:"tenure"`
	Status      string          `json:"status"`
}

// EMIFromRecord converts an Active_EMIs row.
func EMIFromRecord(r remote.Record) EMI {
	tenure, _ := parse.Int(r["Tenure"])
	return EMI{
		ID:          parse.NormalizeID(r["ID"]),
		CardID:      parse.NormalizeID(r["CardID"]),
		Item:        r["Item"],
		Beneficiary: r["Beneficiary"],
		TotalVal:    parse.Amount(r["TotalVal"]),
		MonthlyEMI:  parse.Amount(r["MonthlyEMI"]),
		Start:       dateOf(r["Start"]),
		Tenure:      tenure,
		Status:      r["Status"],
	}
}

// Record converts e to an Active_EMIs row.
func (e EMI) Record() remote.Record {
	return remote.Record{
		"ID":          e.ID,
		"CardID":      e.CardID,
		"Item":        e.Item,
		"Beneficiary": e.Beneficiary,
		"TotalVal":    amountCell(e.TotalVal),
		"MonthlyEMI":  amountCell(e.MonthlyEMI),
		"Start":       dateCell(e.Start),
		"Tenure":      intCell(e.Tenure),
		"Status":      e.Status,
	}
}

// Active reports whether the plan is still running.
func (e EMI) Active() bool {
	return e.Status == "" || e.Status == LoanActive
}

// EMILogEntry records that an installment was paid for a month.
type EMILogEntry struct {
	ID     string          `json:"id"`
	EMIID  string          `json:"emi_id"`
	Date   civil.Date      `json:"date"`
	Period Period          `json:"period"`
	Amount decimal.Decimal `json:"amount"`
}

// EMILogEntryFromRecord converts an EMI_Log row.
func EMILogEntryFromRecord(r remote.Record) EMILogEntry {
	p, _ := ParsePeriod(r["Year"], r["Month"])
	return EMILogEntry{
		ID:     parse.NormalizeID(r["ID"]),
		EMIID:  parse.NormalizeID(r["EMI_ID"]),
		Date:   dateOf(r["Date"]),
		Period: p,
		Amount: parse.Amount(r["Amount"]),
	}
}

// Record converts e to an EMI_Log row.
func (e EMILogEntry) Record() remote.Record {
	return remote.Record{
		"ID":     e.ID,
		"EMI_ID": e.EMIID,
		"Date":   dateCell(e.Date),
		"Month":  e.Period.MonthCell(),
		"Year":   e.Period.YearCell(),
		"Amount": amountCell(e.Amount),
	}
}
