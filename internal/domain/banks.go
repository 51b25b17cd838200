package domain

import (
	"github.com/esathiyasekhar/FinanceTracker/internal/parse"
	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/shopspring/decimal"
)

// Bank is a bank account.
type Bank struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	AccNo     string `json:"acc_no,omitempty"`
	MatchCode string `json:"match_code,omitempty"`
}

// BankFromRecord converts a Banks row.
func BankFromRecord(r remote.Record) Bank {
	return Bank{
		ID:        parse.NormalizeID(r["ID"]),
		Name:      r["Name"],
		Type:      r["Type"],
		AccNo:     r["AccNo"],
		MatchCode: r["MatchCode"],
	}
}

// Record converts b to a Banks row.
func (b Bank) Record() remote.Record {
	return remote.Record{
		"ID":        b.ID,
		"Name":      b.Name,
		"Type":      b.Type,
		"AccNo":     b.AccNo,
		"MatchCode": b.MatchCode,
	}
}

// BankBalance is the balance of one account for one month. There is at most
// one per (BankID, Period).
type BankBalance struct {
	BankID  string          `json:"bank_id"`
	Period  Period          `json:"period"`
	Balance decimal.Decimal `json:"balance"`
}

// BankBalanceFromRecord converts a Bank_Balances row.
func BankBalanceFromRecord(r remote.Record) BankBalance {
	p, _ := ParsePeriod(r["Year"], r["Month"])
	return BankBalance{
		BankID:  parse.NormalizeID(r["BankID"]),
		Period:  p,
		Balance: parse.Amount(r["Balance"]),
	}
}

// Record converts b to a Bank_Balances row.
func (b BankBalance) Record() remote.Record {
	return remote.Record{
		"BankID":  b.BankID,
		"Year":    b.Period.YearCell(),
		"Month":   b.Period.MonthCell(),
		"Balance": amountCell(b.Balance),
	}
}
