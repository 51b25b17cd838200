package reconcile

import (
	"cloud.google.com/go/civil"
	"github.com/esathiyasekhar/FinanceTracker/internal/domain"
	"github.com/shopspring/decimal"
)

// Ledger is every entity the derivations need, as read from the tables.
type Ledger struct {
	Cards      []domain.Card
	Statements []domain.Statement
	Payments   []domain.CardPayment
	Loans      []domain.Loan
	Repayments []domain.LoanRepayment
	EMIs       []domain.EMI
	EMILog     []domain.EMILogEntry
	Banks      []domain.Bank
	Balances   []domain.BankBalance
}

// Dashboard is the monthly summary.
type Dashboard struct {
	Period       domain.Period   `json:"period"`
	NetLiquidity decimal.Decimal `json:"net_liquidity"`
	Liability    Liability       `json:"liability"`
	MonthlyEMI   decimal.Decimal `json:"monthly_emi"`

	// PendingBills are the statements of the month that are not yet paid.
	PendingBills []CardDue `json:"pending_bills"`
	Loans        []LoanDue `json:"loans"`
	EMIs         []EMIDue  `json:"emis"`
}

// CardsFor reconciles every card of l for period, in card order.
func CardsFor(l Ledger, period domain.Period, today civil.Date) []CardDue {
	out := make([]CardDue, 0, len(l.Cards))
	for _, c := range l.Cards {
		out = append(out, CardDueFor(c.ID, period, l.Statements, l.Payments, today))
	}
	return out
}

// LoansFor derives the monthly state of every active loan.
func LoansFor(l Ledger, period domain.Period, today civil.Date) []LoanDue {
	var out []LoanDue
	for _, loan := range l.Loans {
		if !loan.Active() {
			continue
		}
		out = append(out, LoanDueFor(loan, l.Repayments, period, today))
	}
	return out
}

// EMIsFor reports whether each active installment plan was paid in period.
func EMIsFor(l Ledger, period domain.Period) []EMIDue {
	var out []EMIDue
	for _, e := range l.EMIs {
		if !e.Active() {
			continue
		}
		out = append(out, EMIDue{EMI: e, Paid: EMIPaid(l.EMILog, e.ID, period)})
	}
	return out
}

// BuildDashboard summarizes period.
func BuildDashboard(l Ledger, period domain.Period, today civil.Date) Dashboard {
	d := Dashboard{
		Period:       period,
		NetLiquidity: NetLiquidity(l.Balances, period),
		Liability:    TotalLiability(l.Statements, l.Payments, period, today),
		Loans:        LoansFor(l, period, today),
		EMIs:         EMIsFor(l, period),
		PendingBills: []CardDue{},
		MonthlyEMI:   decimal.Zero,
	}
	for _, due := range CardsFor(l, period, today) {
		if due.HasStatement && due.Status != StatusPaid {
			d.PendingBills = append(d.PendingBills, due)
		}
	}
	for _, loan := range d.Loans {
		d.MonthlyEMI = d.MonthlyEMI.Add(loan.Loan.EMI)
	}
	for _, e := range d.EMIs {
		d.MonthlyEMI = d.MonthlyEMI.Add(e.EMI.MonthlyEMI)
	}
	return d
}
