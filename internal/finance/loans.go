package finance

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/esathiyasekhar/FinanceTracker/internal/domain"
	"github.com/esathiyasekhar/FinanceTracker/internal/parse"
	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/esathiyasekhar/FinanceTracker/internal/repository"
	"github.com/esathiyasekhar/FinanceTracker/internal/schema"
	"github.com/shopspring/decimal"
)

// Loan defaults applied when the input leaves them empty.
const (
	defaultLoanCategory = "Std"
	defaultLoanDueDay   = 5
)

// LoanInput describes a new loan.
type LoanInput struct {
	Source     string          `json:"source"`
	Type       string          `json:"type"`
	Category   string          `json:"category"`
	Collateral string          `json:"collateral"`
	Principal  decimal.Decimal `json:"principal"`
	Rate       decimal.Decimal `json:"rate"`
	EMI        decimal.Decimal `json:"emi"`
	Tenure     int             `json:"tenure"`
	StartDate  civil.Date      `json:"start_date"`
	DueDay     int             `json:"due_day"`
	MatchCode  string          `json:"match_code"`
}

// AddLoan creates an active loan whose outstanding balance is the principal.
func (s *Service) AddLoan(ctx context.Context, in LoanInput) (domain.Loan, error) {
	if err := required("source", in.Source); err != nil {
		return domain.Loan{}, err
	}
	if !in.Principal.IsPositive() {
		return domain.Loan{}, fmt.Errorf("%w: principal must be greater than zero", ErrInvalidAmount)
	}
	if in.EMI.IsNegative() || in.Rate.IsNegative() {
		return domain.Loan{}, fmt.Errorf("%w: EMI and rate must not be negative", ErrInvalidAmount)
	}
	if in.Tenure < 0 || in.DueDay < 0 || in.DueDay > 31 {
		return domain.Loan{}, fmt.Errorf("%w: tenure %d or due day %d out of range", ErrValidation, in.Tenure, in.DueDay)
	}
	defer s.lock()()

	loans, err := s.store.LoadFresh(ctx, schema.Loans)
	if err != nil {
		return domain.Loan{}, fmt.Errorf("AddLoan: %w", err)
	}
	if code := strings.TrimSpace(in.MatchCode); code != "" && repository.CheckDuplicate(loans, "MatchCode", code, "") {
		return domain.Loan{}, fmt.Errorf("%w: match code %q is already used by another loan", ErrDuplicate, code)
	}

	loan := domain.Loan{
		ID:          strconv.Itoa(repository.NextID(loans)),
		Source:      strings.TrimSpace(in.Source),
		Type:        strings.TrimSpace(in.Type),
		Category:    strings.TrimSpace(in.Category),
		Collateral:  strings.TrimSpace(in.Collateral),
		Principal:   in.Principal,
		Rate:        in.Rate,
		EMI:         in.EMI,
		Tenure:      in.Tenure,
		StartDate:   dateOr(in.StartDate, s.Today()),
		Outstanding: in.Principal,
		Status:      domain.LoanActive,
		DueDay:      in.DueDay,
		MatchCode:   strings.TrimSpace(in.MatchCode),
	}
	if loan.Category == "" {
		loan.Category = defaultLoanCategory
	}
	if loan.DueDay == 0 {
		loan.DueDay = defaultLoanDueDay
	}
	if err := s.store.Append(ctx, schema.Loans, loan.Record()); err != nil {
		return domain.Loan{}, fmt.Errorf("AddLoan: %w", err)
	}

	s.log.Info().Str("loan_id", loan.ID).Str("source", loan.Source).Msg("Loan added")
	return loan, nil
}

// LoanUpdate lists the loan fields to change; nil fields are left as they are.
type LoanUpdate struct {
	Source    *string          `json:"source,omitempty"`
	EMI       *decimal.Decimal `json:"emi,omitempty"`
	Rate      *decimal.Decimal `json:"rate,omitempty"`
	DueDay    *int             `json:"due_day,omitempty"`
	Status    *string          `json:"status,omitempty"`
	MatchCode *string          `json:"match_code,omitempty"`
}

// UpdateLoan applies u to loan id. It returns false when no such loan exists.
func (s *Service) UpdateLoan(ctx context.Context, id string, u LoanUpdate) (bool, error) {
	patch := remote.Record{}
	if u.Source != nil {
		if err := required("source", *u.Source); err != nil {
			return false, err
		}
		patch["Source"] = strings.TrimSpace(*u.Source)
	}
	if u.EMI != nil {
		if u.EMI.IsNegative() {
			return false, fmt.Errorf("%w: EMI must not be negative", ErrInvalidAmount)
		}
		patch["EMI"] = parse.FormatAmount(*u.EMI)
	}
	if u.Rate != nil {
		if u.Rate.IsNegative() {
			return false, fmt.Errorf("%w: rate must not be negative", ErrInvalidAmount)
		}
		patch["Rate"] = parse.FormatAmount(*u.Rate)
	}
	if u.DueDay != nil {
		if *u.DueDay < 1 || *u.DueDay > 31 {
			return false, fmt.Errorf("%w: due day %d out of range", ErrValidation, *u.DueDay)
		}
		patch["DueDay"] = strconv.Itoa(*u.DueDay)
	}
	if u.Status != nil {
		status, err := oneOf("status", *u.Status, domain.LoanActive, domain.LoanClosed)
		if err != nil {
			return false, err
		}
		patch["Status"] = status
	}
	if u.MatchCode != nil {
		patch["MatchCode"] = strings.TrimSpace(*u.MatchCode)
	}
	defer s.lock()()

	loans, err := s.store.LoadFresh(ctx, schema.Loans)
	if err != nil {
		return false, fmt.Errorf("UpdateLoan: %w", err)
	}
	if code := patch["MatchCode"]; code != "" && repository.CheckDuplicate(loans, "MatchCode", code, id) {
		return false, fmt.Errorf("%w: match code %q is already used by another loan", ErrDuplicate, code)
	}
	ok, err := s.store.UpdateByID(ctx, loans, id, patch)
	if err != nil {
		return false, fmt.Errorf("UpdateLoan: %w", err)
	}
	return ok, nil
}

// DeleteLoan removes loan id. Its repayments are kept.
func (s *Service) DeleteLoan(ctx context.Context, id string) (bool, error) {
	defer s.lock()()
	ok, err := s.store.DeleteByID(ctx, schema.Loans, id)
	if err != nil {
		return false, fmt.Errorf("DeleteLoan: %w", err)
	}
	return ok, nil
}

// LoanPaymentInput is one repayment of a loan.
type LoanPaymentInput struct {
	LoanID string          `json:"loan_id"`
	Date   civil.Date      `json:"date"`
	Amount decimal.Decimal `json:"amount"`
	Type   string          `json:"type"`
}

// RecordLoanPayment appends a repayment and lowers the loan's outstanding
// balance by its amount, never below zero.
func (s *Service) RecordLoanPayment(ctx context.Context, in LoanPaymentInput) (domain.LoanRepayment, error) {
	if err := required("loan_id", in.LoanID); err != nil {
		return domain.LoanRepayment{}, err
	}
	if !in.Amount.IsPositive() {
		return domain.LoanRepayment{}, fmt.Errorf("%w: payment must be greater than zero", ErrInvalidAmount)
	}
	kind := domain.RepaymentEMI
	if strings.TrimSpace(in.Type) != "" {
		var err error
		if kind, err = oneOf("type", in.Type, domain.RepaymentEMI, domain.RepaymentPrepayment); err != nil {
			return domain.LoanRepayment{}, err
		}
	}
	defer s.lock()()

	loans, err := s.store.LoadFresh(ctx, schema.Loans)
	if err != nil {
		return domain.LoanRepayment{}, fmt.Errorf("RecordLoanPayment: %w", err)
	}
	rec, ok := loans.Find(in.LoanID)
	if !ok {
		return domain.LoanRepayment{}, fmt.Errorf("%w: loan %q", ErrUnknownRef, in.LoanID)
	}
	loan := domain.LoanFromRecord(rec)

	repayments, err := s.store.LoadFresh(ctx, schema.LoanRepayments)
	if err != nil {
		return domain.LoanRepayment{}, fmt.Errorf("RecordLoanPayment: %w", err)
	}
	p := domain.LoanRepayment{
		ID:          strconv.Itoa(repository.NextID(repayments)),
		LoanID:      loan.ID,
		PaymentDate: dateOr(in.Date, s.Today()),
		Amount:      in.Amount.Round(2),
		Type:        kind,
	}
	// A rejected outstanding update must leave no repayment behind.
	outstanding := decimal.Max(decimal.Zero, loan.Outstanding.Sub(p.Amount))
	if _, err := s.store.UpdateByID(ctx, loans, loan.ID, remote.Record{"Outstanding": parse.FormatAmount(outstanding)}); err != nil {
		return domain.LoanRepayment{}, fmt.Errorf("RecordLoanPayment: %w", err)
	}
	if err := s.store.Append(ctx, schema.LoanRepayments, p.Record()); err != nil {
		s.restoreOutstanding(ctx, loan)
		return domain.LoanRepayment{}, fmt.Errorf("RecordLoanPayment: %w", err)
	}

	s.log.Info().
		Str("loan_id", loan.ID).
		Str("amount", p.Amount.String()).
		Str("outstanding", outstanding.String()).
		Msg("Loan repayment recorded")
	return p, nil
}

// restoreOutstanding puts back the balance of loan after its repayment could
// not be recorded.
func (s *Service) restoreOutstanding(ctx context.Context, loan domain.Loan) {
	log := s.log.With().Str("loan_id", loan.ID).Logger()
	loans, err := s.store.LoadFresh(ctx, schema.Loans)
	if err == nil {
		_, err = s.store.UpdateByID(ctx, loans, loan.ID, remote.Record{"Outstanding": parse.FormatAmount(loan.Outstanding)})
	}
	if err != nil {
		log.Error().Err(err).Str("outstanding", loan.Outstanding.String()).Msg("Failed to restore outstanding after repayment was not recorded")
		return
	}
	log.Warn().Msg("Repayment not recorded, outstanding restored")
}
