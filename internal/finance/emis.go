package finance

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/esathiyasekhar/FinanceTracker/internal/domain"
	"github.com/esathiyasekhar/FinanceTracker/internal/reconcile"
	"github.com/esathiyasekhar/FinanceTracker/internal/repository"
	"github.com/esathiyasekhar/FinanceTracker/internal/schema"
	"github.com/shopspring/decimal"
)

// EMIInput describes a new installment plan on a card.
type EMIInput struct {
	CardID      string          `json:"card_id"`
	Item        string          `json:"item"`
	Beneficiary string          `json:"beneficiary"`
	TotalVal    decimal.Decimal `json:"total_value"`
	MonthlyEMI  decimal.Decimal `json:"monthly_emi"`
	Start       civil.Date      `json:"start"`
	Tenure      int             `json:"tenure"`
}

// AddEMI creates an active installment plan. The beneficiary defaults to
// "Self", the tenure to 12 months and the start to today.
func (s *Service) AddEMI(ctx context.Context, in EMIInput) (domain.EMI, error) {
	if err := required("card_id", in.CardID); err != nil {
		return domain.EMI{}, err
	}
	if err := required("item", in.Item); err != nil {
		return domain.EMI{}, err
	}
	if !in.MonthlyEMI.IsPositive() {
		return domain.EMI{}, fmt.Errorf("%w: monthly EMI must be greater than zero", ErrInvalidAmount)
	}
	if in.TotalVal.IsNegative() {
		return domain.EMI{}, fmt.Errorf("%w: total value must not be negative", ErrInvalidAmount)
	}
	if in.Tenure < 0 {
		return domain.EMI{}, fmt.Errorf("%w: tenure %d is negative", ErrValidation, in.Tenure)
	}
	defer s.lock()()

	card, err := s.findCard(ctx, in.CardID)
	if err != nil {
		return domain.EMI{}, fmt.Errorf("AddEMI: %w", err)
	}
	emis, err := s.store.LoadFresh(ctx, schema.ActiveEMIs)
	if err != nil {
		return domain.EMI{}, fmt.Errorf("AddEMI: %w", err)
	}

	e := domain.EMI{
		ID:          strconv.Itoa(repository.NextID(emis)),
		CardID:      card.ID,
		Item:        strings.TrimSpace(in.Item),
		Beneficiary: strings.TrimSpace(in.Beneficiary),
		TotalVal:    in.TotalVal,
		MonthlyEMI:  in.MonthlyEMI,
		Start:       dateOr(in.Start, s.Today()),
		Tenure:      in.Tenure,
		Status:      domain.LoanActive,
	}
	if e.Beneficiary == "" {
		e.Beneficiary = domain.DefaultBeneficiary
	}
	if e.Tenure == 0 {
		e.Tenure = domain.DefaultEMITenure
	}
	if err := s.store.Append(ctx, schema.ActiveEMIs, e.Record()); err != nil {
		return domain.EMI{}, fmt.Errorf("AddEMI: %w", err)
	}

	s.log.Info().Str("emi_id", e.ID).Str("card_id", card.ID).Str("item", e.Item).Msg("EMI added")
	return e, nil
}

// MarkEMIPaid logs the installment of emiID for period. It returns false
// without writing when the period is already logged.
func (s *Service) MarkEMIPaid(ctx context.Context, emiID string, period domain.Period) (bool, error) {
	if err := required("emi_id", emiID); err != nil {
		return false, err
	}
	if !period.Valid() {
		return false, fmt.Errorf("%w: period %v", ErrValidation, period)
	}
	defer s.lock()()

	emis, err := s.store.LoadFresh(ctx, schema.ActiveEMIs)
	if err != nil {
		return false, fmt.Errorf("MarkEMIPaid: %w", err)
	}
	rec, ok := emis.Find(emiID)
	if !ok {
		return false, fmt.Errorf("%w: EMI %q", ErrUnknownRef, emiID)
	}
	e := domain.EMIFromRecord(rec)

	log, err := s.store.LoadFresh(ctx, schema.EMILog)
	if err != nil {
		return false, fmt.Errorf("MarkEMIPaid: %w", err)
	}
	if reconcile.EMIPaid(convert(log, domain.EMILogEntryFromRecord), e.ID, period) {
		return false, nil
	}

	entry := domain.EMILogEntry{
		ID:     strconv.Itoa(repository.NextID(log)),
		EMIID:  e.ID,
		Date:   s.Today(),
		Period: period,
		Amount: e.MonthlyEMI,
	}
	if err := s.store.Append(ctx, schema.EMILog, entry.Record()); err != nil {
		return false, fmt.Errorf("MarkEMIPaid: %w", err)
	}

	s.log.Info().Str("emi_id", e.ID).Stringer("period", period).Msg("EMI marked paid")
	return true, nil
}

// DeleteEMI removes installment plan id. Its log entries are kept.
func (s *Service) DeleteEMI(ctx context.Context, id string) (bool, error) {
	defer s.lock()()
	ok, err := s.store.DeleteByID(ctx, schema.ActiveEMIs, id)
	if err != nil {
		return false, fmt.Errorf("DeleteEMI: %w", err)
	}
	return ok, nil
}
