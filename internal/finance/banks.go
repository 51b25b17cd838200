package finance

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/esathiyasekhar/FinanceTracker/internal/domain"
	"github.com/esathiyasekhar/FinanceTracker/internal/parse"
	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/esathiyasekhar/FinanceTracker/internal/repository"
	"github.com/esathiyasekhar/FinanceTracker/internal/schema"
	"github.com/shopspring/decimal"
)

// Bank account types.
const (
	BankSavings = "Savings"
	BankCurrent = "Current"
)

// BankInput describes a new bank account.
type BankInput struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	AccNo     string `json:"acc_no"`
	MatchCode string `json:"match_code"`
}

// AddBank creates a bank account. The type defaults to Savings.
func (s *Service) AddBank(ctx context.Context, in BankInput) (domain.Bank, error) {
	if err := required("name", in.Name); err != nil {
		return domain.Bank{}, err
	}
	kind := BankSavings
	if strings.TrimSpace(in.Type) != "" {
		var err error
		if kind, err = oneOf("type", in.Type, BankSavings, BankCurrent); err != nil {
			return domain.Bank{}, err
		}
	}
	defer s.lock()()

	banks, err := s.store.LoadFresh(ctx, schema.Banks)
	if err != nil {
		return domain.Bank{}, fmt.Errorf("AddBank: %w", err)
	}
	if repository.CheckDuplicate(banks, "Name", in.Name, "") {
		return domain.Bank{}, fmt.Errorf("%w: bank %q already exists", ErrDuplicate, strings.TrimSpace(in.Name))
	}
	if code := strings.TrimSpace(in.MatchCode); code != "" && repository.CheckDuplicate(banks, "MatchCode", code, "") {
		return domain.Bank{}, fmt.Errorf("%w: match code %q is already used by another bank", ErrDuplicate, code)
	}

	b := domain.Bank{
		ID:        strconv.Itoa(repository.NextID(banks)),
		Name:      strings.TrimSpace(in.Name),
		Type:      kind,
		AccNo:     strings.TrimSpace(in.AccNo),
		MatchCode: strings.TrimSpace(in.MatchCode),
	}
	if err := s.store.Append(ctx, schema.Banks, b.Record()); err != nil {
		return domain.Bank{}, fmt.Errorf("AddBank: %w", err)
	}

	s.log.Info().Str("bank_id", b.ID).Str("name", b.Name).Msg("Bank added")
	return b, nil
}

// DeleteBank removes bank id. Its balances are kept.
func (s *Service) DeleteBank(ctx context.Context, id string) (bool, error) {
	defer s.lock()()
	ok, err := s.store.DeleteByID(ctx, schema.Banks, id)
	if err != nil {
		return false, fmt.Errorf("DeleteBank: %w", err)
	}
	return ok, nil
}

// SaveBankBalances replaces every balance of period with balances, keyed by
// bank ID. Banks left out of the map have no balance for the period afterwards.
func (s *Service) SaveBankBalances(ctx context.Context, period domain.Period, balances map[string]decimal.Decimal) error {
	if !period.Valid() {
		return fmt.Errorf("%w: period %v", ErrValidation, period)
	}
	defer s.lock()()

	banks, err := s.store.LoadFresh(ctx, schema.Banks)
	if err != nil {
		return fmt.Errorf("SaveBankBalances: %w", err)
	}
	byID := make(map[string]decimal.Decimal, len(balances))
	ids := make([]string, 0, len(balances))
	for raw, bal := range balances {
		if _, ok := banks.Find(raw); !ok {
			return fmt.Errorf("%w: bank %q", ErrUnknownRef, raw)
		}
		id := parse.NormalizeID(raw)
		if _, dup := byID[id]; dup {
			return fmt.Errorf("%w: bank %s given more than one balance", ErrValidation, id)
		}
		byID[id] = bal
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return parse.ID(ids[i]) < parse.ID(ids[j]) })

	current, err := s.store.LoadFresh(ctx, schema.BankBalances)
	if err != nil {
		return fmt.Errorf("SaveBankBalances: %w", err)
	}
	kept := current.Filter(func(r remote.Record) bool {
		return !period.Matches(r["Year"], r["Month"])
	})
	for _, id := range ids {
		b := domain.BankBalance{BankID: id, Period: period, Balance: byID[id].Round(2)}
		kept = append(kept, b.Record())
	}
	if err := s.store.Replace(ctx, current, kept); err != nil {
		return fmt.Errorf("SaveBankBalances: %w", err)
	}

	s.log.Info().Stringer("period", period).Int("banks", len(ids)).Msg("Bank balances saved")
	return nil
}
