package finance

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/esathiyasekhar/FinanceTracker/internal/domain"
	"github.com/esathiyasekhar/FinanceTracker/internal/parse"
	"github.com/esathiyasekhar/FinanceTracker/internal/reconcile"
	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/esathiyasekhar/FinanceTracker/internal/repository"
	"github.com/esathiyasekhar/FinanceTracker/internal/schema"
	"github.com/shopspring/decimal"
)

// CardInput is the editable part of a card.
type CardInput struct {
	Name      string          `json:"name"`
	First4    string          `json:"first4"`
	Last4     string          `json:"last4"`
	Limit     decimal.Decimal `json:"limit"`
	GraceDays int             `json:"grace_days"`
	MatchCode string          `json:"match_code"`
}

func (in CardInput) validate() error {
	if err := required("name", in.Name); err != nil {
		return err
	}
	if in.Limit.IsNegative() {
		return fmt.Errorf("%w: limit %s is negative", ErrInvalidAmount, in.Limit)
	}
	if in.GraceDays < 0 {
		return fmt.Errorf("%w: grace days %d is negative", ErrValidation, in.GraceDays)
	}
	return nil
}

func checkCardDuplicates(cards *repository.Collection, in CardInput, excludingID string) error {
	if repository.CheckDuplicate(cards, "Name", in.Name, excludingID) {
		return fmt.Errorf("%w: card %q already exists", ErrDuplicate, strings.TrimSpace(in.Name))
	}
	if strings.TrimSpace(in.MatchCode) != "" && repository.CheckDuplicate(cards, "MatchCode", in.MatchCode, excludingID) {
		return fmt.Errorf("%w: match code %q is already used by another card", ErrDuplicate, strings.TrimSpace(in.MatchCode))
	}
	return nil
}

// AddCard creates a card. Grace days default to 20.
func (s *Service) AddCard(ctx context.Context, in CardInput) (domain.Card, error) {
	if err := in.validate(); err != nil {
		return domain.Card{}, err
	}
	defer s.lock()()

	cards, err := s.store.LoadFresh(ctx, schema.Cards)
	if err != nil {
		return domain.Card{}, fmt.Errorf("AddCard: %w", err)
	}
	if err := checkCardDuplicates(cards, in, ""); err != nil {
		return domain.Card{}, err
	}

	grace := in.GraceDays
	if grace == 0 {
		grace = domain.DefaultGraceDays
	}
	card := domain.Card{
		ID:        strconv.Itoa(repository.NextID(cards)),
		Name:      strings.TrimSpace(in.Name),
		First4:    strings.TrimSpace(in.First4),
		Last4:     strings.TrimSpace(in.Last4),
		Limit:     in.Limit,
		GraceDays: grace,
		MatchCode: strings.TrimSpace(in.MatchCode),
	}
	if err := s.store.Append(ctx, schema.Cards, card.Record()); err != nil {
		return domain.Card{}, fmt.Errorf("AddCard: %w", err)
	}

	s.log.Info().Str("card_id", card.ID).Str("name", card.Name).Msg("Card added")
	return card, nil
}

// UpdateCard replaces the editable fields of card id. It returns false when
// no such card exists.
func (s *Service) UpdateCard(ctx context.Context, id string, in CardInput) (bool, error) {
	if err := in.validate(); err != nil {
		return false, err
	}
	defer s.lock()()

	cards, err := s.store.LoadFresh(ctx, schema.Cards)
	if err != nil {
		return false, fmt.Errorf("UpdateCard: %w", err)
	}
	if err := checkCardDuplicates(cards, in, id); err != nil {
		return false, err
	}
	grace := in.GraceDays
	if grace == 0 {
		grace = domain.DefaultGraceDays
	}
	patch := remote.Record{
		"Name":      strings.TrimSpace(in.Name),
		"First4":    strings.TrimSpace(in.First4),
		"Last4":     strings.TrimSpace(in.Last4),
		"Limit":     parse.FormatAmount(in.Limit),
		"GraceDays": strconv.Itoa(grace),
		"MatchCode": strings.TrimSpace(in.MatchCode),
	}
	ok, err := s.store.UpdateByID(ctx, cards, id, patch)
	if err != nil {
		return false, fmt.Errorf("UpdateCard: %w", err)
	}
	return ok, nil
}

// DeleteCard removes card id. Its statements and payments are kept.
func (s *Service) DeleteCard(ctx context.Context, id string) (bool, error) {
	defer s.lock()()
	ok, err := s.store.DeleteByID(ctx, schema.Cards, id)
	if err != nil {
		return false, fmt.Errorf("DeleteCard: %w", err)
	}
	return ok, nil
}

func (s *Service) findCard(ctx context.Context, id string) (domain.Card, error) {
	cards, err := s.store.Load(ctx, schema.Cards)
	if err != nil {
		return domain.Card{}, err
	}
	r, ok := cards.Find(id)
	if !ok {
		return domain.Card{}, fmt.Errorf("%w: card %q", ErrUnknownRef, id)
	}
	return domain.CardFromRecord(r), nil
}

// StatementInput is the billed summary entered for a card and month.
type StatementInput struct {
	CardID       string          `json:"card_id"`
	Period       domain.Period   `json:"period"`
	StmtDate     civil.Date      `json:"stmt_date"`
	DueDate      civil.Date      `json:"due_date"`
	Billed       decimal.Decimal `json:"billed"`
	Unbilled     decimal.Decimal `json:"unbilled"`
	UnbilledDate civil.Date      `json:"unbilled_date"`
}

// SaveStatement upserts the statement of (CardID, Period). The due date
// defaults to the statement date plus the card's grace days, and the stored
// Paid figure is set to the reconciled paid amount.
func (s *Service) SaveStatement(ctx context.Context, in StatementInput) (domain.Statement, error) {
	if err := required("card_id", in.CardID); err != nil {
		return domain.Statement{}, err
	}
	if !in.Period.Valid() {
		return domain.Statement{}, fmt.Errorf("%w: period %v", ErrValidation, in.Period)
	}
	if in.Billed.IsNegative() || in.Unbilled.IsNegative() {
		return domain.Statement{}, fmt.Errorf("%w: billed and unbilled must not be negative", ErrInvalidAmount)
	}
	defer s.lock()()

	card, err := s.findCard(ctx, in.CardID)
	if err != nil {
		return domain.Statement{}, fmt.Errorf("SaveStatement: %w", err)
	}
	stmts, err := s.store.LoadFresh(ctx, schema.Statements)
	if err != nil {
		return domain.Statement{}, fmt.Errorf("SaveStatement: %w", err)
	}
	payments, err := s.store.LoadFresh(ctx, schema.CardPayments)
	if err != nil {
		return domain.Statement{}, fmt.Errorf("SaveStatement: %w", err)
	}

	stmt := domain.Statement{
		CardID:       card.ID,
		Period:       in.Period,
		StmtDate:     in.StmtDate,
		Billed:       in.Billed,
		Unbilled:     in.Unbilled,
		UnbilledDate: dateOr(in.UnbilledDate, s.Today()),
		DueDate:      in.DueDate,
	}
	if !stmt.DueDate.IsValid() && stmt.StmtDate.IsValid() {
		stmt.DueDate = stmt.StmtDate.AddDays(card.GraceDays)
	}

	ledger := convert(payments, domain.CardPaymentFromRecord)
	if prev, ok := reconcile.FindStatement(convert(stmts, domain.StatementFromRecord), card.ID, in.Period); ok {
		stmt.Paid = prev.Paid
	}
	if paid, n := reconcile.CardPaidFromLedger(ledger, card.ID, in.Period); n > 0 {
		stmt.Paid = paid
	}

	kept := stmts.Filter(func(r remote.Record) bool {
		return !(parse.NormalizeID(r["CardID"]) == card.ID && in.Period.Matches(r["Year"], r["Month"]))
	})
	kept = append(kept, stmt.Record())
	if err := s.store.Replace(ctx, stmts, kept); err != nil {
		return domain.Statement{}, fmt.Errorf("SaveStatement: %w", err)
	}

	s.log.Info().Str("card_id", card.ID).Stringer("period", in.Period).Msg("Statement saved")
	return stmt, nil
}

// CardPaymentInput is one payment against a card's monthly bill.
type CardPaymentInput struct {
	CardID string          `json:"card_id"`
	Period domain.Period   `json:"period"`
	Date   civil.Date      `json:"date"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

// RecordCardPayment appends a payment to the card payment ledger. The date
// defaults to today.
func (s *Service) RecordCardPayment(ctx context.Context, in CardPaymentInput) (domain.CardPayment, error) {
	if err := required("card_id", in.CardID); err != nil {
		return domain.CardPayment{}, err
	}
	if !in.Amount.IsPositive() {
		return domain.CardPayment{}, fmt.Errorf("%w: payment must be greater than zero", ErrInvalidAmount)
	}
	if !in.Period.Valid() {
		return domain.CardPayment{}, fmt.Errorf("%w: period %v", ErrValidation, in.Period)
	}
	defer s.lock()()

	card, err := s.findCard(ctx, in.CardID)
	if err != nil {
		return domain.CardPayment{}, fmt.Errorf("RecordCardPayment: %w", err)
	}
	payments, err := s.store.LoadFresh(ctx, schema.CardPayments)
	if err != nil {
		return domain.CardPayment{}, fmt.Errorf("RecordCardPayment: %w", err)
	}

	p := domain.CardPayment{
		ID:     strconv.Itoa(repository.NextID(payments)),
		CardID: card.ID,
		Period: in.Period,
		Date:   dateOr(in.Date, s.Today()),
		Amount: in.Amount.Round(2),
		Note:   strings.TrimSpace(in.Note),
	}
	if err := s.store.Append(ctx, schema.CardPayments, p.Record()); err != nil {
		return domain.CardPayment{}, fmt.Errorf("RecordCardPayment: %w", err)
	}

	s.log.Info().Str("card_id", card.ID).Str("amount", p.Amount.String()).Msg("Card payment recorded")
	return p, nil
}
