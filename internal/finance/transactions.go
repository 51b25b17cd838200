package finance

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/esathiyasekhar/FinanceTracker/internal/domain"
	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/esathiyasekhar/FinanceTracker/internal/repository"
	"github.com/esathiyasekhar/FinanceTracker/internal/schema"
	"github.com/shopspring/decimal"
)

// Source labels.
const (
	SourceManual  = "Manual"
	SourceUnknown = "Unknown"
	uploadNote    = "Upload"
)

// TransactionInput is a manually entered income or expense.
type TransactionInput struct {
	Date          civil.Date      `json:"date"`
	Period        domain.Period   `json:"period"`
	Type          string          `json:"type"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	Notes         string          `json:"notes"`
	SourceAccount string          `json:"source_account"`
}

// AddTransaction appends a transaction. The date defaults to today, the
// period to the date's month and the source account to "Manual".
func (s *Service) AddTransaction(ctx context.Context, in TransactionInput) (domain.Transaction, error) {
	kind, err := oneOf("type", in.Type, domain.TypeIncome, domain.TypeExpense)
	if err != nil {
		return domain.Transaction{}, err
	}
	if !in.Amount.IsPositive() {
		return domain.Transaction{}, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	}
	defer s.lock()()

	txs, err := s.store.LoadFresh(ctx, schema.Transactions)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("AddTransaction: %w", err)
	}

	tx := domain.Transaction{
		ID:            strconv.Itoa(repository.NextID(txs)),
		Date:          dateOr(in.Date, s.Today()),
		Period:        in.Period,
		Type:          kind,
		Category:      strings.TrimSpace(in.Category),
		Amount:        in.Amount.Round(2),
		Notes:         strings.TrimSpace(in.Notes),
		SourceAccount: strings.TrimSpace(in.SourceAccount),
	}
	if !tx.Period.Valid() {
		tx.Period = domain.PeriodOf(tx.Date)
	}
	if tx.SourceAccount == "" {
		tx.SourceAccount = SourceManual
	}
	if err := s.store.Append(ctx, schema.Transactions, tx.Record()); err != nil {
		return domain.Transaction{}, fmt.Errorf("AddTransaction: %w", err)
	}
	return tx, nil
}

// ImportCandidates appends parsed statement lines to Transactions in one
// batch. Lines with a non-positive amount are skipped. Each stored row is an
// Expense in the "Statement" category, dated by the candidate (today when it
// has no date) and filed under the candidate's month, or under fallback when
// the candidate has no date. It returns the stored transactions.
func (s *Service) ImportCandidates(ctx context.Context, fallback domain.Period, source string, candidates []domain.Candidate) ([]domain.Transaction, error) {
	if !fallback.Valid() {
		return nil, fmt.Errorf("%w: period %v", ErrValidation, fallback)
	}
	defer s.lock()()

	txs, err := s.store.LoadFresh(ctx, schema.Transactions)
	if err != nil {
		return nil, fmt.Errorf("ImportCandidates: %w", err)
	}

	next := repository.NextID(txs)
	var stored []domain.Transaction
	var records []remote.Record
	for _, c := range candidates {
		if !c.Amount.IsPositive() {
			continue
		}
		tx := domain.Transaction{
			ID:            strconv.Itoa(next),
			Date:          dateOr(c.Date, s.Today()),
			Period:        fallback,
			Type:          domain.TypeExpense,
			Category:      domain.CategoryStatement,
			Amount:        c.Amount.Round(2),
			Notes:         strings.TrimSpace(c.Description),
			SourceAccount: strings.TrimSpace(c.SourceLabel),
		}
		if c.Date.IsValid() {
			tx.Period = domain.PeriodOf(c.Date)
		}
		if tx.Notes == "" {
			tx.Notes = uploadNote
		}
		if tx.SourceAccount == "" {
			tx.SourceAccount = source
		}
		if tx.SourceAccount == "" {
			tx.SourceAccount = SourceUnknown
		}
		next++
		stored = append(stored, tx)
		records = append(records, tx.Record())
	}
	if len(records) == 0 {
		return nil, nil
	}
	if err := s.store.Append(ctx, schema.Transactions, records...); err != nil {
		return nil, fmt.Errorf("ImportCandidates: %w", err)
	}

	s.log.Info().Str("source", source).Int("imported", len(stored)).Int("skipped", len(candidates)-len(stored)).Msg("Candidates imported")
	return stored, nil
}

// DetectSource finds the card or bank whose match code appears in filename
// and returns "Card: <name>" or "Bank: <name>". Cards are checked first.
// It returns "Unknown" when nothing matches.
func (s *Service) DetectSource(ctx context.Context, filename string) string {
	l, _ := s.loadLedger(ctx, schema.Cards, schema.Banks)
	for _, c := range l.Cards {
		if code := strings.TrimSpace(c.MatchCode); code != "" && strings.Contains(filename, code) {
			return "Card: " + c.Name
		}
	}
	for _, b := range l.Banks {
		if code := strings.TrimSpace(b.MatchCode); code != "" && strings.Contains(filename, code) {
			return "Bank: " + b.Name
		}
	}
	return SourceUnknown
}

// Transactions returns the transactions filed under period.
func (s *Service) Transactions(ctx context.Context, period domain.Period) ([]domain.Transaction, error) {
	txs, err := s.store.Load(ctx, schema.Transactions)
	if err != nil {
		return nil, fmt.Errorf("Transactions: %w", err)
	}
	var out []domain.Transaction
	for _, r := range txs.Records {
		if period.Matches(r["Year"], r["Month"]) {
			out = append(out, domain.TransactionFromRecord(r))
		}
	}
	return out, nil
}
