// Package finance implements the household finance actions: validated writes
// to the entity tables and the reconciled read views built over them.
package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/esathiyasekhar/FinanceTracker/internal/gridsync"
	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/esathiyasekhar/FinanceTracker/internal/repository"
	"github.com/esathiyasekhar/FinanceTracker/internal/schema"
	"github.com/rs/zerolog"
)

// Validation errors. All of them match ErrValidation with errors.Is and are
// returned before any remote call is made.
var (
	ErrValidation    = errors.New("validation failed")
	ErrDuplicate     = fmt.Errorf("%w: duplicate", ErrValidation)
	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrMissingField  = fmt.Errorf("%w: missing field", ErrValidation)
	ErrInvalidType   = fmt.Errorf("%w: invalid type", ErrValidation)
	ErrUnknownRef    = fmt.Errorf("%w: unknown reference", ErrValidation)
)

// Store is the repository surface the service needs.
type Store interface {
	Load(ctx context.Context, table schema.Table) (*repository.Collection, error)
	LoadFresh(ctx context.Context, table schema.Table) (*repository.Collection, error)
	LoadOrEmpty(ctx context.Context, table schema.Table) *repository.Collection
	Append(ctx context.Context, table schema.Table, records ...remote.Record) error
	Replace(ctx context.Context, c *repository.Collection, records []remote.Record) error
	UpdateByID(ctx context.Context, c *repository.Collection, id string, patch remote.Record) (bool, error)
	DeleteByID(ctx context.Context, table schema.Table, id string) (bool, error)
}

// Service runs finance actions. Write actions are serialized; reads may run
// concurrently with each other and with writes.
type Service struct {
	store Store
	grid  *gridsync.Engine
	now   func() time.Time
	loc   *time.Location
	log   zerolog.Logger

	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock injects the time source used for "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the timezone "today" is computed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// NewService creates a service over store. The grid engine writes through
// the same store.
func NewService(store Store, grid *gridsync.Engine, opts ...Option) *Service {
	s := &Service{
		store: store,
		grid:  grid,
		now:   time.Now,
		loc:   time.Local,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current date in the service's timezone.
func (s *Service) Today() civil.Date {
	return civil.DateOf(s.now().In(s.loc))
}

func (s *Service) lock() func() {
	s.mu.Lock()
	return s.mu.Unlock
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	return nil
}

func oneOf(field, value string, allowed ...string) (string, error) {
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(value), a) {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %s must be one of %s, got %q", ErrInvalidType, field, strings.Join(allowed, ", "), value)
}

func dateOr(d, fallback civil.Date) civil.Date {
	if d.IsValid() {
		return d
	}
	return fallback
}
