// Package inmemory provides a remote.Store kept in process memory. It backs
// the "memory" backend for local runs and records every call so tests can
// assert exactly which remote operations an action issued.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
)

// Call is one recorded Store invocation.
type Call struct {
	Op       string
	Table    string
	Position int
	Rows     int
}

// Store is an in-memory implementation of remote.Store.
// It is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	tables map[string]*sheet
	order  []string
	calls  []Call

	// failures holds queued errors per op; each call of that op pops one.
	failures map[string][]error
}

type sheet struct {
	rows [][]string // row 0 is the header when present
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		tables:   make(map[string]*sheet),
		failures: make(map[string][]error),
	}
}

// Seed creates or overwrites table with header and rows without recording a call.
func (s *Store) Seed(table string, header []string, rows ...[]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh := s.ensure(table)
	sh.rows = nil
	if header != nil {
		sh.rows = append(sh.rows, append([]string(nil), header...))
	}
	for _, r := range rows {
		sh.rows = append(sh.rows, append([]string(nil), r...))
	}
}

// Rows returns a copy of every row of table including the header.
func (s *Store) Rows(table string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.tables[table]
	if !ok {
		return nil
	}
	out := make([][]string, len(sh.rows))
	for i, r := range sh.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// FailNext makes the next len(errs) calls of op return errs in order.
// op is one of the Store method names, for example "ReadAll".
func (s *Store) FailNext(op string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], errs...)
}

// RateLimitNext makes the next n calls of op fail with remote.ErrRateLimited.
func (s *Store) RateLimitNext(op string, n int) {
	errs := make([]error, n)
	for i := range errs {
		errs[i] = remote.ErrRateLimited
	}
	s.FailNext(op, errs...)
}

// Calls returns the recorded calls in order.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount returns how many times op was invoked, failed attempts included.
func (s *Store) CallCount(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// ResetCalls forgets the recorded calls.
func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *Store) ensure(table string) *sheet {
	sh, ok := s.tables[table]
	if !ok {
		sh = &sheet{}
		s.tables[table] = sh
		s.order = append(s.order, table)
	}
	return sh
}

// record must be called with s.mu held. It returns the queued failure, if any.
func (s *Store) record(c Call) error {
	s.calls = append(s.calls, c)
	if q := s.failures[c.Op]; len(q) > 0 {
		s.failures[c.Op] = q[1:]
		return q[0]
	}
	return nil
}

func (s *Store) lookup(table string) (*sheet, error) {
	sh, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", remote.ErrTableNotFound, table)
	}
	return sh, nil
}

// ReadAll implements remote.Store.
func (s *Store) ReadAll(ctx context.Context, table string) (*remote.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(Call{Op: "ReadAll", Table: table}); err != nil {
		return nil, err
	}
	sh, err := s.lookup(table)
	if err != nil {
		return nil, err
	}

	t := &remote.Table{Name: table}
	if len(sh.rows) == 0 {
		return t, nil
	}
	t.Header = append([]string(nil), sh.rows[0]...)
	for _, raw := range sh.rows[1:] {
		r := make(remote.Record, len(t.Header))
		for i, col := range t.Header {
			if i < len(raw) {
				r[col] = raw[i]
			} else {
				r[col] = ""
			}
		}
		t.Records = append(t.Records, r)
	}
	return t, nil
}

// AppendRows implements remote.Store.
func (s *Store) AppendRows(ctx context.Context, table string, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(Call{Op: "AppendRows", Table: table, Rows: len(rows)}); err != nil {
		return err
	}
	sh, err := s.lookup(table)
	if err != nil {
		return err
	}
	for _, r := range rows {
		sh.rows = append(sh.rows, append([]string(nil), r...))
	}
	return nil
}

// Clear implements remote.Store.
func (s *Store) Clear(ctx context.Context, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(Call{Op: "Clear", Table: table}); err != nil {
		return err
	}
	sh, err := s.lookup(table)
	if err != nil {
		return err
	}
	sh.rows = nil
	return nil
}

// DeleteRow implements remote.Store.
func (s *Store) DeleteRow(ctx context.Context, table string, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(Call{Op: "DeleteRow", Table: table, Position: position}); err != nil {
		return err
	}
	sh, err := s.lookup(table)
	if err != nil {
		return err
	}
	i := position - 1
	if i < 0 || i >= len(sh.rows) {
		return fmt.Errorf("delete row %d of %s: out of range", position, table)
	}
	sh.rows = append(sh.rows[:i], sh.rows[i+1:]...)
	return nil
}

// Tables implements remote.Store.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(Call{Op: "Tables"}); err != nil {
		return nil, err
	}
	names := append([]string(nil), s.order...)
	sort.Strings(names)
	return names, nil
}

// CreateTable implements remote.Store.
func (s *Store) CreateTable(ctx context.Context, table string, header []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(Call{Op: "CreateTable", Table: table}); err != nil {
		return err
	}
	if _, exists := s.tables[table]; exists {
		return fmt.Errorf("create table %s: already exists", table)
	}
	sh := s.ensure(table)
	sh.rows = [][]string{append([]string(nil), header...)}
	return nil
}

// SetHeader implements remote.Store.
func (s *Store) SetHeader(ctx context.Context, table string, header []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(Call{Op: "SetHeader", Table: table}); err != nil {
		return err
	}
	sh, err := s.lookup(table)
	if err != nil {
		return err
	}
	h := append([]string(nil), header...)
	if len(sh.rows) == 0 {
		sh.rows = [][]string{h}
		return nil
	}
	sh.rows[0] = h
	return nil
}

var _ remote.Store = (*Store)(nil)
