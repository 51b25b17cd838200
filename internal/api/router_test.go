package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/esathiyasekhar/FinanceTracker/internal/cache"
	"github.com/esathiyasekhar/FinanceTracker/internal/finance"
	"github.com/esathiyasekhar/FinanceTracker/internal/gridsync"
	jobsmem "github.com/esathiyasekhar/FinanceTracker/internal/jobs/inmemory"
	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/esathiyasekhar/FinanceTracker/internal/remote/inmemory"
	"github.com/esathiyasekhar/FinanceTracker/internal/repository"
	"github.com/esathiyasekhar/FinanceTracker/internal/schema"
	"github.com/rs/zerolog"
)

type testServer struct {
	handler http.Handler
	store   *inmemory.Store
	jobs    *jobsmem.Store
}

func newTestServer(t *testing.T, provision bool) *testServer {
	t.Helper()
	store := inmemory.NewStore()
	client := remote.NewClient(store, remote.WithSleep(func(context.Context, time.Duration) error { return nil }))
	tables := cache.New(client)
	client.OnWrite(tables.Invalidate)
	repo := repository.New(client, tables, zerolog.Nop())
	if provision {
		if _, err := repo.Provision(context.Background()); err != nil {
			t.Fatalf("Provision failed: %v", err)
		}
	}
	svc := finance.NewService(repo, gridsync.New(repo, zerolog.Nop()),
		finance.WithClock(func() time.Time { return time.Date(2025, time.October, 20, 10, 0, 0, 0, time.UTC) }),
		finance.WithLocation(time.UTC),
	)

	jobStore := jobsmem.NewStore()
	queue := jobsmem.NewQueue(10, jobStore)
	t.Cleanup(func() { queue.Close() })

	return &testServer{
		handler: NewRouter(svc, queue, jobStore, zerolog.Nop()),
		store:   store,
		jobs:    jobStore,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	out := map[string]interface{}{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: invalid JSON response %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	code, body := s.do(t, http.MethodGet, "/health", "")
	if code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("Expected healthy response, got %d %v", code, body)
	}
}

func TestCardEndpoints(t *testing.T) {
	s := newTestServer(t, true)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"create", http.MethodPost, "/api/cards", `{"name":"Visa","limit":"100000","match_code":"4321"}`, http.StatusCreated},
		{"duplicate name", http.MethodPost, "/api/cards", `{"name":" visa ","limit":"5000"}`, http.StatusConflict},
		{"missing name", http.MethodPost, "/api/cards", `{"limit":"5000"}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/cards", `{"name":`, http.StatusBadRequest},
		{"update unknown", http.MethodPut, "/api/cards/9", `{"name":"Other","limit":"1"}`, http.StatusNotFound},
		{"update", http.MethodPut, "/api/cards/1", `{"name":"Visa Gold","limit":"150000","match_code":"4321"}`, http.StatusOK},
		{"statement for unknown card", http.MethodPost, "/api/statements", `{"card_id":"7","period":{"year":2025,"month":10},"stmt_date":"2025-10-03","billed":"500"}`, http.StatusNotFound},
		{"statement", http.MethodPost, "/api/statements", `{"card_id":"1","period":{"year":2025,"month":10},"stmt_date":"2025-10-03","billed":"5000"}`, http.StatusOK},
		{"payment", http.MethodPost, "/api/card-payments", `{"card_id":"1","period":{"year":2025,"month":10},"amount":"2000"}`, http.StatusCreated},
		{"payment without amount", http.MethodPost, "/api/card-payments", `{"card_id":"1","period":{"year":2025,"month":10}}`, http.StatusBadRequest},
		{"wrong method", http.MethodPatch, "/api/cards/1", `{}`, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := s.do(t, tt.method, tt.path, tt.body)
			if code != tt.want {
				t.Errorf("Expected %d, got %d (%v)", tt.want, code, body)
			}
		})
	}

	code, body := s.do(t, http.MethodGet, "/api/cards?year=2025&month=October", "")
	if code != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("Expected one card, got %d %v", code, body)
	}
	view := body["cards"].([]interface{})[0].(map[string]interface{})
	if name := view["card"].(map[string]interface{})["name"]; name != "Visa Gold" {
		t.Errorf("Expected updated card name, got %v", name)
	}
	if payments := view["payments"].([]interface{}); len(payments) != 1 {
		t.Errorf("Expected one payment in October, got %v", payments)
	}

	if code, _ := s.do(t, http.MethodDelete, "/api/cards/1", ""); code != http.StatusNoContent {
		t.Errorf("Expected 204 on delete, got %d", code)
	}
	if code, _ := s.do(t, http.MethodDelete, "/api/cards/1", ""); code != http.StatusNotFound {
		t.Errorf("Expected 404 deleting a missing card, got %d", code)
	}
}

func TestPeriodParam(t *testing.T) {
	s := newTestServer(t, true)

	tests := []struct {
		query string
		want  int
	}{
		{"", http.StatusOK},
		{"?year=2025&month=10", http.StatusOK},
		{"?year=2025&month=Oct", http.StatusOK},
		{"?month=Smarch", http.StatusBadRequest},
		{"?year=-1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if code, body := s.do(t, http.MethodGet, "/api/dashboard"+tt.query, ""); code != tt.want {
				t.Errorf("Expected %d, got %d (%v)", tt.want, code, body)
			}
		})
	}
}

func TestDashboard_ReportsUnavailableTables(t *testing.T) {
	s := newTestServer(t, false)

	code, body := s.do(t, http.MethodGet, "/api/dashboard?year=2025&month=10", "")
	if code != http.StatusOK {
		t.Fatalf("Expected dashboard to be served from partial data, got %d", code)
	}
	if missing := body["unavailable"].([]interface{}); len(missing) != 8 {
		t.Errorf("Expected all 8 tables reported unavailable, got %v", missing)
	}

	if code, _ := s.do(t, http.MethodGet, "/api/transactions", ""); code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 for an unreadable table, got %d", code)
	}
}

func TestImportTransactions(t *testing.T) {
	s := newTestServer(t, true)
	s.store.Seed("Cards", schema.MustLookup(schema.Cards).ColumnNames(),
		[]string{"1", "Visa", "", "", "100000", "20", "4321"},
	)

	code, body := s.do(t, http.MethodGet, "/api/sources/detect?filename=stmt_4321_oct.pdf", "")
	if code != http.StatusOK || body["source"] != "Card: Visa" {
		t.Errorf("Expected card to be detected, got %d %v", code, body)
	}

	code, body = s.do(t, http.MethodPost, "/api/transactions/import?year=2025&month=9", `{
		"filename": "stmt_4321_oct.pdf",
		"candidates": [
			{"date": "2025-10-03", "amount": "120.50", "description": "Coffee"},
			{"amount": "-5", "description": "Refund"}
		]
	}`)
	if code != http.StatusOK {
		t.Fatalf("Expected import to succeed, got %d %v", code, body)
	}
	if body["imported"] != float64(1) || body["skipped"] != float64(1) || body["source"] != "Card: Visa" {
		t.Errorf("Unexpected import result: %v", body)
	}

	code, body = s.do(t, http.MethodGet, "/api/transactions?year=2025&month=10", "")
	if code != http.StatusOK || body["count"] != float64(1) {
		t.Errorf("Expected the imported transaction filed under October, got %d %v", code, body)
	}
}

func TestTableEndpoints(t *testing.T) {
	s := newTestServer(t, true)
	s.store.Seed("Banks", schema.MustLookup(schema.Banks).ColumnNames(),
		[]string{"1", "HDFC", "Savings", "", "HD"},
		[]string{"2", "ICICI", "Current", "", "IC"},
	)

	if code, _ := s.do(t, http.MethodGet, "/api/tables/Nope", ""); code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown table, got %d", code)
	}

	code, body := s.do(t, http.MethodGet, "/api/tables/Banks?Type=Current", "")
	if code != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("Expected the filtered grid, got %d %v", code, body)
	}
	version, _ := body["version"].(string)
	if version == "" {
		t.Fatal("Expected a table version")
	}

	code, body = s.do(t, http.MethodPost, "/api/tables/Banks/sync", `{"version":"stale","rows":[]}`)
	if code != http.StatusConflict {
		t.Errorf("Expected 409 for a stale version, got %d %v", code, body)
	}

	code, body = s.do(t, http.MethodPost, "/api/tables/Banks/sync",
		`{"version":"`+version+`","rows":[{"record":{"ID":"2","Name":"ICICI","Type":"Current","MatchCode":"IC"},"delete":true}]}`)
	if code != http.StatusOK || body["outcome"] != string(gridsync.Deleted) {
		t.Errorf("Expected the row to be deleted, got %d %v", code, body)
	}
	if rows := s.store.Rows("Banks"); len(rows) != 2 || rows[1][1] != "HDFC" {
		t.Errorf("Expected only HDFC left, got %v", rows)
	}
}

func TestJobEndpoints(t *testing.T) {
	s := newTestServer(t, false)

	code, body := s.do(t, http.MethodPost, "/api/jobs", `{"type":"snapshot_tables","tables":["Cards"]}`)
	if code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d %v", code, body)
	}
	id := body["job_id"].(string)

	code, body = s.do(t, http.MethodGet, "/api/jobs/"+id, "")
	if code != http.StatusOK || body["status"] != "pending" || body["trigger"] != "api" {
		t.Errorf("Expected the pending job, got %d %v", code, body)
	}

	code, body = s.do(t, http.MethodGet, "/api/jobs?type=snapshot_tables", "")
	if code != http.StatusOK || body["count"] != float64(1) {
		t.Errorf("Expected one listed job, got %d %v", code, body)
	}

	for _, bad := range []string{`{"type":"reindex"}`, `{"type":"snapshot_tables","tables":["Nope"]}`} {
		if code, _ := s.do(t, http.MethodPost, "/api/jobs", bad); code != http.StatusBadRequest {
			t.Errorf("Expected 400 for %s, got %d", bad, code)
		}
	}

	code, body = s.do(t, http.MethodGet, "/api/jobs/missing", "")
	if code != http.StatusNotFound || !strings.Contains(body["error"].(string), "not found") {
		t.Errorf("Expected 404, got %d %v", code, body)
	}
}
