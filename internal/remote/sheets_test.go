package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type sheetsRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Values [][]interface{}
}

// fakeSheets records the requests it receives and answers with body.
func fakeSheets(t *testing.T, body string) (*SheetsStore, func() []sheetsRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []sheetsRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := sheetsRequest{Method: r.Method, Path: r.URL.Path, Query: map[string]string{}}
		for k, v := range r.URL.Query() {
			req.Query[k] = v[0]
		}
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			var vr sheets.ValueRange
			if err := json.NewDecoder(r.Body).Decode(&vr); err == nil {
				req.Values = vr.Values
			}
		}
		mu.Lock()
		reqs = append(reqs, req)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	svc, err := sheets.NewService(context.Background(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return NewSheetsStoreWithService(svc, "sheet-id"), func() []sheetsRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]sheetsRequest(nil), reqs...)
	}
}

func TestSheetsStore_AppendRowsWritesRawText(t *testing.T) {
	store, requests := fakeSheets(t, `{}`)

	rows := [][]string{{"1", "=HYPERLINK(\"http://x\")", "+44 20", "2025-10-05"}}
	if err := store.AppendRows(context.Background(), "Transactions", rows); err != nil {
		t.Fatalf("AppendRows failed: %v", err)
	}

	reqs := requests()
	if len(reqs) != 1 {
		t.Fatalf("Expected one request, got %d", len(reqs))
	}
	got := reqs[0]
	if !strings.HasSuffix(got.Path, ":append") {
		t.Errorf("Expected an append call, got %s %s", got.Method, got.Path)
	}
	if got.Query["valueInputOption"] != "RAW" {
		t.Errorf("valueInputOption = %q, want RAW", got.Query["valueInputOption"])
	}
	want := [][]interface{}{{"1", "=HYPERLINK(\"http://x\")", "+44 20", "2025-10-05"}}
	if diff := cmp.Diff(want, got.Values); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestSheetsStore_SetHeaderWritesRawText(t *testing.T) {
	store, requests := fakeSheets(t, `{}`)

	if err := store.SetHeader(context.Background(), "Cards", []string{"ID", "Name"}); err != nil {
		t.Fatalf("SetHeader failed: %v", err)
	}
	if reqs := requests(); len(reqs) != 1 || reqs[0].Query["valueInputOption"] != "RAW" {
		t.Errorf("Expected one RAW update, got %+v", reqs)
	}
}

func TestSheetsStore_ReadAll(t *testing.T) {
	store, _ := fakeSheets(t, `{"values":[["ID","Name","Limit"],[1,"Visa",50000.5],["2","Amex"]]}`)

	tbl, err := store.ReadAll(context.Background(), "Cards")
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	want := &Table{
		Name:   "Cards",
		Header: []string{"ID", "Name", "Limit"},
		Records: []Record{
			{"ID": "1", "Name": "Visa", "Limit": "50000.5"},
			{"ID": "2", "Name": "Amex", "Limit": ""},
		},
	}
	if diff := cmp.Diff(want, tbl); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}
