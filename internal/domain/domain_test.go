package domain

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/shopspring/decimal"
)

func TestPeriod_Matches(t *testing.T) {
	p := Period{Year: 2025, Month: time.October}

	tests := []struct {
		year, month string
		want        bool
	}{
		{"2025", "October", true},
		{"2025.0", "oct", true},
		{"2025", "10", true},
		{"2024", "October", false},
		{"2025", "November", false},
		{"", "October", false},
		{"2025", "", false},
	}

	for _, tt := range tests {
		if got := p.Matches(tt.year, tt.month); got != tt.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", tt.year, tt.month, got, tt.want)
		}
	}
}

func TestPeriod_Previous(t *testing.T) {
	if got := (Period{Year: 2026, Month: time.January}).Previous(); got != (Period{Year: 2025, Month: time.December}) {
		t.Errorf("Previous of January = %v", got)
	}
	if got := (Period{Year: 2026, Month: time.March}).Previous(); got != (Period{Year: 2026, Month: time.February}) {
		t.Errorf("Previous of March = %v", got)
	}
}

func TestCardFromRecord_DefaultsGraceDays(t *testing.T) {
	c := CardFromRecord(remote.Record{"ID": "3.0", "Name": "Visa", "Limit": "₹1,50,000", "GraceDays": ""})
	if c.ID != "3" {
		t.Errorf("Expected normalized ID 3, got %q", c.ID)
	}
	if c.GraceDays != DefaultGraceDays {
		t.Errorf("Expected default grace days, got %d", c.GraceDays)
	}
	if !c.Limit.Equal(decimal.NewFromInt(150000)) {
		t.Errorf("Expected limit 150000, got %s", c.Limit)
	}
}

func TestStatementRecord(t *testing.T) {
	s := Statement{
		CardID:   "1",
		Period:   Period{Year: 2025, Month: time.October},
		StmtDate: civil.Date{Year: 2025, Month: time.October, Day: 3},
		Billed:   decimal.RequireFromString("5000.50"),
		DueDate:  civil.Date{Year: 2025, Month: time.October, Day: 23},
	}

	r := s.Record()
	if r["Month"] != "October" || r["Year"] != "2025" {
		t.Errorf("Expected stored period October 2025, got %s %s", r["Month"], r["Year"])
	}
	if r["UnbilledDate"] != "" {
		t.Errorf("Expected unset date stored empty, got %q", r["UnbilledDate"])
	}
	if r["Billed"] != "5000.5" {
		t.Errorf("Expected billed 5000.5, got %q", r["Billed"])
	}

	back := StatementFromRecord(r)
	if back.DueDate != s.DueDate || !back.Billed.Equal(s.Billed) || back.Period != s.Period {
		t.Errorf("Statement did not survive conversion: %+v", back)
	}
}

func TestLoanActive(t *testing.T) {
	for status, want := range map[string]bool{"": true, "Active": true, "Closed": false} {
		if got := (Loan{Status: status}).Active(); got != want {
			t.Errorf("Loan{Status: %q}.Active() = %v, want %v", status, got, want)
		}
	}
}
