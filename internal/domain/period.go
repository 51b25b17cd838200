// Package domain holds the typed entities stored in the spreadsheet tables
// and their conversion to and from table records.
package domain

import (
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/esathiyasekhar/FinanceTracker/internal/parse"
	"github.com/shopspring/decimal"
)

// Period is a calendar month.
type Period struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// PeriodOf returns the period containing d.
func PeriodOf(d civil.Date) Period {
	return Period{Year: d.Year, Month: d.Month}
}

// ParsePeriod reads the Year and Month cells of a record.
func ParsePeriod(year, month string) (Period, bool) {
	y, ok := parse.Int(year)
	if !ok {
		return Period{}, false
	}
	m, ok := parse.Month(month)
	if !ok {
		return Period{}, false
	}
	return Period{Year: y, Month: m}, true
}

// Valid reports whether p names a real month.
func (p Period) Valid() bool {
	return p.Year > 0 && p.Month >= time.January && p.Month <= time.December
}

// Contains reports whether d falls in p.
func (p Period) Contains(d civil.Date) bool {
	return d.Year == p.Year && d.Month == p.Month
}

// Matches reports whether the Year and Month cells name p.
func (p Period) Matches(year, month string) bool {
	q, ok := ParsePeriod(year, month)
	return ok && q == p
}

// YearCell and MonthCell are the stored forms of p.
func (p Period) YearCell() string  { return strconv.Itoa(p.Year) }
func (p Period) MonthCell() string { return p.Month.String() }

func (p Period) String() string {
	return fmt.Sprintf("%s %d", p.Month, p.Year)
}

// Previous returns the month before p.
func (p Period) Previous() Period {
	if p.Month == time.January {
		return Period{Year: p.Year - 1, Month: time.December}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

func dateCell(d civil.Date) string {
	if !d.IsValid() {
		return ""
	}
	return d.String()
}

func dateOf(text string) civil.Date {
	d, _ := parse.Date(text)
	return d
}

func amountCell(d decimal.Decimal) string {
	return parse.FormatAmount(d)
}

func intCell(n int) string {
	return strconv.Itoa(n)
}
