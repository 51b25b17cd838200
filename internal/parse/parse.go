// Package parse converts loosely formatted sheet cells into typed values.
// None of these functions fail the caller: unparseable input yields a zero
// value or a false ok flag.
package parse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

var nonAmountChars = regexp.MustCompile(`[^\d.\-]`)

// Amount strips every character that is not a digit, '.' or '-' and parses
// the rest as a decimal rounded to two places. Empty or malformed input is zero.
func Amount(text string) decimal.Decimal {
	clean := nonAmountChars.ReplaceAllString(text, "")
	if clean == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero
	}
	return d.Round(2)
}

// FormatAmount renders an amount the way it is written back to the sheet.
func FormatAmount(d decimal.Decimal) string {
	return d.Round(2).String()
}

// dateLayouts is tried in order; the first layout that parses wins.
// Non-padded day/month verbs accept both "5" and "05".
var dateLayouts = []struct {
	layout  string
	hasYear bool
}{
	{"2006-1-2", true},
	{"2-1-2006", true},
	{"2/1/2006", true},
	{"2-Jan-2006", true},
	{"2006/1/2", true},
	{"2-Jan-06", true},
	{"2-1-06", true},
	{"2-Jan", false},
}

// Date parses text with the current clock.
func Date(text string) (civil.Date, bool) {
	return DateAt(text, time.Now())
}

// DateAt parses text against the known layouts. Layouts without a year take
// the year of now.
func DateAt(text string, now time.Time) (civil.Date, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return civil.Date{}, false
	}
	// "2025-01-05 00:00:00" and RFC 3339 timestamps carry a time part we ignore.
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	if len(s) > 10 && s[10] == 'T' {
		s = s[:10]
	}
	for _, l := range dateLayouts {
		t, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		d := civil.DateOf(t)
		if !l.hasYear {
			d.Year = now.Year()
			if !d.IsValid() {
				return civil.Date{}, false
			}
		}
		return d, true
	}
	return civil.Date{}, false
}

// Int parses an integer cell. Sheets often return whole numbers as "3.0".
func Int(text string) (int, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// ID returns the numeric value of an ID cell, or 0 when it is not numeric.
// Fractional IDs such as "3.5" are floored.
func ID(text string) int {
	if n, ok := Int(text); ok {
		return n
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Floor(f))
}

// NormalizeID returns the canonical string form used to compare IDs across
// tables: "7", "7.0" and " 7 " all become "7". Non-numeric IDs are trimmed.
func NormalizeID(text string) string {
	if n, ok := Int(text); ok {
		return strconv.Itoa(n)
	}
	return strings.TrimSpace(text)
}

// Month accepts English month names ("March", "mar") and numbers 1-12.
func Month(text string) (time.Month, bool) {
	s := strings.TrimSpace(text)
	if n, ok := Int(s); ok {
		if n >= 1 && n <= 12 {
			return time.Month(n), true
		}
		return 0, false
	}
	if len(s) < 3 {
		return 0, false
	}
	for m := time.January; m <= time.December; m++ {
		name := m.String()
		if strings.EqualFold(s, name) || strings.EqualFold(s, name[:3]) {
			return m, true
		}
	}
	return 0, false
}
