// Package normalizer turns raw statement cells into typed values.
//
// Every function here is total: a false result means the row is rejected,
// never that something went wrong.
package normalizer

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultLocation is used for timestamps that carry no zone.
const DefaultLocation = "Asia/Tokyo"

// Layouts tried by ParseDate after separators have been unified to '-'.
var dateLayouts = []string{
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-1-2T15:04:05",
	"2006-1-2T15:04",
	"2006-1-2",
	"20060102",
}

// NormalizeAmount keeps only digits, '.' and '-' and parses the remainder.
// "¥1,200" becomes 1200; "円" or "" is rejected.
func NormalizeAmount(raw string) (decimal.Decimal, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, raw)
	if cleaned == "" {
		return decimal.Zero, false
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return amount, true
}

// ParseDate accepts ISO dates, "2024/5/1", "2024.05.01", optional hh:mm[:ss]
// and RFC3339. Values without a zone are read in loc (Asia/Tokyo when nil).
func ParseDate(raw string, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = MustLoadLocation(DefaultLocation)
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), true
	}

	s = strings.NewReplacer(".", "-", "/", "-").Replace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// MustLoadLocation loads an IANA zone and falls back to a fixed +09:00 zone
// when the tz database is not available.
func MustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		if name == DefaultLocation {
			return time.FixedZone("JST", 9*60*60)
		}
		return time.UTC
	}
	return loc
}

// Parts is the (month, day, time) triple that makes up a pin's identity.
type Parts struct {
	YearMonth string `json:"yearMonth"`
	Day       string `json:"day"`
	Time      string `json:"time"`
}

// TimestampParts splits t in its own location.
func TimestampParts(t time.Time) Parts {
	return Parts{
		YearMonth: t.Format("2006-01"),
		Day:       t.Format("02"),
		Time:      t.Format("15:04:05"),
	}
}

// Valid reports whether all three components are present.
func (p Parts) Valid() bool {
	return p.YearMonth != "" && p.Day != "" && p.Time != ""
}
