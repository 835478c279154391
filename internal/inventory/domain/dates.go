package domain

import (
	"fmt"
	"strings"
	"time"
)

// dateInputLayouts are accepted for user-entered dates: ISO and the short
// German form used on the stock forms.
var dateInputLayouts = []string{DateLayout, "02.01.06", "02.01.2006", time.RFC3339}

// ParseDateInput parses a user-entered date. An empty string yields nil.
func ParseDateInput(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateInputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q", s)
}

// FormatDate renders a date for reports, or NotAvailable when nil.
func FormatDate(t *time.Time) string {
	if t == nil {
		return NotAvailable
	}
	return t.Format(DateLayout)
}

// InPast reports whether the calendar day of t lies before the day of now.
func InPast(t time.Time, now time.Time) bool {
	return t.Before(startOfDay(now.In(t.Location())))
}
