package record

import (
	"strings"
	"time"
)

// CanonicalDateFormat is the single calendar format used everywhere.
const CanonicalDateFormat = "2006-01-02"

// Day-first layouts are tried before month-first: the source corpus is
// predominantly day-first, so the month-first layout only resolves inputs
// every day-first layout rejects (e.g. "09/14/2022").
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
	"02.01.2006",
	"02-Jan-2006",
	"02 Jan 2006",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"01/02/2006", // month-first fallback
	"02-01-06",
	"02/01/06",
}

// CanonicalDate normalizes a date-like string to YYYY-MM-DD. Returns
// ("", false) when the input does not parse as any known layout.
func CanonicalDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(CanonicalDateFormat), true
		}
	}
	return "", false
}
