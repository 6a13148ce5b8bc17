package search

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Date layouts tried in order. Ambiguous day/month forms resolve to the
// earlier (US-style) layout first, matching the source system.
var dateLayouts = []string{
	"2006/01/02",
	"01/02/2006",
	"2006-01-02",
	"01-02-2006",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"02/01/2006",
	"02-01-2006",
	"2006.01.02",
	"02.01.2006",
}

var relativeDays = map[string]int{
	"today":      0,
	"yesterday":  1,
	"last week":  7,
	"last month": 30,
	"last year":  365,
}

// ParseDate parses a query date value. Relative tokens resolve against
// now. Callers treat any error as the empty result set; there is no
// silent fallback to the current time.
func ParseDate(value string, now time.Time) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if days, ok := relativeDays[strings.ToLower(v)]; ok {
		return now.AddDate(0, 0, -days), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

var periodRe = regexp.MustCompile(`^\s*([0-9]+)\s*([dmy]?)\s*$`)

// ParsePeriod parses relative-age values like "7d", "2m", "1y". A bare
// integer means days; m is 30 days and y is 365 days.
func ParsePeriod(value string) (time.Duration, error) {
	m := periodRe.FindStringSubmatch(strings.ToLower(value))
	if m == nil {
		return 0, fmt.Errorf("unrecognized period %q", value)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("unrecognized period %q", value)
	}
	days := n
	switch m[2] {
	case "m":
		days = n * 30
	case "y":
		days = n * 365
	}
	return time.Duration(days) * 24 * time.Hour, nil
}
