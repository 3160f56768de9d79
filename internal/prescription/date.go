package prescription

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const isoDate = "2006-01-02"

// dayFirstPattern matches D/M/YYYY. Slash dates are always read day first.
var dayFirstPattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)

var dateLayouts = []string{
	isoDate,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"2006/1/2",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"2.1.2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"Monday, January 2, 2006",
}

// NormalizeDate renders a free-text prescription date as YYYY-MM-DD. Input
// that cannot be read yields the date of now.
func NormalizeDate(raw string, now time.Time) string {
	s := strings.TrimSpace(raw)

	if m := dayFirstPattern.FindStringSubmatch(s); m != nil {
		if d, ok := calendarDate(m[3], m[2], m[1]); ok {
			return d.Format(isoDate)
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(isoDate)
		}
	}

	return now.Format(isoDate)
}

func calendarDate(year, month, day string) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 {
		return time.Time{}, false
	}

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow, so 31/02 would silently become March.
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}
