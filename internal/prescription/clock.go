package prescription

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const minutesPerDay = 24 * 60

// ParseClock parses an H:MM or HH:MM 24 hour clock time into minutes past
// midnight.
func ParseClock(s string) (int, bool) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}

// FormatClock renders minutes past midnight as HH:MM, wrapping into a day.
func FormatClock(minutes int) string {
	minutes = ((minutes % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// CanonicalClock returns the HH:MM form of s, or false if s is not a valid time.
func CanonicalClock(s string) (string, bool) {
	m, ok := ParseClock(s)
	if !ok {
		return "", false
	}
	return FormatClock(m), true
}

// NormalizeTimes canonicalizes, de-duplicates and sorts a list of clock
// times. Invalid entries are dropped.
func NormalizeTimes(times []string) []string {
	seen := make(map[int]struct{}, len(times))
	mins := make([]int, 0, len(times))
	for _, t := range times {
		m, ok := ParseClock(t)
		if !ok {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		mins = append(mins, m)
	}
	if len(mins) == 0 {
		return nil
	}
	sort.Ints(mins)

	out := make([]string, len(mins))
	for i, m := range mins {
		out[i] = FormatClock(m)
	}
	return out
}
