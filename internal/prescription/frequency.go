package prescription

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	wakingStart = 8 * 60
	wakingEnd   = 22 * 60

	maxDosesPerDay = 24
)

var (
	onceTimes   = []string{"09:00"}
	twiceTimes  = []string{"09:00", "21:00"}
	thriceTimes = []string{"09:00", "14:00", "21:00"}

	// a-b-c notation slots: morning, afternoon, night.
	slotTimes = [3]string{"08:00", "14:00", "21:00"}
)

var (
	// A leading minus is kept so negative counts are rejected, but not when
	// it joins a range such as "1-2 times".
	countPattern     = regexp.MustCompile(`(?:^|[^0-9a-z])(-?)(\d+)\s*(?:times?|x)\b`)
	wordCountPattern = regexp.MustCompile(`\b(` + numberWordPattern + `)\s+times?\b`)
	everyPattern     = regexp.MustCompile(`\bevery\s+(\d+|` + numberWordPattern + `)?\s*(?:hours?|hrs?|h)\b`)
	abbrevPattern    = regexp.MustCompile(`\b(od|qd|bd|bid|tds|tid|qid|qds)\b`)
	slotPattern      = regexp.MustCompile(`\b(\d)\s*-\s*(\d)\s*-\s*(\d)\b`)
)

var abbreviations = map[string]int{
	"od": 1, "qd": 1,
	"bd": 2, "bid": 2,
	"tds": 3, "tid": 3,
	"qid": 4, "qds": 4,
}

// InterpretFrequency maps a free-text frequency description to an ordered
// list of HH:MM dose times. Unrecognised text falls back to a single
// morning dose.
func InterpretFrequency(text string) []string {
	s := normalizeText(text)

	switch {
	case strings.Contains(s, "once"):
		return clone(onceTimes)
	case strings.Contains(s, "twice"):
		return clone(twiceTimes)
	case strings.Contains(s, "thrice"), strings.Contains(s, "three times"):
		return clone(thriceTimes)
	}

	if m := countPattern.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1] + m[2]); err == nil {
			if times, ok := timesPerDay(n); ok {
				return times
			}
		}
	}

	if m := wordCountPattern.FindStringSubmatch(s); m != nil {
		if n, ok := wordValue(m[1]); ok {
			if times, ok := timesPerDay(n); ok {
				return times
			}
		}
	}

	if m := everyPattern.FindStringSubmatch(s); m != nil {
		if times, ok := everyHours(m[1]); ok {
			return times
		}
	}

	if m := abbrevPattern.FindStringSubmatch(s); m != nil {
		if times, ok := timesPerDay(abbreviations[m[1]]); ok {
			return times
		}
	}

	if m := slotPattern.FindStringSubmatch(s); m != nil {
		if times, ok := slots(m[1:]); ok {
			return times
		}
	}

	return clone(onceTimes)
}

// timesPerDay returns n dose times. Up to three doses use the canonical
// sets; more are spread evenly across the waking window.
func timesPerDay(n int) ([]string, bool) {
	switch {
	case n <= 0 || n > maxDosesPerDay:
		return nil, false
	case n == 1:
		return clone(onceTimes), true
	case n == 2:
		return clone(twiceTimes), true
	case n == 3:
		return clone(thriceTimes), true
	}

	span := wakingEnd - wakingStart
	times := make([]string, n)
	for i := range n {
		times[i] = FormatClock(wakingStart + i*span/(n-1))
	}
	return times, true
}

func everyHours(raw string) ([]string, bool) {
	hours := 1
	if raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			var ok bool
			if n, ok = wordValue(raw); !ok {
				return nil, false
			}
		}
		hours = n
	}
	if hours < 1 || hours > 24 {
		return nil, false
	}

	var mins []string
	for i := range 24 / hours {
		mins = append(mins, FormatClock(wakingStart+i*hours*60))
	}
	return NormalizeTimes(mins), true
}

func slots(parts []string) ([]string, bool) {
	var times []string
	for i, p := range parts {
		if p != "0" {
			times = append(times, slotTimes[i])
		}
	}
	return times, len(times) > 0
}

func clone(times []string) []string {
	out := make([]string, len(times))
	copy(out, times)
	return out
}
