package prescription

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultDurationDays is used when a duration cannot be read.
	DefaultDurationDays = 7
	// MaxDurationDays caps a regimen at ten years. Longer durations are
	// treated as unreadable.
	MaxDurationDays = 3650
)

var (
	digitsPattern     = regexp.MustCompile(`\d+`)
	durationWordRegex = regexp.MustCompile(`\b(` + numberWordPattern + `)\b`)
)

// InterpretDuration returns the number of days a medicine is taken for. The
// first number in the text is read as days, or weeks when the text mentions
// "week".
func InterpretDuration(text string) int {
	s := normalizeText(text)

	n, ok := firstNumber(s)
	if !ok || n < 1 {
		return DefaultDurationDays
	}
	if strings.Contains(s, "week") {
		if n > MaxDurationDays/7 {
			return DefaultDurationDays
		}
		n *= 7
	}
	if n > MaxDurationDays {
		return DefaultDurationDays
	}
	return n
}

func firstNumber(s string) (int, bool) {
	digitIdx := digitsPattern.FindStringIndex(s)
	wordIdx := durationWordRegex.FindStringSubmatchIndex(s)

	if digitIdx != nil && (wordIdx == nil || digitIdx[0] < wordIdx[0]) {
		n, err := strconv.Atoi(s[digitIdx[0]:digitIdx[1]])
		if err != nil {
			return 0, false
		}
		return n, true
	}
	if wordIdx != nil {
		return wordValue(s[wordIdx[2]:wordIdx[3]])
	}
	return 0, false
}
