package prescription

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/width"
)

var folder = cases.Fold()

// normalizeText folds case, maps full-width digits and letters to ASCII and
// collapses whitespace.
func normalizeText(s string) string {
	s = width.Fold.String(s)
	s = folder.String(s)
	return strings.Join(strings.Fields(s), " ")
}

var numberWords = map[string]int{
	"one":         1,
	"two":         2,
	"three":       3,
	"four":        4,
	"five":        5,
	"six":         6,
	"seven":       7,
	"eight":       8,
	"nine":        9,
	"ten":         10,
	"eleven":      11,
	"twelve":      12,
	"fourteen":    14,
	"fifteen":     15,
	"twenty":      20,
	"twenty one":  21,
	"twenty-one":  21,
	"twenty four": 24,
	"twenty-four": 24,
	"thirty":      30,
}

// numberWordPattern lists multi-word entries first so they win over their prefix.
const numberWordPattern = `twenty[ -]one|twenty[ -]four|twenty|thirty|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|fourteen|fifteen`

func wordValue(w string) (int, bool) {
	n, ok := numberWords[w]
	return n, ok
}
