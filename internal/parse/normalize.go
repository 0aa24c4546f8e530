// Package parse turns announcement text into structured program fields:
// budgets, application windows, TRL ranges, eligibility requirements and
// industry tags. All matching runs on normalized text so the pattern tables
// only need one spelling of each token.
package parse

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var spaceRuns = regexp.MustCompile(`[ \t]+`)

// Normalize folds full-width digits and punctuation to their ASCII forms and
// applies NFKC. Line structure is preserved; section detection works per line.
func Normalize(text string) string {
	text = width.Fold.String(text)
	text = norm.NFKC.String(text)
	text = strings.ReplaceAll(text, " ", " ")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRuns.ReplaceAllString(line, " "))
	}
	return strings.Join(lines, "\n")
}
