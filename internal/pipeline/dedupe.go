package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/minki/fundscan/internal/models"
)

// ContentHash derives the dedup identity of a structured record from its
// extraction-relevant fields. Re-announcements with identical content hash to
// the same record; cosmetic listing differences (posting date, agency row
// ordering) do not.
func ContentHash(p *models.Program) string {
	cats := append([]string(nil), p.Categories...)
	sort.Strings(cats)

	var deadline string
	if p.DeadlineAt != nil {
		deadline = p.DeadlineAt.UTC().Format("2006-01-02")
	}
	var budget string
	if p.BudgetWon != nil {
		budget = fmt.Sprintf("%d", *p.BudgetWon)
	}
	eligibility, _ := json.Marshal(p.Eligibility)

	fields := []string{
		normalizeField(p.Title),
		normalizeField(p.Ministry),
		normalizeField(p.AgencyName),
		budget,
		deadline,
		fmt.Sprintf("%d-%d", p.MinTRL, p.MaxTRL),
		strings.Join(cats, ","),
		string(eligibility),
	}

	sum := sha256.Sum256([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// normalizeField folds whitespace and case so trivial listing reformatting
// does not change the hash.
func normalizeField(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
