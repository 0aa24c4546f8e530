package parse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Korean amount units in won. 억 is 10^8 — a hundred million, not a billion.
const (
	wonJo       int64 = 1_000_000_000_000
	wonEok      int64 = 100_000_000
	wonCheonMan int64 = 10_000_000
	wonBaekMan  int64 = 1_000_000
	wonMan      int64 = 10_000
)

var unitMultipliers = map[string]int64{
	"조":  wonJo,
	"억":  wonEok,
	"천만": wonCheonMan,
	"백만": wonBaekMan,
	"만":  wonMan,
	"":   1,
}

// amountPattern matches "3억원", "3.5억 원", "350억원", "1,250백만원", "5,000만원",
// "300,000,000원". Unit composition like "3억 5천만원" is summed by the caller.
var amountPattern = regexp.MustCompile(`([\d,]+(?:\.\d+)?)\s*(조|억|천만|백만|만)?\s*원`)

// totalMarkers flag a line as stating the overall program budget rather than
// a per-project ceiling ("과제당 5억원 이내").
var totalMarkers = []string{"총", "전체", "지원규모", "사업예산", "정부출연금 규모", "총사업비", "총 사업비"}

var perProjectMarkers = []string{"과제당", "과제별", "기업당", "건당", "내외", "개사"}

// parseAmountWon converts one matched amount to won. Returns 0 for
// unparseable numbers.
func parseAmountWon(number, unit string) int64 {
	clean := strings.ReplaceAll(number, ",", "")
	val, err := strconv.ParseFloat(clean, 64)
	if err != nil || val <= 0 {
		return 0
	}
	mult, ok := unitMultipliers[unit]
	if !ok {
		return 0
	}
	return int64(math.Round(val * float64(mult)))
}

// amountExpr matches one 원-terminated amount expression, including composed
// spellings like "3억 5천만원" that write the unit once at the end.
var amountExpr = regexp.MustCompile(`(?:[\d,]+(?:\.\d+)?\s*(?:조|억|천만|백만|만)?\s*)+원`)

var amountTerm = regexp.MustCompile(`([\d,]+(?:\.\d+)?)\s*(조|억|천만|백만|만)?`)

// exprAmountWon sums the unit terms of one expression: "3억 5천만원" is
// 350,000,000.
func exprAmountWon(expr string) int64 {
	var sum int64
	for _, m := range amountTerm.FindAllStringSubmatch(expr, -1) {
		sum += parseAmountWon(m[1], m[2])
	}
	return sum
}

// lineAmountWon resolves a line to a single amount. Lines carrying several
// expressions ("총 100억원 (과제당 5억원 이내)", "3억원 ~ 5억원") yield the
// largest one.
func lineAmountWon(line string) int64 {
	var best int64
	for _, expr := range amountExpr.FindAllString(line, -1) {
		if v := exprAmountWon(expr); v > best {
			best = v
		}
	}
	return best
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// ParseBudget extracts the total program budget in won from budget-scoped
// text. Total-marked lines beat per-project lines; among equally marked lines
// the largest amount wins. Returns nil when no amount is found — unknown is
// never encoded as zero.
func ParseBudget(text string) (*int64, string) {
	var totalBest, anyBest int64
	patternID := ""

	for _, line := range strings.Split(text, "\n") {
		if !amountPattern.MatchString(line) {
			continue
		}
		amount := lineAmountWon(line)
		if amount <= 0 {
			continue
		}
		isTotal := containsAny(line, totalMarkers)
		isPerProject := containsAny(line, perProjectMarkers)
		if isTotal && !isPerProject {
			if amount > totalBest {
				totalBest = amount
				patternID = "budget-total-line"
			}
			continue
		}
		if amount > anyBest {
			anyBest = amount
		}
	}

	if totalBest > 0 {
		return &totalBest, patternID
	}
	if anyBest > 0 {
		return &anyBest, "budget-largest-amount"
	}
	return nil, ""
}
