package parse

import (
	"regexp"
	"strconv"

	"github.com/minki/fundscan/internal/models"
)

// trlRange matches explicit spellings: "TRL 4~7", "TRL 4 - 7", "TRL4∼7단계",
// "기술성숙도(TRL) 4~7".
var trlRange = regexp.MustCompile(`TRL\s*\)?\s*(\d)\s*(?:단계)?\s*[~∼–-]\s*(\d)\s*(?:단계)?`)

// trlSingle matches a single explicit level: "TRL 6", "TRL 6단계 이상".
var trlSingle = regexp.MustCompile(`TRL\s*\)?\s*(\d)\s*(?:단계)?(\s*이상)?`)

// trlStageHints infer a range from the development stage an announcement
// describes when no TRL is stated. Ordered: the first matching hint wins.
var trlStageHints = []struct {
	token    string
	min, max int
}{
	{"상용화", 7, 9},
	{"사업화", 7, 9},
	{"실용화", 7, 9},
	{"실증", 6, 8},
	{"시제품", 4, 6},
	{"프로토타입", 4, 6},
	{"응용연구", 3, 5},
	{"기초연구", 1, 3},
	{"원천기술", 2, 4},
}

// ParseTRL extracts a technology readiness range. Explicitly stated levels
// return explicit confidence; development-stage keywords return inferred;
// otherwise the range is 0,0 with missing confidence.
func ParseTRL(text string) (min, max int, conf models.TRLConfidence, patternID string) {
	if m := trlRange.FindStringSubmatch(text); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		if lo >= 1 && hi <= 9 && lo <= hi {
			return lo, hi, models.TRLExplicit, "trl-explicit-range"
		}
	}
	if m := trlSingle.FindStringSubmatch(text); m != nil {
		lvl, _ := strconv.Atoi(m[1])
		if lvl >= 1 && lvl <= 9 {
			if m[2] != "" { // 이상
				return lvl, 9, models.TRLExplicit, "trl-explicit-floor"
			}
			return lvl, lvl, models.TRLExplicit, "trl-explicit-single"
		}
	}
	for _, h := range trlStageHints {
		if containsAny(text, []string{h.token}) {
			return h.min, h.max, models.TRLInferred, "trl-stage-" + h.token
		}
	}
	return 0, 0, models.TRLMissing, ""
}
