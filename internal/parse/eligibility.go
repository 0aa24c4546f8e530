package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/minki/fundscan/internal/models"
)

// organizationTypes are the applicant classes announcements name. Matching is
// substring-based on eligibility-scoped text only.
var organizationTypes = []string{
	"중소기업", "중견기업", "대기업", "소상공인", "창업기업", "예비창업자",
	"대학", "연구기관", "출연연구기관", "비영리기관", "의료기관", "협회",
}

var certificationTokens = []string{
	"기업부설연구소", "연구개발전담부서", "벤처기업", "이노비즈", "메인비즈",
	"ISO", "GMP", "KC인증",
}

var consortiumPartnerTokens = []string{"대학", "연구기관", "출연연", "병원", "중소기업", "대기업"}

var (
	companyAgePattern = regexp.MustCompile(`창업\s*(?:후\s*)?(\d{1,2})\s*년\s*(?:이내|미만)`)
	rndRatioPattern   = regexp.MustCompile(`연구개발\S*\s*(?:투자\s*)?비[중율]\s*(\d{1,2}(?:\.\d+)?)\s*%\s*이상`)
	agreementPattern  = regexp.MustCompile(`([가-힣A-Z]+)\s*(?:와|과)의?\s*(?:협약|협정|업무협약)`)
	restrictionLine   = regexp.MustCompile(`(?:제외|신청\s*불가|참여\s*제한)`)
)

func dedupeAppend(dst []string, v string) []string {
	for _, have := range dst {
		if have == v {
			return dst
		}
	}
	return append(dst, v)
}

// ParseEligibility extracts the nested requirement block from
// eligibility-scoped text. An empty result means no requirements were stated,
// which downstream treats as open to all applicants.
func ParseEligibility(text string) models.EligibilityCriteria {
	var e models.EligibilityCriteria
	if strings.TrimSpace(text) == "" {
		return e
	}

	for _, org := range organizationTypes {
		if strings.Contains(text, org) {
			e.OrganizationTypes = dedupeAppend(e.OrganizationTypes, org)
		}
	}
	// 출연연구기관 contains 연구기관; keep only the more specific token.
	if strings.Contains(text, "출연연구기관") {
		e.OrganizationTypes = removeString(e.OrganizationTypes, "연구기관")
	}

	if m := companyAgePattern.FindStringSubmatch(text); m != nil {
		e.MaxCompanyAgeYears, _ = strconv.Atoi(m[1])
	}
	if m := rndRatioPattern.FindStringSubmatch(text); m != nil {
		e.MinRnDRatioPercent, _ = strconv.ParseFloat(m[1], 64)
	}

	for _, cert := range certificationTokens {
		if strings.Contains(text, cert) {
			e.Certifications = dedupeAppend(e.Certifications, cert)
		}
	}

	if containsAny(text, []string{"컨소시엄", "산학연", "공동연구"}) {
		if containsAny(text, []string{"필수", "구성하여", "반드시"}) {
			e.ConsortiumRequired = true
			for _, line := range strings.Split(text, "\n") {
				if !containsAny(line, []string{"컨소시엄", "산학연", "공동연구"}) {
					continue
				}
				for _, p := range consortiumPartnerTokens {
					if strings.Contains(line, p) {
						e.ConsortiumPartners = dedupeAppend(e.ConsortiumPartners, p)
					}
				}
			}
		}
	}

	for _, m := range agreementPattern.FindAllStringSubmatch(text, -1) {
		e.GovernmentAgreement = dedupeAppend(e.GovernmentAgreement, m[1])
	}

	for _, line := range strings.Split(text, "\n") {
		if restrictionLine.MatchString(line) {
			if r := strings.TrimSpace(line); r != "" {
				e.IndustryRestriction = dedupeAppend(e.IndustryRestriction, r)
			}
		}
	}

	return e
}

func removeString(xs []string, v string) []string {
	out := xs[:0]
	for _, x := range xs {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
