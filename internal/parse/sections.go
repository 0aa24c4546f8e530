package parse

import (
	"regexp"
	"strings"
)

// SectionKind scopes which extractors may read a section. Eligibility
// requirements found in a contact-info block are boilerplate noise, not data.
type SectionKind string

const (
	SectionEligibility SectionKind = "eligibility"
	SectionSubject     SectionKind = "subject"
	SectionSchedule    SectionKind = "schedule"
	SectionBudget      SectionKind = "budget"
	SectionBoilerplate SectionKind = "boilerplate"
	SectionOther       SectionKind = "other"
)

// Section is one heading-delimited block of an announcement.
type Section struct {
	Kind    SectionKind
	Heading string
	Body    string
}

// headingMarkers match the bullet and numbering prefixes Korean government
// announcements use for top-level headings.
var headingMarkers = regexp.MustCompile(`^(?:[□■◇◆○●▶▷]|[IVX]+\.|\d{1,2}\.|[가나다라마바사]\.)\s*`)

var sectionKeywords = []struct {
	kind   SectionKind
	tokens []string
}{
	{SectionEligibility, []string{"지원대상", "신청대상", "신청자격", "지원자격", "참여자격", "참여대상", "공모대상"}},
	{SectionSubject, []string{"사업내용", "지원내용", "사업개요", "지원분야", "공모분야", "사업목적", "연구내용", "기술개발내용"}},
	{SectionSchedule, []string{"신청기간", "접수기간", "공고기간", "신청방법", "접수방법", "추진일정", "공모일정"}},
	{SectionBudget, []string{"지원규모", "사업예산", "지원금액", "정부출연금", "사업비", "지원조건"}},
	{SectionBoilerplate, []string{"문의처", "문의 및", "유의사항", "기타사항", "기타 사항", "제출서류", "첨부서류", "관련규정"}},
}

func classifyHeading(heading string) SectionKind {
	compact := strings.ReplaceAll(heading, " ", "")
	for _, sk := range sectionKeywords {
		for _, tok := range sk.tokens {
			if strings.Contains(compact, strings.ReplaceAll(tok, " ", "")) {
				return sk.kind
			}
		}
	}
	return SectionOther
}

// isHeading reports whether a line looks like a section heading: a marker
// prefix, or a short keyword-bearing line.
func isHeading(line string) bool {
	if line == "" {
		return false
	}
	if headingMarkers.MatchString(line) {
		return len([]rune(line)) < 60
	}
	return len([]rune(line)) < 25 && classifyHeading(line) != SectionOther
}

// SplitSections divides normalized announcement text into heading-scoped
// sections. Text before the first heading lands in an "other" preamble
// section. Once a boilerplate heading is seen, later unrecognized headings
// stay boilerplate; contact blocks routinely contain sub-bullets that would
// otherwise be misread as content.
func SplitSections(text string) []Section {
	lines := strings.Split(text, "\n")

	var sections []Section
	current := Section{Kind: SectionOther, Heading: ""}
	var body []string
	inBoilerplate := false

	flush := func() {
		current.Body = strings.TrimSpace(strings.Join(body, "\n"))
		if current.Heading != "" || current.Body != "" {
			sections = append(sections, current)
		}
		body = body[:0]
	}

	for _, line := range lines {
		if isHeading(line) {
			flush()
			heading := headingMarkers.ReplaceAllString(line, "")
			kind := classifyHeading(heading)
			if kind == SectionBoilerplate {
				inBoilerplate = true
			}
			if inBoilerplate && kind == SectionOther {
				kind = SectionBoilerplate
			}
			current = Section{Kind: kind, Heading: heading}
			continue
		}
		body = append(body, line)
	}
	flush()
	return sections
}

// joinSections concatenates the bodies of sections matching any of the kinds.
func joinSections(sections []Section, kinds ...SectionKind) string {
	var parts []string
	for _, s := range sections {
		for _, k := range kinds {
			if s.Kind == k {
				parts = append(parts, s.Body)
				break
			}
		}
	}
	return strings.Join(parts, "\n")
}
