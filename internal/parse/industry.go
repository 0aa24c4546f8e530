package parse

import (
	"sort"
	"strings"
)

// industryTaxonomy maps each sector to its strong tokens. A strong token can
// tag a document on its own.
var industryTaxonomy = map[string][]string{
	"ICT·SW":     {"인공지능", "빅데이터", "소프트웨어", "정보통신", "사물인터넷", "클라우드", "블록체인", "사이버보안", "양자컴퓨팅", "메타버스"},
	"바이오·의료": {"바이오", "신약", "의료기기", "제약", "헬스케어", "백신", "진단키트", "세포치료", "유전체"},
	"에너지":      {"수소", "연료전지", "태양광", "풍력", "이차전지", "에너지저장", "원자력", "전력계통"},
	"소재·부품·장비": {"소재", "부품", "장비", "반도체", "디스플레이", "탄소섬유", "희토류"},
	"모빌리티":    {"자율주행", "전기차", "드론", "도심항공", "철도", "조선", "우주발사체", "위성"},
	"환경":        {"탄소중립", "온실가스", "폐기물", "재활용", "수처리", "미세먼지"},
	"농식품":      {"스마트팜", "농업", "식품", "수산", "축산"},
	"콘텐츠":      {"게임", "영상콘텐츠", "웹툰", "실감콘텐츠"},
}

// weakTokens appear across every sector's announcements and can never tag a
// document alone; they only add weight when a strong token already matched.
var weakTokens = map[string][]string{
	"ICT·SW":   {"디지털", "온라인", "플랫폼", "스마트", "데이터"},
	"모빌리티":  {"모빌리티"},
	"바이오·의료": {"임상"},
}

// crossSectorRelevance propagates a fraction of a sector's direct score to
// adjacent sectors, so work sitting between two sectors carries the neighbor
// as a secondary tag. ICT·SW is never a propagation target; it only tags on
// its own tokens.
var crossSectorRelevance = map[string]map[string]float64{
	"ICT·SW":         {"콘텐츠": 0.3},
	"소재·부품·장비": {"에너지": 0.3, "모빌리티": 0.3},
	"모빌리티":       {"에너지": 0.4, "소재·부품·장비": 0.3},
	"에너지":          {"환경": 0.5, "소재·부품·장비": 0.2},
	"환경":            {"에너지": 0.3},
	"바이오·의료":    {"농식품": 0.2},
	"농식품":          {"바이오·의료": 0.2, "환경": 0.2},
}

// secondaryTagFloor is the minimum propagated score for a sector with no
// direct token match to surface at all.
const secondaryTagFloor = 3

// sectionWeights bias matches toward content sections. Boilerplate never
// contributes; a sector named only in a contact block is noise.
var sectionWeights = map[SectionKind]int{
	SectionSubject:     3,
	SectionEligibility: 2,
	SectionBudget:      1,
	SectionSchedule:    1,
	SectionOther:       1,
	SectionBoilerplate: 0,
}

// IndustryTags scores each sector against section-scoped text and returns
// matched categories (best first) plus the strong tokens that fired as
// keywords.
func IndustryTags(sections []Section, title string) (categories, keywords []string) {
	scores := map[string]int{}
	matched := map[string]bool{}

	score := func(text string, weight int) {
		if weight == 0 || text == "" {
			return
		}
		for industry, tokens := range industryTaxonomy {
			for _, tok := range tokens {
				if n := strings.Count(text, tok); n > 0 {
					scores[industry] += n * weight
					matched[tok] = true
				}
			}
		}
	}

	score(title, 4)
	for _, s := range sections {
		score(s.Heading+"\n"+s.Body, sectionWeights[s.Kind])
	}

	// Weak tokens add weight only where a strong token already matched.
	full := title + "\n" + joinSections(sections, SectionSubject, SectionEligibility, SectionOther)
	for industry, tokens := range weakTokens {
		if scores[industry] == 0 {
			continue
		}
		for _, tok := range tokens {
			scores[industry] += strings.Count(full, tok)
		}
	}

	// Cross-sector propagation runs on the direct scores; a sector without
	// its own match needs a solid propagated score to tag at all.
	propagated := map[string]int{}
	for industry, related := range crossSectorRelevance {
		if scores[industry] == 0 {
			continue
		}
		for other, factor := range related {
			propagated[other] += int(float64(scores[industry]) * factor)
		}
	}
	for industry, extra := range propagated {
		switch {
		case scores[industry] > 0:
			scores[industry] += extra
		case extra >= secondaryTagFloor:
			scores[industry] = extra
		}
	}

	for industry, s := range scores {
		if s > 0 {
			categories = append(categories, industry)
		}
	}
	sort.Slice(categories, func(i, j int) bool {
		if scores[categories[i]] != scores[categories[j]] {
			return scores[categories[i]] > scores[categories[j]]
		}
		return categories[i] < categories[j]
	})

	for tok := range matched {
		keywords = append(keywords, tok)
	}
	sort.Strings(keywords)
	return categories, keywords
}
