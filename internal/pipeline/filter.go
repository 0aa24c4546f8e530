package pipeline

import "strings"

// Announcement types and title tokens that mark a listing as something other
// than a funding opportunity. Filtering is conservative: a job is skipped only
// on a confident signal, uncertain ones flow through to extraction.
var nonFundingTypes = []string{
	"일반공지", "행사", "설명회", "채용", "입찰", "결과발표", "선정결과", "안내",
}

var nonFundingTitleTokens = []string{
	"설명회 개최", "채용 공고", "결과 발표", "선정 결과", "입찰 공고", "간담회", "세미나 개최",
}

// fundingTitleTokens override a weak non-funding signal: a 설명회 for an open
// 공모 still points at a fundable program.
var fundingTitleTokens = []string{
	"지원사업", "공모", "과제", "R&D", "기술개발", "모집공고",
}

// FundingRelevance decides whether a discovered announcement is worth
// processing. Returns ok=false with a machine-readable reason for skips.
func FundingRelevance(announcementType, title string) (ok bool, reason string) {
	for _, tok := range fundingTitleTokens {
		if strings.Contains(title, tok) {
			return true, ""
		}
	}
	for _, t := range nonFundingTypes {
		if strings.Contains(announcementType, t) {
			return false, "non-funding-type:" + t
		}
	}
	for _, tok := range nonFundingTitleTokens {
		if strings.Contains(title, tok) {
			return false, "non-funding-title"
		}
	}
	return true, ""
}
