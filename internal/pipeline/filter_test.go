package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFundingRelevance(t *testing.T) {
	tests := []struct {
		name             string
		announcementType string
		title            string
		want             bool
	}{
		{"rnd announcement", "R&D 과제공고", "2026년 창업성장기술개발사업 공고", true},
		{"funding token wins over weak type", "안내", "스마트공장 지원사업 참여기업 모집 안내", true},
		{"hiring notice", "일반공지", "2026년 상반기 직원 채용 공고", false},
		{"event notice", "행사", "신년 간담회 개최", false},
		{"selection results", "결과발표", "2025년 과제 선정결과 안내", true}, // 과제 token keeps it
		{"plain results title", "일반공지", "지원기업 선정 결과 발표", false},
		{"uncertain flows through", "", "중소기업 혁신바우처", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := FundingRelevance(tt.announcementType, tt.title)
			assert.Equal(t, tt.want, got, "reason=%s", reason)
			if !tt.want {
				assert.NotEmpty(t, reason)
			}
		})
	}
}
