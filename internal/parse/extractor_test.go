package parse

import (
	"testing"
	"time"

	"github.com/minki/fundscan/internal/models"
)

const announcementSample = `2026년도 창업성장기술개발사업 공고

□ 지원대상
창업 7년 이내 중소기업

□ 사업내용
인공지능 기반 시제품 개발 지원, TRL 4~7단계 과제

□ 지원규모
총 100억원 (과제당 5억원 이내)

□ 신청기간
2026.02.01 ~ 2026.03.15 18:00

□ 문의처
중소기업기술정보진흥원 042-123-4567`

func TestExtract(t *testing.T) {
	res := Extract(
		[]Document{{Text: announcementSample, Source: models.SourceNativeParse}},
		ListingMeta{Title: "2026년도 창업성장기술개발사업", Ministry: "중소벤처기업부"},
	)
	p := res.Program

	if p.BudgetWon == nil || *p.BudgetWon != 10_000_000_000 {
		t.Fatalf("BudgetWon = %v, want 10000000000", p.BudgetWon)
	}
	if p.DeadlineAt == nil || !p.DeadlineAt.Equal(time.Date(2026, 3, 15, 18, 0, 0, 0, kst)) {
		t.Fatalf("DeadlineAt = %v", p.DeadlineAt)
	}
	if p.ApplyStartAt == nil || p.ApplyStartAt.Month() != 2 {
		t.Fatalf("ApplyStartAt = %v", p.ApplyStartAt)
	}
	if p.MinTRL != 4 || p.MaxTRL != 7 || p.TRLConfidence != models.TRLExplicit {
		t.Fatalf("TRL = %d-%d (%s)", p.MinTRL, p.MaxTRL, p.TRLConfidence)
	}
	if p.Eligibility.MaxCompanyAgeYears != 7 {
		t.Fatalf("MaxCompanyAgeYears = %d", p.Eligibility.MaxCompanyAgeYears)
	}
	if len(p.Categories) == 0 || p.Categories[0] != "ICT·SW" {
		t.Fatalf("Categories = %v", p.Categories)
	}

	fields := map[string]bool{}
	for _, l := range res.Logs {
		fields[l.FieldName] = true
		if l.Confidence == "" {
			t.Fatalf("log %s has empty confidence", l.FieldName)
		}
	}
	for _, f := range []string{"budget", "deadline", "trl", "eligibility", "categories"} {
		if !fields[f] {
			t.Fatalf("no extraction log for %s", f)
		}
	}
}

func TestExtract_ListingDeadlineFallback(t *testing.T) {
	listed := time.Date(2026, 4, 30, 23, 59, 59, 0, kst)
	res := Extract(
		[]Document{{Text: "지원 내용만 기재된 문서", Source: models.SourceGenericOCR}},
		ListingMeta{Title: "테스트 공고", ListingDeadlineAt: &listed},
	)
	if res.Program.DeadlineAt == nil || !res.Program.DeadlineAt.Equal(listed) {
		t.Fatalf("DeadlineAt = %v, want listing fallback %v", res.Program.DeadlineAt, listed)
	}
	for _, l := range res.Logs {
		if l.FieldName == "deadline" && l.DataSource != models.SourceListing {
			t.Fatalf("deadline log source = %s, want listing", l.DataSource)
		}
	}
}

func TestExtract_EmptyDocuments(t *testing.T) {
	res := Extract(nil, ListingMeta{Title: "빈 공고"})
	p := res.Program
	if p.BudgetWon != nil {
		t.Fatalf("BudgetWon = %v, want nil for unknown", p.BudgetWon)
	}
	if p.TRLConfidence != models.TRLMissing {
		t.Fatalf("TRLConfidence = %s", p.TRLConfidence)
	}
	if !p.Eligibility.Empty() {
		t.Fatalf("Eligibility = %+v", p.Eligibility)
	}
}
