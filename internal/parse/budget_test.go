package parse

import "testing"

func TestParseBudget(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int64
	}{
		{"eok is a hundred million", "총 3억원 지원", 300_000_000},
		{"decimal eok", "지원규모: 총 3.5억원", 350_000_000},
		{"composed eok and cheonman", "총 3억 5천만원", 350_000_000},
		{"man won", "총 5,000만원 이내", 50_000_000},
		{"baekman won", "사업예산 1,250백만원", 1_250_000_000},
		{"plain won", "총 300,000,000원", 300_000_000},
		{"jo won", "총 1.2조원 규모", 1_200_000_000_000},
		{"total beats per-project", "총 100억원 규모\n과제당 5억원 이내 지원", 10_000_000_000},
		{"range takes upper bound", "과제당 3억원 ~ 5억원 지원", 500_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := ParseBudget(Normalize(tt.text))
			if got == nil {
				t.Fatalf("ParseBudget(%q) = nil, want %d", tt.text, tt.want)
			}
			if *got != tt.want {
				t.Fatalf("ParseBudget(%q) = %d, want %d", tt.text, *got, tt.want)
			}
		})
	}
}

func TestParseBudget_UnknownIsNil(t *testing.T) {
	for _, text := range []string{
		"",
		"지원규모는 별도 공지 예정",
		"예산 범위 내에서 지원",
	} {
		if got, _ := ParseBudget(text); got != nil {
			t.Fatalf("ParseBudget(%q) = %d, want nil", text, *got)
		}
	}
}

func TestParseBudget_FullWidthDigits(t *testing.T) {
	got, _ := ParseBudget(Normalize("총 ３억원"))
	if got == nil || *got != 300_000_000 {
		t.Fatalf("full-width digits not folded: got %v", got)
	}
}
