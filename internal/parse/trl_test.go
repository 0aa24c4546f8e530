package parse

import (
	"testing"

	"github.com/minki/fundscan/internal/models"
)

func TestParseTRL(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		min, max int
		conf     models.TRLConfidence
	}{
		{"explicit range", "기술성숙도(TRL) 4~7단계 과제", 4, 7, models.TRLExplicit},
		{"explicit single", "TRL 6 수준의 기술", 6, 6, models.TRLExplicit},
		{"explicit floor", "TRL 7단계 이상", 7, 9, models.TRLExplicit},
		{"inferred from commercialization", "개발 기술의 사업화를 지원", 7, 9, models.TRLInferred},
		{"inferred from prototype", "시제품 제작 지원", 4, 6, models.TRLInferred},
		{"inferred from basic research", "기초연구 단계 과제 공모", 1, 3, models.TRLInferred},
		{"missing", "중소기업 경영 안정 지원", 0, 0, models.TRLMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			min, max, conf, _ := ParseTRL(tt.text)
			if min != tt.min || max != tt.max || conf != tt.conf {
				t.Fatalf("ParseTRL(%q) = (%d, %d, %s), want (%d, %d, %s)",
					tt.text, min, max, conf, tt.min, tt.max, tt.conf)
			}
		})
	}
}

func TestTRLConfidenceWeights(t *testing.T) {
	if w := models.TRLExplicit.ScoreWeight(); w != 1.0 {
		t.Fatalf("explicit weight = %v", w)
	}
	if w := models.TRLInferred.ScoreWeight(); w != 0.85 {
		t.Fatalf("inferred weight = %v", w)
	}
	if w := models.TRLMissing.ScoreWeight(); w != 0.7 {
		t.Fatalf("missing weight = %v", w)
	}
}
