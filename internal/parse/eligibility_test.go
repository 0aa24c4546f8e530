package parse

import (
	"reflect"
	"testing"
)

const eligibilitySample = `중소기업기본법 제2조에 따른 중소기업
창업 후 7년 이내 기업
연구개발 투자 비중 5% 이상인 기업
기업부설연구소 또는 연구개발전담부서 보유 기업
대학 또는 연구기관과 컨소시엄을 필수로 구성하여 신청
휴·폐업 기업은 신청 불가`

func TestParseEligibility(t *testing.T) {
	e := ParseEligibility(Normalize(eligibilitySample))

	wantOrgs := []string{"중소기업", "창업기업", "대학", "연구기관"}
	for _, org := range []string{"중소기업", "대학", "연구기관"} {
		found := false
		for _, got := range e.OrganizationTypes {
			if got == org {
				found = true
			}
		}
		if !found {
			t.Fatalf("organization types %v missing %q (want superset of %v)", e.OrganizationTypes, org, wantOrgs)
		}
	}
	if e.MaxCompanyAgeYears != 7 {
		t.Fatalf("MaxCompanyAgeYears = %d, want 7", e.MaxCompanyAgeYears)
	}
	if e.MinRnDRatioPercent != 5 {
		t.Fatalf("MinRnDRatioPercent = %v, want 5", e.MinRnDRatioPercent)
	}
	if !reflect.DeepEqual(e.Certifications, []string{"기업부설연구소", "연구개발전담부서"}) {
		t.Fatalf("Certifications = %v", e.Certifications)
	}
	if !e.ConsortiumRequired {
		t.Fatal("ConsortiumRequired = false, want true")
	}
	if len(e.ConsortiumPartners) == 0 {
		t.Fatal("ConsortiumPartners empty")
	}
	if len(e.IndustryRestriction) != 1 {
		t.Fatalf("IndustryRestriction = %v", e.IndustryRestriction)
	}
}

func TestParseEligibility_EmptyText(t *testing.T) {
	e := ParseEligibility("")
	if !e.Empty() {
		t.Fatalf("empty text produced requirements: %+v", e)
	}
}

func TestParseEligibility_ConsortiumNotRequired(t *testing.T) {
	e := ParseEligibility("산학연 공동연구 권장")
	if e.ConsortiumRequired {
		t.Fatal("권장 (recommended) must not set ConsortiumRequired")
	}
}
