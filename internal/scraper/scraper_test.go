package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minki/fundscan/internal/config"
	"github.com/minki/fundscan/internal/models"
)

type memJobStore struct {
	jobs     []*models.ScrapeJob
	byKey    map[string]bool
	finished []string
}

func newMemJobStore() *memJobStore {
	return &memJobStore{byKey: map[string]bool{}}
}

func (m *memJobStore) InsertJob(ctx context.Context, j *models.ScrapeJob) (bool, error) {
	if m.byKey[j.SourceKey] {
		return false, nil
	}
	m.byKey[j.SourceKey] = true
	m.jobs = append(m.jobs, j)
	return true, nil
}

func (m *memJobStore) StartRun(ctx context.Context, agencyID string) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (m *memJobStore) FinishRun(ctx context.Context, runID uuid.UUID, status string, found, inserted, errCount int) error {
	m.finished = append(m.finished, status)
	return nil
}

func TestLoadRegistry(t *testing.T) {
	reg, err := LoadRegistry()
	require.NoError(t, err)
	require.NotEmpty(t, reg.Agencies)

	for _, a := range reg.Agencies {
		assert.NotEmpty(t, a.ID)
		assert.NotEmpty(t, a.Selectors.Row, "agency %s", a.ID)
		host, err := a.Host()
		require.NoError(t, err, "agency %s", a.ID)
		assert.NotEmpty(t, host)
	}

	_, ok := reg.Agency("smtech")
	assert.True(t, ok)
	_, ok = reg.Agency("nope")
	assert.False(t, ok)
}

func TestSourceKeyFor(t *testing.T) {
	key := sourceKeyFor("smtech", "https://www.smtech.go.kr/view.do?buclCd=S1234&x=1", "buclCd")
	assert.Equal(t, "smtech:S1234", key)

	// No id param on the URL: fall back to a URL digest.
	fallback := sourceKeyFor("smtech", "https://www.smtech.go.kr/view.do?x=1", "buclCd")
	assert.NotEqual(t, key, fallback)
	assert.Contains(t, fallback, "smtech:")
	assert.Len(t, fallback, len("smtech:")+40)

	// Same URL always derives the same key.
	assert.Equal(t, fallback, sourceKeyFor("smtech", "https://www.smtech.go.kr/view.do?x=1", "buclCd"))
}

func TestAttachmentFilename(t *testing.T) {
	got := attachmentFilename(`attachment; filename="공고문.hwp"`, "", "https://x.go.kr/download?id=1")
	assert.Equal(t, "공고문.hwp", got)

	got = attachmentFilename("", "사업안내.pdf", "https://x.go.kr/download?id=1")
	assert.Equal(t, "사업안내.pdf", got)

	got = attachmentFilename("", "다운로드", "https://x.go.kr/files/notice_12.hwp")
	assert.Equal(t, "notice_12.hwp", got)

	got = attachmentFilename("", "", "https://x.go.kr/download")
	assert.Equal(t, "download", got)
}

func TestSafeDirName(t *testing.T) {
	assert.Equal(t, "a_b_c", safeDirName("a/b\\c"))
	assert.Equal(t, "smtech_S1234", safeDirName("smtech:S1234"))
}

func TestDiscoverAgency(t *testing.T) {
	now := time.Now()
	recent := now.Format("2006-01-02")
	old := now.AddDate(0, 0, -30).Format("2006-01-02")

	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><table class="tbl"><tbody>
			<tr><td class="subject"><a href="/view?id=A100">신규 기술개발 지원사업 공고</a></td><td class="date">%s</td></tr>
			<tr><td class="subject"><a href="/view?id=A099">오래된 공고</a></td><td class="date">%s</td></tr>
		</tbody></table></body></html>`, recent, old)
	})
	mux.HandleFunc("/view", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<div class="cont"><p>총 3억원 지원</p></div>
			<div class="files"><a href="/files/공고문.hwp">공고문.hwp</a></div>
		</body></html>`)
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="공고문.hwp"`)
		fmt.Fprint(w, "fake hwp bytes")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	agency := AgencyConfig{
		ID:                  "testagency",
		Name:                "테스트기관",
		Ministry:            "테스트부",
		ListURL:             srv.URL + "/list",
		AnnouncementIDParam: "id",
		MaxPages:            1,
		Selectors: ListSelectors{
			Row:        "table.tbl tbody tr",
			Link:       "td.subject a",
			Title:      "td.subject a",
			PostedDate: "td.date",
		},
		Detail: DetailSelectors{
			Attachment: "div.files a",
			Body:       "div.cont",
		},
	}

	store := newMemJobStore()
	s := New(store, &Registry{Agencies: []AgencyConfig{agency}}, config.ScraperConfig{
		WindowDays:  7,
		MaxPages:    1,
		TimeoutSecs: 10,
		UserAgent:   "fundscan-test",
	}, t.TempDir())

	summary, err := s.DiscoverAgency(context.Background(), agency)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Found)
	assert.Equal(t, 1, summary.Inserted, "out-of-window row must be dropped")
	require.Len(t, store.jobs, 1)

	job := store.jobs[0]
	assert.Equal(t, "testagency:A100", job.SourceKey)
	assert.Equal(t, models.ScrapingScraped, job.ScrapingStatus)
	assert.Equal(t, models.ProcessingPending, job.ProcessingStatus)
	assert.Contains(t, job.AttachmentNames, "공고문.hwp")
	assert.Contains(t, job.AttachmentNames, "listing-body.txt")
	require.Len(t, store.finished, 1)
	assert.Equal(t, "completed", store.finished[0])
}

func TestCrawlDelay(t *testing.T) {
	cfg := config.ScraperConfig{DomainDelayMs: 1000, RateLimitRPS: 2}

	// Domain delay already satisfies the rate ceiling.
	assert.Equal(t, time.Second, crawlDelay(AgencyConfig{}, cfg))

	// The RPS ceiling floors a too-eager delay.
	got := crawlDelay(AgencyConfig{Fetch: FetchConfig{DomainDelayMs: 100}}, cfg)
	assert.Equal(t, 500*time.Millisecond, got)

	// Agency RPS override wins over the global setting.
	got = crawlDelay(AgencyConfig{Fetch: FetchConfig{DomainDelayMs: 100, RateLimitRPS: 1}}, cfg)
	assert.Equal(t, time.Second, got)

	// No rate ceiling configured: the delay stands alone.
	got = crawlDelay(AgencyConfig{}, config.ScraperConfig{DomainDelayMs: 250})
	assert.Equal(t, 250*time.Millisecond, got)
}

func TestDiscoverAgency_RetriesFlakyListing(t *testing.T) {
	var listHits int
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		listHits++
		if listHits == 1 {
			http.Error(w, "upstream hiccup", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `<html><body><table class="tbl"><tbody>
			<tr><td class="subject"><a href="/view?id=C7">기술개발 지원사업 공고</a></td></tr>
		</tbody></table></body></html>`)
	})
	mux.HandleFunc("/view", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	agency := AgencyConfig{
		ID:                  "flaky",
		ListURL:             srv.URL + "/list",
		AnnouncementIDParam: "id",
		Selectors:           ListSelectors{Row: "table.tbl tbody tr", Link: "td.subject a", Title: "td.subject a"},
		Fetch:               FetchConfig{MaxRetries: 2},
	}
	store := newMemJobStore()
	s := New(store, &Registry{Agencies: []AgencyConfig{agency}}, config.ScraperConfig{
		WindowDays: 7, MaxPages: 1, TimeoutSecs: 10, UserAgent: "fundscan-test",
	}, t.TempDir())

	summary, err := s.DiscoverAgency(context.Background(), agency)
	require.NoError(t, err)
	assert.Equal(t, 2, listHits, "listing must be refetched after the transient failure")
	assert.Equal(t, 1, summary.Inserted)
}

func TestDiscoverAgency_Rerun_Idempotent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><table class="tbl"><tbody>
			<tr><td class="subject"><a href="/view?id=B1">재공고 확인용</a></td></tr>
		</tbody></table></body></html>`)
	})
	mux.HandleFunc("/view", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	agency := AgencyConfig{
		ID:                  "rerun",
		ListURL:             srv.URL + "/list",
		AnnouncementIDParam: "id",
		Selectors:           ListSelectors{Row: "table.tbl tbody tr", Link: "td.subject a", Title: "td.subject a"},
	}
	store := newMemJobStore()
	s := New(store, &Registry{Agencies: []AgencyConfig{agency}}, config.ScraperConfig{
		WindowDays: 7, MaxPages: 1, TimeoutSecs: 10, UserAgent: "fundscan-test",
	}, t.TempDir())

	for i := 0; i < 2; i++ {
		_, err := s.DiscoverAgency(context.Background(), agency)
		require.NoError(t, err)
	}
	assert.Len(t, store.jobs, 1, "rerun must not duplicate jobs")
}
