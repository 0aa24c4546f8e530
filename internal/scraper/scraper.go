package scraper

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"html"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/minki/fundscan/internal/config"
	"github.com/minki/fundscan/internal/models"
	"github.com/minki/fundscan/internal/parse"
)

// JobStore is the slice of the store the discovery pass writes through.
type JobStore interface {
	InsertJob(ctx context.Context, j *models.ScrapeJob) (bool, error)
	StartRun(ctx context.Context, agencyID string) (uuid.UUID, error)
	FinishRun(ctx context.Context, runID uuid.UUID, status string, found, inserted, errCount int) error
}

// Summary is the outcome of one agency discovery pass.
type Summary struct {
	AgencyID string
	Found    int
	Inserted int
	Errors   int
}

// Scraper walks agency listing sites and records announcements as jobs.
type Scraper struct {
	jobs          JobStore
	registry      *Registry
	cfg           config.ScraperConfig
	attachmentDir string
	client        *http.Client
	sanitizer     *bluemonday.Policy
}

func New(jobs JobStore, registry *Registry, cfg config.ScraperConfig, attachmentDir string) *Scraper {
	return &Scraper{
		jobs:          jobs,
		registry:      registry,
		cfg:           cfg,
		attachmentDir: attachmentDir,
		client:        &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second},
		sanitizer:     bluemonday.StrictPolicy(),
	}
}

// DiscoverAll runs every registered agency. One agency failing does not stop
// the others; its jobs are recorded as SCRAPING_FAILED where partial data
// exists and the pass continues.
func (s *Scraper) DiscoverAll(ctx context.Context) error {
	var failed int
	for _, agency := range s.registry.Agencies {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		summary, err := s.DiscoverAgency(ctx, agency)
		if err != nil {
			failed++
			zap.S().Errorw("agency discovery failed", "agency", agency.ID, "error", err)
			continue
		}
		zap.S().Infow("agency discovery complete",
			"agency", agency.ID, "found", summary.Found,
			"inserted", summary.Inserted, "errors", summary.Errors)
	}
	if failed == len(s.registry.Agencies) {
		return fmt.Errorf("all %d agencies failed", failed)
	}
	return nil
}

type listingRow struct {
	Title            string
	DetailURL        string
	AnnouncementType string
	Ministry         string
	PostedAt         *time.Time
	DeadlineAt       *time.Time
}

// DiscoverAgency scrapes one agency's listing, filters rows to the discovery
// window, downloads attachments and inserts pending jobs.
func (s *Scraper) DiscoverAgency(ctx context.Context, agency AgencyConfig) (Summary, error) {
	summary := Summary{AgencyID: agency.ID}

	runID, err := s.jobs.StartRun(ctx, agency.ID)
	if err != nil {
		return summary, fmt.Errorf("start run: %w", err)
	}

	rows, err := s.collectListing(ctx, agency)
	if err != nil {
		_ = s.jobs.FinishRun(ctx, runID, "failed", 0, 0, 1)
		return summary, fmt.Errorf("collect listing for %s: %w", agency.ID, err)
	}
	summary.Found = len(rows)

	cutoff := time.Now().AddDate(0, 0, -s.cfg.WindowDays)
	for _, row := range rows {
		if ctx.Err() != nil {
			break
		}
		// Rows without a posted date stay in; only confirmed-old rows drop.
		if row.PostedAt != nil && row.PostedAt.Before(cutoff) {
			continue
		}

		job := s.buildJob(agency, row)
		if err := s.fetchDetail(ctx, agency, job); err != nil {
			zap.S().Warnw("detail fetch failed", "agency", agency.ID, "url", row.DetailURL, "error", err)
			job.ScrapingStatus = models.ScrapingFailed
			summary.Errors++
		}

		inserted, err := s.jobs.InsertJob(ctx, job)
		if err != nil {
			summary.Errors++
			zap.S().Errorw("job insert failed", "source_key", job.SourceKey, "error", err)
			continue
		}
		if inserted {
			summary.Inserted++
		}
	}

	status := "completed"
	if summary.Errors > 0 {
		status = "completed_with_errors"
	}
	if err := s.jobs.FinishRun(ctx, runID, status, summary.Found, summary.Inserted, summary.Errors); err != nil {
		zap.S().Warnw("finish run failed", "run_id", runID, "error", err)
	}
	return summary, nil
}

func (s *Scraper) newCollector(agency AgencyConfig) (*colly.Collector, error) {
	host, err := agency.Host()
	if err != nil {
		return nil, err
	}
	ua := agency.Fetch.UserAgent
	if ua == "" {
		ua = s.cfg.UserAgent
	}

	c := colly.NewCollector(
		colly.UserAgent(ua),
		colly.AllowedDomains(host),
		colly.DetectCharset(),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(20*1024*1024),
	)

	timeout := agency.Fetch.TimeoutSeconds
	if timeout == 0 {
		timeout = s.cfg.TimeoutSecs
	}
	c.SetRequestTimeout(time.Duration(timeout) * time.Second)

	delay := crawlDelay(agency, s.cfg)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       delay,
		RandomDelay: delay / 2,
	}); err != nil {
		return nil, fmt.Errorf("limit rule: %w", err)
	}
	return c, nil
}

// crawlDelay is the per-request pacing for one agency: the configured domain
// delay, floored by the requests-per-second ceiling. Agency overrides win
// over the global scraper settings.
func crawlDelay(agency AgencyConfig, cfg config.ScraperConfig) time.Duration {
	delayMs := agency.Fetch.DomainDelayMs
	if delayMs == 0 {
		delayMs = cfg.DomainDelayMs
	}
	delay := time.Duration(delayMs) * time.Millisecond

	rps := agency.Fetch.RateLimitRPS
	if rps == 0 {
		rps = cfg.RateLimitRPS
	}
	if rps > 0 {
		if floor := time.Duration(float64(time.Second) / rps); floor > delay {
			delay = floor
		}
	}
	return delay
}

// visitWithRetry re-runs a failed visit up to maxRetries extra times,
// resetting state collected by the handlers between attempts.
func visitWithRetry(c *colly.Collector, pageURL string, maxRetries int, reset func()) error {
	for attempt := 0; ; attempt++ {
		reset()
		err := c.Visit(pageURL)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}
		zap.S().Warnw("fetch retry", "url", pageURL, "attempt", attempt+1, "error", err)
	}
}

func (s *Scraper) collectListing(ctx context.Context, agency AgencyConfig) ([]listingRow, error) {
	c, err := s.newCollector(agency)
	if err != nil {
		return nil, err
	}

	var rows []listingRow
	sel := agency.Selectors

	c.OnHTML(sel.Row, func(e *colly.HTMLElement) {
		linkAttr := sel.LinkAttr
		if linkAttr == "" {
			linkAttr = "href"
		}
		link := e.Request.AbsoluteURL(e.ChildAttr(sel.Link, linkAttr))
		title := strings.TrimSpace(e.ChildText(sel.Title))
		if link == "" || title == "" {
			return
		}
		row := listingRow{
			Title:            title,
			DetailURL:        link,
			AnnouncementType: strings.TrimSpace(e.ChildText(sel.Type)),
			Ministry:         strings.TrimSpace(e.ChildText(sel.Ministry)),
		}
		if sel.PostedDate != "" {
			if t, err := parse.ParseKoreanDate(e.ChildText(sel.PostedDate)); err == nil {
				row.PostedAt = &t
			}
		}
		if sel.Deadline != "" {
			cell := e.ChildText(sel.Deadline)
			if _, end, _ := parse.ParseWindow(parse.Normalize(cell)); end != nil {
				row.DeadlineAt = end
			} else if t, err := parse.ParseKoreanDate(cell); err == nil {
				row.DeadlineAt = &t
			}
		}
		rows = append(rows, row)
	})

	maxPages := agency.MaxPages
	if maxPages == 0 {
		maxPages = s.cfg.MaxPages
	}
	pages := 1
	if agency.PaginationNext != "" {
		c.OnHTML(agency.PaginationNext, func(e *colly.HTMLElement) {
			if pages >= maxPages || ctx.Err() != nil {
				return
			}
			pages++
			_ = e.Request.Visit(e.Attr("href"))
		})
	}

	if err := visitWithRetry(c, agency.ListURL, agency.Fetch.MaxRetries, func() {
		rows = rows[:0]
		pages = 1
	}); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Scraper) buildJob(agency AgencyConfig, row listingRow) *models.ScrapeJob {
	ministry := row.Ministry
	if ministry == "" {
		ministry = agency.Ministry
	}
	key := sourceKeyFor(agency.ID, row.DetailURL, agency.AnnouncementIDParam)
	return &models.ScrapeJob{
		SourceKey:         key,
		AgencyID:          agency.ID,
		Title:             row.Title,
		Ministry:          ministry,
		AnnouncementType:  row.AnnouncementType,
		DetailURL:         row.DetailURL,
		PostedAt:          row.PostedAt,
		ListingDeadlineAt: row.DeadlineAt,
		AttachmentDir:     filepath.Join(s.attachmentDir, safeDirName(key)),
		ScrapingStatus:    models.ScrapingScraped,
		ProcessingStatus:  models.ProcessingPending,
	}
}

// fetchDetail visits the announcement page, saves the inline body as a text
// file and downloads each attachment into the job's directory.
func (s *Scraper) fetchDetail(ctx context.Context, agency AgencyConfig, job *models.ScrapeJob) error {
	if agency.Detail.Attachment == "" && agency.Detail.Body == "" {
		return nil
	}
	c, err := s.newCollector(agency)
	if err != nil {
		return err
	}

	type attachment struct{ name, url string }
	var attachments []attachment
	var bodyHTML string

	attr := agency.Detail.AttachmentAttr
	if attr == "" {
		attr = "href"
	}
	if agency.Detail.Attachment != "" {
		c.OnHTML(agency.Detail.Attachment, func(e *colly.HTMLElement) {
			u := e.Request.AbsoluteURL(e.Attr(attr))
			if u == "" {
				return
			}
			attachments = append(attachments, attachment{
				name: strings.TrimSpace(e.Text),
				url:  u,
			})
		})
	}
	if agency.Detail.Body != "" {
		c.OnHTML(agency.Detail.Body, func(e *colly.HTMLElement) {
			dom := e.DOM.Clone()
			dom.Find("script, style, noscript").Remove()
			if h, err := goquery.OuterHtml(dom); err == nil {
				bodyHTML += h
			}
		})
	}

	if err := visitWithRetry(c, job.DetailURL, agency.Fetch.MaxRetries, func() {
		attachments = attachments[:0]
		bodyHTML = ""
	}); err != nil {
		return fmt.Errorf("visit detail: %w", err)
	}

	if err := os.MkdirAll(job.AttachmentDir, 0o755); err != nil {
		return fmt.Errorf("create attachment dir: %w", err)
	}

	if text := s.sanitizeHTML(bodyHTML); text != "" {
		path := filepath.Join(job.AttachmentDir, "listing-body.txt")
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			return fmt.Errorf("write listing body: %w", err)
		}
		job.AttachmentNames = append(job.AttachmentNames, "listing-body.txt")
	}

	for _, a := range attachments {
		name, err := s.downloadAttachment(ctx, a.url, a.name, job.AttachmentDir)
		if err != nil {
			return fmt.Errorf("download %s: %w", a.url, err)
		}
		job.AttachmentNames = append(job.AttachmentNames, name)
	}
	return nil
}

func (s *Scraper) downloadAttachment(ctx context.Context, fileURL, linkText, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	name := attachmentFilename(resp.Header.Get("Content-Disposition"), linkText, fileURL)
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", err
	}
	return name, nil
}

// sanitizeHTML strips all markup and unescapes entities, leaving plain text
// for the extraction pipeline.
func (s *Scraper) sanitizeHTML(in string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(in)))
}

// sourceKeyFor derives a stable job identity: the agency's announcement id
// when the listing exposes one, otherwise a digest of the detail URL.
func sourceKeyFor(agencyID, detailURL, idParam string) string {
	if idParam != "" {
		if u, err := url.Parse(detailURL); err == nil {
			if id := u.Query().Get(idParam); id != "" {
				return agencyID + ":" + id
			}
		}
	}
	sum := sha1.Sum([]byte(detailURL))
	return agencyID + ":" + hex.EncodeToString(sum[:])
}

// attachmentFilename picks a file name: content-disposition first, then the
// link text, then the URL path.
func attachmentFilename(disposition, linkText, fileURL string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if fn := params["filename"]; fn != "" {
				return safeDirName(fn)
			}
		}
	}
	if linkText != "" && strings.Contains(linkText, ".") {
		return safeDirName(linkText)
	}
	if u, err := url.Parse(fileURL); err == nil {
		if base := filepath.Base(u.Path); base != "." && base != "/" {
			return safeDirName(base)
		}
	}
	return "attachment.bin"
}

// safeDirName replaces path separators and other hostile characters so
// scraped strings can be used as file names.
func safeDirName(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_", "\x00", "")
	return strings.TrimSpace(r.Replace(name))
}
