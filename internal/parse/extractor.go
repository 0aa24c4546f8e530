package parse

import (
	"fmt"
	"strings"
	"time"

	"github.com/minki/fundscan/internal/models"
)

// Document is extracted announcement text plus the backend that produced it.
type Document struct {
	Text   string
	Source models.DataSource
}

// ListingMeta is what the discovery pass already knows about an announcement
// from the listing page. Listing fields backstop document extraction: a
// deadline shown on the listing fills in when no document states one.
type ListingMeta struct {
	Title             string
	Ministry          string
	AgencyName        string
	AnnouncementType  string
	PostedAt          *time.Time
	ListingDeadlineAt *time.Time
}

// Result is the structured outcome of extracting one announcement, plus the
// per-field audit rows. Log JobID is filled by the caller.
type Result struct {
	Program models.Program
	Logs    []models.ExtractionLog
}

func confidenceFor(found bool, source models.DataSource) string {
	if !found {
		return "none"
	}
	switch source {
	case models.SourceNativeParse:
		return "high"
	case models.SourceCloudOCR:
		return "medium"
	case models.SourceGenericOCR:
		return "medium"
	default:
		return "low"
	}
}

// Extract parses one or more documents for a single announcement into a
// structured program. Documents are concatenated in backend order; listing
// metadata fills gaps the documents leave.
func Extract(docs []Document, meta ListingMeta) Result {
	var texts []string
	var attempted []string
	source := models.SourceListing
	for _, d := range docs {
		attempted = append(attempted, string(d.Source))
		if strings.TrimSpace(d.Text) != "" {
			texts = append(texts, Normalize(d.Text))
			if source == models.SourceListing {
				source = d.Source
			}
		}
	}
	full := strings.Join(texts, "\n")
	sections := SplitSections(full)

	p := models.Program{
		Title:      meta.Title,
		Ministry:   meta.Ministry,
		AgencyName: meta.AgencyName,
		Status:     "active",
	}
	var logs []models.ExtractionLog
	logField := func(field string, ds models.DataSource, found bool, value, patternID string) {
		logs = append(logs, models.ExtractionLog{
			FieldName:        field,
			DataSource:       ds,
			Confidence:       confidenceFor(found, ds),
			ExtractedValue:   value,
			PatternID:        patternID,
			SourcesAttempted: attempted,
		})
	}

	// Budget reads budget- and subject-scoped sections; an announcement that
	// never separates them falls back to the whole document.
	budgetText := joinSections(sections, SectionBudget, SectionSubject)
	if strings.TrimSpace(budgetText) == "" {
		budgetText = full
	}
	if budget, pat := ParseBudget(budgetText); budget != nil {
		p.BudgetWon = budget
		logField("budget", source, true, fmt.Sprintf("%d", *budget), pat)
	} else {
		logField("budget", source, false, "", "")
	}

	// Application window from schedule sections, then the whole document,
	// then the listing deadline.
	scheduleText := joinSections(sections, SectionSchedule)
	start, end, pat := ParseWindow(scheduleText)
	if start == nil && end == nil {
		start, end, pat = ParseWindow(full)
	}
	switch {
	case end != nil:
		p.ApplyStartAt, p.DeadlineAt = start, end
		logField("deadline", source, true, end.Format(time.RFC3339), pat)
	case meta.ListingDeadlineAt != nil:
		p.DeadlineAt = meta.ListingDeadlineAt
		logField("deadline", models.SourceListing, true, meta.ListingDeadlineAt.Format(time.RFC3339), "listing-deadline")
	default:
		logField("deadline", source, false, "", "")
	}

	minTRL, maxTRL, trlConf, trlPat := ParseTRL(full)
	p.MinTRL, p.MaxTRL, p.TRLConfidence = minTRL, maxTRL, trlConf
	logField("trl", source, trlConf != models.TRLMissing, fmt.Sprintf("%d-%d", minTRL, maxTRL), trlPat)

	eligText := joinSections(sections, SectionEligibility)
	p.Eligibility = ParseEligibility(eligText)
	logField("eligibility", source, !p.Eligibility.Empty(), strings.Join(p.Eligibility.OrganizationTypes, ","), "eligibility-scoped")

	p.Categories, p.Keywords = IndustryTags(sections, meta.Title)
	logField("categories", source, len(p.Categories) > 0, strings.Join(p.Categories, ","), "industry-taxonomy")

	return Result{Program: p, Logs: logs}
}
