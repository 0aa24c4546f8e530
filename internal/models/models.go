package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ScrapingStatus records the outcome of the discovery pass for a job.
type ScrapingStatus string

const (
	ScrapingScraped ScrapingStatus = "SCRAPED"
	ScrapingFailed  ScrapingStatus = "SCRAPING_FAILED"
)

// ProcessingStatus is the job lifecycle state owned by the worker pool.
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "PENDING"
	ProcessingInProgress ProcessingStatus = "PROCESSING"
	ProcessingCompleted  ProcessingStatus = "COMPLETED"
	ProcessingFailed     ProcessingStatus = "FAILED"
	ProcessingSkipped    ProcessingStatus = "SKIPPED"
)

// legalTransitions encodes the only valid processing-status moves:
// PENDING -> PROCESSING -> {COMPLETED | FAILED | SKIPPED}; FAILED -> PENDING.
var legalTransitions = map[ProcessingStatus][]ProcessingStatus{
	ProcessingPending:    {ProcessingInProgress},
	ProcessingInProgress: {ProcessingCompleted, ProcessingFailed, ProcessingSkipped},
	ProcessingFailed:     {ProcessingPending},
}

// CanTransition reports whether moving from one processing status to another is legal.
func CanTransition(from, to ProcessingStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an error describing an illegal status move.
func ValidateTransition(from, to ProcessingStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal job transition %s -> %s", from, to)
	}
	return nil
}

// ScrapeJob is one discovered announcement awaiting (or past) processing.
type ScrapeJob struct {
	ID                  uuid.UUID        `json:"id"`
	SourceKey           string           `json:"source_key"` // agency id + announcement id, or sha1 of detail URL
	AgencyID            string           `json:"agency_id"`
	Title               string           `json:"title"`
	Ministry            string           `json:"ministry"`
	AnnouncementType    string           `json:"announcement_type"` // as labeled on the listing (e.g. R&D 과제공고, 일반공지)
	DetailURL           string           `json:"detail_url"`
	PostedAt            *time.Time       `json:"posted_at"`
	ListingDeadlineAt   *time.Time       `json:"listing_deadline_at"`
	AttachmentNames     []string         `json:"attachment_names"`
	AttachmentDir       string           `json:"attachment_dir"`
	ScrapingStatus      ScrapingStatus   `json:"scraping_status"`
	ProcessingStatus    ProcessingStatus `json:"processing_status"`
	ProcessingAttempts  int              `json:"processing_attempts"`
	ProcessingError     string           `json:"processing_error"`
	ProcessingWorker    string           `json:"processing_worker"`
	ProcessingStartedAt *time.Time       `json:"processing_started_at"`
	HeartbeatAt         *time.Time       `json:"heartbeat_at"`
	ProcessedAt         *time.Time       `json:"processed_at"`
	ProgramID           *uuid.UUID       `json:"program_id"` // set only on COMPLETED
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// TRLConfidence tags how directly a TRL range was supported by source text.
type TRLConfidence string

const (
	TRLExplicit TRLConfidence = "explicit"
	TRLInferred TRLConfidence = "inferred"
	TRLMissing  TRLConfidence = "missing"
)

// ScoreWeight is the downstream scoring multiplier for a confidence tag.
func (c TRLConfidence) ScoreWeight() float64 {
	switch c {
	case TRLExplicit:
		return 1.0
	case TRLInferred:
		return 0.85
	default:
		return 0.7
	}
}

// EligibilityCriteria is the nested requirement block extracted from
// eligibility-scoped sections of an announcement.
type EligibilityCriteria struct {
	OrganizationTypes   []string `json:"organization_types,omitempty"`   // 중소기업, 대학, 연구기관, ...
	MaxCompanyAgeYears  int      `json:"max_company_age_years,omitempty"` // 창업 N년 이내; 0 = no limit stated
	MinRnDRatioPercent  float64  `json:"min_rnd_ratio_percent,omitempty"` // required R&D investment ratio
	Certifications      []string `json:"certifications,omitempty"`        // 기업부설연구소, 벤처기업확인, ISO ...
	ConsortiumRequired  bool     `json:"consortium_required,omitempty"`
	ConsortiumPartners  []string `json:"consortium_partners,omitempty"` // 산학연 composition
	GovernmentAgreement []string `json:"government_agreement,omitempty"`
	IndustryRestriction []string `json:"industry_restriction,omitempty"`
}

// Empty reports whether no requirement group was populated.
func (e EligibilityCriteria) Empty() bool {
	return len(e.OrganizationTypes) == 0 && e.MaxCompanyAgeYears == 0 &&
		e.MinRnDRatioPercent == 0 && len(e.Certifications) == 0 &&
		!e.ConsortiumRequired && len(e.ConsortiumPartners) == 0 &&
		len(e.GovernmentAgreement) == 0 && len(e.IndustryRestriction) == 0
}

// Program is the canonical structured record extracted from one or more jobs.
// Identity is ContentHash; re-scrapes of unchanged content upsert onto the same row.
type Program struct {
	ID            uuid.UUID `json:"id"`
	ContentHash   string    `json:"content_hash"`
	Title         string    `json:"title"`
	Ministry      string    `json:"ministry"`
	AgencyName    string    `json:"agency_name"`
	Categories    []string  `json:"categories"`
	Keywords      []string  `json:"keywords"`
	DeadlineAt    *time.Time `json:"deadline_at"`
	ApplyStartAt  *time.Time `json:"apply_start_at"`
	BudgetWon     *int64     `json:"budget_won"` // nil = unknown, never zero-for-unknown
	MinTRL        int        `json:"min_trl"`
	MaxTRL        int        `json:"max_trl"`
	TRLConfidence TRLConfidence       `json:"trl_confidence"`
	Eligibility   EligibilityCriteria `json:"eligibility"`
	Status        string              `json:"status"`

	// Semantic enrichment, written only by the backfill.
	PrimaryIndustry    string             `json:"primary_industry,omitempty"`
	SecondaryIndustry  string             `json:"secondary_industry,omitempty"`
	SubDomains         map[string]float64 `json:"sub_domains,omitempty"`
	SemanticConfidence *float64           `json:"semantic_confidence,omitempty"`
	SemanticEnrichedAt *time.Time         `json:"semantic_enriched_at,omitempty"`
	SemanticModel      string             `json:"semantic_model,omitempty"`
	Embedding          []float32          `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DataSource identifies which extraction backend produced a piece of text.
type DataSource string

const (
	SourceNativeParse DataSource = "native-parse"
	SourceCloudOCR    DataSource = "cloud-ocr"
	SourceGenericOCR  DataSource = "generic-ocr"
	SourceListing     DataSource = "listing" // listing-page metadata fallback
)

// ExtractionLog is the append-only audit row for one field extraction attempt.
type ExtractionLog struct {
	ID               uuid.UUID  `json:"id"`
	JobID            uuid.UUID  `json:"job_id"`
	FieldName        string     `json:"field_name"`
	DataSource       DataSource `json:"data_source"`
	Confidence       string     `json:"confidence"` // high | medium | low | none
	ExtractedValue   string     `json:"extracted_value"`
	PatternID        string     `json:"pattern_id"`
	SourcesAttempted []string   `json:"sources_attempted"`
	CreatedAt        time.Time  `json:"created_at"`
}
