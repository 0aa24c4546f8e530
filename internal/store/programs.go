package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/minki/fundscan/internal/models"
)

// UpsertProgram writes a structured record keyed by content hash. A hash hit
// refreshes mutable fields on the existing row instead of creating a duplicate,
// which keeps re-scrapes of unchanged announcements idempotent. Returns the
// record id and whether a new row was created.
func (s *Store) UpsertProgram(ctx context.Context, p *models.Program) (uuid.UUID, bool, error) {
	eligibilityJSON, err := json.Marshal(p.Eligibility)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("marshal eligibility: %w", err)
	}

	var budget any
	if p.BudgetWon != nil {
		budget = *p.BudgetWon
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO programs (
			content_hash, title, ministry, agency_name, categories, keywords,
			deadline_at, apply_start_at, budget_won, min_trl, max_trl,
			trl_confidence, eligibility, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb, $14)
		ON CONFLICT (content_hash) DO UPDATE SET
			updated_at = NOW(),
			deadline_at = COALESCE(EXCLUDED.deadline_at, programs.deadline_at),
			apply_start_at = COALESCE(EXCLUDED.apply_start_at, programs.apply_start_at),
			budget_won = COALESCE(EXCLUDED.budget_won, programs.budget_won),
			categories = COALESCE(NULLIF(EXCLUDED.categories, '{}'::text[]), programs.categories),
			keywords = COALESCE(NULLIF(EXCLUDED.keywords, '{}'::text[]), programs.keywords),
			status = EXCLUDED.status
		RETURNING id, (xmax = 0) AS created
	`, p.ContentHash, p.Title, nilIfEmpty(p.Ministry), nilIfEmpty(p.AgencyName),
		p.Categories, p.Keywords, p.DeadlineAt, p.ApplyStartAt, budget,
		p.MinTRL, p.MaxTRL, p.TRLConfidence, string(eligibilityJSON), p.Status)

	var id uuid.UUID
	var created bool
	if err := row.Scan(&id, &created); err != nil {
		return uuid.Nil, false, fmt.Errorf("upsert program %s: %w", p.ContentHash, err)
	}
	return id, created, nil
}

// EnrichTarget is the slice of a program the semantic classifier needs.
type EnrichTarget struct {
	ID         uuid.UUID
	Title      string
	Ministry   string
	AgencyName string
	Categories []string
	Keywords   []string
}

// SelectEnrichTargets returns programs lacking semantic enrichment, oldest
// first. With force=true every program matching the category filter is
// returned regardless of enrichment state.
func (s *Store) SelectEnrichTargets(ctx context.Context, limit int, category string, force bool) ([]EnrichTarget, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, COALESCE(ministry,''), COALESCE(agency_name,''), categories, keywords
		FROM programs
		WHERE ($1 OR semantic_enriched_at IS NULL)
		  AND ($2 = '' OR $2 = ANY(categories))
		ORDER BY created_at
		LIMIT $3
	`, force, category, limit)
	if err != nil {
		return nil, fmt.Errorf("select enrich targets: %w", err)
	}
	defer rows.Close()

	var out []EnrichTarget
	for rows.Next() {
		var t EnrichTarget
		if err := rows.Scan(&t.ID, &t.Title, &t.Ministry, &t.AgencyName, &t.Categories, &t.Keywords); err != nil {
			return nil, fmt.Errorf("scan enrich target: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Enrichment is the additive semantic payload written back by the backfill.
type Enrichment struct {
	PrimaryIndustry   string
	SecondaryIndustry string
	SubDomains        map[string]float64
	Confidence        float64
	Model             string
	Embedding         []float32
	EnrichedAt        time.Time
}

// ApplyEnrichment writes semantic fields onto a program. Fields are additive:
// nothing extracted from documents is touched.
func (s *Store) ApplyEnrichment(ctx context.Context, programID uuid.UUID, e Enrichment) error {
	subJSON, err := json.Marshal(e.SubDomains)
	if err != nil {
		return fmt.Errorf("marshal sub domains: %w", err)
	}

	var embedding any
	if len(e.Embedding) > 0 {
		embedding = pgvector.NewVector(e.Embedding)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE programs SET
			primary_industry = $2,
			secondary_industry = NULLIF($3, ''),
			sub_domains = $4::jsonb,
			semantic_confidence = $5,
			semantic_enriched_at = $6,
			semantic_model = $7,
			embedding = COALESCE($8, embedding),
			updated_at = NOW()
		WHERE id = $1
	`, programID, e.PrimaryIndustry, e.SecondaryIndustry, string(subJSON),
		e.Confidence, e.EnrichedAt, e.Model, embedding)
	if err != nil {
		return fmt.Errorf("apply enrichment to %s: %w", programID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("program %s not found for enrichment", programID)
	}
	return nil
}

// FieldPopulation reports, per extracted field, how many programs carry a value.
type FieldPopulation struct {
	Field     string
	Populated int
	Total     int
}

// FieldPopulationRates returns population counts for the structured fields the
// diagnostics report tracks. Read-only.
func (s *Store) FieldPopulationRates(ctx context.Context) ([]FieldPopulation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(deadline_at),
		       COUNT(budget_won),
		       COUNT(*) FILTER (WHERE min_trl > 0),
		       COUNT(*) FILTER (WHERE array_length(categories, 1) > 0),
		       COUNT(*) FILTER (WHERE eligibility <> '{}'::jsonb),
		       COUNT(semantic_enriched_at)
		FROM programs
	`)

	var total, deadline, budget, trl, categories, eligibility, enriched int
	if err := row.Scan(&total, &deadline, &budget, &trl, &categories, &eligibility, &enriched); err != nil {
		return nil, fmt.Errorf("field population rates: %w", err)
	}

	return []FieldPopulation{
		{Field: "deadline", Populated: deadline, Total: total},
		{Field: "budget", Populated: budget, Total: total},
		{Field: "trl", Populated: trl, Total: total},
		{Field: "categories", Populated: categories, Total: total},
		{Field: "eligibility", Populated: eligibility, Total: total},
		{Field: "semantic", Populated: enriched, Total: total},
	}, nil
}
