package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ScrapeRun is one discovery pass over one agency.
type ScrapeRun struct {
	RunID         uuid.UUID
	AgencyID      string
	Status        string
	ItemsFound    int
	ItemsInserted int
	Errors        int
	StartedAt     time.Time
	CompletedAt   *time.Time
}

// StartRun opens an audit row for a discovery pass over one agency.
func (s *Store) StartRun(ctx context.Context, agencyID string) (uuid.UUID, error) {
	var runID uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO scrape_runs (agency_id, status) VALUES ($1, 'running')
		RETURNING run_id
	`, agencyID).Scan(&runID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("start run for %s: %w", agencyID, err)
	}
	return runID, nil
}

// FinishRun closes a discovery-pass audit row with its final counters.
func (s *Store) FinishRun(ctx context.Context, runID uuid.UUID, status string, found, inserted, errCount int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE scrape_runs SET
			status = $2,
			items_found = $3,
			items_inserted = $4,
			errors = $5,
			completed_at = NOW()
		WHERE run_id = $1
	`, runID, status, found, inserted, errCount)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	return nil
}

// RecentRuns returns the latest discovery passes, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]ScrapeRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, agency_id, status, items_found, items_inserted, errors, started_at, completed_at
		FROM scrape_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var out []ScrapeRun
	for rows.Next() {
		var r ScrapeRun
		if err := rows.Scan(&r.RunID, &r.AgencyID, &r.Status, &r.ItemsFound,
			&r.ItemsInserted, &r.Errors, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
