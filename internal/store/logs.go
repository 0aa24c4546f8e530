package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/minki/fundscan/internal/models"
)

// AppendExtractionLogs records the audit trail for one job's field extraction.
// Rows are append-only; re-processing a job adds new rows rather than rewriting.
func (s *Store) AppendExtractionLogs(ctx context.Context, jobID uuid.UUID, logs []models.ExtractionLog) error {
	for _, l := range logs {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO extraction_logs (
				job_id, field_name, data_source, confidence,
				extracted_value, pattern_id, sources_attempted
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, jobID, l.FieldName, l.DataSource, l.Confidence,
			nilIfEmpty(l.ExtractedValue), nilIfEmpty(l.PatternID), l.SourcesAttempted)
		if err != nil {
			return fmt.Errorf("append extraction log %s/%s: %w", jobID, l.FieldName, err)
		}
	}
	return nil
}

// ExtractionLogsForJob returns the audit rows for one job, oldest first.
func (s *Store) ExtractionLogsForJob(ctx context.Context, jobID uuid.UUID) ([]models.ExtractionLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_id, field_name, data_source, confidence,
		       COALESCE(extracted_value,''), COALESCE(pattern_id,''), sources_attempted, created_at
		FROM extraction_logs
		WHERE job_id = $1
		ORDER BY created_at
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("extraction logs for %s: %w", jobID, err)
	}
	defer rows.Close()

	var out []models.ExtractionLog
	for rows.Next() {
		var l models.ExtractionLog
		if err := rows.Scan(&l.ID, &l.JobID, &l.FieldName, &l.DataSource, &l.Confidence,
			&l.ExtractedValue, &l.PatternID, &l.SourcesAttempted, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan extraction log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
