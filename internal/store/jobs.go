package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/minki/fundscan/internal/models"
)

const jobCols = `id, source_key, agency_id, title, COALESCE(ministry,''), COALESCE(announcement_type,''),
	detail_url, posted_at, listing_deadline_at, attachment_names, COALESCE(attachment_dir,''),
	scraping_status, processing_status, processing_attempts, COALESCE(processing_error,''),
	COALESCE(processing_worker,''), processing_started_at, heartbeat_at, processed_at, program_id,
	created_at, updated_at`

func scanJob(row pgx.Row) (*models.ScrapeJob, error) {
	var j models.ScrapeJob
	err := row.Scan(
		&j.ID, &j.SourceKey, &j.AgencyID, &j.Title, &j.Ministry, &j.AnnouncementType,
		&j.DetailURL, &j.PostedAt, &j.ListingDeadlineAt, &j.AttachmentNames, &j.AttachmentDir,
		&j.ScrapingStatus, &j.ProcessingStatus, &j.ProcessingAttempts, &j.ProcessingError,
		&j.ProcessingWorker, &j.ProcessingStartedAt, &j.HeartbeatAt, &j.ProcessedAt, &j.ProgramID,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// InsertJob inserts a newly discovered job, ignoring it if a job with the same
// source key already exists. Returns true if a row was actually inserted.
func (s *Store) InsertJob(ctx context.Context, j *models.ScrapeJob) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO scrape_jobs (
			source_key, agency_id, title, ministry, announcement_type, detail_url,
			posted_at, listing_deadline_at, attachment_names, attachment_dir,
			scraping_status, processing_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (source_key) DO NOTHING
	`, j.SourceKey, j.AgencyID, j.Title, nilIfEmpty(j.Ministry), nilIfEmpty(j.AnnouncementType),
		j.DetailURL, j.PostedAt, j.ListingDeadlineAt, j.AttachmentNames, nilIfEmpty(j.AttachmentDir),
		j.ScrapingStatus, j.ProcessingStatus)
	if err != nil {
		return false, fmt.Errorf("insert job %s: %w", j.SourceKey, err)
	}
	return tag.RowsAffected() > 0, nil
}

// JobFilter restricts which PENDING jobs a worker pass will claim.
type JobFilter struct {
	From     *time.Time
	To       *time.Time
	AgencyID string
	JobID    *uuid.UUID
}

// ClaimNextJob atomically claims the oldest PENDING job matching the filter:
// the conditional UPDATE only succeeds if the row's prior status was PENDING,
// and SKIP LOCKED keeps concurrent claimants off the same row. Returns
// (nil, nil) when no claimable job exists.
func (s *Store) ClaimNextJob(ctx context.Context, workerID string, f JobFilter) (*models.ScrapeJob, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE scrape_jobs SET
			processing_status = 'PROCESSING',
			processing_worker = $1,
			processing_started_at = NOW(),
			heartbeat_at = NOW(),
			updated_at = NOW()
		WHERE id = (
			SELECT id FROM scrape_jobs
			WHERE processing_status = 'PENDING'
			  AND ($2::timestamptz IS NULL OR posted_at >= $2)
			  AND ($3::timestamptz IS NULL OR posted_at <= $3)
			  AND ($4 = '' OR agency_id = $4)
			  AND ($5::uuid IS NULL OR id = $5)
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobCols,
		workerID, f.From, f.To, f.AgencyID, f.JobID)

	j, err := scanJob(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return j, nil
}

// Heartbeat refreshes the claim lease for a job held by workerID.
func (s *Store) Heartbeat(ctx context.Context, jobID uuid.UUID, workerID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scrape_jobs SET heartbeat_at = NOW()
		WHERE id = $1 AND processing_status = 'PROCESSING' AND processing_worker = $2
	`, jobID, workerID)
	if err != nil {
		return fmt.Errorf("heartbeat job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrClaimConflict
	}
	return nil
}

// CompleteJob transitions a held job to COMPLETED, linking the structured
// record it produced. Only the claim owner may complete a job.
func (s *Store) CompleteJob(ctx context.Context, jobID uuid.UUID, workerID string, programID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scrape_jobs SET
			processing_status = 'COMPLETED',
			program_id = $3,
			processed_at = NOW(),
			processing_error = NULL,
			updated_at = NOW()
		WHERE id = $1 AND processing_status = 'PROCESSING' AND processing_worker = $2
	`, jobID, workerID, programID)
	if err != nil {
		return fmt.Errorf("complete job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrClaimConflict
	}
	return nil
}

// FailJob transitions a held job to FAILED, recording the error and bumping
// the attempt counter.
func (s *Store) FailJob(ctx context.Context, jobID uuid.UUID, workerID string, cause string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scrape_jobs SET
			processing_status = 'FAILED',
			processing_error = $3,
			processing_attempts = processing_attempts + 1,
			processed_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND processing_status = 'PROCESSING' AND processing_worker = $2
	`, jobID, workerID, cause)
	if err != nil {
		return fmt.Errorf("fail job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrClaimConflict
	}
	return nil
}

// SkipJob transitions a held job to SKIPPED with a reason. Skipping is a
// deliberate filter outcome, not a failure: no attempt is charged and no
// program is linked.
func (s *Store) SkipJob(ctx context.Context, jobID uuid.UUID, workerID string, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scrape_jobs SET
			processing_status = 'SKIPPED',
			processing_error = $3,
			processed_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND processing_status = 'PROCESSING' AND processing_worker = $2
	`, jobID, workerID, reason)
	if err != nil {
		return fmt.Errorf("skip job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrClaimConflict
	}
	return nil
}

// RequeueJob resets one FAILED job to PENDING if it is under the attempt ceiling.
func (s *Store) RequeueJob(ctx context.Context, jobID uuid.UUID, maxAttempts int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scrape_jobs SET
			processing_status = 'PENDING',
			processing_worker = NULL,
			processing_started_at = NULL,
			heartbeat_at = NULL,
			updated_at = NOW()
		WHERE id = $1 AND processing_status = 'FAILED' AND processing_attempts < $2
	`, jobID, maxAttempts)
	if err != nil {
		return fmt.Errorf("requeue job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s not requeued: not FAILED or attempt ceiling reached", jobID)
	}
	return nil
}

// RequeueFailed resets all FAILED jobs under the attempt ceiling to PENDING.
func (s *Store) RequeueFailed(ctx context.Context, maxAttempts int) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scrape_jobs SET
			processing_status = 'PENDING',
			processing_worker = NULL,
			processing_started_at = NULL,
			heartbeat_at = NULL,
			updated_at = NOW()
		WHERE processing_status = 'FAILED' AND processing_attempts < $1
	`, maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("requeue failed jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ResetAllFailed returns every FAILED job to PENDING with a fresh attempt
// counter, ignoring the attempt ceiling. Operator-only escape hatch.
func (s *Store) ResetAllFailed(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scrape_jobs SET
			processing_status = 'PENDING',
			processing_attempts = 0,
			processing_error = '',
			processing_worker = NULL,
			processing_started_at = NULL,
			heartbeat_at = NULL,
			updated_at = NOW()
		WHERE processing_status = 'FAILED'
	`)
	if err != nil {
		return 0, fmt.Errorf("reset failed jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ReclaimStale returns PROCESSING jobs whose worker stopped heartbeating to
// PENDING. The lease check rides on the same conditional-update rule as the
// claim itself, so a live worker can never be preempted.
func (s *Store) ReclaimStale(ctx context.Context, lease time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scrape_jobs SET
			processing_status = 'PENDING',
			processing_worker = NULL,
			processing_started_at = NULL,
			heartbeat_at = NULL,
			updated_at = NOW()
		WHERE processing_status = 'PROCESSING'
		  AND heartbeat_at < NOW() - make_interval(secs => $1)
	`, lease.Seconds())
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// GetJob fetches one job by id.
func (s *Store) GetJob(ctx context.Context, jobID uuid.UUID) (*models.ScrapeJob, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobCols+` FROM scrape_jobs WHERE id = $1`, jobID)
	j, err := scanJob(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return j, nil
}

// QueueStats returns job counts keyed by processing status.
func (s *Store) QueueStats(ctx context.Context) (map[models.ProcessingStatus]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT processing_status, COUNT(*) FROM scrape_jobs GROUP BY processing_status
	`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	out := map[models.ProcessingStatus]int{}
	for rows.Next() {
		var status models.ProcessingStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("queue stats scan: %w", err)
		}
		out[status] = count
	}
	return out, rows.Err()
}

// SkipReasons returns SKIPPED job counts grouped by reason.
func (s *Store) SkipReasons(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT COALESCE(processing_error, 'unspecified'), COUNT(*)
		FROM scrape_jobs
		WHERE processing_status = 'SKIPPED'
		GROUP BY 1
		ORDER BY 2 DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("skip reasons: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var reason string
		var count int
		if err := rows.Scan(&reason, &count); err != nil {
			return nil, fmt.Errorf("skip reasons scan: %w", err)
		}
		out[reason] = count
	}
	return out, rows.Err()
}

// nilIfEmpty returns nil for empty strings so NULL is stored in the DB.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
