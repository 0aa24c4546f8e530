package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minki/fundscan/internal/models"
)

var jobColNames = []string{
	"id", "source_key", "agency_id", "title", "ministry", "announcement_type",
	"detail_url", "posted_at", "listing_deadline_at", "attachment_names", "attachment_dir",
	"scraping_status", "processing_status", "processing_attempts", "processing_error",
	"processing_worker", "processing_started_at", "heartbeat_at", "processed_at", "program_id",
	"created_at", "updated_at",
}

func claimedJobRow(id uuid.UUID, worker string) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(jobColNames).AddRow(
		id, "smtech:2026-1234", "smtech", "2026년 창업성장기술개발사업", "중소벤처기업부", "R&D 과제공고",
		"https://www.smtech.go.kr/view?id=1234", &now, (*time.Time)(nil), []string{"공고문.hwp"}, "/data/attachments/smtech-2026-1234",
		models.ScrapingScraped, models.ProcessingInProgress, 0, "",
		worker, &now, &now, (*time.Time)(nil), (*uuid.UUID)(nil),
		now, now,
	)
}

func TestInsertJob(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	job := &models.ScrapeJob{
		SourceKey:        "smtech:2026-1234",
		AgencyID:         "smtech",
		Title:            "2026년 창업성장기술개발사업",
		DetailURL:        "https://www.smtech.go.kr/view?id=1234",
		AttachmentNames:  []string{"공고문.hwp"},
		ScrapingStatus:   models.ScrapingScraped,
		ProcessingStatus: models.ProcessingPending,
	}

	mock.ExpectExec("INSERT INTO scrape_jobs").
		WithArgs(job.SourceKey, job.AgencyID, job.Title, nil, nil, job.DetailURL,
			job.PostedAt, job.ListingDeadlineAt, job.AttachmentNames, nil,
			job.ScrapingStatus, job.ProcessingStatus).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	inserted, err := New(mock).InsertJob(context.Background(), job)
	assert.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertJob_DuplicateSourceKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO scrape_jobs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := New(mock).InsertJob(context.Background(), &models.ScrapeJob{
		SourceKey: "smtech:2026-1234",
	})
	assert.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimNextJob(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("UPDATE scrape_jobs SET").
		WithArgs("worker-1", (*time.Time)(nil), (*time.Time)(nil), "", (*uuid.UUID)(nil)).
		WillReturnRows(claimedJobRow(id, "worker-1"))

	job, err := New(mock).ClaimNextJob(context.Background(), "worker-1", JobFilter{})
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, models.ProcessingInProgress, job.ProcessingStatus)
	assert.Equal(t, "worker-1", job.ProcessingWorker)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimNextJob_QueueEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("UPDATE scrape_jobs SET").
		WithArgs("worker-1", (*time.Time)(nil), (*time.Time)(nil), "", (*uuid.UUID)(nil)).
		WillReturnError(pgx.ErrNoRows)

	job, err := New(mock).ClaimNextJob(context.Background(), "worker-1", JobFilter{})
	assert.NoError(t, err)
	assert.Nil(t, job)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteJob_ClaimConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	jobID, programID := uuid.New(), uuid.New()
	mock.ExpectExec("UPDATE scrape_jobs SET").
		WithArgs(jobID, "worker-2", programID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = New(mock).CompleteJob(context.Background(), jobID, "worker-2", programID)
	assert.ErrorIs(t, err, ErrClaimConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailJob(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	jobID := uuid.New()
	mock.ExpectExec("UPDATE scrape_jobs SET").
		WithArgs(jobID, "worker-1", "extract: all backends failed").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = New(mock).FailJob(context.Background(), jobID, "worker-1", "extract: all backends failed")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSkipJob(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	jobID := uuid.New()
	mock.ExpectExec("UPDATE scrape_jobs SET").
		WithArgs(jobID, "worker-1", "not-funding-announcement").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = New(mock).SkipJob(context.Background(), jobID, "worker-1", "not-funding-announcement")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequeueFailed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE scrape_jobs SET").
		WithArgs(3).
		WillReturnResult(pgxmock.NewResult("UPDATE", 7))

	n, err := New(mock).RequeueFailed(context.Background(), 3)
	assert.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetAllFailed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE scrape_jobs SET").
		WillReturnResult(pgxmock.NewResult("UPDATE", 7))

	n, err := New(mock).ResetAllFailed(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReclaimStale(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE scrape_jobs SET").
		WithArgs(float64(600)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	n, err := New(mock).ReclaimStale(context.Background(), 10*time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueStats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT processing_status, COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"processing_status", "count"}).
			AddRow(models.ProcessingPending, 12).
			AddRow(models.ProcessingCompleted, 40).
			AddRow(models.ProcessingFailed, 3))

	stats, err := New(mock).QueueStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, stats[models.ProcessingPending])
	assert.Equal(t, 40, stats[models.ProcessingCompleted])
	assert.Equal(t, 3, stats[models.ProcessingFailed])
	assert.NoError(t, mock.ExpectationsWereMet())
}
