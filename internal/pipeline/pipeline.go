// Package pipeline drains the job queue: claim, extract, parse, upsert,
// release. Workers share nothing but the store; claim exclusivity is the
// store's conditional update.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/minki/fundscan/internal/config"
	"github.com/minki/fundscan/internal/extract"
	"github.com/minki/fundscan/internal/models"
	"github.com/minki/fundscan/internal/parse"
	"github.com/minki/fundscan/internal/store"
)

// Store is the surface of the job and program stores the pipeline uses.
type Store interface {
	ClaimNextJob(ctx context.Context, workerID string, f store.JobFilter) (*models.ScrapeJob, error)
	Heartbeat(ctx context.Context, jobID uuid.UUID, workerID string) error
	CompleteJob(ctx context.Context, jobID uuid.UUID, workerID string, programID uuid.UUID) error
	FailJob(ctx context.Context, jobID uuid.UUID, workerID string, cause string) error
	SkipJob(ctx context.Context, jobID uuid.UUID, workerID string, reason string) error
	UpsertProgram(ctx context.Context, p *models.Program) (uuid.UUID, bool, error)
	AppendExtractionLogs(ctx context.Context, jobID uuid.UUID, logs []models.ExtractionLog) error
}

// Extractor is the text extraction engine surface.
type Extractor interface {
	ExtractFile(ctx context.Context, path string) (extract.Output, error)
}

// Stats counts one pipeline run's outcomes.
type Stats struct {
	mu        sync.Mutex
	Claimed   int
	Completed int
	Failed    int
	Skipped   int
}

func (s *Stats) add(f func(*Stats)) {
	s.mu.Lock()
	f(s)
	s.mu.Unlock()
}

// Pipeline processes pending jobs with a bounded worker pool.
type Pipeline struct {
	store  Store
	engine Extractor
	cfg    config.WorkerConfig
}

func New(st Store, engine Extractor, cfg config.WorkerConfig) *Pipeline {
	return &Pipeline{store: st, engine: engine, cfg: cfg}
}

// Run drains claimable jobs matching the filter and returns when the queue is
// empty or ctx is cancelled. Each worker claims, processes and releases jobs
// one at a time.
func (p *Pipeline) Run(ctx context.Context, filter store.JobFilter) (*Stats, error) {
	stats := &Stats{}
	count := p.cfg.Count
	if count <= 0 {
		count = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < count; i++ {
		workerID := fmt.Sprintf("worker-%s", uuid.NewString()[:8])
		g.Go(func() error {
			return p.workerLoop(gctx, workerID, filter, stats)
		})
	}
	err := g.Wait()
	zap.S().Infow("pipeline run finished",
		"claimed", stats.Claimed, "completed", stats.Completed,
		"failed", stats.Failed, "skipped", stats.Skipped)
	return stats, err
}

func (p *Pipeline) workerLoop(ctx context.Context, workerID string, filter store.JobFilter, stats *Stats) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		job, err := p.store.ClaimNextJob(ctx, workerID, filter)
		if err != nil {
			return fmt.Errorf("worker %s: claim: %w", workerID, err)
		}
		if job == nil {
			return nil // queue drained
		}
		stats.add(func(s *Stats) { s.Claimed++ })
		p.processJob(ctx, workerID, job, stats)
	}
}

// processJob runs one claimed job to a terminal state. Processing errors fail
// the job rather than the worker; the loop moves on to the next claim.
func (p *Pipeline) processJob(ctx context.Context, workerID string, job *models.ScrapeJob, stats *Stats) {
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go p.heartbeatLoop(hbCtx, workerID, job.ID)

	if ok, reason := FundingRelevance(job.AnnouncementType, job.Title); !ok {
		if !p.guardTransition(job, models.ProcessingSkipped) {
			return
		}
		if err := p.store.SkipJob(ctx, job.ID, workerID, reason); err != nil {
			zap.S().Warnw("skip failed", "job", job.ID, "error", err)
			return
		}
		stats.add(func(s *Stats) { s.Skipped++ })
		return
	}

	docs, logs, extractErr := p.extractAttachments(ctx, job)
	if extractErr != nil {
		p.failJob(ctx, workerID, job, stats, extractErr.Error())
		return
	}

	res := parse.Extract(docs, parse.ListingMeta{
		Title:             job.Title,
		Ministry:          job.Ministry,
		AgencyName:        job.AgencyID,
		AnnouncementType:  job.AnnouncementType,
		PostedAt:          job.PostedAt,
		ListingDeadlineAt: job.ListingDeadlineAt,
	})
	res.Program.ContentHash = ContentHash(&res.Program)

	programID, created, err := p.store.UpsertProgram(ctx, &res.Program)
	if err != nil {
		p.failJob(ctx, workerID, job, stats, fmt.Sprintf("upsert: %v", err))
		return
	}

	logs = append(logs, res.Logs...)
	for i := range logs {
		logs[i].JobID = job.ID
	}
	if err := p.store.AppendExtractionLogs(ctx, job.ID, logs); err != nil {
		zap.S().Warnw("extraction log write failed", "job", job.ID, "error", err)
	}

	if !p.guardTransition(job, models.ProcessingCompleted) {
		return
	}
	if err := p.store.CompleteJob(ctx, job.ID, workerID, programID); err != nil {
		zap.S().Warnw("complete failed", "job", job.ID, "error", err)
		return
	}
	stats.add(func(s *Stats) { s.Completed++ })
	zap.S().Infow("job completed",
		"job", job.ID, "source_key", job.SourceKey,
		"program", programID, "new_program", created)
}

// extractAttachments runs the backend chain over every attachment. Individual
// attachment failures are tolerated while at least one yields text; a job
// whose attachments all fail is a processing failure.
func (p *Pipeline) extractAttachments(ctx context.Context, job *models.ScrapeJob) ([]parse.Document, []models.ExtractionLog, error) {
	var docs []parse.Document
	var logs []models.ExtractionLog
	failures := 0

	for _, name := range job.AttachmentNames {
		path := filepath.Join(job.AttachmentDir, name)
		out, err := p.engine.ExtractFile(ctx, path)
		logs = append(logs, models.ExtractionLog{
			FieldName:        "document-text",
			DataSource:       out.Source,
			Confidence:       extractConfidence(out, err),
			ExtractedValue:   name,
			SourcesAttempted: out.SourcesAttempted(),
		})
		if err != nil {
			failures++
			zap.S().Warnw("attachment extraction failed", "job", job.ID, "file", name, "error", err)
			continue
		}
		docs = append(docs, parse.Document{Text: out.Text, Source: out.Source})
	}

	if len(job.AttachmentNames) > 0 && len(docs) == 0 {
		return nil, logs, fmt.Errorf("extract: all %d attachments failed", failures)
	}
	return docs, logs, nil
}

func extractConfidence(out extract.Output, err error) string {
	if err != nil {
		return "none"
	}
	if out.Source == models.SourceNativeParse {
		return "high"
	}
	return "medium"
}

// guardTransition rejects a terminal move that is illegal for the job's
// current status. The store's conditional updates enforce the same rule in
// SQL; tripping this means a worker is releasing a job it no longer holds.
func (p *Pipeline) guardTransition(job *models.ScrapeJob, to models.ProcessingStatus) bool {
	if err := models.ValidateTransition(job.ProcessingStatus, to); err != nil {
		zap.S().Errorw("job release refused", "job", job.ID, "status", job.ProcessingStatus, "error", err)
		return false
	}
	return true
}

func (p *Pipeline) failJob(ctx context.Context, workerID string, job *models.ScrapeJob, stats *Stats, cause string) {
	if !p.guardTransition(job, models.ProcessingFailed) {
		return
	}
	if err := p.store.FailJob(ctx, job.ID, workerID, cause); err != nil {
		zap.S().Warnw("fail transition failed", "job", job.ID, "error", err)
		return
	}
	stats.add(func(s *Stats) { s.Failed++ })
	zap.S().Warnw("job failed", "job", job.ID, "source_key", job.SourceKey, "cause", cause)
}

func (p *Pipeline) heartbeatLoop(ctx context.Context, workerID string, jobID uuid.UUID) {
	interval := time.Duration(p.cfg.HeartbeatSecs) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.store.Heartbeat(ctx, jobID, workerID); err != nil {
				zap.S().Warnw("heartbeat failed", "job", jobID, "error", err)
				return
			}
		}
	}
}
