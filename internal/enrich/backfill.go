package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/minki/fundscan/internal/config"
	"github.com/minki/fundscan/internal/store"
)

// BackfillStore is the store surface the backfill uses.
type BackfillStore interface {
	SelectEnrichTargets(ctx context.Context, limit int, category string, force bool) ([]store.EnrichTarget, error)
	ApplyEnrichment(ctx context.Context, programID uuid.UUID, e store.Enrichment) error
}

// ClassifierAPI abstracts the model client for testing.
type ClassifierAPI interface {
	Classify(ctx context.Context, t store.EnrichTarget) (Classification, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Options control one backfill invocation.
type Options struct {
	Limit    int
	Category string
	Resume   bool // continue from the existing checkpoint
	Force    bool // re-enrich already-enriched programs
	DryRun   bool // classify nothing, report what would run
}

// Report summarizes a backfill run.
type Report struct {
	Targets          int
	AlreadyProcessed int
	Enriched         int
	Skipped          int
	Failed           int
}

// Backfill runs rate-limited semantic enrichment over stored programs.
type Backfill struct {
	store          BackfillStore
	classifier     ClassifierAPI
	cfg            config.EnrichConfig
	checkpointPath string
	runLogDir      string
}

func NewBackfill(st BackfillStore, cls ClassifierAPI, cfg config.EnrichConfig, checkpointDir, runLogDir string) *Backfill {
	return &Backfill{
		store:          st,
		classifier:     cls,
		cfg:            cfg,
		checkpointPath: filepath.Join(checkpointDir, "backfill.json"),
		runLogDir:      runLogDir,
	}
}

// Run enriches unprocessed targets. The checkpoint flushes after every record
// so an interrupted run resumes where it stopped; budget exhaustion aborts
// the run with the checkpoint intact. The checkpoint clears only after a run
// with zero failures.
func (b *Backfill) Run(ctx context.Context, opts Options) (*Report, error) {
	cp := NewCheckpoint()
	if opts.Resume {
		loaded, err := LoadCheckpoint(b.checkpointPath)
		if err != nil {
			return nil, err
		}
		cp = loaded
	}

	targets, err := b.store.SelectEnrichTargets(ctx, opts.Limit, opts.Category, opts.Force)
	if err != nil {
		return nil, err
	}
	report := &Report{Targets: len(targets)}

	if opts.DryRun {
		for _, t := range targets {
			if cp.IsProcessed(t.ID.String()) {
				report.AlreadyProcessed++
			}
		}
		zap.S().Infow("backfill dry run",
			"targets", report.Targets, "already_processed", report.AlreadyProcessed)
		return report, nil
	}

	runLog, err := b.openRunLog()
	if err != nil {
		return nil, err
	}
	defer runLog.Close()

	rpm := b.cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 20
	}
	limiter := rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)

	for _, t := range targets {
		id := t.ID.String()
		if cp.IsProcessed(id) {
			report.AlreadyProcessed++
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			b.flush(cp)
			return report, err
		}

		outcome, err := b.enrichOne(ctx, t)
		switch {
		case errors.Is(err, ErrBudgetExhausted):
			b.flush(cp)
			b.logRecord(runLog, id, "aborted", err.Error())
			return report, err
		case err != nil:
			cp.MarkFailed(id)
			report.Failed++
			b.logRecord(runLog, id, "failed", err.Error())
			zap.S().Warnw("enrichment failed", "program", id, "error", err)
		case outcome == "skipped":
			cp.MarkSkipped(id)
			report.Skipped++
			b.logRecord(runLog, id, "skipped", "below confidence threshold")
		default:
			cp.MarkSucceeded(id)
			report.Enriched++
			b.logRecord(runLog, id, "enriched", "")
		}
		b.flush(cp)
	}

	if report.Failed == 0 {
		if err := Clear(b.checkpointPath); err != nil {
			zap.S().Warnw("checkpoint clear failed", "error", err)
		}
	}
	zap.S().Infow("backfill complete",
		"targets", report.Targets, "enriched", report.Enriched,
		"skipped", report.Skipped, "failed", report.Failed,
		"already_processed", report.AlreadyProcessed)
	return report, nil
}

// enrichOne classifies a single program and writes the result. Returns
// "skipped" when classification confidence falls under the threshold.
func (b *Backfill) enrichOne(ctx context.Context, t store.EnrichTarget) (string, error) {
	cls, err := b.classifier.Classify(ctx, t)
	if err != nil {
		return "", err
	}
	if cls.Confidence < b.cfg.ConfidenceThreshold {
		return "skipped", nil
	}

	embedText := strings.Join([]string{t.Title, t.Ministry, strings.Join(t.Keywords, " ")}, "\n")
	embedding, err := b.classifier.Embed(ctx, embedText)
	if err != nil {
		if errors.Is(err, ErrBudgetExhausted) {
			return "", err
		}
		// A classification without an embedding is still worth keeping.
		zap.S().Warnw("embedding failed, storing classification only", "program", t.ID, "error", err)
		embedding = nil
	}

	return "", b.store.ApplyEnrichment(ctx, t.ID, store.Enrichment{
		PrimaryIndustry:   cls.PrimaryIndustry,
		SecondaryIndustry: cls.SecondaryIndustry,
		SubDomains:        cls.SubDomains,
		Confidence:        cls.Confidence,
		Model:             b.classifier.Model(),
		Embedding:         embedding,
		EnrichedAt:        time.Now(),
	})
}

func (b *Backfill) flush(cp *Checkpoint) {
	if err := cp.Save(b.checkpointPath); err != nil {
		zap.S().Errorw("checkpoint save failed", "error", err)
	}
}

type runLogRecord struct {
	At      time.Time `json:"at"`
	Program string    `json:"program"`
	Outcome string    `json:"outcome"`
	Detail  string    `json:"detail,omitempty"`
}

func (b *Backfill) openRunLog() (*os.File, error) {
	if err := os.MkdirAll(b.runLogDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run log dir: %w", err)
	}
	name := fmt.Sprintf("backfill-%s.jsonl", time.Now().Format("20060102-150405"))
	f, err := os.Create(filepath.Join(b.runLogDir, name))
	if err != nil {
		return nil, fmt.Errorf("create run log: %w", err)
	}
	return f, nil
}

func (b *Backfill) logRecord(f *os.File, program, outcome, detail string) {
	raw, err := json.Marshal(runLogRecord{
		At: time.Now(), Program: program, Outcome: outcome, Detail: detail,
	})
	if err != nil {
		return
	}
	raw = append(raw, '\n')
	if _, err := f.Write(raw); err != nil {
		zap.S().Warnw("run log write failed", "error", err)
	}
}
