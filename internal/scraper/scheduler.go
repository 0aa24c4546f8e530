package scraper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/minki/fundscan/internal/db"
)

// discoveryLockKey is the advisory lock shared by every instance with the
// scheduler role. Only the lock holder runs the daily pass.
const discoveryLockKey = 7230114

// Scheduler triggers one discovery pass per day at the configured hour.
type Scheduler struct {
	scraper *Scraper
	pool    db.Pool
	hour    int
}

func NewScheduler(scraper *Scraper, pool db.Pool, hour int) *Scheduler {
	return &Scheduler{scraper: scraper, pool: pool, hour: hour}
}

// Run blocks until ctx is cancelled, firing a discovery pass at the scheduled
// hour each day.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		next := s.nextFire(time.Now())
		zap.S().Infow("discovery scheduled", "at", next)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}
		s.fire(ctx)
	}
}

func (s *Scheduler) nextFire(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// fire runs one pass under the advisory lock. Losing the lock means another
// instance is already running today's pass.
func (s *Scheduler) fire(ctx context.Context) {
	var got bool
	if err := s.pool.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, discoveryLockKey).Scan(&got); err != nil {
		zap.S().Errorw("advisory lock query failed", "error", err)
		return
	}
	if !got {
		zap.S().Infow("discovery skipped, another instance holds the lock")
		return
	}
	defer func() {
		if _, err := s.pool.Exec(ctx, `SELECT pg_advisory_unlock($1)`, discoveryLockKey); err != nil {
			zap.S().Warnw("advisory unlock failed", "error", err)
		}
	}()

	if err := s.scraper.DiscoverAll(ctx); err != nil {
		zap.S().Errorw("scheduled discovery failed", "error", err)
	}
}
