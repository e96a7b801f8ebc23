package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const sweepTimeout = 30 * time.Second

// Purger deletes reports expired longer than retention.
type Purger interface {
	PurgeExpired(ctx context.Context, retention time.Duration) (int64, error)
}

// Sweeper periodically purges expired reports on a cron schedule.
type Sweeper struct {
	cron      *cron.Cron
	purger    Purger
	retention time.Duration
	logger    *slog.Logger
}

// NewSweeper schedules purges using a standard cron spec or descriptor such as "@every 1m".
func NewSweeper(purger Purger, schedule string, retention time.Duration, logger *slog.Logger) (*Sweeper, error) {
	s := &Sweeper{
		cron:      cron.New(),
		purger:    purger,
		retention: retention,
		logger:    logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.Run); err != nil {
		return nil, fmt.Errorf("schedule report sweeper %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the schedule in its own goroutine.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running purge or ctx, whichever ends first.
func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Run performs one purge pass.
func (s *Sweeper) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	removed, err := s.purger.PurgeExpired(ctx, s.retention)
	if err != nil {
		s.logger.Error("report sweep failed", slog.Any("error", err))
		return
	}
	if removed > 0 {
		s.logger.Info("purged expired reports", slog.Int64("count", removed))
	}
}
