package staging

import (
	"context"
	"log/slog"
	"time"

	"scribe/internal/logging"
)

// JobIndex is what the sweeper needs from the job store.
type JobIndex interface {
	ActiveLister
	ExpiryStore
}

// Sweeper runs the upload sweep and expiry purge on an interval.
type Sweeper struct {
	files    *FileStore
	jobs     JobIndex
	interval time.Duration
	maxAge   time.Duration
	logger   *slog.Logger
}

// NewSweeper builds a sweeper.
func NewSweeper(files *FileStore, jobs JobIndex, interval, maxAge time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		files:    files,
		jobs:     jobs,
		interval: interval,
		maxAge:   maxAge,
		logger:   logging.NewComponentLogger(logger, "sweeper"),
	}
}

// SweepOnce runs both passes once.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	s.logger.Info("running upload sweep", logging.Duration("max_age", s.maxAge))
	if _, err := s.files.CleanOld(ctx, s.maxAge, s.jobs); err != nil {
		s.logger.Debug("upload sweep ended early", logging.Error(err))
	}
	if _, err := s.files.PurgeExpired(ctx, s.jobs); err != nil {
		logging.WarnWithContext(s.logger, "expired job purge failed", "expiry_purge_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "expired jobs remain listed until the next sweep"),
		)
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}
