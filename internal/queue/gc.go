package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const dlqSweepTimeout = 2 * time.Minute

// DLQSweeper periodically drops dead-lettered chat jobs past their retention
// so poison history writes do not pile up in the broker.
type DLQSweeper struct {
	purger    DLQPurger
	interval  time.Duration
	retention time.Duration
	log       *zap.Logger
}

func NewDLQSweeper(purger DLQPurger, interval, retention time.Duration, log *zap.Logger) *DLQSweeper {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &DLQSweeper{purger: purger, interval: interval, retention: retention, log: log}
}

// Run sweeps once immediately and then every interval. It returns nil once
// ctx is cancelled.
func (s *DLQSweeper) Run(ctx context.Context) error {
	if s.purger == nil {
		return nil
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.sweep(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn("dlq_sweep_failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *DLQSweeper) sweep(ctx context.Context) error {
	if s.purger == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, dlqSweepTimeout)
	defer cancel()

	purged, err := s.purger.PurgeOlderThan(ctx, s.retention)
	if err != nil {
		return fmt.Errorf("purge dead-lettered jobs: %w", err)
	}
	if purged > 0 {
		s.log.Info("dlq_swept", zap.Int("purged", purged), zap.Duration("retention", s.retention))
	}
	return nil
}
