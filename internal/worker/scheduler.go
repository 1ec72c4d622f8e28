package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-reconciler/internal/reconcile"
)

// Scheduler triggers every enabled sync kind on a fixed interval. Each kind
// runs as its own job, so a slow source never delays the others and a manual
// trigger is never starved by the periodic one.
type Scheduler struct {
	syncs    *reconcile.Service
	kinds    []reconcile.Kind
	interval time.Duration
	logger   *zap.Logger
}

// NewScheduler constructs the scheduler for the given kinds.
func NewScheduler(syncs *reconcile.Service, kinds []reconcile.Kind, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{syncs: syncs, kinds: kinds, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled, kicking off one round immediately and
// then once per interval.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.triggerAll()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.triggerAll()
		}
	}
}

func (s *Scheduler) triggerAll() {
	for _, kind := range s.kinds {
		jobID, err := s.syncs.Trigger(kind)
		if err != nil {
			s.logger.Warn("scheduled sync not started", zap.String("kind", string(kind)), zap.Error(err))
			continue
		}
		s.logger.Info("scheduled sync started", zap.String("kind", string(kind)), zap.String("job_id", jobID))
	}
}
