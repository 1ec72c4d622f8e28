package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-reconciler/internal/adapter"
	"github.com/spec-kit/support-reconciler/internal/events"
	"github.com/spec-kit/support-reconciler/internal/jobs"
)

// Kind names one schedulable sync.
type Kind string

const (
	KindHelpdesk    Kind = "helpdesk"
	KindServiceDesk Kind = "servicedesk"
	KindTracker     Kind = "tracker"
	KindOrphans     Kind = "l4orphans"
)

// Kinds lists every sync kind in scheduling order.
var Kinds = []Kind{KindServiceDesk, KindHelpdesk, KindTracker, KindOrphans}

// ValidKind reports whether the name maps to a known sync kind.
func ValidKind(name string) bool {
	for _, kind := range Kinds {
		if string(kind) == name {
			return true
		}
	}
	return false
}

// Service runs sync jobs. Each trigger gets its own job handle and goroutine;
// two jobs of the same kind may overlap, the idempotent upsert design keeps
// that safe rather than a lock.
type Service struct {
	sources    map[Kind]adapter.Source
	reconciler *Reconciler
	deriver    *EscalationDeriver
	orphans    *OrphanReconciler
	registry   *jobs.Registry
	watermarks *WatermarkStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
	jobTimeout time.Duration
}

// ServiceDependencies bundles collaborators for the sync service.
type ServiceDependencies struct {
	Sources    map[Kind]adapter.Source
	Reconciler *Reconciler
	Deriver    *EscalationDeriver
	Orphans    *OrphanReconciler
	Registry   *jobs.Registry
	Watermarks *WatermarkStore
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	JobTimeout time.Duration
}

// NewService constructs the sync service.
func NewService(deps ServiceDependencies) *Service {
	timeout := deps.JobTimeout
	if timeout <= 0 {
		timeout = 20 * time.Minute
	}
	return &Service{
		sources:    deps.Sources,
		reconciler: deps.Reconciler,
		deriver:    deps.Deriver,
		orphans:    deps.Orphans,
		registry:   deps.Registry,
		watermarks: deps.Watermarks,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		jobTimeout: timeout,
	}
}

// Trigger starts a sync of the given kind in its own unit of work and
// returns the job id to poll. Manual and scheduled triggers go through the
// same path and never block each other.
func (s *Service) Trigger(kind Kind) (string, error) {
	if !ValidKind(string(kind)) {
		return "", fmt.Errorf("unknown sync kind %q", kind)
	}
	if kind != KindOrphans && s.sources[kind] == nil {
		return "", fmt.Errorf("source %q is not configured", kind)
	}
	if kind == KindOrphans && s.orphans == nil {
		return "", fmt.Errorf("orphan sweep is not configured")
	}

	jobID := s.registry.Start(string(kind))
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()
		s.run(ctx, kind, jobID)
	}()
	return jobID, nil
}

func (s *Service) run(ctx context.Context, kind Kind, jobID string) {
	start := time.Now()
	s.logger.Info("sync started", zap.String("kind", string(kind)), zap.String("job_id", jobID))

	var message string
	var err error
	switch kind {
	case KindOrphans:
		message, err = s.runOrphanSweep(ctx, jobID)
	default:
		message, err = s.runSourceSync(ctx, kind, jobID)
	}

	if err != nil {
		// The job message is the user-facing error surface; keep it causal
		// and readable.
		s.registry.Update(jobID, jobs.StateFailed, err.Error(), 100)
		s.logger.Error("sync failed",
			zap.String("kind", string(kind)),
			zap.String("job_id", jobID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return
	}

	s.registry.Update(jobID, jobs.StateCompleted, message, 100)
	s.logger.Info("sync completed",
		zap.String("kind", string(kind)),
		zap.String("job_id", jobID),
		zap.Duration("elapsed", time.Since(start)))
}

func (s *Service) runSourceSync(ctx context.Context, kind Kind, jobID string) (string, error) {
	source := s.sources[kind]
	since := s.watermarks.Get(ctx, kind)

	s.registry.Update(jobID, jobs.StateRunning, "fetching updated tickets", 10)
	records, err := source.FetchUpdatedSince(ctx, since)
	if err != nil {
		return "", fmt.Errorf("fetching from %s: %w", source.Name(), err)
	}

	s.registry.Update(jobID, jobs.StateRunning, fmt.Sprintf("reconciling %d records", len(records)), 40)
	result := s.reconciler.ReconcileBatch(ctx, source.Name(), records)

	s.registry.Update(jobID, jobs.StateRunning, "deriving escalations", 80)
	if _, err := s.deriver.Derive(ctx); err != nil {
		return "", fmt.Errorf("deriving escalations: %w", err)
	}

	s.watermarks.Advance(ctx, kind, latestUpdate(records))

	_ = s.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventSyncCompleted,
		Source:    source.Name(),
		Timestamp: time.Now().UTC(),
		Payload: events.SyncCompletedPayload{
			Kind:      string(kind),
			Processed: result.Processed,
			Skipped:   result.Skipped,
		},
	})
	return fmt.Sprintf("reconciled %d records, skipped %d", result.Processed, result.Skipped), nil
}

func (s *Service) runOrphanSweep(ctx context.Context, jobID string) (string, error) {
	s.registry.Update(jobID, jobs.StateRunning, "sweeping engineering queue", 20)
	result, err := s.orphans.Run(ctx)
	if err != nil {
		return "", fmt.Errorf("orphan sweep: %w", err)
	}

	_ = s.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventSyncCompleted,
		Timestamp: time.Now().UTC(),
		Payload: events.SyncCompletedPayload{
			Kind:      string(KindOrphans),
			Processed: result.Active,
			Skipped:   result.Skipped,
		},
	})
	return fmt.Sprintf("%d active incidents, %d linked, %d closed", result.Active, result.Linked, result.Resolved), nil
}

func latestUpdate(records []adapter.NormalizedRecord) time.Time {
	var latest time.Time
	for _, rec := range records {
		if rec.UpdatedAt.After(latest) {
			latest = rec.UpdatedAt
		}
	}
	return latest
}
