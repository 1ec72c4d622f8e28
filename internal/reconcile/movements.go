package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-reconciler/internal/domain"
	"github.com/spec-kit/support-reconciler/internal/events"
	"github.com/spec-kit/support-reconciler/internal/repository"
)

// dedupWindow absorbs batch-timing jitter between source systems: movements
// with the same natural key landing within this window collapse to one row.
const dedupWindow = 2 * time.Second

// MovementTracker captures upward support-level transitions between the
// prior and new canonical state. Status-only changes are not persisted; they
// remain visible through the request's own updated_at.
type MovementTracker struct {
	movements  repository.MovementRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewMovementTracker constructs the tracker.
func NewMovementTracker(movements repository.MovementRepository, dispatcher events.Dispatcher, logger *zap.Logger) *MovementTracker {
	return &MovementTracker{movements: movements, dispatcher: dispatcher, logger: logger}
}

// RecordIfTransitioned appends a movement when the level moved up. Re-running
// a reconciliation with an unchanged pair is a no-op.
func (t *MovementTracker) RecordIfTransitioned(ctx context.Context, req *domain.CanonicalRequest, priorLevel domain.SupportLevel, priorStatus domain.StatusCode, changedBy string, occurredAt time.Time) error {
	if req.SupportLevel.Rank() <= priorLevel.Rank() {
		return nil
	}

	exists, err := t.movements.ExistsNear(ctx, req.ID, priorLevel, req.SupportLevel, occurredAt, dedupWindow)
	if err != nil {
		return fmt.Errorf("movement dedup check for %s/%s: %w", req.Source, req.ExternalID, err)
	}
	if exists {
		return nil
	}

	movement := &domain.Movement{
		RequestID:  req.ID,
		ExternalID: req.ExternalID,
		Source:     req.Source,
		FromLevel:  priorLevel,
		ToLevel:    req.SupportLevel,
		FromStatus: priorStatus,
		ToStatus:   req.Status,
		ChangedBy:  changedBy,
		OccurredAt: occurredAt,
	}
	if err := t.movements.Insert(ctx, movement); err != nil {
		return fmt.Errorf("record movement for %s/%s: %w", req.Source, req.ExternalID, err)
	}

	t.logger.Info("movement recorded",
		zap.String("source", req.Source),
		zap.String("external_id", req.ExternalID),
		zap.String("from", string(priorLevel)),
		zap.String("to", string(req.SupportLevel)))

	_ = t.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventMovementRecorded,
		RequestID: req.ID,
		Source:    req.Source,
		Timestamp: occurredAt,
		Payload: events.MovementRecordedPayload{
			ExternalID: req.ExternalID,
			FromLevel:  priorLevel,
			ToLevel:    req.SupportLevel,
			ChangedBy:  changedBy,
		},
	})
	return nil
}
