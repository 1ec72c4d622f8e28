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

// EscalationDeriver replays the movement log into the validated escalation
// ledger. The projection is pure and re-runnable: given unchanged movements,
// a second run inserts nothing.
type EscalationDeriver struct {
	movements   repository.MovementRepository
	escalations repository.EscalationRepository
	requests    repository.RequestRepository
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// DeriverDependencies bundles collaborators for the deriver.
type DeriverDependencies struct {
	MovementRepo   repository.MovementRepository
	EscalationRepo repository.EscalationRepository
	RequestRepo    repository.RequestRepository
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewEscalationDeriver constructs the deriver.
func NewEscalationDeriver(deps DeriverDependencies) *EscalationDeriver {
	return &EscalationDeriver{
		movements:   deps.MovementRepo,
		escalations: deps.EscalationRepo,
		requests:    deps.RequestRepo,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
	}
}

// DeriveResult summarizes one replay.
type DeriveResult struct {
	Examined  int
	Created   int
	Discarded int
}

// Derive replays all level transitions. An L4 target without a corroborating
// current status on its request is reinterpreted as a lateral
// re-categorization to L2; pairs outside the legal strictly-increasing set
// are discarded as upstream data-quality artifacts, not raised.
func (d *EscalationDeriver) Derive(ctx context.Context) (DeriveResult, error) {
	var result DeriveResult

	movements, err := d.movements.ListTransitions(ctx)
	if err != nil {
		return result, fmt.Errorf("list movements: %w", err)
	}

	for _, movement := range movements {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Examined++

		req, err := d.requests.GetByID(ctx, movement.RequestID)
		if err != nil {
			d.logger.Warn("skipping movement, request lookup failed",
				zap.Int64("request_id", movement.RequestID), zap.Error(err))
			result.Discarded++
			continue
		}
		if req == nil {
			result.Discarded++
			continue
		}

		validated := movement.ToLevel
		downgraded := false
		if validated == domain.LevelL4 && !req.Status.CorroboratesEscalation() {
			validated = domain.LevelL2
			downgraded = true
		}

		if !domain.LegalEscalation(movement.FromLevel, validated) {
			result.Discarded++
			continue
		}

		created, err := d.escalations.Insert(ctx, &domain.Escalation{
			RequestID:  movement.RequestID,
			FromLevel:  movement.FromLevel,
			ToLevel:    validated,
			OccurredAt: movement.OccurredAt,
		})
		if err != nil {
			d.logger.Warn("escalation insert failed",
				zap.Int64("request_id", movement.RequestID), zap.Error(err))
			result.Discarded++
			continue
		}
		if !created {
			continue
		}

		result.Created++
		_ = d.dispatcher.Publish(ctx, events.Event{
			Type:      events.EventEscalationDerived,
			RequestID: movement.RequestID,
			Source:    movement.Source,
			Timestamp: time.Now().UTC(),
			Payload: events.EscalationDerivedPayload{
				FromLevel:  movement.FromLevel,
				ToLevel:    validated,
				Downgraded: downgraded,
			},
		})
	}

	d.logger.Info("escalation ledger derived",
		zap.Int("examined", result.Examined),
		zap.Int("created", result.Created),
		zap.Int("discarded", result.Discarded))
	return result, nil
}
