// Package reconcile folds normalized source records into the canonical store
// under the support-level ratchet, and derives the movement and escalation
// ledgers from the resulting transitions.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-reconciler/internal/adapter"
	"github.com/spec-kit/support-reconciler/internal/categorize"
	"github.com/spec-kit/support-reconciler/internal/domain"
	"github.com/spec-kit/support-reconciler/internal/events"
	"github.com/spec-kit/support-reconciler/internal/linkage"
	"github.com/spec-kit/support-reconciler/internal/repository"
)

// LinkResolver is the slice of the linkage resolver the engine needs.
type LinkResolver interface {
	Resolve(ctx context.Context, ticket linkage.Ticket) (string, bool)
}

// Reconciler upserts normalized records keyed by (external_id, source).
type Reconciler struct {
	requests    repository.RequestRepository
	categorizer *categorize.Engine
	resolver    LinkResolver
	movements   *MovementTracker
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// ReconcilerDependencies bundles collaborators for the engine.
type ReconcilerDependencies struct {
	RequestRepo repository.RequestRepository
	Categorizer *categorize.Engine
	Resolver    LinkResolver
	Movements   *MovementTracker
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewReconciler constructs the engine.
func NewReconciler(deps ReconcilerDependencies) *Reconciler {
	return &Reconciler{
		requests:    deps.RequestRepo,
		categorizer: deps.Categorizer,
		resolver:    deps.Resolver,
		movements:   deps.Movements,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
	}
}

// BatchResult summarizes one reconciled batch.
type BatchResult struct {
	Processed int
	Skipped   int
}

// Reconcile upserts one record. Every field follows the incoming record
// except support_level, which only ratchets upward; a ticket re-queued at a
// lower operational queue never de-escalates in the governance view.
func (r *Reconciler) Reconcile(ctx context.Context, source string, rec adapter.NormalizedRecord) (*domain.CanonicalRequest, error) {
	category := r.categorizer.Categorize(categorize.Input{
		Source:     source,
		GroupName:  rec.GroupName,
		Status:     rec.Status,
		StatusText: rec.StatusText,
	})

	existing, err := r.requests.GetByExternalID(ctx, rec.ExternalID, source)
	if err != nil {
		return nil, fmt.Errorf("load canonical record %s/%s: %w", source, rec.ExternalID, err)
	}

	req := &domain.CanonicalRequest{
		ExternalID:     rec.ExternalID,
		Source:         source,
		Title:          rec.Title,
		Description:    rec.Description,
		Status:         rec.Status,
		Priority:       rec.Priority,
		Category:       rec.Category,
		RequesterEmail: rec.RequesterEmail,
		Assignee:       rec.Assignee,
		SupportLevel:   category.Level,
		Team:           category.Team,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
	if rec.Status.Terminal() {
		resolvedAt := rec.UpdatedAt
		req.ResolvedAt = &resolvedAt
	}
	if ref := r.resolveLinkage(ctx, source, rec, existing); ref != "" {
		req.LinkageRef = &ref
	}

	priorLevel := domain.SupportLevel("")
	priorStatus := domain.StatusCode(0)
	if existing != nil {
		req.ID = existing.ID
		req.CreatedAt = existing.CreatedAt
		req.SupportLevel = domain.MaxLevel(existing.SupportLevel, category.Level)
		priorLevel = existing.SupportLevel
		priorStatus = existing.Status
	}

	if err := r.requests.Upsert(ctx, req); err != nil {
		return nil, fmt.Errorf("upsert canonical record %s/%s: %w", source, rec.ExternalID, err)
	}

	if existing != nil {
		if err := r.movements.RecordIfTransitioned(ctx, req, priorLevel, priorStatus, "sync:"+source, rec.UpdatedAt); err != nil {
			return nil, err
		}
	}

	_ = r.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventRequestReconciled,
		RequestID: req.ID,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Payload: events.RequestReconciledPayload{
			ExternalID: req.ExternalID,
			Level:      req.SupportLevel,
			Team:       req.Team,
			Created:    existing == nil,
		},
	})
	return req, nil
}

// ReconcileBatch processes records in adapter order. A failure for one record
// is logged and skipped; it never aborts the rest of the batch.
func (r *Reconciler) ReconcileBatch(ctx context.Context, source string, records []adapter.NormalizedRecord) BatchResult {
	var result BatchResult
	for _, rec := range records {
		if ctx.Err() != nil {
			result.Skipped += len(records) - result.Processed - result.Skipped
			break
		}
		if rec.ExternalID == "" {
			r.logger.Warn("skipping record without external id", zap.String("source", source), zap.String("title", rec.Title))
			result.Skipped++
			continue
		}
		if _, err := r.Reconcile(ctx, source, rec); err != nil {
			r.logger.Warn("record reconciliation failed",
				zap.String("source", source),
				zap.String("external_id", rec.ExternalID),
				zap.Error(err))
			result.Skipped++
			continue
		}
		result.Processed++
	}
	return result
}

// resolveLinkage runs the cascade for service-desk records that do not carry
// a verified reference yet. Helpdesk records have no engineering linkage and
// tracker records are their own reference.
func (r *Reconciler) resolveLinkage(ctx context.Context, source string, rec adapter.NormalizedRecord, existing *domain.CanonicalRequest) string {
	if source != domain.SourceServiceDesk || r.resolver == nil {
		return ""
	}
	if existing != nil && existing.LinkageRef != nil && *existing.LinkageRef != "" {
		return *existing.LinkageRef
	}
	key, ok := r.resolver.Resolve(ctx, linkage.Ticket{
		ExternalID:   rec.ExternalID,
		Title:        rec.Title,
		Description:  rec.Description,
		CustomFields: rec.CustomFields,
	})
	if !ok {
		return ""
	}
	return key
}
