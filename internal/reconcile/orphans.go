package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-reconciler/internal/adapter"
	"github.com/spec-kit/support-reconciler/internal/config"
	"github.com/spec-kit/support-reconciler/internal/domain"
	"github.com/spec-kit/support-reconciler/internal/linkage"
	"github.com/spec-kit/support-reconciler/internal/repository"
)

// OrphanReconciler sweeps the engineering-adjacent queue for incidents that
// lack a canonical linkage, runs the resolver cascade on them, and maintains
// the satellite table without ever overwriting a human-curated team.
type OrphanReconciler struct {
	orphans  repository.OrphanRepository
	desk     adapter.ServiceDesk
	tracker  adapter.Tracker
	resolver LinkResolver
	rules    *config.Rules
	logger   *zap.Logger
}

// OrphanDependencies bundles collaborators for the sweep.
type OrphanDependencies struct {
	OrphanRepo repository.OrphanRepository
	Desk       adapter.ServiceDesk
	Tracker    adapter.Tracker
	Resolver   LinkResolver
	Rules      *config.Rules
	Logger     *zap.Logger
}

// NewOrphanReconciler constructs the sweep.
func NewOrphanReconciler(deps OrphanDependencies) *OrphanReconciler {
	return &OrphanReconciler{
		orphans:  deps.OrphanRepo,
		desk:     deps.Desk,
		tracker:  deps.Tracker,
		resolver: deps.Resolver,
		rules:    deps.Rules,
		logger:   deps.Logger,
	}
}

// OrphanResult summarizes one sweep.
type OrphanResult struct {
	Active   int
	Linked   int
	Resolved int64
	Skipped  int
}

// Run executes one sweep: fetch the active engineering-adjacent set, resolve
// team and linkage for unresolved incidents, refresh linked status for
// resolved ones, and close incidents that dropped out of the queue.
func (o *OrphanReconciler) Run(ctx context.Context) (OrphanResult, error) {
	var result OrphanResult

	active, err := o.desk.FetchGroupTickets(ctx, o.rules.OrphanGroup)
	if err != nil {
		return result, fmt.Errorf("fetch orphan queue %q: %w", o.rules.OrphanGroup, err)
	}

	known, err := o.orphans.ListActive(ctx)
	if err != nil {
		return result, fmt.Errorf("list known orphans: %w", err)
	}
	knownByKey := make(map[string]domain.OrphanIncident, len(known))
	for _, incident := range known {
		knownByKey[incident.IncidentKey] = incident
	}

	activeKeys := make([]string, 0, len(active))
	for _, rec := range active {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if rec.ExternalID == "" {
			result.Skipped++
			continue
		}
		activeKeys = append(activeKeys, rec.ExternalID)
		result.Active++

		incident := o.buildIncident(ctx, rec, knownByKey[rec.ExternalID])
		if incident.LinkageRef != nil {
			result.Linked++
		}
		if err := o.orphans.Upsert(ctx, &incident); err != nil {
			o.logger.Warn("orphan upsert failed", zap.String("key", incident.IncidentKey), zap.Error(err))
			result.Skipped++
		}
	}

	// Incidents gone from the active queue are closed, never deleted.
	closed, err := o.orphans.MarkResolvedExcept(ctx, activeKeys)
	if err != nil {
		return result, fmt.Errorf("close departed orphans: %w", err)
	}
	result.Resolved = closed

	o.logger.Info("orphan sweep finished",
		zap.Int("active", result.Active),
		zap.Int("linked", result.Linked),
		zap.Int64("closed", closed),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

func (o *OrphanReconciler) buildIncident(ctx context.Context, rec adapter.NormalizedRecord, stored domain.OrphanIncident) domain.OrphanIncident {
	incident := domain.OrphanIncident{
		IncidentKey:       rec.ExternalID,
		Title:             rec.Title,
		Team:              domain.TeamUnknown,
		Status:            rec.Status,
		LinkageRef:        stored.LinkageRef,
		ReassignedToLevel: stored.ReassignedToLevel,
	}

	// A human moved this item out of the engineering tier; keep its record
	// fresh but do not re-run resolution against it.
	if stored.ReassignedToLevel != nil {
		incident.Team = stored.Team
		return incident
	}

	if stored.TeamResolved() {
		incident.Team = stored.Team
		o.refreshLinkedStatus(ctx, &incident)
		return incident
	}

	if key, ok := o.resolveLinkage(ctx, rec); ok {
		incident.LinkageRef = &key
		if team, found := o.rules.TeamForPrefix(keyPrefix(key)); found {
			incident.Team = team
		}
		o.refreshLinkedStatus(ctx, &incident)
	}

	if incident.Team == domain.TeamUnknown {
		if team, ok := o.teamFromTitle(rec.Title); ok {
			incident.Team = team
		}
	}
	return incident
}

func (o *OrphanReconciler) resolveLinkage(ctx context.Context, rec adapter.NormalizedRecord) (string, bool) {
	if o.resolver == nil {
		return "", false
	}
	return o.resolver.Resolve(ctx, linkage.Ticket{
		ExternalID:   rec.ExternalID,
		Title:        rec.Title,
		Description:  rec.Description,
		CustomFields: rec.CustomFields,
	})
}

func (o *OrphanReconciler) refreshLinkedStatus(ctx context.Context, incident *domain.OrphanIncident) {
	if incident.LinkageRef == nil || *incident.LinkageRef == "" {
		return
	}
	issue, err := o.tracker.GetIssue(ctx, *incident.LinkageRef)
	if err != nil {
		if !errors.Is(err, adapter.ErrIssueNotFound) {
			o.logger.Warn("linked issue refresh failed",
				zap.String("key", incident.IncidentKey),
				zap.String("linked", *incident.LinkageRef),
				zap.Error(err))
		}
		return
	}
	incident.LinkedStatus = issue.Status
}

// teamFromTitle is the final fallback: a known project name appearing in the
// incident title attributes the item to that project's team.
func (o *OrphanReconciler) teamFromTitle(title string) (string, bool) {
	lowered := strings.ToLower(title)
	for _, project := range o.rules.Projects {
		if project.Name == "" || project.Team == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(project.Name)) {
			return project.Team, true
		}
	}
	return "", false
}

func keyPrefix(key string) string {
	if i := strings.IndexByte(key, '-'); i > 0 {
		return key[:i]
	}
	return key
}
