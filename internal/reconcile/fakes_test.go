package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/support-reconciler/internal/adapter"
	"github.com/spec-kit/support-reconciler/internal/domain"
	"github.com/spec-kit/support-reconciler/internal/linkage"
)

// In-memory repository fakes mirroring the documented contracts of the SQL
// implementations.

type fakeRequestRepo struct {
	mu     sync.Mutex
	nextID int64
	byKey  map[string]*domain.CanonicalRequest
	byID   map[int64]*domain.CanonicalRequest
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{
		byKey: make(map[string]*domain.CanonicalRequest),
		byID:  make(map[int64]*domain.CanonicalRequest),
	}
}

func requestKey(externalID, source string) string {
	return source + "|" + externalID
}

func (f *fakeRequestRepo) GetByExternalID(_ context.Context, externalID, source string) (*domain.CanonicalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req, ok := f.byKey[requestKey(externalID, source)]; ok {
		clone := *req
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeRequestRepo) GetByID(_ context.Context, id int64) (*domain.CanonicalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req, ok := f.byID[id]; ok {
		clone := *req
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeRequestRepo) Upsert(_ context.Context, req *domain.CanonicalRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := requestKey(req.ExternalID, req.Source)
	if existing, ok := f.byKey[key]; ok {
		req.ID = existing.ID
		req.CreatedAt = existing.CreatedAt
		req.SupportLevel = domain.MaxLevel(existing.SupportLevel, req.SupportLevel)
		if req.LinkageRef == nil {
			req.LinkageRef = existing.LinkageRef
		}
	} else {
		f.nextID++
		req.ID = f.nextID
	}
	clone := *req
	f.byKey[key] = &clone
	f.byID[req.ID] = &clone
	return nil
}

type fakeMovementRepo struct {
	mu   sync.Mutex
	rows []domain.Movement
}

func (f *fakeMovementRepo) Insert(_ context.Context, movement *domain.Movement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.RequestID == movement.RequestID &&
			row.FromLevel == movement.FromLevel &&
			row.ToLevel == movement.ToLevel &&
			row.OccurredAt.Equal(movement.OccurredAt) {
			return nil
		}
	}
	movement.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, *movement)
	return nil
}

func (f *fakeMovementRepo) ExistsNear(_ context.Context, requestID int64, from, to domain.SupportLevel, occurredAt time.Time, window time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.RequestID != requestID || row.FromLevel != from || row.ToLevel != to {
			continue
		}
		delta := row.OccurredAt.Sub(occurredAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= window {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeMovementRepo) ListTransitions(_ context.Context) ([]domain.Movement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Movement
	for _, row := range f.rows {
		if row.FromLevel != row.ToLevel {
			result = append(result, row)
		}
	}
	return result, nil
}

type fakeEscalationRepo struct {
	mu   sync.Mutex
	rows []domain.Escalation
	keys map[string]struct{}
}

func newFakeEscalationRepo() *fakeEscalationRepo {
	return &fakeEscalationRepo{keys: make(map[string]struct{})}
}

func (f *fakeEscalationRepo) Insert(_ context.Context, escalation *domain.Escalation) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%d|%s|%s|%d", escalation.RequestID, escalation.FromLevel, escalation.ToLevel, escalation.OccurredAt.UnixNano())
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = struct{}{}
	escalation.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, *escalation)
	return true, nil
}

func (f *fakeEscalationRepo) ListByRequest(_ context.Context, requestID int64) ([]domain.Escalation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Escalation
	for _, row := range f.rows {
		if row.RequestID == requestID {
			result = append(result, row)
		}
	}
	return result, nil
}

type fakeOrphanRepo struct {
	mu    sync.Mutex
	byKey map[string]*domain.OrphanIncident
}

func newFakeOrphanRepo() *fakeOrphanRepo {
	return &fakeOrphanRepo{byKey: make(map[string]*domain.OrphanIncident)}
}

func unresolvedTeam(team string) bool {
	return team == "" || team == domain.TeamUnknown || team == "Unassigned"
}

func (f *fakeOrphanRepo) Upsert(_ context.Context, incident *domain.OrphanIncident) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.byKey[incident.IncidentKey]; ok {
		incident.ID = existing.ID
		incident.FirstSeenAt = existing.FirstSeenAt
		if unresolvedTeam(incident.Team) && !unresolvedTeam(existing.Team) {
			incident.Team = existing.Team
		}
		if incident.LinkageRef == nil {
			incident.LinkageRef = existing.LinkageRef
		}
		if existing.ReassignedToLevel != nil {
			incident.ReassignedToLevel = existing.ReassignedToLevel
		}
	} else {
		incident.ID = int64(len(f.byKey) + 1)
		incident.FirstSeenAt = time.Now().UTC()
	}
	incident.LastSeenAt = time.Now().UTC()
	incident.UpdatedAt = incident.LastSeenAt
	clone := *incident
	f.byKey[incident.IncidentKey] = &clone
	return nil
}

func (f *fakeOrphanRepo) ListActive(_ context.Context) ([]domain.OrphanIncident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.OrphanIncident
	for _, incident := range f.byKey {
		if !incident.Status.Terminal() {
			result = append(result, *incident)
		}
	}
	return result, nil
}

func (f *fakeOrphanRepo) MarkResolvedExcept(_ context.Context, activeKeys []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	active := make(map[string]struct{}, len(activeKeys))
	for _, key := range activeKeys {
		active[key] = struct{}{}
	}
	var closed int64
	for key, incident := range f.byKey {
		if incident.Status.Terminal() {
			continue
		}
		if _, ok := active[key]; !ok {
			incident.Status = domain.StatusResolved
			closed++
		}
	}
	return closed, nil
}

// Collaborator fakes.

type fakeResolver struct {
	byExternalID map[string]string
}

func (f *fakeResolver) Resolve(_ context.Context, ticket linkage.Ticket) (string, bool) {
	key, ok := f.byExternalID[ticket.ExternalID]
	return key, ok
}

type fakeDesk struct {
	name          string
	updated       []adapter.NormalizedRecord
	groupTickets  map[string][]adapter.NormalizedRecord
	conversations map[string][]adapter.Conversation
}

func (f *fakeDesk) Name() string {
	if f.name == "" {
		return domain.SourceServiceDesk
	}
	return f.name
}

func (f *fakeDesk) FetchUpdatedSince(_ context.Context, _ time.Time) ([]adapter.NormalizedRecord, error) {
	return f.updated, nil
}

func (f *fakeDesk) FetchGroupTickets(_ context.Context, groupName string) ([]adapter.NormalizedRecord, error) {
	return f.groupTickets[groupName], nil
}

func (f *fakeDesk) ListConversations(_ context.Context, externalID string) ([]adapter.Conversation, error) {
	return f.conversations[externalID], nil
}

type fakeTracker struct {
	issues map[string]adapter.Issue
}

func (f *fakeTracker) GetIssue(_ context.Context, key string) (*adapter.Issue, error) {
	if issue, ok := f.issues[key]; ok {
		clone := issue
		return &clone, nil
	}
	return nil, adapter.ErrIssueNotFound
}

func (f *fakeTracker) SearchIssues(_ context.Context, text string) ([]adapter.Issue, error) {
	var result []adapter.Issue
	lowered := strings.ToLower(text)
	for _, issue := range f.issues {
		if strings.Contains(strings.ToLower(issue.Summary), lowered) || strings.Contains(strings.ToLower(issue.Key), lowered) {
			result = append(result, issue)
		}
	}
	return result, nil
}
