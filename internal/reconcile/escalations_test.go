package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-reconciler/internal/domain"
	"github.com/spec-kit/support-reconciler/internal/events"
)

type deriverHarness struct {
	requests    *fakeRequestRepo
	movements   *fakeMovementRepo
	escalations *fakeEscalationRepo
	deriver     *EscalationDeriver
}

func newDeriverHarness() *deriverHarness {
	requests := newFakeRequestRepo()
	movements := &fakeMovementRepo{}
	escalations := newFakeEscalationRepo()
	deriver := NewEscalationDeriver(DeriverDependencies{
		MovementRepo:   movements,
		EscalationRepo: escalations,
		RequestRepo:    requests,
		Dispatcher:     events.NewInMemoryDispatcher(),
		Logger:         zap.NewNop(),
	})
	return &deriverHarness{
		requests:    requests,
		movements:   movements,
		escalations: escalations,
		deriver:     deriver,
	}
}

func (h *deriverHarness) seedRequest(t *testing.T, externalID string, level domain.SupportLevel, status domain.StatusCode) int64 {
	t.Helper()
	req := &domain.CanonicalRequest{
		ExternalID:   externalID,
		Source:       domain.SourceServiceDesk,
		Title:        "seeded request",
		Status:       status,
		SupportLevel: level,
		Team:         domain.TeamServiceOwners,
	}
	require.NoError(t, h.requests.Upsert(context.Background(), req))
	return req.ID
}

func (h *deriverHarness) seedMovement(t *testing.T, requestID int64, from, to domain.SupportLevel, occurredAt time.Time) {
	t.Helper()
	require.NoError(t, h.movements.Insert(context.Background(), &domain.Movement{
		RequestID:  requestID,
		FromLevel:  from,
		ToLevel:    to,
		OccurredAt: occurredAt,
	}))
}

func TestDeriveLegalPairs(t *testing.T) {
	h := newDeriverHarness()
	ctx := context.Background()
	base := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

	id := h.seedRequest(t, "SD-10", domain.LevelL4, domain.StatusAwaitingEscalation)
	h.seedMovement(t, id, domain.LevelL1, domain.LevelL2, base)
	h.seedMovement(t, id, domain.LevelL2, domain.LevelL3, base.Add(time.Hour))
	h.seedMovement(t, id, domain.LevelL3, domain.LevelL4, base.Add(2*time.Hour))

	result, err := h.deriver.Derive(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, result.Examined)
	require.Equal(t, 3, result.Created)
	require.Zero(t, result.Discarded)
}

func TestDeriveDiscardsDownwardAndUnknownPairs(t *testing.T) {
	h := newDeriverHarness()
	ctx := context.Background()
	base := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

	id := h.seedRequest(t, "SD-11", domain.LevelL3, domain.StatusOpen)
	h.seedMovement(t, id, domain.LevelL3, domain.LevelL1, base)
	h.seedMovement(t, id, domain.SupportLevel("L9"), domain.LevelL3, base.Add(time.Hour))

	result, err := h.deriver.Derive(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, result.Examined)
	require.Zero(t, result.Created)
	require.Equal(t, 2, result.Discarded)
}

func TestDeriveL4WithoutCorroborationDowngradesToL2(t *testing.T) {
	h := newDeriverHarness()
	ctx := context.Background()
	base := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

	// The request sits at L4 in the canonical store but its current status is
	// plain Open: the L4 target is not trusted and the pair lands as L1 -> L2.
	id := h.seedRequest(t, "SD-12", domain.LevelL4, domain.StatusOpen)
	h.seedMovement(t, id, domain.LevelL1, domain.LevelL4, base)

	result, err := h.deriver.Derive(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)

	ledger, err := h.escalations.ListByRequest(ctx, id)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	require.Equal(t, domain.LevelL1, ledger[0].FromLevel)
	require.Equal(t, domain.LevelL2, ledger[0].ToLevel)
}

func TestDeriveL4WithoutCorroborationFromL3IsDiscarded(t *testing.T) {
	h := newDeriverHarness()
	ctx := context.Background()
	base := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

	// Downgrading the target to L2 makes the pair L3 -> L2, which is not a
	// legal escalation, so nothing is written.
	id := h.seedRequest(t, "SD-13", domain.LevelL4, domain.StatusFrozen)
	h.seedMovement(t, id, domain.LevelL3, domain.LevelL4, base)

	result, err := h.deriver.Derive(ctx)
	require.NoError(t, err)
	require.Zero(t, result.Created)
	require.Equal(t, 1, result.Discarded)
}

func TestDeriveL4CorroboratedByStatus(t *testing.T) {
	for _, status := range []domain.StatusCode{domain.StatusResolved, domain.StatusClosed, domain.StatusAwaitingEscalation} {
		t.Run(status.String(), func(t *testing.T) {
			h := newDeriverHarness()
			ctx := context.Background()

			id := h.seedRequest(t, "SD-14", domain.LevelL4, status)
			h.seedMovement(t, id, domain.LevelL3, domain.LevelL4, time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC))

			result, err := h.deriver.Derive(ctx)
			require.NoError(t, err)
			require.Equal(t, 1, result.Created)

			ledger, err := h.escalations.ListByRequest(ctx, id)
			require.NoError(t, err)
			require.Len(t, ledger, 1)
			require.Equal(t, domain.LevelL4, ledger[0].ToLevel)
		})
	}
}

func TestDeriveIsRepeatable(t *testing.T) {
	h := newDeriverHarness()
	ctx := context.Background()
	base := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

	id := h.seedRequest(t, "SD-15", domain.LevelL3, domain.StatusOpen)
	h.seedMovement(t, id, domain.LevelL1, domain.LevelL3, base)

	first, err := h.deriver.Derive(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, first.Created)

	second, err := h.deriver.Derive(ctx)
	require.NoError(t, err)
	require.Zero(t, second.Created)

	ledger, err := h.escalations.ListByRequest(ctx, id)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
}

func TestDeriveSkipsMovementsForUnknownRequests(t *testing.T) {
	h := newDeriverHarness()
	ctx := context.Background()

	h.seedMovement(t, 999, domain.LevelL1, domain.LevelL2, time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC))

	result, err := h.deriver.Derive(ctx)
	require.NoError(t, err)
	require.Zero(t, result.Created)
	require.Equal(t, 1, result.Discarded)
}
