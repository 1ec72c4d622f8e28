package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-reconciler/internal/adapter"
	"github.com/spec-kit/support-reconciler/internal/domain"
	"github.com/spec-kit/support-reconciler/internal/events"
	"github.com/spec-kit/support-reconciler/internal/jobs"
)

func newServiceHarness(desk *fakeDesk) (*Service, *jobs.Registry, *reconcilerHarness) {
	h := newReconcilerHarness(nil)
	registry := jobs.NewRegistry()
	service := NewService(ServiceDependencies{
		Sources: map[Kind]adapter.Source{
			KindServiceDesk: desk,
		},
		Reconciler: h.reconciler,
		Deriver:    h.deriver,
		Registry:   registry,
		Watermarks: NewWatermarkStore(nil, zap.NewNop()),
		Dispatcher: events.NewInMemoryDispatcher(),
		Logger:     zap.NewNop(),
		JobTimeout: time.Minute,
	})
	return service, registry, h
}

func waitForJob(t *testing.T, registry *jobs.Registry, jobID string) jobs.Status {
	t.Helper()
	var status jobs.Status
	require.Eventually(t, func() bool {
		var ok bool
		status, ok = registry.Get(jobID)
		return ok && status.State != jobs.StateRunning
	}, 5*time.Second, 10*time.Millisecond)
	return status
}

func TestTriggerRejectsUnknownKind(t *testing.T) {
	service, _, _ := newServiceHarness(&fakeDesk{})

	_, err := service.Trigger(Kind("mainframe"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown sync kind")
}

func TestTriggerRejectsUnconfiguredSource(t *testing.T) {
	service, _, _ := newServiceHarness(&fakeDesk{})

	_, err := service.Trigger(KindHelpdesk)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")

	_, err = service.Trigger(KindOrphans)
	require.Error(t, err)
}

func TestTriggerRunsSourceSyncToCompletion(t *testing.T) {
	ts := time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)
	desk := &fakeDesk{updated: []adapter.NormalizedRecord{
		serviceDeskRecord("SD-800", "App Support", domain.StatusOpen, ts),
		serviceDeskRecord("SD-801", "Contact Center", domain.StatusOpen, ts),
	}}
	service, registry, h := newServiceHarness(desk)

	jobID, err := service.Trigger(KindServiceDesk)
	require.NoError(t, err)

	status := waitForJob(t, registry, jobID)
	assert.Equal(t, jobs.StateCompleted, status.State)
	assert.Equal(t, "reconciled 2 records, skipped 0", status.Message)
	assert.Equal(t, 100, status.Progress)

	req, err := h.requests.GetByExternalID(context.Background(), "SD-800", domain.SourceServiceDesk)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, domain.LevelL3, req.SupportLevel)
}

func TestTriggerReportsSkippedRecords(t *testing.T) {
	ts := time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)
	desk := &fakeDesk{updated: []adapter.NormalizedRecord{
		serviceDeskRecord("SD-810", "App Support", domain.StatusOpen, ts),
		{Title: "no external id", UpdatedAt: ts},
	}}
	service, registry, _ := newServiceHarness(desk)

	jobID, err := service.Trigger(KindServiceDesk)
	require.NoError(t, err)

	status := waitForJob(t, registry, jobID)
	assert.Equal(t, jobs.StateCompleted, status.State)
	assert.Equal(t, "reconciled 1 records, skipped 1", status.Message)
}
