package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-reconciler/internal/jobs"
	"github.com/spec-kit/support-reconciler/internal/reconcile"
	apperrors "github.com/spec-kit/support-reconciler/pkg/util"
)

// SyncHandler exposes manual sync triggers and job-status polling.
type SyncHandler struct {
	syncs    *reconcile.Service
	registry *jobs.Registry
}

// NewSyncHandler returns a new handler instance.
func NewSyncHandler(syncs *reconcile.Service, registry *jobs.Registry) *SyncHandler {
	return &SyncHandler{syncs: syncs, registry: registry}
}

// Trigger starts a sync of the requested kind and returns its job id.
func (h *SyncHandler) Trigger(c *fiber.Ctx) error {
	kind := c.Params("kind")
	if !reconcile.ValidKind(kind) {
		return apperrors.NewValidationError("unknown sync kind", fiber.Map{"kind": kind})
	}

	jobID, err := h.syncs.Trigger(reconcile.Kind(kind))
	if err != nil {
		return apperrors.NewUnavailable(err.Error(), fiber.Map{"kind": kind})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": jobID})
}

// JobStatus returns the status of one job.
func (h *SyncHandler) JobStatus(c *fiber.Ctx) error {
	status, ok := h.registry.Get(c.Params("id"))
	if !ok {
		return apperrors.NewNotFound("job", fiber.Map{"id": c.Params("id")})
	}
	return c.JSON(status)
}

// ListJobs returns every known job.
func (h *SyncHandler) ListJobs(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"jobs": h.registry.List()})
}
