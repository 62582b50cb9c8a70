package handler

import (
	"github.com/arturoeanton/commit-tracker/internal/service"
	"github.com/gofiber/fiber/v3"
)

// SyncHandler controls the background repository sync loop.
type SyncHandler struct {
	sync *service.SyncService
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(sync *service.SyncService) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// Register sets up sync control routes.
func (h *SyncHandler) Register(api fiber.Router) {
	sync := api.Group("/sync")
	sync.Post("/start", h.Start)
	sync.Post("/stop", h.Stop)
	sync.Post("/manual", h.Manual)
	sync.Get("/status", h.Status)
}

// Start launches the periodic sync loop. Starting an already running
// loop is a no-op.
func (h *SyncHandler) Start(c fiber.Ctx) error {
	h.sync.Start()
	return c.JSON(fiber.Map{"status": "started"})
}

// Stop halts the periodic sync loop and waits for the current cycle to
// finish.
func (h *SyncHandler) Stop(c fiber.Ctx) error {
	h.sync.Stop()
	return c.JSON(fiber.Map{"status": "stopped"})
}

// Manual runs one sync cycle immediately, independent of the loop.
func (h *SyncHandler) Manual(c fiber.Ctx) error {
	result, err := h.sync.ManualSync(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(result)
}

// Status reports the current state of the sync loop.
func (h *SyncHandler) Status(c fiber.Ctx) error {
	return c.JSON(h.sync.Status())
}
