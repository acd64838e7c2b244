package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/statedge/dugout/internal/database"
	"github.com/statedge/dugout/internal/health"
)

// Pinger aliases the pool surface the readiness probe needs.
type Pinger = database.Pinger

type HealthHandler struct {
	aggregator *health.Aggregator
	db         Pinger
}

func NewHealthHandler(aggregator *health.Aggregator, db Pinger) *HealthHandler {
	return &HealthHandler{aggregator: aggregator, db: db}
}

// Health returns the full aggregated snapshot. The response is always 200
// with the status embedded: a degraded system must still be inspectable.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(h.aggregator.Snapshot(c.Context()))
}

// Ready reports whether the service can reach its database.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	if err := database.HealthCheck(c.Context(), h.db); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not ready",
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{"status": "ready"})
}
