package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/statedge/dugout/internal/collection"
	"github.com/statedge/dugout/internal/freshness"
	"github.com/statedge/dugout/internal/quality"
)

// Window bounds for the failure detection endpoint.
const (
	defaultFailureWindowHours = 24
	maxFailureWindowHours     = 24 * 30
)

type MonitoringHandler struct {
	tracker   *freshness.Tracker
	validator *quality.Validator
	detector  *collection.Detector
}

func NewMonitoringHandler(tracker *freshness.Tracker, validator *quality.Validator, detector *collection.Detector) *MonitoringHandler {
	return &MonitoringHandler{
		tracker:   tracker,
		validator: validator,
		detector:  detector,
	}
}

// Freshness returns the per-source staleness summary. Sources that fail to
// answer are reported inside the summary, so the endpoint itself never 500s
// on a broken table.
func (h *MonitoringHandler) Freshness(c *fiber.Ctx) error {
	return c.JSON(h.tracker.Summary(c.Context()))
}

// Quality runs a full validation pass and returns the report.
func (h *MonitoringHandler) Quality(c *fiber.Ctx) error {
	return c.JSON(h.validator.ValidateAll(c.Context()))
}

// Failures returns collection gaps and low-volume days inside the requested
// window (default 24h).
func (h *MonitoringHandler) Failures(c *fiber.Ctx) error {
	hours := c.QueryInt("window_hours", defaultFailureWindowHours)
	if hours < 1 || hours > maxFailureWindowHours {
		return fiber.NewError(fiber.StatusBadRequest, "window_hours must be between 1 and 720")
	}

	report := h.detector.Detect(c.Context(), time.Duration(hours)*time.Hour)
	return c.JSON(report)
}
