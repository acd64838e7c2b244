package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/statedge/dugout/internal/alert"
	"github.com/statedge/dugout/internal/domain"
)

const (
	defaultHistoryLimit       = 100
	defaultHistoryWindowHours = 24
)

type AlertHandler struct {
	manager *alert.Manager
}

func NewAlertHandler(manager *alert.Manager) *AlertHandler {
	return &AlertHandler{manager: manager}
}

type alertActionRequest struct {
	By   string `json:"by"`
	Note string `json:"note"`
}

type testAlertRequest struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// List returns the alert summary: counts by severity and state plus the
// open alerts themselves.
func (h *AlertHandler) List(c *fiber.Ctx) error {
	return c.JSON(h.manager.Summarize())
}

// History returns alerts from the trailing window in any state, newest first.
func (h *AlertHandler) History(c *fiber.Ctx) error {
	hours := c.QueryInt("window_hours", defaultHistoryWindowHours)
	if hours < 1 {
		return fiber.NewError(fiber.StatusBadRequest, "window_hours must be positive")
	}

	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit < 1 {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be positive")
	}

	alerts, err := h.manager.History(time.Duration(hours)*time.Hour, limit)
	if err != nil {
		return domain.ErrInternal.WithError(err)
	}

	return c.JSON(fiber.Map{
		"alerts":       alerts,
		"count":        len(alerts),
		"window_hours": hours,
	})
}

// Acknowledge moves an active alert to acknowledged.
func (h *AlertHandler) Acknowledge(c *fiber.Ctx) error {
	id := c.Params("id")

	var req alertActionRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return domain.ErrBadRequest.WithError(err)
	}
	if req.By == "" {
		req.By = "api"
	}

	if _, ok := h.manager.Get(id); !ok {
		return domain.ErrAlertNotFound
	}
	if !h.manager.Acknowledge(id, req.By) {
		return domain.ErrInvalidTransition
	}

	a, _ := h.manager.Get(id)
	return c.JSON(a)
}

// Resolve closes an open alert.
func (h *AlertHandler) Resolve(c *fiber.Ctx) error {
	id := c.Params("id")

	var req alertActionRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return domain.ErrBadRequest.WithError(err)
	}
	if req.By == "" {
		req.By = "api"
	}

	if _, ok := h.manager.Get(id); !ok {
		return domain.ErrAlertNotFound
	}
	if !h.manager.Resolve(c.Context(), id, req.By, req.Note) {
		return domain.ErrInvalidTransition
	}

	return c.JSON(fiber.Map{"id": id, "state": alert.StateResolved})
}

// Test raises a synthetic alert so operators can verify the notification
// channels end to end.
func (h *AlertHandler) Test(c *fiber.Ctx) error {
	var req testAlertRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return domain.ErrBadRequest.WithError(err)
	}

	severity := alert.Severity(req.Severity)
	switch severity {
	case alert.SeverityInfo, alert.SeverityWarning, alert.SeverityCritical:
	case "":
		severity = alert.SeverityInfo
	default:
		return fiber.NewError(fiber.StatusBadRequest, "severity must be info, warning, or critical")
	}

	message := req.Message
	if message == "" {
		message = "Test alert raised via API"
	}

	a, raised, err := h.manager.Raise(c.Context(), alert.RaiseParams{
		Name:     "Test Alert",
		Severity: severity,
		Source:   "api",
		Message:  message,
	})
	if err != nil {
		return domain.ErrInternal.WithError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"raised": raised,
		"alert":  a,
	})
}
