package handler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"

	"github.com/statedge/dugout/internal/cleanup"
	"github.com/statedge/dugout/internal/domain"
)

// CleanupHandler exposes the cleanup engine. Runs execute in the background
// because a full pass over the Statcast table can take minutes; only one
// run may be in flight at a time.
type CleanupHandler struct {
	engine *cleanup.Engine
	logger *slog.Logger

	running atomic.Bool

	mu         sync.RWMutex
	lastReport *cleanup.RunReport
}

func NewCleanupHandler(engine *cleanup.Engine, logger *slog.Logger) *CleanupHandler {
	return &CleanupHandler{engine: engine, logger: logger}
}

// Status returns the most recent run report.
func (h *CleanupHandler) Status(c *fiber.Ctx) error {
	h.mu.RLock()
	report := h.lastReport
	h.mu.RUnlock()

	return c.JSON(fiber.Map{
		"running":  h.running.Load(),
		"last_run": report,
		"policies": cleanup.DefaultPolicies(),
		"dedup":    cleanup.DefaultDedupSpecs(),
	})
}

// Run starts a cleanup pass in the background and returns immediately.
func (h *CleanupHandler) Run(c *fiber.Ctx) error {
	if !h.running.CompareAndSwap(false, true) {
		return domain.ErrCleanupRunning
	}

	// Detached from the request context: the run must outlive the
	// HTTP request that started it.
	go func() {
		defer h.running.Store(false)

		report := h.engine.RunFull(context.Background())

		h.mu.Lock()
		h.lastReport = &report
		h.mu.Unlock()
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"started": true})
}

// RunScheduled is the scheduler entry point for the weekly run. It shares
// the single-run guard with the API path.
func (h *CleanupHandler) RunScheduled() {
	if !h.running.CompareAndSwap(false, true) {
		h.logger.Warn("scheduled cleanup skipped: run already in progress")
		return
	}
	defer h.running.Store(false)

	report := h.engine.RunFull(context.Background())

	h.mu.Lock()
	h.lastReport = &report
	h.mu.Unlock()
}
