package api

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"

	"github.com/statedge/dugout/internal/api/docs"
	"github.com/statedge/dugout/internal/api/handler"
	"github.com/statedge/dugout/internal/api/middleware"
	"github.com/statedge/dugout/internal/collection"
	"github.com/statedge/dugout/internal/freshness"
	"github.com/statedge/dugout/internal/health"
	"github.com/statedge/dugout/internal/quality"
)

// Dependencies are the monitoring components the routes expose. Alerts and
// Cleanup handlers are passed pre-built because the scheduler shares them.
type Dependencies struct {
	Tracker    *freshness.Tracker
	Validator  *quality.Validator
	Detector   *collection.Detector
	Aggregator *health.Aggregator
	Alerts     *handler.AlertHandler
	Cleanup    *handler.CleanupHandler
	DB         handler.Pinger
}

type Router struct {
	app    *fiber.App
	logger *slog.Logger
	deps   *Dependencies
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Dugout Monitoring API",
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Swagger documentation
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	// Health endpoints
	healthHandler := handler.NewHealthHandler(r.deps.Aggregator, r.deps.DB)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	// Monitoring endpoints
	monitoring := handler.NewMonitoringHandler(r.deps.Tracker, r.deps.Validator, r.deps.Detector)
	mon := r.app.Group("/monitoring")
	mon.Get("/freshness", monitoring.Freshness)
	mon.Get("/quality", monitoring.Quality)
	mon.Get("/failures", monitoring.Failures)

	// Alert lifecycle
	alerts := r.app.Group("/alerts")
	alerts.Get("/", r.deps.Alerts.List)
	alerts.Get("/history", r.deps.Alerts.History)
	alerts.Post("/test", r.deps.Alerts.Test)
	alerts.Post("/:id/acknowledge", r.deps.Alerts.Acknowledge)
	alerts.Post("/:id/resolve", r.deps.Alerts.Resolve)

	// Cleanup
	cleanupGroup := r.app.Group("/cleanup")
	cleanupGroup.Get("/status", r.deps.Cleanup.Status)
	cleanupGroup.Post("/run", r.deps.Cleanup.Run)
}

// App exposes the underlying fiber app for tests.
func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(port int) error {
	return r.app.Listen(fmt.Sprintf(":%d", port))
}

func (r *Router) Shutdown() error {
	return r.app.Shutdown()
}
