package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// HealthResponse is the aggregated health snapshot.
type HealthResponse struct {
	Timestamp string   `json:"timestamp" example:"2026-08-24T12:00:00Z"`
	Status    string   `json:"status" example:"healthy"`
	Alerts    []string `json:"alerts,omitempty"`
}

// ReadyResponse reports database reachability.
type ReadyResponse struct {
	Status string `json:"status" example:"ready"`
}

// FreshnessResponse summarizes per-source staleness.
type FreshnessResponse struct {
	OverallStatus     string  `json:"overall_status" example:"healthy"`
	HealthyPercentage float64 `json:"healthy_percentage" example:"83.3"`
	TotalSources      int     `json:"total_sources" example:"6"`
	NeedsAttention    int     `json:"needs_attention" example:"1"`
}

// QualityResponse summarizes a validation pass.
type QualityResponse struct {
	TablesChecked  int `json:"tables_checked" example:"2"`
	TotalIssues    int `json:"total_issues" example:"1"`
	CriticalIssues int `json:"critical_issues" example:"0"`
	WarningIssues  int `json:"warning_issues" example:"1"`
}

// FailuresResponse summarizes collection gap detection.
type FailuresResponse struct {
	TablesChecked int `json:"tables_checked" example:"3"`
}

// AlertResponse is one alert.
type AlertResponse struct {
	ID       string `json:"id" example:"1756036800000_system_high_cpu_usage"`
	Name     string `json:"name" example:"High CPU Usage"`
	Severity string `json:"severity" example:"critical"`
	State    string `json:"state" example:"active"`
	Source   string `json:"source" example:"system"`
}

// AlertSummaryResponse is the active alert summary.
type AlertSummaryResponse struct {
	TotalActive int             `json:"total_active" example:"2"`
	StaleAlerts int             `json:"stale_alerts" example:"0"`
	Alerts      []AlertResponse `json:"alerts"`
}

// AlertListResponse is a plain alert listing.
type AlertListResponse struct {
	Alerts []AlertResponse `json:"alerts"`
}

// AlertActionRequest names who performed a lifecycle action, with an
// optional resolution note.
type AlertActionRequest struct {
	By   string `json:"by" example:"oncall"`
	Note string `json:"note,omitempty" example:"collector restarted"`
}

// TestAlertRequest raises a synthetic alert.
type TestAlertRequest struct {
	Severity string `json:"severity" example:"info"`
	Message  string `json:"message" example:"channel check"`
}

// CleanupStatusResponse reports the last cleanup run.
type CleanupStatusResponse struct {
	Running bool `json:"running" example:"false"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Code    string `json:"code" example:"ALERT_NOT_FOUND"`
	Message string `json:"message" example:"Alert not found or already resolved"`
}

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Dugout Monitoring API",
		Version:     "v1.0.0",
		Description: "Monitoring, alerting, and maintenance for the MLB statistics store",
		Host:        "localhost:8001",
		Path:        "/",
	})

	jsonOnly := endpoint.WithProduce([]mime.MIME{mime.JSON})

	endpoints := []*endpoint.EndPoint{
		endpoint.New(
			endpoint.GET,
			"/health",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Aggregated system health"),
			endpoint.WithDescription("Host, database, data freshness, and external dependency checks with recommendations. Always 200; the status is in the body."),
			jsonOnly,
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthResponse{}, "200", "Snapshot"),
			}),
		),

		endpoint.New(
			endpoint.GET,
			"/ready",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Readiness probe"),
			endpoint.WithDescription("Pings the monitored database; 503 when unreachable."),
			jsonOnly,
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ReadyResponse{}, "200", "Ready"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ReadyResponse{Status: "not ready"}, "503", "Not Ready"),
			}),
		),

		endpoint.New(
			endpoint.GET,
			"/monitoring/freshness",
			endpoint.WithTags("Monitoring"),
			endpoint.WithSummary("Per-source data freshness"),
			jsonOnly,
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(FreshnessResponse{}, "200", "Summary"),
			}),
		),

		endpoint.New(
			endpoint.GET,
			"/monitoring/quality",
			endpoint.WithTags("Monitoring"),
			endpoint.WithSummary("Data quality validation report"),
			jsonOnly,
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(QualityResponse{}, "200", "Report"),
			}),
		),

		endpoint.New(
			endpoint.GET,
			"/monitoring/failures",
			endpoint.WithTags("Monitoring"),
			endpoint.WithSummary("Collection gaps and low-volume days"),
			endpoint.WithParams(
				parameter.IntParam("window_hours", parameter.Query, parameter.WithDescription("Detection window in hours (default: 24, max: 720)")),
			),
			jsonOnly,
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(FailuresResponse{}, "200", "Report"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "HTTP_ERROR", Message: "window_hours must be between 1 and 720"}, "400", "Bad Request"),
			}),
		),

		endpoint.New(
			endpoint.GET,
			"/alerts",
			endpoint.WithTags("Alerts"),
			endpoint.WithSummary("Open alerts with summary counts"),
			jsonOnly,
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(AlertSummaryResponse{}, "200", "Open alerts"),
			}),
		),

		endpoint.New(
			endpoint.GET,
			"/alerts/history",
			endpoint.WithTags("Alerts"),
			endpoint.WithSummary("Recent alerts in any state"),
			endpoint.WithParams(
				parameter.IntParam("window_hours", parameter.Query, parameter.WithDescription("Trailing window in hours (default: 24)")),
				parameter.IntParam("limit", parameter.Query, parameter.WithDescription("Maximum number of alerts (default: 100)")),
			),
			jsonOnly,
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(AlertListResponse{}, "200", "History"),
			}),
		),

		endpoint.New(
			endpoint.POST,
			"/alerts/{id}/acknowledge",
			endpoint.WithTags("Alerts"),
			endpoint.WithSummary("Acknowledge an active alert"),
			endpoint.WithParams(
				parameter.StrParam("id", parameter.Path, parameter.WithDescription("Alert identifier")),
			),
			endpoint.WithBody(AlertActionRequest{}),
			jsonOnly,
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(AlertResponse{}, "200", "Acknowledged"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "INVALID_TRANSITION"}, "409", "Conflict"),
			}),
		),

		endpoint.New(
			endpoint.POST,
			"/alerts/{id}/resolve",
			endpoint.WithTags("Alerts"),
			endpoint.WithSummary("Resolve an open alert"),
			endpoint.WithParams(
				parameter.StrParam("id", parameter.Path, parameter.WithDescription("Alert identifier")),
			),
			endpoint.WithBody(AlertActionRequest{}),
			jsonOnly,
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(AlertResponse{}, "200", "Resolved"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "INVALID_TRANSITION"}, "409", "Conflict"),
			}),
		),

		endpoint.New(
			endpoint.POST,
			"/alerts/test",
			endpoint.WithTags("Alerts"),
			endpoint.WithSummary("Raise a synthetic alert to verify notification channels"),
			endpoint.WithBody(TestAlertRequest{}),
			jsonOnly,
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(AlertResponse{}, "201", "Raised"),
			}),
		),

		endpoint.New(
			endpoint.GET,
			"/cleanup/status",
			endpoint.WithTags("Cleanup"),
			endpoint.WithSummary("Last cleanup run and configured policies"),
			jsonOnly,
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(CleanupStatusResponse{}, "200", "Status"),
			}),
		),

		endpoint.New(
			endpoint.POST,
			"/cleanup/run",
			endpoint.WithTags("Cleanup"),
			endpoint.WithSummary("Start a cleanup run in the background"),
			jsonOnly,
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(CleanupStatusResponse{Running: true}, "202", "Started"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "CLEANUP_RUNNING"}, "409", "Conflict"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)
	return sw
}
