package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statedge/dugout/internal/alert"
	"github.com/statedge/dugout/internal/api/middleware"
)

func newAlertApp(t *testing.T) (*fiber.App, *alert.Manager) {
	t.Helper()

	store, err := alert.NewInMemoryStore(slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	manager, err := alert.NewManager(store, nil, slog.Default(), alert.ManagerConfig{
		DuplicateWindow: 10 * time.Minute,
		StaleAfter:      2 * time.Hour,
		RetentionDays:   30,
	})
	require.NoError(t, err)

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(slog.Default()),
	})

	h := NewAlertHandler(manager)
	app.Get("/alerts", h.List)
	app.Get("/alerts/history", h.History)
	app.Post("/alerts/test", h.Test)
	app.Post("/alerts/:id/acknowledge", h.Acknowledge)
	app.Post("/alerts/:id/resolve", h.Resolve)

	return app, manager
}

func raiseOne(t *testing.T, manager *alert.Manager) *alert.Alert {
	t.Helper()

	a, raised, err := manager.Raise(context.Background(), alert.RaiseParams{
		Name:     "Statcast data stale",
		Severity: alert.SeverityWarning,
		Source:   "statcast_data",
		Message:  "no data for 7h",
	})
	require.NoError(t, err)
	require.True(t, raised)
	return a
}

func TestAlertList(t *testing.T) {
	app, manager := newAlertApp(t)
	raiseOne(t, manager)

	resp, err := app.Test(httptest.NewRequest("GET", "/alerts", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body alert.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.TotalActive)
	require.Len(t, body.Alerts, 1)
	assert.Equal(t, "Statcast data stale", body.Alerts[0].Name)
}

func TestAlertAcknowledgeAndResolve(t *testing.T) {
	app, manager := newAlertApp(t)
	a := raiseOne(t, manager)

	payload := bytes.NewBufferString(`{"by":"oncall"}`)
	req := httptest.NewRequest("POST", "/alerts/"+a.ID+"/acknowledge", payload)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var acked alert.Alert
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&acked))
	assert.Equal(t, alert.StateAcknowledged, acked.State)
	assert.Equal(t, "oncall", acked.AcknowledgedBy)

	// Acknowledging again conflicts.
	req = httptest.NewRequest("POST", "/alerts/"+a.ID+"/acknowledge", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 409, resp.StatusCode)

	// Resolve succeeds from acknowledged.
	req = httptest.NewRequest("POST", "/alerts/"+a.ID+"/resolve", bytes.NewBufferString(`{"by":"oncall","note":"collector restarted"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Empty(t, manager.Active())

	history, err := manager.History(0, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, []string{"collector restarted"}, history[0].Notes)
}

func TestAlertActions_UnknownID(t *testing.T) {
	app, _ := newAlertApp(t)

	resp, err := app.Test(httptest.NewRequest("POST", "/alerts/nope/acknowledge", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "ALERT_NOT_FOUND")

	resp, err = app.Test(httptest.NewRequest("POST", "/alerts/nope/resolve", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestAlertTest_DefaultsAndValidation(t *testing.T) {
	app, manager := newAlertApp(t)

	resp, err := app.Test(httptest.NewRequest("POST", "/alerts/test", nil))
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)

	active := manager.Active()
	require.Len(t, active, 1)
	assert.Equal(t, alert.SeverityInfo, active[0].Severity)
	assert.Equal(t, "api", active[0].Source)

	req := httptest.NewRequest("POST", "/alerts/test", bytes.NewBufferString(`{"severity":"catastrophic"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestAlertHistory(t *testing.T) {
	app, manager := newAlertApp(t)
	a := raiseOne(t, manager)
	require.True(t, manager.Resolve(context.Background(), a.ID, "ops", ""))

	resp, err := app.Test(httptest.NewRequest("GET", "/alerts/history?limit=10", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body struct {
		Alerts []*alert.Alert `json:"alerts"`
		Count  int            `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, alert.StateResolved, body.Alerts[0].State)

	resp, err = app.Test(httptest.NewRequest("GET", "/alerts/history?limit=0", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/alerts/history?window_hours=-1", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}
