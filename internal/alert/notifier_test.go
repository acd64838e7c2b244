package alert

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAlert(severity Severity) *Alert {
	return &Alert{
		ID:        "1756036800000_system_high_cpu_usage",
		Name:      "High CPU Usage",
		Severity:  severity,
		State:     StateActive,
		Source:    "system",
		Message:   "CPU at 95%",
		CreatedAt: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
	}
}

func TestNotify_RateLimiting(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(NotifierConfig{CustomWebhookURL: srv.URL}, slog.Default())
	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return base }

	a := testAlert(SeverityCritical)

	assert.True(t, n.Notify(context.Background(), a))

	// Two minutes later, inside the 5m critical window: dropped.
	n.now = func() time.Time { return base.Add(2 * time.Minute) }
	assert.False(t, n.Notify(context.Background(), a))

	// Past the window it goes out again.
	n.now = func() time.Time { return base.Add(6 * time.Minute) }
	assert.True(t, n.Notify(context.Background(), a))

	assert.Equal(t, int64(2), calls.Load())
	assert.Equal(t, 2, a.NotificationCount)
	require.NotNil(t, a.LastNotification)
	assert.Equal(t, base.Add(6*time.Minute), *a.LastNotification)
}

func TestNotify_RateLimitIsPerAlert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(NotifierConfig{CustomWebhookURL: srv.URL}, slog.Default())

	a := testAlert(SeverityCritical)
	b := testAlert(SeverityCritical)
	b.ID = "1756036800001_system_high_memory_usage"
	b.Name = "High Memory Usage"

	assert.True(t, n.Notify(context.Background(), a))
	assert.False(t, n.Notify(context.Background(), a), "same alert inside the window is limited")
	assert.True(t, n.Notify(context.Background(), b), "a different alert is not limited")
}

func TestNotifyResolved_BypassesRateLimit(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(NotifierConfig{CustomWebhookURL: srv.URL}, slog.Default())

	a := testAlert(SeverityCritical)
	require.True(t, n.Notify(context.Background(), a))

	a.State = StateResolved
	n.NotifyResolved(context.Background(), a)
	n.NotifyResolved(context.Background(), a)

	assert.Equal(t, int64(3), calls.Load())
	assert.Equal(t, 3, a.NotificationCount)
}

func TestWebhookPayload(t *testing.T) {
	var payload map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(NotifierConfig{CustomWebhookURL: srv.URL}, slog.Default())
	require.True(t, n.Notify(context.Background(), testAlert(SeverityWarning)))

	var event string
	require.NoError(t, json.Unmarshal(payload["event"], &event))
	assert.Equal(t, "alert.raised", event)

	var sent Alert
	require.NoError(t, json.Unmarshal(payload["alert"], &sent))
	assert.Equal(t, "High CPU Usage", sent.Name)
	assert.Equal(t, SeverityWarning, sent.Severity)
}

func TestSlackPayloadShape(t *testing.T) {
	var payload struct {
		Attachments []struct {
			Color  string `json:"color"`
			Title  string `json:"title"`
			Text   string `json:"text"`
			Fields []struct {
				Title string `json:"title"`
				Value string `json:"value"`
			} `json:"fields"`
		} `json:"attachments"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(NotifierConfig{SlackWebhookURL: srv.URL}, slog.Default())
	require.True(t, n.Notify(context.Background(), testAlert(SeverityCritical)))

	require.Len(t, payload.Attachments, 1)
	att := payload.Attachments[0]
	assert.Equal(t, "#d00000", att.Color)
	assert.Equal(t, "High CPU Usage", att.Title)
	assert.Equal(t, "CPU at 95%", att.Text)
	require.Len(t, att.Fields, 2)
	assert.Equal(t, "system", att.Fields[0].Value)
}

func TestNotify_DeadChannelDoesNotBlockOthers(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(NotifierConfig{
		CustomWebhookURL: srv.URL,
		SlackWebhookURL:  "http://127.0.0.1:1/unreachable",
	}, slog.Default())

	// Slack is unreachable; the generic webhook still delivers.
	a := testAlert(SeverityCritical)
	assert.True(t, n.Notify(context.Background(), a))
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, 1, a.NotificationCount)
}

func TestNotify_AllChannelsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNotifier(NotifierConfig{CustomWebhookURL: srv.URL}, slog.Default())

	a := testAlert(SeverityCritical)
	assert.False(t, n.Notify(context.Background(), a))
	assert.Zero(t, a.NotificationCount)
	assert.Nil(t, a.LastNotification)
}

func TestChannelSeverityFilters(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(NotifierConfig{SlackWebhookURL: srv.URL}, slog.Default())
	assert.Equal(t, 1, n.ChannelCount())

	// Slack only carries criticals.
	assert.False(t, n.Notify(context.Background(), testAlert(SeverityWarning)))
	assert.Equal(t, int64(0), calls.Load())

	assert.True(t, n.Notify(context.Background(), testAlert(SeverityCritical)))
	assert.Equal(t, int64(1), calls.Load())
}
