package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/smtp"
	"strings"
	"time"
)

// NotifierConfig wires the delivery channels. A channel exists when its
// endpoint is configured; there are no separate enable flags in config.
type NotifierConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	ToEmails     []string

	SlackWebhookURL  string
	CustomWebhookURL string

	// Per-severity minimum interval between notifications for the same
	// alert. Critical alerts re-notify fastest.
	RateLimits map[Severity]time.Duration
}

// DefaultRateLimits returns the standard notification intervals.
func DefaultRateLimits() map[Severity]time.Duration {
	return map[Severity]time.Duration{
		SeverityCritical: 5 * time.Minute,
		SeverityWarning:  15 * time.Minute,
		SeverityInfo:     time.Hour,
	}
}

// Channel is one delivery target. A channel only receives the severities in
// its filter: email carries warnings and criticals, Slack criticals only,
// the generic webhook everything.
type Channel struct {
	Name       string
	Enabled    bool
	Severities []Severity

	send func(ctx context.Context, a *Alert, resolved bool) error
}

func (c *Channel) accepts(s Severity) bool {
	for _, sev := range c.Severities {
		if sev == s {
			return true
		}
	}
	return false
}

// Notifier fans an alert out to every channel that accepts its severity.
// Delivery failures are logged and never propagate: a dead Slack webhook
// must not stop the email path, and no channel failure may block alert
// creation.
type Notifier struct {
	cfg      NotifierConfig
	logger   *slog.Logger
	client   *http.Client
	channels []*Channel

	now func() time.Time
}

func NewNotifier(cfg NotifierConfig, logger *slog.Logger) *Notifier {
	if cfg.RateLimits == nil {
		cfg.RateLimits = DefaultRateLimits()
	}

	n := &Notifier{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}

	if len(cfg.ToEmails) > 0 && cfg.SMTPHost != "" {
		n.channels = append(n.channels, &Channel{
			Name:       "email",
			Enabled:    true,
			Severities: []Severity{SeverityWarning, SeverityCritical},
			send:       n.sendEmail,
		})
	}
	if cfg.SlackWebhookURL != "" {
		n.channels = append(n.channels, &Channel{
			Name:       "slack",
			Enabled:    true,
			Severities: []Severity{SeverityCritical},
			send:       n.sendSlack,
		})
	}
	if cfg.CustomWebhookURL != "" {
		n.channels = append(n.channels, &Channel{
			Name:       "webhook",
			Enabled:    true,
			Severities: []Severity{SeverityInfo, SeverityWarning, SeverityCritical},
			send:       n.sendWebhook,
		})
	}

	if len(n.channels) > 0 {
		logger.Info("notification channels configured", "count", len(n.channels))
	}

	return n
}

// ChannelCount reports how many delivery channels are enabled.
func (n *Notifier) ChannelCount() int {
	count := 0
	for _, c := range n.channels {
		if c.Enabled {
			count++
		}
	}
	return count
}

// Notify sends the alert to every accepting channel, subject to the
// per-severity rate limit measured from the alert's last notification.
// A successful dispatch updates the alert's notification bookkeeping; the
// caller owns persisting it. Returns true when at least one channel
// delivered.
func (n *Notifier) Notify(ctx context.Context, a *Alert) bool {
	now := n.now()
	limit := n.cfg.RateLimits[a.Severity]
	if a.LastNotification != nil && now.Sub(*a.LastNotification) < limit {
		n.logger.Debug("notification rate limited",
			"alert", a.Name,
			"severity", a.Severity,
			"since_last", now.Sub(*a.LastNotification),
		)
		return false
	}

	if !n.dispatch(ctx, a, false) {
		return false
	}

	a.LastNotification = &now
	a.NotificationCount++
	return true
}

// NotifyResolved announces a resolution. Resolutions bypass rate limiting:
// the all-clear is always worth sending.
func (n *Notifier) NotifyResolved(ctx context.Context, a *Alert) {
	if !n.dispatch(ctx, a, true) {
		return
	}
	now := n.now()
	a.LastNotification = &now
	a.NotificationCount++
}

func (n *Notifier) dispatch(ctx context.Context, a *Alert, resolved bool) bool {
	sent := false
	for _, c := range n.channels {
		if !c.Enabled || !c.accepts(a.Severity) {
			continue
		}
		if err := c.send(ctx, a, resolved); err != nil {
			n.logger.Error("notification failed",
				"channel", c.Name,
				"alert", a.ID,
				"error", err,
			)
			continue
		}
		sent = true
	}
	return sent
}

func (n *Notifier) sendEmail(_ context.Context, a *Alert, resolved bool) error {
	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(a.Severity)), a.Name)
	if resolved {
		subject = "[RESOLVED] " + a.Name
	}

	var body strings.Builder
	fmt.Fprintf(&body, "From: %s\r\n", n.cfg.FromEmail)
	fmt.Fprintf(&body, "To: %s\r\n", strings.Join(n.cfg.ToEmails, ", "))
	fmt.Fprintf(&body, "Subject: %s\r\n\r\n", subject)
	fmt.Fprintf(&body, "Alert: %s\nSource: %s\nSeverity: %s\nState: %s\nRaised: %s\n\n%s\n",
		a.Name, a.Source, a.Severity, a.State, a.CreatedAt.Format(time.RFC3339), a.Message)

	addr := fmt.Sprintf("%s:%d", n.cfg.SMTPHost, n.cfg.SMTPPort)
	var auth smtp.Auth
	if n.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", n.cfg.SMTPUsername, n.cfg.SMTPPassword, n.cfg.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, n.cfg.FromEmail, n.cfg.ToEmails, []byte(body.String())); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (n *Notifier) sendSlack(ctx context.Context, a *Alert, resolved bool) error {
	color := map[Severity]string{
		SeverityCritical: "#d00000",
		SeverityWarning:  "#f5a623",
		SeverityInfo:     "#36a64f",
	}[a.Severity]

	title := a.Name
	if resolved {
		title = "Resolved: " + a.Name
		color = "#36a64f"
	}

	payload := map[string]interface{}{
		"attachments": []map[string]interface{}{{
			"color": color,
			"title": title,
			"text":  a.Message,
			"fields": []map[string]interface{}{
				{"title": "Source", "value": a.Source, "short": true},
				{"title": "Severity", "value": string(a.Severity), "short": true},
			},
			"ts": a.CreatedAt.Unix(),
		}},
	}

	return n.post(ctx, n.cfg.SlackWebhookURL, payload)
}

func (n *Notifier) sendWebhook(ctx context.Context, a *Alert, resolved bool) error {
	event := "alert.raised"
	if resolved {
		event = "alert.resolved"
	}

	payload := map[string]interface{}{
		"event": event,
		"alert": a,
	}

	return n.post(ctx, n.cfg.CustomWebhookURL, payload)
}

func (n *Notifier) post(ctx context.Context, url string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("post: unexpected status %d", resp.StatusCode)
	}
	return nil
}
