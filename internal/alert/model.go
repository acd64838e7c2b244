package alert

import (
	"fmt"
	"strings"
	"time"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// State is the lifecycle state of an alert. Valid transitions are
// ACTIVE -> ACKNOWLEDGED -> RESOLVED and ACTIVE -> RESOLVED; resolved
// alerts are terminal.
type State string

const (
	StateActive       State = "active"
	StateAcknowledged State = "acknowledged"
	StateResolved     State = "resolved"
)

// MetricKind tags an alert with the metric family it watches, so recovery
// evaluation can dispatch without parsing alert names.
type MetricKind string

const (
	MetricUnspecified MetricKind = ""
	MetricCPU         MetricKind = "cpu"
	MetricMemory      MetricKind = "memory"
	MetricDisk        MetricKind = "disk"
	MetricLatency     MetricKind = "latency"
)

// InferMetricKind is the fallback for alerts raised without an explicit
// kind: older callers encoded the metric in the alert name.
func InferMetricKind(name string) MetricKind {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "cpu"):
		return MetricCPU
	case strings.Contains(lower, "memory"):
		return MetricMemory
	case strings.Contains(lower, "disk"):
		return MetricDisk
	case strings.Contains(lower, "latency"):
		return MetricLatency
	default:
		return MetricUnspecified
	}
}

// Alert is one raised condition, persisted across restarts.
type Alert struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Severity       Severity   `json:"severity"`
	State          State      `json:"state"`
	Source         string     `json:"source"`
	Message        string     `json:"message"`
	MetricKind     MetricKind `json:"metric_kind,omitempty"`
	MetricValue    *float64   `json:"metric_value,omitempty"`
	Threshold      *float64   `json:"threshold,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`
	Stale          bool       `json:"stale,omitempty"`
	Notes          []string   `json:"notes,omitempty"`

	NotificationCount int        `json:"notification_count"`
	LastNotification  *time.Time `json:"last_notification,omitempty"`
}

// Kind returns the explicit metric kind, falling back to name inference.
func (a *Alert) Kind() MetricKind {
	if a.MetricKind != MetricUnspecified {
		return a.MetricKind
	}
	return InferMetricKind(a.Name)
}

// Open reports whether the alert still demands attention.
func (a *Alert) Open() bool {
	return a.State == StateActive || a.State == StateAcknowledged
}

// clone makes a deep copy. The manager only hands clones across its lock
// boundary, so callers can marshal or mutate them freely while the live
// alert keeps transitioning.
func (a *Alert) clone() *Alert {
	c := *a
	c.MetricValue = copyPtr(a.MetricValue)
	c.Threshold = copyPtr(a.Threshold)
	c.AcknowledgedAt = copyPtr(a.AcknowledgedAt)
	c.ResolvedAt = copyPtr(a.ResolvedAt)
	c.LastNotification = copyPtr(a.LastNotification)
	if a.Notes != nil {
		c.Notes = append([]string(nil), a.Notes...)
	}
	return &c
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// newID builds a stable, sortable alert id from the raise time and the
// alert's identity. Millisecond precision is enough: duplicate-window
// suppression prevents two alerts with the same identity inside 10 minutes.
func newID(name, source string, at time.Time) string {
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "_"))
	return fmt.Sprintf("%d_%s_%s", at.UnixMilli(), source, slug)
}

// Summary counts open alerts by severity and state, alongside the
// delivery and recovery configuration in effect.
type Summary struct {
	Timestamp           time.Time        `json:"timestamp"`
	TotalActive         int              `json:"total_active"`
	BySeverity          map[Severity]int `json:"by_severity"`
	ByState             map[State]int    `json:"by_state"`
	StaleAlerts         int              `json:"stale_alerts"`
	ChannelCount        int              `json:"channel_count"`
	AutoRecoveryEnabled bool             `json:"auto_recovery_enabled"`
	MaintenanceMode     bool             `json:"maintenance_mode"`
	Alerts              []*Alert         `json:"alerts"`
}
