package health

import "time"

// Status of one health check or of the whole system. Severity is ordered:
// critical > warning > healthy > unknown for aggregation purposes.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusUnknown  Status = "unknown"
)

// worse reports whether a is more severe than b.
func worse(a, b Status) bool {
	rank := map[Status]int{
		StatusUnknown:  0,
		StatusHealthy:  1,
		StatusWarning:  2,
		StatusCritical: 3,
	}
	return rank[a] > rank[b]
}

// Check is the result of probing one component.
type Check struct {
	Name      string             `json:"name"`
	Status    Status             `json:"status"`
	LatencyMs float64            `json:"latency_ms,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Message   string             `json:"message,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// Snapshot is one full health evaluation. Snapshots are cached briefly so
// dashboard polling does not hammer the database.
type Snapshot struct {
	Timestamp       time.Time        `json:"timestamp"`
	Status          Status           `json:"status"`
	Checks          map[string]Check `json:"checks"`
	Alerts          []string         `json:"alerts,omitempty"`
	Recommendations []string         `json:"recommendations,omitempty"`
}

// Thresholds hold the warning/critical lines per metric. Percentages for
// the resource metrics, seconds for the latency metrics.
type Thresholds struct {
	CPUWarning       float64
	CPUCritical      float64
	MemoryWarning    float64
	MemoryCritical   float64
	DiskWarning      float64
	DiskCritical     float64
	ConnsWarning     float64
	ConnsCritical    float64
	QueryWarningSec  float64
	QueryCriticalSec float64
	APIWarningSec    float64
	APICriticalSec   float64

	// Data older than this raises a staleness warning regardless of the
	// per-source freshness windows.
	StalenessWarning time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		CPUWarning:       70,
		CPUCritical:      90,
		MemoryWarning:    80,
		MemoryCritical:   95,
		DiskWarning:      85,
		DiskCritical:     95,
		ConnsWarning:     80,
		ConnsCritical:    95,
		QueryWarningSec:  1,
		QueryCriticalSec: 3,
		APIWarningSec:    5,
		APICriticalSec:   10,
		StalenessWarning: 6 * time.Hour,
	}
}

// evaluate classifies a reading against its warning and critical lines.
func evaluate(value, warning, critical float64) Status {
	switch {
	case value >= critical:
		return StatusCritical
	case value >= warning:
		return StatusWarning
	default:
		return StatusHealthy
	}
}

// SystemMetrics are the host readings collected per evaluation. Load and
// uptime are informational; only the percentages have thresholds.
type SystemMetrics struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
	Load1         float64
	UptimeSecs    uint64
}

// Probe is one external dependency to check with a GET request.
type Probe struct {
	Name string
	URL  string
}
