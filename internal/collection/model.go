package collection

import "time"

// FailureType classifies a detected collection problem.
type FailureType string

const (
	FailureNoData      FailureType = "no_data"
	FailureGap         FailureType = "collection_gap"
	FailureLowVolume   FailureType = "low_volume"
	FailureCheckFailed FailureType = "check_failed"
)

// Severity of a collection failure.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Pattern declares the expected collection rhythm of one source: how often
// batches should land, how many records a healthy collection hour produces,
// and how long a silence can last before it counts as an outage.
type Pattern struct {
	Table                   string        `json:"table"`
	TimestampColumn         string        `json:"timestamp_column"`
	Frequency               time.Duration `json:"frequency"`
	MinRecordsPerCollection int64         `json:"min_records_per_collection"`
	MaxGap                  time.Duration `json:"max_gap"`
}

// Gap is one silent stretch between collection batches.
type Gap struct {
	Table    string        `json:"table"`
	Type     FailureType   `json:"failure_type"`
	Severity Severity      `json:"severity"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"`
}

// LowVolumeHour is a collection hour that produced fewer records than the
// pattern expects.
type LowVolumeHour struct {
	Table    string    `json:"table"`
	Hour     time.Time `json:"collection_hour"`
	Records  int64     `json:"records"`
	Expected int64     `json:"expected"`
}

// Report aggregates one failure-detection pass.
type Report struct {
	Timestamp      time.Time       `json:"timestamp"`
	WindowStart    time.Time       `json:"window_start"`
	TablesChecked  int             `json:"tables_checked"`
	Gaps           []Gap           `json:"gaps"`
	LowVolumeHours []LowVolumeHour `json:"low_volume_hours"`
	CheckErrors    []string        `json:"check_errors,omitempty"`
}

// CriticalCount is the number of critical gaps in the report.
func (r Report) CriticalCount() int {
	n := 0
	for _, g := range r.Gaps {
		if g.Severity == SeverityCritical {
			n++
		}
	}
	return n
}

// DefaultPatterns covers the collectors with known batch rhythms. FanGraphs
// lands one big daily batch, Statcast trickles in every couple of hours in
// season, game state refreshes every fifteen minutes on game days.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{Table: "fangraphs_batting", TimestampColumn: "collected_at", Frequency: 24 * time.Hour, MinRecordsPerCollection: 100, MaxGap: 48 * time.Hour},
		{Table: "statcast_data", TimestampColumn: "collected_at", Frequency: 2 * time.Hour, MinRecordsPerCollection: 10, MaxGap: 6 * time.Hour},
		{Table: "mlb_games", TimestampColumn: "collected_at", Frequency: 15 * time.Minute, MinRecordsPerCollection: 1, MaxGap: time.Hour},
	}
}
