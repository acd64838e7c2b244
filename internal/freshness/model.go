package freshness

import "time"

// Level classifies how stale a source's data is relative to its cadence.
type Level string

const (
	LevelFresh    Level = "fresh"
	LevelStale    Level = "stale"
	LevelCritical Level = "critical"
	LevelMissing  Level = "missing"
)

// SourceStatus is the operational status derived from the freshness level.
type SourceStatus string

const (
	StatusHealthy  SourceStatus = "healthy"
	StatusDegraded SourceStatus = "degraded"
	StatusFailed   SourceStatus = "failed"
	StatusUnknown  SourceStatus = "unknown"
)

// SourceConfig describes the expected update cadence of one monitored table.
// Daily sources get generous windows; live-game sources get sub-hour windows.
type SourceConfig struct {
	Table           string        `json:"table"`
	TimestampColumn string        `json:"timestamp_column"`
	FreshThreshold  time.Duration `json:"fresh_threshold"`
	CriticalAfter   time.Duration `json:"critical_after"`
}

// Metric is the freshness snapshot for one source, recomputed on every pass.
type Metric struct {
	Source             string        `json:"source"`
	Table              string        `json:"table"`
	LastUpdate         *time.Time    `json:"last_update,omitempty"`
	RecordCount        int64         `json:"record_count"`
	FreshThresholdHrs  float64       `json:"freshness_threshold_hours"`
	Level              Level         `json:"level"`
	StalenessHours     *float64      `json:"staleness_hours,omitempty"`
	NextExpectedUpdate *time.Time    `json:"next_expected_update,omitempty"`
	Status             SourceStatus  `json:"status"`
	Error              string        `json:"error,omitempty"`
}

// HealthSummary aggregates freshness across all monitored sources.
type HealthSummary struct {
	Timestamp         time.Time      `json:"timestamp"`
	OverallStatus     SourceStatus   `json:"overall_status"`
	HealthyPercentage float64        `json:"healthy_percentage"`
	SourceCounts      map[Level]int  `json:"source_counts"`
	TotalSources      int            `json:"total_sources"`
	NeedsAttention    int            `json:"needs_attention"`
	Metrics           []Metric       `json:"metrics"`
}

// DefaultSources mirrors the cadences of the MLB collectors: FanGraphs and
// player data land daily, Statcast every two hours in season, game state
// every fifteen minutes, weather hourly.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{Table: "fangraphs_batting", TimestampColumn: "collected_at", FreshThreshold: 24 * time.Hour, CriticalAfter: 48 * time.Hour},
		{Table: "fangraphs_pitching", TimestampColumn: "collected_at", FreshThreshold: 24 * time.Hour, CriticalAfter: 48 * time.Hour},
		{Table: "statcast_data", TimestampColumn: "collected_at", FreshThreshold: 2 * time.Hour, CriticalAfter: 6 * time.Hour},
		{Table: "mlb_games", TimestampColumn: "collected_at", FreshThreshold: 15 * time.Minute, CriticalAfter: time.Hour},
		{Table: "weather_data", TimestampColumn: "collected_at", FreshThreshold: time.Hour, CriticalAfter: 4 * time.Hour},
		{Table: "player_data", TimestampColumn: "collected_at", FreshThreshold: 24 * time.Hour, CriticalAfter: 72 * time.Hour},
	}
}
