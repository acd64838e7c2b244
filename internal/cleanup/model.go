package cleanup

import "time"

// RetentionPolicy bounds how much history one table keeps. MinRecords is a
// hard floor: retention never shrinks a table below it, even when every row
// is older than the cutoff.
type RetentionPolicy struct {
	Table           string `json:"table"`
	TimestampColumn string `json:"timestamp_column"`
	RetentionDays   int    `json:"retention_days"`
	MinRecords      int64  `json:"min_records"`
}

// TableResult reports one table's retention pass.
type TableResult struct {
	Table       string        `json:"table"`
	RowsDeleted int64         `json:"rows_deleted"`
	RowsKept    int64         `json:"rows_kept"`
	BytesBefore int64         `json:"bytes_before"`
	BytesAfter  int64         `json:"bytes_after"`
	Cutoff      time.Time     `json:"cutoff"`
	Duration    time.Duration `json:"duration"`
	Skipped     bool          `json:"skipped"`
	SkipReason  string        `json:"skip_reason,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// DedupResult reports one table's deduplication pass.
type DedupResult struct {
	Table             string        `json:"table"`
	DuplicatesRemoved int64         `json:"duplicates_removed"`
	RowsKept          int64         `json:"rows_kept"`
	Duration          time.Duration `json:"duration"`
	Error             string        `json:"error,omitempty"`
}

// FileResult reports a filesystem sweep.
type FileResult struct {
	Directory    string `json:"directory"`
	FilesRemoved int    `json:"files_removed"`
	BytesFreed   int64  `json:"bytes_freed"`
	Error        string `json:"error,omitempty"`
}

// RunReport aggregates one full cleanup run. Individual failures are
// recorded per entry; a run always completes.
type RunReport struct {
	RunID        string        `json:"run_id"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	Retention    []TableResult `json:"retention"`
	Dedup        []DedupResult `json:"dedup"`
	LogCleanup   *FileResult   `json:"log_cleanup,omitempty"`
	TempCleanup  *FileResult   `json:"temp_cleanup,omitempty"`
	Operations   int           `json:"operations"`
	Successes    int           `json:"successes"`
	Errors       int           `json:"errors"`
	TotalDeleted int64         `json:"total_deleted"`
	SpaceFreedMB float64       `json:"space_freed_mb"`
}

// DedupSpec names the identity columns for one table's deduplication.
// Tiebreak picks which duplicate survives: the row with the greatest
// tiebreak value wins.
type DedupSpec struct {
	Table      string   `json:"table"`
	KeyColumns []string `json:"key_columns"`
	Tiebreak   string   `json:"tiebreak"`
}

// DefaultPolicies reflects how each source ages: Statcast is huge and loses
// value within a season, FanGraphs seasonal aggregates stay useful for
// years, weather is only needed near game time.
func DefaultPolicies() []RetentionPolicy {
	return []RetentionPolicy{
		{Table: "statcast_data", TimestampColumn: "collected_at", RetentionDays: 365, MinRecords: 50000},
		{Table: "fangraphs_batting", TimestampColumn: "collected_at", RetentionDays: 1095, MinRecords: 1000},
		{Table: "fangraphs_pitching", TimestampColumn: "collected_at", RetentionDays: 1095, MinRecords: 1000},
		{Table: "mlb_games", TimestampColumn: "collected_at", RetentionDays: 730, MinRecords: 500},
		{Table: "weather_data", TimestampColumn: "collected_at", RetentionDays: 180, MinRecords: 1000},
		{Table: "player_data", TimestampColumn: "collected_at", RetentionDays: 1095, MinRecords: 500},
	}
}

// DefaultDedupSpecs covers the tables where collectors are known to re-ingest
// overlapping windows.
func DefaultDedupSpecs() []DedupSpec {
	return []DedupSpec{
		{Table: "statcast_data", KeyColumns: []string{"player_name", "game_date", "pitch_type", "release_speed"}, Tiebreak: "collected_at"},
		{Table: "fangraphs_batting", KeyColumns: []string{"Name", "Team", "Season"}, Tiebreak: "collected_at"},
		{Table: "fangraphs_pitching", KeyColumns: []string{"Name", "Team", "Season"}, Tiebreak: "collected_at"},
		{Table: "mlb_games", KeyColumns: []string{"game_pk"}, Tiebreak: "collected_at"},
	}
}
