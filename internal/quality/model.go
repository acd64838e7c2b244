package quality

import "time"

// IssueType names the class of quality violation detected.
type IssueType string

const (
	IssueMissingColumns    IssueType = "missing_columns"
	IssueOutOfRangeValues  IssueType = "out_of_range_values"
	IssueExcessiveNulls    IssueType = "excessive_nulls"
	IssueSchemaCheckFailed IssueType = "schema_check_failed"
	IssueRangeCheckFailed  IssueType = "range_check_failed"
)

// Severity of a quality issue. Schema breakage is critical; value-level
// anomalies are warnings.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Range bounds an expected numeric column.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Rule declares the expectations for one table.
type Rule struct {
	Table           string           `json:"table"`
	RequiredColumns []string         `json:"required_columns"`
	NumericRanges   map[string]Range `json:"numeric_ranges"`
	NullTolerance   float64          `json:"null_tolerance"`
}

// Sample is one out-of-range value grouped by frequency.
type Sample struct {
	Value float64 `json:"value"`
	Count int64   `json:"count"`
}

// Issue is one detected data quality problem. Issues are rebuilt on every
// validation pass; they are not persisted entities.
type Issue struct {
	Source          string    `json:"source"`
	Table           string    `json:"table"`
	Type            IssueType `json:"issue_type"`
	Severity        Severity  `json:"severity"`
	Description     string    `json:"description"`
	AffectedRecords int64     `json:"affected_records"`
	DetectedAt      time.Time `json:"detected_at"`
	Column          string    `json:"column,omitempty"`
	Samples         []Sample  `json:"samples,omitempty"`
	NullPercentage  *float64  `json:"null_percentage,omitempty"`
}

// TableReport summarizes one table's validation pass.
type TableReport struct {
	TotalIssues    int     `json:"total_issues"`
	CriticalIssues int     `json:"critical_issues"`
	WarningIssues  int     `json:"warning_issues"`
	Issues         []Issue `json:"issues"`
}

// Report aggregates a full validation pass.
type Report struct {
	Timestamp      time.Time              `json:"timestamp"`
	TablesChecked  int                    `json:"tables_checked"`
	TotalIssues    int                    `json:"total_issues"`
	CriticalIssues int                    `json:"critical_issues"`
	WarningIssues  int                    `json:"warning_issues"`
	TableReports   map[string]TableReport `json:"table_reports"`
}

// DefaultRules covers the tables where bad values have bitten before:
// rate stats outside [0,1] from FanGraphs scrapes and physically impossible
// Statcast readings.
func DefaultRules() []Rule {
	return []Rule{
		{
			Table:           "fangraphs_batting",
			RequiredColumns: []string{"Name", "Team", "G", "PA", "AVG"},
			NumericRanges: map[string]Range{
				"AVG":  {Min: 0.0, Max: 1.0},
				"OBP":  {Min: 0.0, Max: 1.0},
				"SLG":  {Min: 0.0, Max: 4.0},
				"wRC+": {Min: 0, Max: 300},
			},
			NullTolerance: 0.05,
		},
		{
			Table:           "statcast_data",
			RequiredColumns: []string{"player_name", "game_date", "events"},
			NumericRanges: map[string]Range{
				"release_speed": {Min: 50.0, Max: 110.0},
				"launch_speed":  {Min: 0.0, Max: 130.0},
				"launch_angle":  {Min: -90.0, Max: 90.0},
			},
			NullTolerance: 0.10,
		},
	}
}
