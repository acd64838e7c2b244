package collection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/statedge/dugout/internal/database"
)

// Detector finds collection gaps and low-volume days in the monitored tables.
type Detector struct {
	db       database.Querier
	logger   *slog.Logger
	patterns []Pattern

	now func() time.Time
}

func NewDetector(db database.Querier, logger *slog.Logger, patterns []Pattern) *Detector {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}

	return &Detector{
		db:       db,
		logger:   logger,
		patterns: patterns,
		now:      time.Now,
	}
}

// DetectGaps finds silent stretches for one pattern inside the window ending
// now. Collection timestamps are bucketed by hour; a delta between adjacent
// buckets longer than twice the expected frequency is a gap. A completely
// empty window is one critical gap covering the whole window.
func (d *Detector) DetectGaps(ctx context.Context, pattern Pattern, window time.Duration) ([]Gap, error) {
	if err := database.CheckIdent(pattern.Table); err != nil {
		return nil, fmt.Errorf("detect gaps: %w", err)
	}
	if err := database.CheckIdent(pattern.TimestampColumn); err != nil {
		return nil, fmt.Errorf("detect gaps: %w", err)
	}

	now := d.now()
	windowStart := now.Add(-window)
	col := database.QuoteIdent(pattern.TimestampColumn)

	query := fmt.Sprintf(
		`SELECT DATE_TRUNC('hour', %s) AS bucket
		 FROM %s
		 WHERE %s >= $1
		 GROUP BY bucket
		 ORDER BY bucket`,
		col, pattern.Table, col,
	)

	rows, err := d.db.Query(ctx, query, windowStart)
	if err != nil {
		return nil, fmt.Errorf("detect gaps for %s: %w", pattern.Table, err)
	}
	defer rows.Close()

	var buckets []time.Time
	for rows.Next() {
		var b time.Time
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("detect gaps for %s: %w", pattern.Table, err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("detect gaps for %s: %w", pattern.Table, err)
	}

	if len(buckets) == 0 {
		return []Gap{{
			Table:    pattern.Table,
			Type:     FailureNoData,
			Severity: SeverityCritical,
			Start:    windowStart,
			End:      now,
			Duration: window,
		}}, nil
	}

	var gaps []Gap
	for i := 1; i < len(buckets); i++ {
		delta := buckets[i].Sub(buckets[i-1])
		if delta <= 2*pattern.Frequency {
			continue
		}

		severity := SeverityWarning
		if delta >= pattern.MaxGap {
			severity = SeverityCritical
		}

		gaps = append(gaps, Gap{
			Table:    pattern.Table,
			Type:     FailureGap,
			Severity: severity,
			Start:    buckets[i-1],
			End:      buckets[i],
			Duration: delta,
		})
	}

	return gaps, nil
}

// DetectLowVolume finds collection hours inside the window whose record
// count fell short of the pattern's per-collection minimum, newest first.
func (d *Detector) DetectLowVolume(ctx context.Context, pattern Pattern, window time.Duration) ([]LowVolumeHour, error) {
	if err := database.CheckIdent(pattern.Table); err != nil {
		return nil, fmt.Errorf("detect low volume: %w", err)
	}
	if err := database.CheckIdent(pattern.TimestampColumn); err != nil {
		return nil, fmt.Errorf("detect low volume: %w", err)
	}

	windowStart := d.now().Add(-window)
	col := database.QuoteIdent(pattern.TimestampColumn)

	query := fmt.Sprintf(
		`SELECT DATE_TRUNC('hour', %s) AS collection_hour, COUNT(*) AS records
		 FROM %s
		 WHERE %s >= $1
		 GROUP BY collection_hour
		 HAVING COUNT(*) < $2
		 ORDER BY collection_hour DESC`,
		col, pattern.Table, col,
	)

	rows, err := d.db.Query(ctx, query, windowStart, pattern.MinRecordsPerCollection)
	if err != nil {
		return nil, fmt.Errorf("detect low volume for %s: %w", pattern.Table, err)
	}
	defer rows.Close()

	var hours []LowVolumeHour
	for rows.Next() {
		hour := LowVolumeHour{Table: pattern.Table, Expected: pattern.MinRecordsPerCollection}
		if err := rows.Scan(&hour.Hour, &hour.Records); err != nil {
			return nil, fmt.Errorf("detect low volume for %s: %w", pattern.Table, err)
		}
		hours = append(hours, hour)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("detect low volume for %s: %w", pattern.Table, err)
	}

	return hours, nil
}

// Detect runs gap and volume detection over every pattern. Per-table check
// failures are collected into the report so one broken table never hides the
// rest.
func (d *Detector) Detect(ctx context.Context, window time.Duration) Report {
	now := d.now()
	report := Report{
		Timestamp:   now,
		WindowStart: now.Add(-window),
	}

	for _, pattern := range d.patterns {
		report.TablesChecked++

		gaps, err := d.DetectGaps(ctx, pattern, window)
		if err != nil {
			d.logger.Error("gap detection failed", "table", pattern.Table, "error", err)
			report.CheckErrors = append(report.CheckErrors, err.Error())
		} else {
			report.Gaps = append(report.Gaps, gaps...)
		}

		hours, err := d.DetectLowVolume(ctx, pattern, window)
		if err != nil {
			d.logger.Error("volume detection failed", "table", pattern.Table, "error", err)
			report.CheckErrors = append(report.CheckErrors, err.Error())
		} else {
			report.LowVolumeHours = append(report.LowVolumeHours, hours...)
		}
	}

	return report
}
