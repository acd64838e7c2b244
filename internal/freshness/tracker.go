package freshness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/statedge/dugout/internal/database"
)

// Tracker computes freshness metrics for the monitored MLB sources.
// It is read-only: a tracking pass never mutates the data store.
type Tracker struct {
	db      database.Querier
	logger  *slog.Logger
	sources []SourceConfig

	now func() time.Time
}

func NewTracker(db database.Querier, logger *slog.Logger, sources []SourceConfig) *Tracker {
	if len(sources) == 0 {
		sources = DefaultSources()
	}

	return &Tracker{
		db:      db,
		logger:  logger,
		sources: sources,
		now:     time.Now,
	}
}

// CheckSource measures one source. A query failure yields a MISSING/FAILED
// metric with the error recorded instead of an error return, so a broken
// source never aborts the batch.
func (t *Tracker) CheckSource(ctx context.Context, cfg SourceConfig) Metric {
	metric := Metric{
		Source:            cfg.Table,
		Table:             cfg.Table,
		FreshThresholdHrs: cfg.FreshThreshold.Hours(),
		Level:             LevelMissing,
		Status:            StatusUnknown,
	}

	if err := database.CheckIdent(cfg.Table); err != nil {
		metric.Status = StatusFailed
		metric.Error = err.Error()
		return metric
	}
	if err := database.CheckIdent(cfg.TimestampColumn); err != nil {
		metric.Status = StatusFailed
		metric.Error = err.Error()
		return metric
	}

	query := fmt.Sprintf(
		`SELECT MAX(%s), COUNT(*) FROM %s`,
		database.QuoteIdent(cfg.TimestampColumn), cfg.Table,
	)

	var lastUpdate *time.Time
	var count int64

	if err := t.db.QueryRow(ctx, query).Scan(&lastUpdate, &count); err != nil {
		t.logger.Error("freshness check failed",
			"table", cfg.Table,
			"error", err,
		)
		metric.Status = StatusFailed
		metric.Error = err.Error()
		return metric
	}

	metric.RecordCount = count

	if lastUpdate == nil {
		metric.Status = StatusFailed
		return metric
	}

	now := t.now()
	staleness := now.Sub(*lastUpdate)
	stalenessHours := staleness.Hours()
	next := lastUpdate.Add(cfg.FreshThreshold)

	metric.LastUpdate = lastUpdate
	metric.StalenessHours = &stalenessHours
	metric.NextExpectedUpdate = &next

	switch {
	case staleness <= cfg.FreshThreshold:
		metric.Level = LevelFresh
		metric.Status = StatusHealthy
	case staleness <= cfg.CriticalAfter:
		metric.Level = LevelStale
		metric.Status = StatusDegraded
	default:
		metric.Level = LevelCritical
		metric.Status = StatusFailed
	}

	return metric
}

// AllMetrics runs a full tracking pass over every configured source.
func (t *Tracker) AllMetrics(ctx context.Context) []Metric {
	metrics := make([]Metric, 0, len(t.sources))
	for _, cfg := range t.sources {
		metrics = append(metrics, t.CheckSource(ctx, cfg))
	}
	return metrics
}

// StaleSources returns every source that needs attention.
func (t *Tracker) StaleSources(ctx context.Context) []Metric {
	var stale []Metric
	for _, m := range t.AllMetrics(ctx) {
		if m.Level != LevelFresh {
			stale = append(stale, m)
		}
	}
	return stale
}

// Summary aggregates a tracking pass into one system-level status:
// FAILED if any source is critical or missing, DEGRADED if any is stale.
func (t *Tracker) Summary(ctx context.Context) HealthSummary {
	metrics := t.AllMetrics(ctx)

	counts := map[Level]int{
		LevelFresh:    0,
		LevelStale:    0,
		LevelCritical: 0,
		LevelMissing:  0,
	}
	for _, m := range metrics {
		counts[m.Level]++
	}

	total := len(metrics)
	healthyPct := 0.0
	if total > 0 {
		healthyPct = float64(counts[LevelFresh]) / float64(total) * 100
	}

	overall := StatusHealthy
	switch {
	case counts[LevelCritical] > 0 || counts[LevelMissing] > 0:
		overall = StatusFailed
	case counts[LevelStale] > 0:
		overall = StatusDegraded
	}

	return HealthSummary{
		Timestamp:         t.now(),
		OverallStatus:     overall,
		HealthyPercentage: healthyPct,
		SourceCounts:      counts,
		TotalSources:      total,
		NeedsAttention:    counts[LevelStale] + counts[LevelCritical] + counts[LevelMissing],
		Metrics:           metrics,
	}
}
