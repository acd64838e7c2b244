package freshness

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T, sources []SourceConfig) (*Tracker, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	tracker := NewTracker(mock, slog.Default(), sources)
	return tracker, mock
}

func TestCheckSource_Levels(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	cfg := SourceConfig{
		Table:           "statcast_data",
		TimestampColumn: "collected_at",
		FreshThreshold:  2 * time.Hour,
		CriticalAfter:   6 * time.Hour,
	}

	tests := []struct {
		name       string
		lastUpdate time.Time
		wantLevel  Level
		wantStatus SourceStatus
	}{
		{"well within threshold", now.Add(-30 * time.Minute), LevelFresh, StatusHealthy},
		{"exactly at freshness threshold", now.Add(-2 * time.Hour), LevelFresh, StatusHealthy},
		{"just past freshness threshold", now.Add(-2*time.Hour - time.Second), LevelStale, StatusDegraded},
		{"exactly at critical threshold", now.Add(-6 * time.Hour), LevelStale, StatusDegraded},
		{"past critical threshold", now.Add(-6*time.Hour - time.Second), LevelCritical, StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker, mock := newTestTracker(t, []SourceConfig{cfg})
			tracker.now = func() time.Time { return now }

			last := tt.lastUpdate
			mock.ExpectQuery(`SELECT MAX\("collected_at"\), COUNT\(\*\) FROM statcast_data`).
				WillReturnRows(pgxmock.NewRows([]string{"max", "count"}).AddRow(&last, int64(5000)))

			metric := tracker.CheckSource(context.Background(), cfg)

			assert.Equal(t, tt.wantLevel, metric.Level)
			assert.Equal(t, tt.wantStatus, metric.Status)
			assert.Equal(t, int64(5000), metric.RecordCount)
			require.NotNil(t, metric.NextExpectedUpdate)
			assert.Equal(t, last.Add(cfg.FreshThreshold), *metric.NextExpectedUpdate)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCheckSource_NoData(t *testing.T) {
	cfg := SourceConfig{
		Table:           "weather_data",
		TimestampColumn: "collected_at",
		FreshThreshold:  time.Hour,
		CriticalAfter:   4 * time.Hour,
	}

	tracker, mock := newTestTracker(t, []SourceConfig{cfg})

	mock.ExpectQuery(`SELECT MAX\("collected_at"\), COUNT\(\*\) FROM weather_data`).
		WillReturnRows(pgxmock.NewRows([]string{"max", "count"}).AddRow((*time.Time)(nil), int64(0)))

	metric := tracker.CheckSource(context.Background(), cfg)

	assert.Equal(t, LevelMissing, metric.Level)
	assert.Equal(t, StatusFailed, metric.Status)
	assert.Nil(t, metric.LastUpdate)
	assert.Nil(t, metric.StalenessHours)
}

func TestCheckSource_QueryErrorDoesNotAbort(t *testing.T) {
	cfg := SourceConfig{
		Table:           "mlb_games",
		TimestampColumn: "collected_at",
		FreshThreshold:  15 * time.Minute,
		CriticalAfter:   time.Hour,
	}

	tracker, mock := newTestTracker(t, []SourceConfig{cfg})

	mock.ExpectQuery(`SELECT MAX\("collected_at"\), COUNT\(\*\) FROM mlb_games`).
		WillReturnError(errors.New("connection refused"))

	metric := tracker.CheckSource(context.Background(), cfg)

	assert.Equal(t, LevelMissing, metric.Level)
	assert.Equal(t, StatusFailed, metric.Status)
	assert.Contains(t, metric.Error, "connection refused")
}

func TestCheckSource_RejectsBadIdentifiers(t *testing.T) {
	tracker, _ := newTestTracker(t, nil)

	metric := tracker.CheckSource(context.Background(), SourceConfig{
		Table:           "x; DROP TABLE alerts",
		TimestampColumn: "collected_at",
	})

	assert.Equal(t, StatusFailed, metric.Status)
	assert.Contains(t, metric.Error, "invalid identifier")
}

func TestSummary_StaleSourceDegradesSystem(t *testing.T) {
	// Scenario: statcast last updated 3h ago against a 2h/6h window.
	now := time.Date(2026, 8, 24, 18, 0, 0, 0, time.UTC)

	sources := []SourceConfig{
		{Table: "statcast_data", TimestampColumn: "collected_at", FreshThreshold: 2 * time.Hour, CriticalAfter: 6 * time.Hour},
		{Table: "weather_data", TimestampColumn: "collected_at", FreshThreshold: time.Hour, CriticalAfter: 4 * time.Hour},
	}

	tracker, mock := newTestTracker(t, sources)
	tracker.now = func() time.Time { return now }

	statcastLast := now.Add(-3 * time.Hour)
	weatherLast := now.Add(-10 * time.Minute)

	mock.ExpectQuery(`SELECT MAX\("collected_at"\), COUNT\(\*\) FROM statcast_data`).
		WillReturnRows(pgxmock.NewRows([]string{"max", "count"}).AddRow(&statcastLast, int64(1200)))
	mock.ExpectQuery(`SELECT MAX\("collected_at"\), COUNT\(\*\) FROM weather_data`).
		WillReturnRows(pgxmock.NewRows([]string{"max", "count"}).AddRow(&weatherLast, int64(300)))

	summary := tracker.Summary(context.Background())

	assert.Equal(t, StatusDegraded, summary.OverallStatus)
	assert.Equal(t, 1, summary.SourceCounts[LevelStale])
	assert.Equal(t, 1, summary.SourceCounts[LevelFresh])
	assert.Equal(t, 1, summary.NeedsAttention)
	assert.InDelta(t, 50.0, summary.HealthyPercentage, 0.001)
}

func TestSummary_MissingSourceFailsSystem(t *testing.T) {
	sources := []SourceConfig{
		{Table: "player_data", TimestampColumn: "collected_at", FreshThreshold: 24 * time.Hour, CriticalAfter: 72 * time.Hour},
	}

	tracker, mock := newTestTracker(t, sources)

	mock.ExpectQuery(`SELECT MAX\("collected_at"\), COUNT\(\*\) FROM player_data`).
		WillReturnRows(pgxmock.NewRows([]string{"max", "count"}).AddRow((*time.Time)(nil), int64(0)))

	summary := tracker.Summary(context.Background())

	assert.Equal(t, StatusFailed, summary.OverallStatus)
	assert.Equal(t, 0.0, summary.HealthyPercentage)
}

func TestStaleSources(t *testing.T) {
	now := time.Now()

	sources := []SourceConfig{
		{Table: "fangraphs_batting", TimestampColumn: "collected_at", FreshThreshold: 24 * time.Hour, CriticalAfter: 48 * time.Hour},
		{Table: "fangraphs_pitching", TimestampColumn: "collected_at", FreshThreshold: 24 * time.Hour, CriticalAfter: 48 * time.Hour},
	}

	tracker, mock := newTestTracker(t, sources)

	freshLast := now.Add(-time.Hour)
	staleLast := now.Add(-30 * time.Hour)

	mock.ExpectQuery(`SELECT MAX\("collected_at"\), COUNT\(\*\) FROM fangraphs_batting`).
		WillReturnRows(pgxmock.NewRows([]string{"max", "count"}).AddRow(&freshLast, int64(900)))
	mock.ExpectQuery(`SELECT MAX\("collected_at"\), COUNT\(\*\) FROM fangraphs_pitching`).
		WillReturnRows(pgxmock.NewRows([]string{"max", "count"}).AddRow(&staleLast, int64(450)))

	stale := tracker.StaleSources(context.Background())

	require.Len(t, stale, 1)
	assert.Equal(t, "fangraphs_pitching", stale[0].Table)
	assert.Equal(t, LevelStale, stale[0].Level)
}
