package cleanup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	engine := NewEngine(mock, slog.Default(), nil, nil, FileCleanupConfig{})
	return engine, mock
}

func statcastPolicy() RetentionPolicy {
	return RetentionPolicy{
		Table:           "statcast_data",
		TimestampColumn: "collected_at",
		RetentionDays:   365,
		MinRecords:      500000,
	}
}

func expectExists(mock pgxmock.PgxPoolIface, table string, exists bool) {
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(table).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(exists))
}

func countRows(n int64) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"count"}).AddRow(n)
}

func TestApplyRetentionPolicy_CutoffPushedBackToHonorFloor(t *testing.T) {
	// 1M rows, 600k older than the 365-day cutoff, floor of 500k: a
	// straight delete would leave only 400k rows, so the cutoff moves
	// back 30 days and only 450k rows go.
	now := time.Date(2026, 8, 24, 2, 0, 0, 0, time.UTC)
	engine, mock := newTestEngine(t)
	engine.now = func() time.Time { return now }

	cutoff := now.AddDate(0, 0, -365)
	pushedBack := cutoff.Add(-cutoffPushback)

	expectExists(mock, "statcast_data", true)
	mock.ExpectQuery(`SELECT pg_total_relation_size`).
		WithArgs("statcast_data").
		WillReturnRows(pgxmock.NewRows([]string{"size"}).AddRow(int64(8_000_000_000)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM statcast_data$`).
		WillReturnRows(countRows(1_000_000))

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM statcast_data WHERE "collected_at" < \$1`).
		WithArgs(cutoff).
		WillReturnRows(countRows(600_000))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM statcast_data WHERE "collected_at" < \$1`).
		WithArgs(pushedBack).
		WillReturnRows(countRows(450_000))

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM statcast_data WHERE "collected_at" < \$1`).
		WithArgs(pushedBack).
		WillReturnResult(pgxmock.NewResult("DELETE", 450_000))
	mock.ExpectCommit()

	mock.ExpectQuery(`SELECT pg_total_relation_size`).
		WithArgs("statcast_data").
		WillReturnRows(pgxmock.NewRows([]string{"size"}).AddRow(int64(5_000_000_000)))

	result := engine.ApplyRetentionPolicy(context.Background(), statcastPolicy())

	assert.Empty(t, result.Error)
	assert.Equal(t, int64(450_000), result.RowsDeleted)
	assert.Equal(t, int64(550_000), result.RowsKept)
	assert.GreaterOrEqual(t, result.RowsKept, statcastPolicy().MinRecords)
	assert.Equal(t, pushedBack, result.Cutoff)
	assert.Greater(t, result.Duration, time.Duration(0))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRetentionPolicy_AtFloorIsSkipped(t *testing.T) {
	engine, mock := newTestEngine(t)

	expectExists(mock, "statcast_data", true)
	mock.ExpectQuery(`SELECT pg_total_relation_size`).
		WithArgs("statcast_data").
		WillReturnRows(pgxmock.NewRows([]string{"size"}).AddRow(int64(1_000_000)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM statcast_data$`).
		WillReturnRows(countRows(400_000))

	result := engine.ApplyRetentionPolicy(context.Background(), statcastPolicy())

	assert.True(t, result.Skipped)
	assert.Zero(t, result.RowsDeleted)
	assert.Equal(t, int64(400_000), result.RowsKept)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRetentionPolicy_MissingTableIsSkipped(t *testing.T) {
	engine, mock := newTestEngine(t)

	expectExists(mock, "statcast_data", false)

	result := engine.ApplyRetentionPolicy(context.Background(), statcastPolicy())

	assert.True(t, result.Skipped)
	assert.Equal(t, "table does not exist", result.SkipReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRetentionPolicy_NothingToDelete(t *testing.T) {
	now := time.Date(2026, 8, 24, 2, 0, 0, 0, time.UTC)
	engine, mock := newTestEngine(t)
	engine.now = func() time.Time { return now }

	expectExists(mock, "statcast_data", true)
	mock.ExpectQuery(`SELECT pg_total_relation_size`).
		WithArgs("statcast_data").
		WillReturnRows(pgxmock.NewRows([]string{"size"}).AddRow(int64(1_000_000)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM statcast_data$`).
		WillReturnRows(countRows(600_000))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM statcast_data WHERE "collected_at" < \$1`).
		WithArgs(now.AddDate(0, 0, -365)).
		WillReturnRows(countRows(0))

	result := engine.ApplyRetentionPolicy(context.Background(), statcastPolicy())

	assert.Empty(t, result.Error)
	assert.Zero(t, result.RowsDeleted)
	assert.Equal(t, result.BytesBefore, result.BytesAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRetentionPolicy_RejectsBadIdentifiers(t *testing.T) {
	engine, _ := newTestEngine(t)

	result := engine.ApplyRetentionPolicy(context.Background(), RetentionPolicy{
		Table:           "x; DROP TABLE statcast_data",
		TimestampColumn: "collected_at",
	})

	assert.Contains(t, result.Error, "invalid identifier")
}

func TestDeduplicateTable(t *testing.T) {
	engine, mock := newTestEngine(t)

	spec := DedupSpec{
		Table:      "mlb_games",
		KeyColumns: []string{"game_pk"},
		Tiebreak:   "collected_at",
	}

	mock.ExpectQuery("SELECT column_name").
		WithArgs("mlb_games").
		WillReturnRows(pgxmock.NewRows([]string{"column_name"}).
			AddRow("game_pk").AddRow("date").AddRow("collected_at"))

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM mlb_games`).
		WillReturnRows(countRows(1100))

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE dedup_keep ON COMMIT DROP AS\s+SELECT DISTINCT ON \("game_pk"\) \* FROM mlb_games ORDER BY "game_pk", "collected_at" DESC`).
		WillReturnResult(pgxmock.NewResult("SELECT", 1000))
	mock.ExpectExec(`DELETE FROM mlb_games`).
		WillReturnResult(pgxmock.NewResult("DELETE", 1100))
	mock.ExpectExec(`INSERT INTO mlb_games SELECT \* FROM dedup_keep`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1000))
	mock.ExpectCommit()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM mlb_games`).
		WillReturnRows(countRows(1000))

	result := engine.DeduplicateTable(context.Background(), spec)

	assert.Empty(t, result.Error)
	assert.Equal(t, int64(100), result.DuplicatesRemoved)
	assert.Equal(t, int64(1000), result.RowsKept)
	assert.Greater(t, result.Duration, time.Duration(0))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeduplicateTable_UnknownKeyColumn(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectQuery("SELECT column_name").
		WithArgs("mlb_games").
		WillReturnRows(pgxmock.NewRows([]string{"column_name"}).AddRow("game_pk"))

	result := engine.DeduplicateTable(context.Background(), DedupSpec{
		Table:      "mlb_games",
		KeyColumns: []string{"nonexistent"},
		Tiebreak:   "collected_at",
	})

	assert.Contains(t, result.Error, "nonexistent")
}

func TestCleanLogs_AgeAndCountCaps(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	write := func(name string, age time.Duration) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("log line\n"), 0o644))
		mtime := now.Add(-age)
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}

	write("ancient.log", 40*24*time.Hour)
	write("rotated.log.1", 40*24*time.Hour)
	write("old.log", 10*24*time.Hour)
	write("mid.log", 5*24*time.Hour)
	write("fresh.log", time.Hour)
	write("not-a-log.txt", 40*24*time.Hour)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	engine := NewEngine(mock, slog.Default(), nil, nil, FileCleanupConfig{
		LogDir:           dir,
		LogRetentionDays: 30,
		MaxLogFiles:      2,
	})

	result := engine.CleanLogs()

	// ancient.log and the rotated file are past retention; old.log is the
	// oldest above the 2-file cap. mid and fresh survive, the .txt is
	// never touched.
	assert.Empty(t, result.Error)
	assert.Equal(t, 3, result.FilesRemoved)
	assert.NoFileExists(t, filepath.Join(dir, "ancient.log"))
	assert.NoFileExists(t, filepath.Join(dir, "rotated.log.1"))
	assert.NoFileExists(t, filepath.Join(dir, "old.log"))
	assert.FileExists(t, filepath.Join(dir, "mid.log"))
	assert.FileExists(t, filepath.Join(dir, "fresh.log"))
	assert.FileExists(t, filepath.Join(dir, "not-a-log.txt"))
}

func TestCleanTempFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	write := func(name string, age time.Duration) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		mtime := now.Add(-age)
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}

	writeDir := func(name, inner string, age time.Duration) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.Mkdir(path, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(path, inner), []byte("xx"), 0o644))
		mtime := now.Add(-age)
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}

	write("statcast_download_123.csv", 48*time.Hour)
	write("mlb_schedule.json", 48*time.Hour)
	write("fangraphs_batch.csv", time.Hour)
	write("scratch.tmp", 48*time.Hour)
	write("unrelated.csv", 48*time.Hour)
	writeDir("mlb_extract_cache", "part.csv", 48*time.Hour)
	writeDir("statcast_staging", "part.csv", time.Hour)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	engine := NewEngine(mock, slog.Default(), nil, nil, FileCleanupConfig{
		TempDir:    dir,
		TempMaxAge: 24 * time.Hour,
	})

	result := engine.CleanTempFiles()

	assert.Empty(t, result.Error)
	assert.Equal(t, 4, result.FilesRemoved)
	// Three 1-byte files plus the 2-byte file inside the stale dir.
	assert.Equal(t, int64(5), result.BytesFreed)
	assert.NoFileExists(t, filepath.Join(dir, "statcast_download_123.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "mlb_schedule.json"))
	assert.NoFileExists(t, filepath.Join(dir, "scratch.tmp"))
	assert.NoDirExists(t, filepath.Join(dir, "mlb_extract_cache"), "stale scratch dirs are purged")
	assert.DirExists(t, filepath.Join(dir, "statcast_staging"), "too young to remove")
	assert.FileExists(t, filepath.Join(dir, "fangraphs_batch.csv"), "too young to remove")
	assert.FileExists(t, filepath.Join(dir, "unrelated.csv"), "matches no pattern")
}
