package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/statedge/dugout/internal/database"
)

// Pushback applied to a cutoff that would violate a table's record floor.
const cutoffPushback = 30 * 24 * time.Hour

// Hard ceiling on pushback iterations so a tiny table can never loop the
// cutoff back past any plausible data age.
const maxPushbacks = 48

// DB is the database surface the engine needs: reads for counting,
// transactions for the destructive work.
type DB interface {
	database.Querier
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Engine owns destructive maintenance of the data store: retention
// deletes, deduplication, vacuum, and file sweeps. Every destructive
// statement runs inside a transaction and every table is processed
// independently, so one failure never aborts the run.
type Engine struct {
	db       DB
	logger   *slog.Logger
	policies []RetentionPolicy
	dedup    []DedupSpec
	files    FileCleanupConfig

	now func() time.Time
}

func NewEngine(db DB, logger *slog.Logger, policies []RetentionPolicy, dedup []DedupSpec, files FileCleanupConfig) *Engine {
	if len(policies) == 0 {
		policies = DefaultPolicies()
	}
	if len(dedup) == 0 {
		dedup = DefaultDedupSpecs()
	}

	return &Engine{
		db:       db,
		logger:   logger,
		policies: policies,
		dedup:    dedup,
		files:    files,
		now:      time.Now,
	}
}

// ApplyRetentionPolicy deletes rows older than the policy's cutoff while
// honoring the record floor: when a straight cutoff would leave fewer than
// MinRecords rows, the cutoff is pushed back 30 days at a time until the
// floor holds.
func (e *Engine) ApplyRetentionPolicy(ctx context.Context, policy RetentionPolicy) (result TableResult) {
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	result = TableResult{Table: policy.Table}

	if err := database.CheckIdent(policy.Table); err != nil {
		result.Error = err.Error()
		return result
	}
	if err := database.CheckIdent(policy.TimestampColumn); err != nil {
		result.Error = err.Error()
		return result
	}

	exists, err := database.TableExists(ctx, e.db, policy.Table)
	if err != nil {
		result.Error = fmt.Sprintf("existence check: %v", err)
		return result
	}
	if !exists {
		result.Skipped = true
		result.SkipReason = "table does not exist"
		return result
	}

	if err := e.db.QueryRow(ctx,
		`SELECT pg_total_relation_size($1::regclass)`, policy.Table,
	).Scan(&result.BytesBefore); err != nil {
		result.Error = fmt.Sprintf("size before: %v", err)
		return result
	}

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, policy.Table)
	if err := e.db.QueryRow(ctx, countQuery).Scan(&total); err != nil {
		result.Error = fmt.Sprintf("row count: %v", err)
		return result
	}

	maxDeletable := total - policy.MinRecords
	if maxDeletable <= 0 {
		result.Skipped = true
		result.SkipReason = fmt.Sprintf("at or below record floor (%d rows, floor %d)", total, policy.MinRecords)
		result.RowsKept = total
		return result
	}

	col := database.QuoteIdent(policy.TimestampColumn)
	cutoff := e.now().AddDate(0, 0, -policy.RetentionDays)
	olderQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s < $1`, policy.Table, col)

	var wouldDelete int64
	for i := 0; ; i++ {
		if err := e.db.QueryRow(ctx, olderQuery, cutoff).Scan(&wouldDelete); err != nil {
			result.Error = fmt.Sprintf("cutoff count: %v", err)
			return result
		}
		if wouldDelete <= maxDeletable {
			break
		}
		if i >= maxPushbacks {
			result.Skipped = true
			result.SkipReason = "cutoff pushback limit reached"
			result.RowsKept = total
			return result
		}
		e.logger.Info("retention cutoff pushed back to honor record floor",
			"table", policy.Table,
			"cutoff", cutoff,
			"would_delete", wouldDelete,
			"max_deletable", maxDeletable,
		)
		cutoff = cutoff.Add(-cutoffPushback)
	}

	result.Cutoff = cutoff
	result.RowsKept = total - wouldDelete

	if wouldDelete == 0 {
		result.BytesAfter = result.BytesBefore
		return result
	}

	tx, err := e.db.Begin(ctx)
	if err != nil {
		result.Error = fmt.Sprintf("begin: %v", err)
		return result
	}

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE %s < $1`, policy.Table, col)
	tag, err := tx.Exec(ctx, deleteQuery, cutoff)
	if err != nil {
		_ = tx.Rollback(ctx)
		result.Error = fmt.Sprintf("delete: %v", err)
		return result
	}
	if err := tx.Commit(ctx); err != nil {
		result.Error = fmt.Sprintf("commit: %v", err)
		return result
	}

	result.RowsDeleted = tag.RowsAffected()

	if err := e.db.QueryRow(ctx,
		`SELECT pg_total_relation_size($1::regclass)`, policy.Table,
	).Scan(&result.BytesAfter); err != nil {
		// The delete already committed; a failed size probe is cosmetic.
		e.logger.Warn("size after failed", "table", policy.Table, "error", err)
		result.BytesAfter = result.BytesBefore
	}

	e.logger.Info("retention applied",
		"table", policy.Table,
		"deleted", result.RowsDeleted,
		"kept", result.RowsKept,
		"cutoff", cutoff,
	)

	return result
}

// DeduplicateTable rebuilds the table keeping one row per key combination.
// Among duplicates the row with the greatest tiebreak value survives. The
// rebuild runs in one transaction: readers see either the old rows or the
// deduplicated set, never an empty table.
func (e *Engine) DeduplicateTable(ctx context.Context, spec DedupSpec) (result DedupResult) {
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	result = DedupResult{Table: spec.Table}

	if err := database.CheckIdent(spec.Table); err != nil {
		result.Error = err.Error()
		return result
	}

	columns, err := database.TableColumns(ctx, e.db, spec.Table)
	if err != nil {
		result.Error = fmt.Sprintf("introspect columns: %v", err)
		return result
	}
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	for _, key := range spec.KeyColumns {
		if !present[key] {
			result.Error = fmt.Sprintf("key column %q not in table", key)
			return result
		}
	}
	if !present[spec.Tiebreak] {
		result.Error = fmt.Sprintf("tiebreak column %q not in table", spec.Tiebreak)
		return result
	}

	quotedKeys := make([]string, len(spec.KeyColumns))
	for i, key := range spec.KeyColumns {
		quotedKeys[i] = database.QuoteIdent(key)
	}
	keyList := strings.Join(quotedKeys, ", ")

	var before int64
	if err := e.db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, spec.Table)).Scan(&before); err != nil {
		result.Error = fmt.Sprintf("count before: %v", err)
		return result
	}

	tx, err := e.db.Begin(ctx)
	if err != nil {
		result.Error = fmt.Sprintf("begin: %v", err)
		return result
	}

	rebuild := []string{
		fmt.Sprintf(
			`CREATE TEMP TABLE dedup_keep ON COMMIT DROP AS
			 SELECT DISTINCT ON (%s) * FROM %s ORDER BY %s, %s DESC`,
			keyList, spec.Table, keyList, database.QuoteIdent(spec.Tiebreak),
		),
		fmt.Sprintf(`DELETE FROM %s`, spec.Table),
		fmt.Sprintf(`INSERT INTO %s SELECT * FROM dedup_keep`, spec.Table),
	}
	for _, stmt := range rebuild {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			result.Error = fmt.Sprintf("rebuild: %v", err)
			return result
		}
	}
	if err := tx.Commit(ctx); err != nil {
		result.Error = fmt.Sprintf("commit: %v", err)
		return result
	}

	var after int64
	if err := e.db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, spec.Table)).Scan(&after); err != nil {
		result.Error = fmt.Sprintf("count after: %v", err)
		return result
	}

	result.RowsKept = after
	result.DuplicatesRemoved = before - after

	if result.DuplicatesRemoved > 0 {
		e.logger.Info("table deduplicated",
			"table", spec.Table,
			"removed", result.DuplicatesRemoved,
			"kept", after,
		)
	}

	return result
}

// VacuumAnalyze reclaims space and refreshes planner stats after the
// destructive passes. VACUUM cannot run inside a transaction.
func (e *Engine) VacuumAnalyze(ctx context.Context, table string) error {
	if err := database.CheckIdent(table); err != nil {
		return fmt.Errorf("vacuum %s: %w", table, err)
	}

	if _, err := e.db.Exec(ctx, fmt.Sprintf(`VACUUM ANALYZE %s`, table)); err != nil {
		return fmt.Errorf("vacuum %s: %w", table, err)
	}
	return nil
}

// RunFull executes the whole cleanup pipeline: retention, dedup, vacuum,
// then the filesystem sweeps. Each step is best-effort; failures are
// recorded in the report and the run continues.
func (e *Engine) RunFull(ctx context.Context) RunReport {
	report := RunReport{
		RunID:     uuid.NewString(),
		StartedAt: e.now(),
	}

	e.logger.Info("cleanup run started", "run_id", report.RunID)

	for _, policy := range e.policies {
		result := e.ApplyRetentionPolicy(ctx, policy)
		report.Operations++
		if result.Error != "" {
			e.logger.Error("retention failed", "table", policy.Table, "error", result.Error)
			report.Errors++
		}
		if freed := result.BytesBefore - result.BytesAfter; freed > 0 {
			report.SpaceFreedMB += float64(freed) / (1024 * 1024)
		}
		report.TotalDeleted += result.RowsDeleted
		report.Retention = append(report.Retention, result)
	}

	for _, spec := range e.dedup {
		result := e.DeduplicateTable(ctx, spec)
		report.Operations++
		if result.Error != "" {
			e.logger.Error("dedup failed", "table", spec.Table, "error", result.Error)
			report.Errors++
		}
		report.TotalDeleted += result.DuplicatesRemoved
		report.Dedup = append(report.Dedup, result)
	}

	for _, policy := range e.policies {
		report.Operations++
		if err := e.VacuumAnalyze(ctx, policy.Table); err != nil {
			e.logger.Warn("vacuum failed", "table", policy.Table, "error", err)
			report.Errors++
		}
	}

	logs := e.CleanLogs()
	report.LogCleanup = &logs
	report.Operations++
	if logs.Error != "" {
		report.Errors++
	}
	report.SpaceFreedMB += float64(logs.BytesFreed) / (1024 * 1024)

	tmp := e.CleanTempFiles()
	report.TempCleanup = &tmp
	report.Operations++
	if tmp.Error != "" {
		report.Errors++
	}
	report.SpaceFreedMB += float64(tmp.BytesFreed) / (1024 * 1024)

	report.Successes = report.Operations - report.Errors
	report.FinishedAt = e.now()

	e.logger.Info("cleanup run finished",
		"run_id", report.RunID,
		"deleted", report.TotalDeleted,
		"errors", report.Errors,
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)

	return report
}
