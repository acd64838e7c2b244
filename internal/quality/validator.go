package quality

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/statedge/dugout/internal/database"
)

// Validator runs schema, range, and null checks against the monitored tables.
// Checks are read-only and every failure is reported as an issue rather than
// aborting the pass.
type Validator struct {
	db     database.Querier
	logger *slog.Logger
	rules  []Rule

	now func() time.Time
}

func NewValidator(db database.Querier, logger *slog.Logger, rules []Rule) *Validator {
	if len(rules) == 0 {
		rules = DefaultRules()
	}

	return &Validator{
		db:     db,
		logger: logger,
		rules:  rules,
		now:    time.Now,
	}
}

// ValidateTable runs all checks for one rule. Schema problems are critical;
// value-level problems are warnings. A check that itself fails (query error,
// missing permissions) becomes an issue, not an error return.
func (v *Validator) ValidateTable(ctx context.Context, rule Rule) []Issue {
	var issues []Issue

	if err := database.CheckIdent(rule.Table); err != nil {
		return []Issue{v.newIssue(rule.Table, IssueSchemaCheckFailed, SeverityCritical,
			fmt.Sprintf("schema check failed: %v", err), 0)}
	}

	columns, err := database.TableColumns(ctx, v.db, rule.Table)
	if err != nil {
		v.logger.Error("schema check failed", "table", rule.Table, "error", err)
		return []Issue{v.newIssue(rule.Table, IssueSchemaCheckFailed, SeverityCritical,
			fmt.Sprintf("schema check failed: %v", err), 0)}
	}

	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	var missing []string
	for _, c := range rule.RequiredColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		issues = append(issues, v.newIssue(rule.Table, IssueMissingColumns, SeverityCritical,
			fmt.Sprintf("missing required columns: %v", missing), 0))
	}

	var total int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, rule.Table)
	if err := v.db.QueryRow(ctx, query).Scan(&total); err != nil {
		v.logger.Error("row count failed", "table", rule.Table, "error", err)
		issues = append(issues, v.newIssue(rule.Table, IssueSchemaCheckFailed, SeverityCritical,
			fmt.Sprintf("row count failed: %v", err), 0))
		return issues
	}

	// Range and null checks only make sense on populated tables.
	if total == 0 {
		return issues
	}

	for column, bounds := range rule.NumericRanges {
		if !present[column] {
			continue
		}
		if issue := v.checkRange(ctx, rule.Table, column, bounds); issue != nil {
			issues = append(issues, *issue)
		}
	}

	// Null checks cover every live column, not just the required ones: a
	// collector regression that blanks an optional stat should still show up.
	for _, column := range columns {
		if issue := v.checkNulls(ctx, rule.Table, column, total, rule.NullTolerance); issue != nil {
			issues = append(issues, *issue)
		}
	}

	return issues
}

// checkRange counts values outside (min, max) and collects the five most
// frequent offending values as samples.
func (v *Validator) checkRange(ctx context.Context, table, column string, bounds Range) *Issue {
	if err := database.CheckIdent(column); err != nil {
		issue := v.newIssue(table, IssueRangeCheckFailed, SeverityWarning,
			fmt.Sprintf("range check failed for %s: %v", column, err), 0)
		issue.Column = column
		return &issue
	}

	quoted := database.QuoteIdent(column)

	var outOfRange int64
	countQuery := fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE %s IS NOT NULL AND (%s < $1 OR %s > $2)`,
		table, quoted, quoted, quoted,
	)
	if err := v.db.QueryRow(ctx, countQuery, bounds.Min, bounds.Max).Scan(&outOfRange); err != nil {
		v.logger.Error("range check failed", "table", table, "column", column, "error", err)
		issue := v.newIssue(table, IssueRangeCheckFailed, SeverityWarning,
			fmt.Sprintf("range check failed for %s: %v", column, err), 0)
		issue.Column = column
		return &issue
	}

	if outOfRange == 0 {
		return nil
	}

	issue := v.newIssue(table, IssueOutOfRangeValues, SeverityWarning,
		fmt.Sprintf("%d values in %s outside [%g, %g]", outOfRange, column, bounds.Min, bounds.Max),
		outOfRange)
	issue.Column = column

	sampleQuery := fmt.Sprintf(
		`SELECT %s, COUNT(*) FROM %s
		 WHERE %s IS NOT NULL AND (%s < $1 OR %s > $2)
		 GROUP BY %s ORDER BY COUNT(*) DESC LIMIT 5`,
		quoted, table, quoted, quoted, quoted, quoted,
	)
	rows, err := v.db.Query(ctx, sampleQuery, bounds.Min, bounds.Max)
	if err != nil {
		v.logger.Warn("sample collection failed", "table", table, "column", column, "error", err)
		return &issue
	}
	defer rows.Close()

	for rows.Next() {
		var s Sample
		if err := rows.Scan(&s.Value, &s.Count); err != nil {
			v.logger.Warn("sample scan failed", "table", table, "column", column, "error", err)
			break
		}
		issue.Samples = append(issue.Samples, s)
	}

	return &issue
}

// checkNulls flags a column whose null fraction exceeds the rule's
// tolerance.
func (v *Validator) checkNulls(ctx context.Context, table, column string, total int64, tolerance float64) *Issue {
	if err := database.CheckIdent(column); err != nil {
		return nil
	}

	quoted := database.QuoteIdent(column)

	var nulls int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s IS NULL`, table, quoted)
	if err := v.db.QueryRow(ctx, query).Scan(&nulls); err != nil {
		v.logger.Error("null check failed", "table", table, "column", column, "error", err)
		return nil
	}

	fraction := float64(nulls) / float64(total)
	if fraction <= tolerance {
		return nil
	}

	pct := fraction * 100
	issue := v.newIssue(table, IssueExcessiveNulls, SeverityWarning,
		fmt.Sprintf("%.1f%% of %s is null (tolerance %.0f%%)", pct, column, tolerance*100),
		nulls)
	issue.Column = column
	issue.NullPercentage = &pct
	return &issue
}

// ValidateAll runs every configured rule and aggregates the results.
func (v *Validator) ValidateAll(ctx context.Context) Report {
	report := Report{
		Timestamp:    v.now(),
		TableReports: make(map[string]TableReport, len(v.rules)),
	}

	for _, rule := range v.rules {
		issues := v.ValidateTable(ctx, rule)

		tr := TableReport{Issues: issues, TotalIssues: len(issues)}
		for _, issue := range issues {
			switch issue.Severity {
			case SeverityCritical:
				tr.CriticalIssues++
			case SeverityWarning:
				tr.WarningIssues++
			}
		}

		report.TableReports[rule.Table] = tr
		report.TablesChecked++
		report.TotalIssues += tr.TotalIssues
		report.CriticalIssues += tr.CriticalIssues
		report.WarningIssues += tr.WarningIssues
	}

	return report
}

func (v *Validator) newIssue(table string, kind IssueType, severity Severity, description string, affected int64) Issue {
	return Issue{
		Source:          table,
		Table:           table,
		Type:            kind,
		Severity:        severity,
		Description:     description,
		AffectedRecords: affected,
		DetectedAt:      v.now(),
	}
}
