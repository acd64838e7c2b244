package database

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
)

// Querier is the minimal read surface shared by pgxpool.Pool and pgxmock.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// identPattern matches plain SQL identifiers. Monitored MLB tables and their
// columns all use snake_case names; anything else is rejected before it can
// reach dynamic SQL.
var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_+%]*$`)

// ValidIdent reports whether name is safe to interpolate as an identifier.
// The character class admits FanGraphs column names such as wRC+ and K%.
func ValidIdent(name string) bool {
	return identPattern.MatchString(name)
}

// CheckIdent returns an error naming the offending identifier.
func CheckIdent(name string) error {
	if !ValidIdent(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

// TableExists checks the information schema before any destructive
// operation, so a policy referencing a missing table fails cleanly.
func TableExists(ctx context.Context, db Querier, table string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_name = $1
		)
	`

	var exists bool
	if err := db.QueryRow(ctx, query, table).Scan(&exists); err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}

	return exists, nil
}

// TableColumns returns the live column names of a table. Dynamic SQL only
// ever interpolates names verified against this list.
func TableColumns(ctx context.Context, db Querier, table string) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_name = $1
		ORDER BY ordinal_position
	`

	rows, err := db.Query(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("introspect columns for %s: %w", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		columns = append(columns, name)
	}

	return columns, rows.Err()
}

// QuoteIdent wraps a validated identifier in double quotes, preserving
// case-sensitive column names like AVG or Name.
func QuoteIdent(name string) string {
	return `"` + name + `"`
}
