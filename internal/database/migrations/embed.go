// Package migrations contains the schema migrations for Reel. SQL migrations
// are embedded per dialect, while Go migrations (registered on import) are
// dialect agnostic and apply to every dialect.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
)

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS

// Dir returns the directory inside of FS which contains the
// SQL migrations for the given driver.
func Dir(driver string) string {
	if driver == "postgres" {
		return "postgres"
	}

	return "sqlite"
}

// tableColumns returns the set of column names currently present on the
// table. Selecting zero rows works identically on sqlite and postgres,
// unlike PRAGMA table_info or information_schema.
func tableColumns(ctx context.Context, tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c] = true
	}

	return set, rows.Err()
}

// addColumnIfMissing issues an ALTER TABLE only when the column is absent.
func addColumnIfMissing(ctx context.Context, tx *sql.Tx, table string, column string, definition string) error {
	cols, err := tableColumns(ctx, tx, table)
	if err != nil {
		return fmt.Errorf("failed to inspect columns of %s: %w", table, err)
	}
	if cols[column] {
		return nil
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)); err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w", table, column, err)
	}

	return nil
}
