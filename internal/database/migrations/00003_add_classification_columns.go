package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upAddClassificationColumns, downAddClassificationColumns)
}

func upAddClassificationColumns(ctx context.Context, tx *sql.Tx) error {
	columns := []struct{ name, definition string }{
		{"category", "TEXT NOT NULL DEFAULT 'unsorted'"},
		{"year", "INTEGER"},
		{"description", "TEXT"},
	}

	for _, col := range columns {
		if err := addColumnIfMissing(ctx, tx, "movies", col.name, col.definition); err != nil {
			return err
		}
	}

	_, err := tx.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS movies_category_idx ON movies(category)")
	return err
}

func downAddClassificationColumns(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, "DROP INDEX IF EXISTS movies_category_idx")
	return err
}
