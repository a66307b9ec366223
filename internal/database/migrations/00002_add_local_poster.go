package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upAddLocalPoster, downAddLocalPoster)
}

// Older catalogs may already carry this column, so it is only
// added when absent.
func upAddLocalPoster(ctx context.Context, tx *sql.Tx) error {
	return addColumnIfMissing(ctx, tx, "movies", "local_poster", "TEXT")
}

// Schema evolution is additive; the column is retained on rollback.
func downAddLocalPoster(_ context.Context, _ *sql.Tx) error {
	return nil
}
