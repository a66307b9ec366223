package helpers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hbomb79/Reel/internal/database"
	"github.com/stretchr/testify/require"
)

// NewSQLiteDatabase connects and migrates a fresh SQLite database which
// lives inside of the tests temporary directory. The connection is closed
// automatically when the test completes.
func NewSQLiteDatabase(t *testing.T) database.Manager {
	t.Helper()

	db := database.New(database.DatabaseConfig{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "reel.db"),
	})
	require.NoError(t, db.Connect(context.Background()), "failed to connect test database")
	t.Cleanup(func() { _ = db.Close() })

	return db
}
