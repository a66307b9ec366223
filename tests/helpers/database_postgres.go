//go:build integration

package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/hbomb79/Reel/internal/database"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	User         = "postgres"
	Password     = "postgres"
	MasterDBName = "REEL_DB"
)

// NewPostgresDatabase spawns a disposable PostgreSQL container for the
// test, and returns a connected (and migrated) database manager.
func NewPostgresDatabase(t *testing.T) database.Manager {
	t.Helper()
	ctx := context.Background()

	postgresC, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("docker.io/postgres:14.1-alpine"),
		postgres.WithDatabase(MasterDBName),
		postgres.WithUsername(User),
		postgres.WithPassword(Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		timeout := 5 * time.Second
		if err := postgresC.Stop(ctx, &timeout); err != nil {
			t.Logf("WARNING: failed to stop Postgres container: %s", err)
		}
	})

	host, err := postgresC.Host(ctx)
	require.NoError(t, err)
	port, err := postgresC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	db := database.New(database.DatabaseConfig{
		Driver:   database.DriverPostgres,
		User:     User,
		Password: Password,
		Name:     MasterDBName,
		Host:     host,
		Port:     port.Port(),
	})
	require.NoError(t, db.Connect(ctx), "failed to connect to postgres container")
	t.Cleanup(func() { _ = db.Close() })

	return db
}
