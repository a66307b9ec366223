package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hbomb79/Reel/internal/database/migrations"
	"github.com/hbomb79/Reel/pkg/logger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	sqldblogger "github.com/simukti/sqldb-logger"
	_ "modernc.org/sqlite"
)

const maxConnectAttempts = 5

var (
	dbLogger = logger.Get("DB")

	// goose holds its configuration globally
	migrationMutex = &sync.Mutex{}
)

type (
	SqlLogger struct {
		logger logger.Logger
	}

	// Queryable is satisfied by both *sqlx.DB and *sqlx.Tx, allowing
	// store methods to be used inside and outside of transactions.
	Queryable interface {
		sqlx.ExtContext
		GetContext(ctx context.Context, dest any, query string, args ...any) error
		SelectContext(ctx context.Context, dest any, query string, args ...any) error
	}

	Manager interface {
		Connect(context.Context) error
		GetSqlxDb() *sqlx.DB
		WrapTx(context.Context, func(*sqlx.Tx) error) error
		Close() error
	}

	manager struct {
		config DatabaseConfig
		rawDb  *sql.DB
		db     *sqlx.DB
	}
)

func New(config DatabaseConfig) *manager {
	return &manager{config: config}
}

// Connect opens the configured database, retrying a few times if the
// server is not yet accepting connections, and then runs all pending
// migrations.
func (db *manager) Connect(ctx context.Context) error {
	dsn, err := db.config.DSN()
	if err != nil {
		return err
	}

	if db.config.Driver == DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(db.config.Path), os.ModePerm); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	raw, err := sql.Open(db.config.Driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s connection: %w", db.config.Driver, err)
	}

	raw = sqldblogger.OpenDriver(dsn, raw.Driver(), &SqlLogger{dbLogger})
	if db.config.Driver == DriverSQLite {
		// SQLite permits a single writer, serialize access through one connection
		raw.SetMaxOpenConns(1)
	}

	for attempt := 1; ; attempt++ {
		err := raw.PingContext(ctx)
		if err == nil {
			break
		}

		if attempt >= maxConnectAttempts {
			dbLogger.Emit(logger.ERROR, "All attempts FAILED!\n")
			return err
		}

		dbLogger.Emit(logger.WARNING, "Attempt (%v/%v) failed... Retrying in 3s\n", attempt, maxConnectAttempts)
		select {
		case <-time.After(3 * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	db.rawDb = raw
	db.db = sqlx.NewDb(raw, db.config.Driver)

	if err := db.ExecuteMigrations(); err != nil {
		return err
	}

	dbLogger.Emit(logger.SUCCESS, "Database connection complete!\n")
	return nil
}

// ExecuteMigrations uses the comp-time embedded SQL migrations (found in the
// 'migrations' package, one directory per dialect) along with the registered
// Go migrations, and runs them against the current DB instance.
func (db *manager) ExecuteMigrations() error {
	rawDb := db.rawDb
	if rawDb == nil {
		return fmt.Errorf("cannot execute migrations when DB manager has not yet connected")
	}

	migrationMutex.Lock()
	defer migrationMutex.Unlock()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(dbLogger)
	if err := goose.SetDialect(db.config.GooseDialect()); err != nil {
		return fmt.Errorf("failed to set dialect for DB migration: %w", err)
	}

	dbLogger.Emit(logger.INFO, "Checking for pending DB migrations...\n")
	if err := goose.Up(rawDb, migrations.Dir(db.config.Driver)); err != nil {
		return fmt.Errorf("failed to migrate DB: %w", err)
	}

	dbLogger.Emit(logger.SUCCESS, "DB Goose migration complete!\n")
	return nil
}

func (db *manager) GetSqlxDb() *sqlx.DB {
	return db.db
}

// WrapTx is a convenience method around the top-level WrapTx, which simply
// uses the managers DB instance as the first argument.
func (db *manager) WrapTx(ctx context.Context, f func(tx *sqlx.Tx) error) error {
	if db.db == nil {
		return errors.New("DB manager has not yet connected")
	}

	return WrapTx(ctx, db.db, f)
}

func (db *manager) Close() error {
	if db.db == nil {
		return nil
	}

	dbLogger.Emit(logger.STOP, "Closing database connection\n")
	return db.db.Close()
}

func (l *SqlLogger) Log(_ context.Context, level sqldblogger.Level, msg string, data map[string]any) {
	template := "%s - %v\n"
	switch level {
	case sqldblogger.LevelTrace:
		l.logger.Verbosef(template, msg, data)
	case sqldblogger.LevelDebug, sqldblogger.LevelInfo:
		duration := data["duration"]
		query, ok := data["query"]
		if ok {
			l.logger.Verbosef("%s [%.2fms] -- %s\n", msg, duration, query)
		} else {
			l.logger.Verbosef("%s [%.2fms]\n", msg, duration)
		}
	case sqldblogger.LevelError:
		l.logger.Errorf(template, msg, data)
	}
}

// WrapTx starts a transaction against the provided DB, and then calls the user
// provided function. If this function errors, the transaction is rolled back - otherwise
// the transaction is committed.
func WrapTx(ctx context.Context, db *sqlx.DB, f func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := f(tx); err != nil {
		dbLogger.Errorf("Transaction failed... rolling back. Error: %s\n", err.Error())
		return err
	}

	return tx.Commit()
}
