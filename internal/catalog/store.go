package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/hbomb79/Reel/internal/database"
)

const movieTable = "movies"

var recordColumns = []string{
	"id",
	"COALESCE(title, '') AS title",
	"path",
	"COALESCE(format, '') AS format",
	"COALESCE(duration, 0) AS duration",
	"COALESCE(size_bytes, 0) AS size_bytes",
	"thumbnail",
	"local_poster",
	"category",
	"year",
	"description",
	"last_scan",
}

// Store implements the catalog persistence. Every method accepts the
// database.Queryable to operate on, allowing them to be composed inside
// of a transaction by the caller.
type Store struct{}

// Create inserts a new record. If a record already exists for the path,
// ErrDuplicatePath is returned and the existing record is untouched.
func (store *Store) Create(ctx context.Context, db database.Queryable, record NewRecord) (*MediaRecord, error) {
	category := record.Category
	if category == "" {
		category = Unsorted
	}

	lastScan := time.Now().UTC().Truncate(time.Second)
	query, args, err := sq.Insert(movieTable).
		Columns("title", "path", "format", "duration", "size_bytes", "thumbnail", "category", "year", "description", "last_scan").
		Values(record.Title, record.Path, record.Format, record.DurationSeconds, record.SizeBytes, record.ThumbnailPath, category, record.Year, record.Description, lastScan).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, err
	}

	var id int64
	if err := db.QueryRowxContext(ctx, db.Rebind(query), args...).Scan(&id); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePath, record.Path)
		}

		return nil, fmt.Errorf("failed to create record for %s: %w", record.Path, err)
	}

	return &MediaRecord{
		ID:              id,
		Title:           record.Title,
		Path:            record.Path,
		Format:          record.Format,
		DurationSeconds: record.DurationSeconds,
		SizeBytes:       record.SizeBytes,
		ThumbnailPath:   record.ThumbnailPath,
		Category:        category,
		Year:            record.Year,
		Description:     record.Description,
		LastScan:        lastScan,
	}, nil
}

func (store *Store) Get(ctx context.Context, db database.Queryable, id int64) (*MediaRecord, error) {
	return store.getWhere(ctx, db, sq.Eq{"id": id})
}

// GetByPath returns the record for the exact path provided, or
// ErrRecordNotFound.
func (store *Store) GetByPath(ctx context.Context, db database.Queryable, path string) (*MediaRecord, error) {
	return store.getWhere(ctx, db, sq.Eq{"path": path})
}

// List returns all records, ordered by title.
func (store *Store) List(ctx context.Context, db database.Queryable) ([]*MediaRecord, error) {
	return store.listWhere(ctx, db, nil)
}

func (store *Store) ListByCategory(ctx context.Context, db database.Queryable, category string) ([]*MediaRecord, error) {
	return store.listWhere(ctx, db, sq.Eq{"category": category})
}

// Delete removes the record with the given ID. The boolean returned
// indicates whether a row was actually removed, deleting an ID which
// does not exist is not an error.
func (store *Store) Delete(ctx context.Context, db database.Queryable, id int64) (bool, error) {
	query, args, err := sq.Delete(movieTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, err
	}

	res, err := db.ExecContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return false, fmt.Errorf("failed to delete record %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (store *Store) UpdateLocalPoster(ctx context.Context, db database.Queryable, id int64, path string) error {
	return store.update(ctx, db, id, sq.Eq{"local_poster": path})
}

func (store *Store) UpdateCategory(ctx context.Context, db database.Queryable, id int64, category string) error {
	return store.update(ctx, db, id, sq.Eq{"category": category})
}

// UpdateMetadata refreshes the probed fields of a record, and bumps the
// last_scan timestamp.
func (store *Store) UpdateMetadata(ctx context.Context, db database.Queryable, id int64, metadata Metadata) error {
	return store.update(ctx, db, id, sq.Eq{
		"title":      metadata.Title,
		"format":     metadata.Format,
		"duration":   metadata.DurationSeconds,
		"size_bytes": metadata.SizeBytes,
		"thumbnail":  metadata.ThumbnailPath,
		"last_scan":  time.Now().UTC().Truncate(time.Second),
	})
}

// GetStats computes the aggregate statistics of the catalog. The aggregate
// and per-format queries should be executed within a single transaction
// for the results to be consistent with one another.
func (store *Store) GetStats(ctx context.Context, db database.Queryable) (*Stats, error) {
	var stats Stats
	if err := db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) AS total_files,
			COALESCE(SUM(size_bytes), 0) AS total_size,
			COALESCE(SUM(duration), 0) AS total_duration,
			COALESCE(AVG(size_bytes), 0) AS avg_size,
			COALESCE(AVG(duration), 0) AS avg_duration,
			COUNT(thumbnail) AS files_with_thumbnails,
			COUNT(DISTINCT format) AS unique_formats
		FROM movies`); err != nil {
		return nil, fmt.Errorf("failed to aggregate catalog stats: %w", err)
	}

	stats.Formats = make([]FormatStats, 0)
	if err := db.SelectContext(ctx, &stats.Formats, `
		SELECT COALESCE(format, '') AS format, COUNT(*) AS count, COALESCE(SUM(size_bytes), 0) AS total_size
		FROM movies
		GROUP BY format
		ORDER BY count DESC, format ASC`); err != nil {
		return nil, fmt.Errorf("failed to aggregate per-format stats: %w", err)
	}

	return &stats, nil
}

func (store *Store) getWhere(ctx context.Context, db database.Queryable, pred sq.Eq) (*MediaRecord, error) {
	query, args, err := sq.Select(recordColumns...).From(movieTable).Where(pred).ToSql()
	if err != nil {
		return nil, err
	}

	var record MediaRecord
	if err := db.GetContext(ctx, &record, db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}

		return nil, fmt.Errorf("failed to fetch record: %w", err)
	}

	return &record, nil
}

func (store *Store) listWhere(ctx context.Context, db database.Queryable, pred sq.Sqlizer) ([]*MediaRecord, error) {
	builder := sq.Select(recordColumns...).From(movieTable).OrderBy("title ASC", "id ASC")
	if pred != nil {
		builder = builder.Where(pred)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	records := make([]*MediaRecord, 0)
	if err := db.SelectContext(ctx, &records, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	return records, nil
}

func (store *Store) update(ctx context.Context, db database.Queryable, id int64, values sq.Eq) error {
	query, args, err := sq.Update(movieTable).SetMap(values).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to update record %d: %w", id, err)
	}

	if affected, err := res.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return ErrRecordNotFound
	}

	return nil
}
