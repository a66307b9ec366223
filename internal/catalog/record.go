package catalog

import (
	"errors"
	"time"
)

const Unsorted = "unsorted"

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicatePath  = errors.New("already cataloged")
)

type (
	// MediaRecord is a single cataloged video file. The Path uniquely
	// identifies the record.
	MediaRecord struct {
		ID              int64     `db:"id"`
		Title           string    `db:"title"`
		Path            string    `db:"path"`
		Format          string    `db:"format"`
		DurationSeconds int       `db:"duration"`
		SizeBytes       int64     `db:"size_bytes"`
		ThumbnailPath   *string   `db:"thumbnail"`
		LocalPosterPath *string   `db:"local_poster"`
		Category        string    `db:"category"`
		Year            *int      `db:"year"`
		Description     *string   `db:"description"`
		LastScan        time.Time `db:"last_scan"`
	}

	// NewRecord contains the information required to create a MediaRecord.
	NewRecord struct {
		Path            string
		Title           string
		Format          string
		DurationSeconds int
		SizeBytes       int64
		ThumbnailPath   *string
		Category        string
		Year            *int
		Description     *string
	}

	// Metadata is the probed subset of a record which is refreshed
	// when a file is re-probed.
	Metadata struct {
		Title           string
		Format          string
		DurationSeconds int
		SizeBytes       int64
		ThumbnailPath   *string
	}

	Stats struct {
		TotalFiles          int64         `db:"total_files"`
		TotalSize           int64         `db:"total_size"`
		TotalDuration       int64         `db:"total_duration"`
		AverageSize         float64       `db:"avg_size"`
		AverageDuration     float64       `db:"avg_duration"`
		FilesWithThumbnails int64         `db:"files_with_thumbnails"`
		UniqueFormats       int64         `db:"unique_formats"`
		Formats             []FormatStats `db:"-"`
	}

	FormatStats struct {
		Format    string `db:"format"`
		Count     int64  `db:"count"`
		TotalSize int64  `db:"total_size"`
	}
)
