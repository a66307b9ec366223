package movies

import (
	"time"

	"github.com/hbomb79/Reel/internal/catalog"
	"github.com/hbomb79/Reel/internal/library"
)

type (
	// MovieDto is a catalog record, with the duration and size
	// rendered in a human readable form.
	MovieDto struct {
		ID                int64     `json:"id"`
		Title             string    `json:"title"`
		Path              string    `json:"path"`
		Format            string    `json:"format"`
		Duration          int       `json:"duration"`
		SizeBytes         int64     `json:"size_bytes"`
		Thumbnail         *string   `json:"thumbnail"`
		LocalPoster       *string   `json:"local_poster"`
		Category          string    `json:"category"`
		Year              *int      `json:"year"`
		Description       *string   `json:"description"`
		LastScan          time.Time `json:"last_scan"`
		FormattedDuration string    `json:"formattedDuration"`
		FormattedSize     string    `json:"formattedSize"`
	}

	ListResponse struct {
		Success bool        `json:"success"`
		Count   int         `json:"count"`
		Movies  []*MovieDto `json:"movies"`
	}

	MovieResponse struct {
		Success bool      `json:"success"`
		Movie   *MovieDto `json:"movie"`
	}

	MessageResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}

	StatsDto struct {
		TotalFiles          int64            `json:"totalFiles"`
		TotalSize           int64            `json:"totalSize"`
		TotalDuration       int64            `json:"totalDuration"`
		AverageSize         float64          `json:"avgSize"`
		AverageDuration     float64          `json:"avgDuration"`
		FilesWithThumbnails int64            `json:"filesWithThumbnails"`
		UniqueFormats       int64            `json:"uniqueFormats"`
		Formats             []FormatStatsDto `json:"formats"`
		FormattedTotalSize  string           `json:"formattedTotalSize"`
	}

	FormatStatsDto struct {
		Format    string `json:"format"`
		Count     int64  `json:"count"`
		TotalSize int64  `json:"totalSize"`
	}

	StatsResponse struct {
		Success bool      `json:"success"`
		Stats   *StatsDto `json:"stats"`
	}

	ScanRequest struct {
		DrivePath string `json:"drivePath" validate:"required"`
	}

	ScanResponse struct {
		Success bool         `json:"success"`
		Message string       `json:"message"`
		Job     *library.Job `json:"job"`
	}

	ScansResponse struct {
		Success bool           `json:"success"`
		Jobs    []*library.Job `json:"jobs"`
	}

	PosterRequest struct {
		MovieID   int64  `json:"movieId" validate:"required,gt=0"`
		PosterURL string `json:"posterUrl" validate:"required,url"`
	}

	PosterResponse struct {
		Success   bool   `json:"success"`
		Message   string `json:"message"`
		LocalPath string `json:"localPath"`
	}

	OfflineResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Offline bool   `json:"offline"`
	}

	CategoryRequest struct {
		Category string `json:"category" validate:"required"`
	}
)

// NewDto converts the record, rendering any category tag which is not
// known to the categories provided as unsorted.
func NewDto(record *catalog.MediaRecord, categories *catalog.Categories) *MovieDto {
	return &MovieDto{
		ID:                record.ID,
		Title:             record.Title,
		Path:              record.Path,
		Format:            record.Format,
		Duration:          record.DurationSeconds,
		SizeBytes:         record.SizeBytes,
		Thumbnail:         record.ThumbnailPath,
		LocalPoster:       record.LocalPosterPath,
		Category:          categories.Resolve(record.Category).ID,
		Year:              record.Year,
		Description:       record.Description,
		LastScan:          record.LastScan,
		FormattedDuration: catalog.FormatDuration(record.DurationSeconds),
		FormattedSize:     catalog.FormatSize(record.SizeBytes),
	}
}

func NewStatsDto(stats *catalog.Stats) *StatsDto {
	formats := make([]FormatStatsDto, 0, len(stats.Formats))
	for _, f := range stats.Formats {
		formats = append(formats, FormatStatsDto{Format: f.Format, Count: f.Count, TotalSize: f.TotalSize})
	}

	return &StatsDto{
		TotalFiles:          stats.TotalFiles,
		TotalSize:           stats.TotalSize,
		TotalDuration:       stats.TotalDuration,
		AverageSize:         stats.AverageSize,
		AverageDuration:     stats.AverageDuration,
		FilesWithThumbnails: stats.FilesWithThumbnails,
		UniqueFormats:       stats.UniqueFormats,
		Formats:             formats,
		FormattedTotalSize:  catalog.FormatSize(stats.TotalSize),
	}
}
