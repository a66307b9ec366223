package probe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Reel/internal/metrics"
	"github.com/hbomb79/Reel/pkg/logger"
)

var log = logger.Get("Prober")

type (
	// Inspector is the external media-inspection utility.
	Inspector interface {
		Duration(ctx context.Context, path string) (time.Duration, error)
		Thumbnail(ctx context.Context, path string, output string, at time.Duration, resolution string) error
	}

	// Candidate is the validated result of probing a file. It is not
	// yet a catalog record.
	Candidate struct {
		Path            string
		Title           string
		Format          string
		DurationSeconds int
		SizeBytes       int64
		ThumbnailPath   *string
	}

	// Prober turns a path in to a Candidate. It never writes to the catalog.
	Prober struct {
		config    Config
		formats   map[string]bool
		inspector Inspector
	}
)

func New(config Config, inspector Inspector) *Prober {
	return &Prober{config: config, formats: config.formatSet(), inspector: inspector}
}

// Supports returns true if the extension of the path is one of the
// supported video formats.
func (prober *Prober) Supports(path string) bool {
	return prober.formats[FormatOf(path)]
}

// Probe validates the file at the path provided and extracts its metadata. Failing
// to generate a thumbnail is NOT an error; the candidate is returned without one.
func (prober *Prober) Probe(ctx context.Context, path string) (*Candidate, error) {
	candidate, err := prober.probe(ctx, path)
	switch {
	case err == nil:
		metrics.RecordProbe("ok")
	case errors.Is(err, ErrTooShort):
		metrics.RecordProbe("too_short")
	case errors.Is(err, ErrUnsupportedFormat):
		metrics.RecordProbe("unsupported")
	default:
		metrics.RecordProbe("error")
	}

	return candidate, err
}

func (prober *Prober) probe(ctx context.Context, path string) (*Candidate, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileMissing, path)
		}

		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrUnsupportedFormat, path)
	}
	if !prober.Supports(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	duration, err := prober.inspector.Duration(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInspectionFailed, path, err)
	}

	if minimum := prober.config.MinDuration(); duration < minimum {
		return nil, &TooShortError{Path: path, Duration: duration, Minimum: minimum}
	}

	candidate := &Candidate{
		Path:            path,
		Title:           TitleOf(path),
		Format:          FormatOf(path),
		DurationSeconds: int(duration.Round(time.Second) / time.Second),
		SizeBytes:       info.Size(),
	}

	if thumb, err := prober.generateThumbnail(ctx, path, duration); err != nil {
		log.Emit(logger.WARNING, "Thumbnail for %s could not be generated: %v\n", path, err)
	} else {
		candidate.ThumbnailPath = thumb
	}

	log.Emit(logger.DEBUG, "Probed %s (%ds, %d bytes)\n", path, candidate.DurationSeconds, candidate.SizeBytes)
	return candidate, nil
}

// generateThumbnail extracts a single frame from the video. The output name
// is derived from the source path so re-probing a file replaces its thumbnail.
func (prober *Prober) generateThumbnail(ctx context.Context, path string, duration time.Duration) (*string, error) {
	if prober.config.ThumbnailDir == "" {
		return nil, nil
	}

	position := prober.config.ThumbnailPosition
	if position < 0 || position > 1 {
		position = 0.5
	}

	resolution := prober.config.ThumbnailResolution
	if resolution == "" {
		resolution = "320x240"
	}

	at := time.Duration(float64(duration) * position)
	output := filepath.Join(prober.config.ThumbnailDir, uuid.NewSHA1(uuid.NameSpaceURL, []byte(path)).String()+".jpg")
	if err := prober.inspector.Thumbnail(ctx, path, output, at, resolution); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrThumbnailFailed, err)
	}

	return &output, nil
}

// FormatOf returns the lowercase extension of the path, without the dot.
func FormatOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// TitleOf derives a default title from the file name by stripping its extension.
func TitleOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
