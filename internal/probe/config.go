package probe

import (
	"strings"
	"time"
)

type Config struct {
	// Files shorter than this are never cataloged
	MinDurationMinutes int `yaml:"min_duration_minutes" env:"PROBE_MIN_DURATION_MINUTES" env-default:"15"`

	// Case-insensitive file extensions (without the leading dot)
	SupportedFormats []string `yaml:"supported_formats" env:"PROBE_SUPPORTED_FORMATS" env-separator:"," env-default:"mp4,mkv,avi,mov,wmv,flv,webm"`

	// Directory thumbnails are written to. Thumbnail generation is
	// disabled when empty.
	ThumbnailDir        string  `yaml:"thumbnail_dir" env:"PROBE_THUMBNAIL_DIR"`
	ThumbnailResolution string  `yaml:"thumbnail_resolution" env:"PROBE_THUMBNAIL_RESOLUTION" env-default:"320x240"`
	ThumbnailPosition   float64 `yaml:"thumbnail_position" env:"PROBE_THUMBNAIL_POSITION" env-default:"0.5"`
}

func (config Config) MinDuration() time.Duration {
	return time.Duration(config.MinDurationMinutes) * time.Minute
}

func (config Config) formatSet() map[string]bool {
	set := make(map[string]bool, len(config.SupportedFormats))
	for _, f := range config.SupportedFormats {
		f = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f), "."))
		if f != "" {
			set[f] = true
		}
	}

	return set
}
