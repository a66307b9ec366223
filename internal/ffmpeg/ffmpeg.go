// Package ffmpeg wraps the ffprobe/ffmpeg binaries, which Reel uses to
// inspect video files and to extract thumbnail frames from them.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/floostack/transcoder"
	"github.com/floostack/transcoder/ffmpeg"
	"github.com/hbomb79/Reel/pkg/logger"
)

var log = logger.Get("FFmpeg")

type Config struct {
	FfmpegBinPath  string `yaml:"ffmpeg_binary" env:"FFMPEG_BINARY" env-default:"ffmpeg"`
	FfprobeBinPath string `yaml:"ffprobe_binary" env:"FFPROBE_BINARY" env-default:"ffprobe"`
}

// Inspector uses ffprobe to extract metadata from video files,
// and ffmpeg to render single frames from them.
type Inspector struct {
	config Config
}

func NewInspector(config Config) *Inspector {
	if config.FfmpegBinPath == "" {
		config.FfmpegBinPath = "ffmpeg"
	}
	if config.FfprobeBinPath == "" {
		config.FfprobeBinPath = "ffprobe"
	}

	return &Inspector{config: config}
}

// Duration probes the file at the given path and returns the container
// duration reported by ffprobe.
func (inspector *Inspector) Duration(ctx context.Context, path string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	metadata, err := inspector.newTranscoder().Input(path).GetMetadata()
	if err != nil {
		return 0, fmt.Errorf("failed to extract file metadata information using ffprobe: %w", err)
	}

	return parseDuration(metadata.GetFormat().GetDuration())
}

// Thumbnail renders a single frame at the offset provided, scaled to the
// resolution given (e.g. 320x240), and writes it to the output path.
func (inspector *Inspector) Thumbnail(ctx context.Context, path string, output string, at time.Duration, resolution string) error {
	if err := os.MkdirAll(filepath.Dir(output), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	// Thumbnail names are stable per source, so a frame left by an earlier
	// run would otherwise be mistaken for this one's output.
	if err := os.Remove(output); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove previous thumbnail: %w", err)
	}

	seek := formatTimestamp(at)
	frames := 1
	overwrite := true
	skipAudio := true
	opts := ffmpeg.Options{
		SeekTime:   &seek,
		Vframes:    &frames,
		Resolution: &resolution,
		Overwrite:  &overwrite,
		SkipAudio:  &skipAudio,
	}

	log.Emit(logger.DEBUG, "Extracting thumbnail for %s at %s -> %s\n", path, seek, output)
	if _, err := inspector.newTranscoder().Input(path).Output(output).WithContext(&ctx).Start(opts); err != nil {
		return fmt.Errorf("ffmpeg failed to start: %w", err)
	}

	// Without progress reporting, the transcoder waits for ffmpeg to exit but
	// does not surface its exit status, so success is determined by the output.
	if info, err := os.Stat(output); err != nil {
		return fmt.Errorf("ffmpeg produced no output: %w", err)
	} else if info.Size() == 0 {
		return errors.New("ffmpeg produced an empty output")
	}

	return nil
}

func (inspector *Inspector) newTranscoder() transcoder.Transcoder {
	return ffmpeg.New(&ffmpeg.Config{
		FfmpegBinPath:   inspector.config.FfmpegBinPath,
		FfprobeBinPath:  inspector.config.FfprobeBinPath,
		ProgressEnabled: false,
	})
}

// parseDuration converts the seconds string reported by ffprobe
// (e.g. "5400.041000") in to a time.Duration.
func parseDuration(raw string) (time.Duration, error) {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe reported unparseable duration %q: %w", raw, err)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("ffprobe reported negative duration %q", raw)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}

// formatTimestamp renders a duration in the HH:MM:SS.mmm form accepted by ffmpeg
func formatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3_600_000, (ms/60_000)%60, (ms/1000)%60, ms%1000)
}
