package poster

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/hbomb79/Reel/pkg/logger"
)

var log = logger.Get("Poster")

var (
	ErrOffline        = errors.New("poster downloads are disabled in offline mode")
	ErrInvalidURL     = errors.New("poster url must be an absolute http(s) url")
	ErrDownloadFailed = errors.New("poster download failed")
)

type (
	Config struct {
		Dir            string `yaml:"dir" env:"POSTER_DIR"`
		TimeoutSeconds int    `yaml:"timeout_seconds" env:"POSTER_TIMEOUT_SECONDS" env-default:"30"`
		MaxBytes       int64  `yaml:"max_bytes" env:"POSTER_MAX_BYTES" env-default:"20971520"`
	}

	// Downloader fetches remote poster images and stores them locally. When
	// Reel is offline every download fails with ErrOffline.
	Downloader struct {
		config  Config
		offline bool
		client  *http.Client
	}
)

func New(config Config, offline bool) *Downloader {
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = 30
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = 20 << 20
	}

	return &Downloader{
		config:  config,
		offline: offline,
		client:  &http.Client{Timeout: time.Duration(config.TimeoutSeconds) * time.Second},
	}
}

func (downloader *Downloader) Offline() bool { return downloader.offline }

// Download fetches the poster at the URL for the record, returning the local
// path it was saved to. The file name is derived from the record ID and a hash
// of the URL, so downloading the same poster again reuses the existing file.
func (downloader *Downloader) Download(ctx context.Context, recordID int64, posterURL string) (string, error) {
	if downloader.offline {
		return "", ErrOffline
	}

	u, err := url.Parse(posterURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, posterURL)
	}

	localPath := filepath.Join(downloader.config.Dir, Filename(recordID, u))
	if _, err := os.Stat(localPath); err == nil {
		log.Emit(logger.DEBUG, "Poster for record %d already downloaded to %s\n", recordID, localPath)
		return localPath, nil
	}

	if err := os.MkdirAll(downloader.config.Dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create poster directory: %w", err)
	}

	if err := downloader.fetch(ctx, u.String(), localPath); err != nil {
		return "", err
	}

	log.Emit(logger.SUCCESS, "Downloaded poster for record %d to %s\n", recordID, localPath)
	return localPath, nil
}

// fetch streams the response body to a pending file which only replaces
// 'dest' once the body has been read in full. A failed download never
// leaves a partial file behind.
func (downloader *Downloader) fetch(ctx context.Context, src string, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	resp, err := downloader.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s responded with HTTP %d", ErrDownloadFailed, src, resp.StatusCode)
	}

	pending, err := renameio.NewPendingFile(dest, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("failed to create pending poster file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			log.Emit(logger.DEBUG, "Cleanup of pending poster %s failed: %v\n", dest, err)
		}
	}()

	n, err := io.Copy(pending, io.LimitReader(resp.Body, downloader.config.MaxBytes+1))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	} else if n > downloader.config.MaxBytes {
		return fmt.Errorf("%w: poster exceeds %d bytes", ErrDownloadFailed, downloader.config.MaxBytes)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("failed to save poster: %w", err)
	}

	return nil
}

// Filename returns the local file name for the poster of a record,
// e.g. 'poster_12_1a2b3c4d.jpg'.
func Filename(recordID int64, u *url.URL) string {
	sum := md5.Sum([]byte(u.String()))
	ext := path.Ext(u.Path)
	if ext == "" {
		ext = ".jpg"
	}

	return fmt.Sprintf("poster_%d_%s%s", recordID, hex.EncodeToString(sum[:])[:8], ext)
}
