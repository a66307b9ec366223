package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hbomb79/Reel/internal/api"
	"github.com/hbomb79/Reel/internal/auth"
	"github.com/hbomb79/Reel/internal/catalog"
	"github.com/hbomb79/Reel/internal/database"
	"github.com/hbomb79/Reel/internal/ffmpeg"
	"github.com/hbomb79/Reel/internal/library"
	"github.com/hbomb79/Reel/internal/poster"
	"github.com/hbomb79/Reel/internal/probe"
	"github.com/hbomb79/Reel/internal/scan"
	"github.com/hbomb79/Reel/internal/workflow"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/mitchellh/go-homedir"
)

const (
	REEL_USER_DIR_SUFFIX = "reel"
	DEFAULT_CONFIG_NAME  = "config.yaml"
)

// ReelConfig is the struct used to contain the
// various user config supplied by file, or
// by environment variables.
type ReelConfig struct {
	LogLevel    string                  `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	DataDirPath string                  `yaml:"data_dir" env:"DATA_DIR"`
	Network     NetworkConfig           `yaml:"network"`
	Database    database.DatabaseConfig `yaml:"database"`
	Probe       probe.Config            `yaml:"probe"`
	Scan        scan.Config             `yaml:"scan"`
	Workflow    workflow.Config         `yaml:"workflow"`
	Library     library.Config          `yaml:"library"`
	Poster      poster.Config           `yaml:"poster"`
	Auth        auth.Config             `yaml:"auth"`
	RestConfig  api.RestConfig          `yaml:"rest"`
	Ffmpeg      ffmpeg.Config           `yaml:"ffmpeg"`
	Categories  []catalog.Category      `yaml:"categories"`
}

// NetworkConfig contains the connectivity mode of Reel. When offline,
// features which require internet access (poster downloads) are disabled.
type NetworkConfig struct {
	Offline bool `yaml:"offline" env:"NETWORK_OFFLINE" env-default:"false"`
}

// LoadConfig reads the YAML configuration file at the path provided, with
// environment variables taking precedence over values in the file. If no
// path is provided, the default config file inside of the users config
// directory is used if it exists; otherwise only the environment is read.
func LoadConfig(configPath string) (*ReelConfig, error) {
	config := &ReelConfig{}
	if configPath == "" {
		defaultPath := filepath.Join(defaultDataDir(), DEFAULT_CONFIG_NAME)
		if _, err := os.Stat(defaultPath); err == nil {
			configPath = defaultPath
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat default configuration file %s: %w", defaultPath, err)
		}
	}

	if configPath != "" {
		expanded, err := homedir.Expand(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to expand configuration path %s: %w", configPath, err)
		}
		if err := cleanenv.ReadConfig(expanded, config); err != nil {
			return nil, fmt.Errorf("failed to load configuration from %s: %w", expanded, err)
		}
	} else if err := cleanenv.ReadEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load configuration from environment: %w", err)
	}

	if err := config.resolvePaths(); err != nil {
		return nil, err
	}

	return config, nil
}

// resolvePaths expands '~' in every configured path, and derives the paths
// which were not configured from the data directory.
func (config *ReelConfig) resolvePaths() error {
	var err error
	expand := func(path *string) {
		if err != nil || *path == "" {
			return
		}

		*path, err = homedir.Expand(*path)
	}

	expand(&config.DataDirPath)
	if config.DataDirPath == "" {
		config.DataDirPath = defaultDataDir()
	}

	expand(&config.Database.Path)
	expand(&config.Probe.ThumbnailDir)
	expand(&config.Poster.Dir)
	for i := range config.Library.WatchPaths {
		expand(&config.Library.WatchPaths[i])
	}
	if err != nil {
		return fmt.Errorf("failed to expand configured path: %w", err)
	}

	if config.Database.Path == "" {
		config.Database.Path = filepath.Join(config.DataDirPath, "reel.db")
	}
	if config.Probe.ThumbnailDir == "" {
		config.Probe.ThumbnailDir = filepath.Join(config.DataDirPath, "thumbnails")
	}
	if config.Poster.Dir == "" {
		config.Poster.Dir = filepath.Join(config.DataDirPath, "posters")
	}

	return nil
}

// defaultDataDir returns the directory used to store Reel's data when
// no other directory is configured. If the user config directory
// cannot be derived, a panic will occur.
func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		panic(fmt.Sprintf("FAILURE to derive user config dir %s", err))
	}

	return filepath.Join(dir, REEL_USER_DIR_SUFFIX)
}
