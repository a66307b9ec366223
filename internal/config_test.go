package internal

import (
	"path/filepath"
	"testing"

	"github.com/hbomb79/Reel/internal/catalog"
	"github.com/hbomb79/Reel/internal/database"
	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/fs"
)

const testConfig = `
log_level: debug
data_dir: ~/reel-data
network:
  offline: true
database:
  driver: sqlite
scan:
  parallelism: 8
library:
  watch_paths:
    - ~/films
rest:
  host_address: 127.0.0.1:9000
  rate_limit: 3
categories:
  - id: Film
    name: Films
  - id: anime
    name: Anime
`

func withHome(t *testing.T) string {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })
	return home
}

func TestLoadConfig_FromFile(t *testing.T) {
	home := withHome(t)
	dir := fs.NewDir(t, "config", fs.WithFile("reel.yaml", testConfig))

	config, err := LoadConfig(dir.Join("reel.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "debug", config.LogLevel)
	assert.True(t, config.Network.Offline)
	assert.Equal(t, 8, config.Scan.Parallelism)
	assert.Equal(t, "127.0.0.1:9000", config.RestConfig.HostAddr)
	assert.Equal(t, 3, config.RestConfig.RateLimit)
	assert.Len(t, config.Categories, 2)

	// Paths are expanded, and derived from the data dir when not set
	dataDir := filepath.Join(home, "reel-data")
	assert.Equal(t, dataDir, config.DataDirPath)
	assert.Equal(t, filepath.Join(dataDir, "reel.db"), config.Database.Path)
	assert.Equal(t, filepath.Join(dataDir, "thumbnails"), config.Probe.ThumbnailDir)
	assert.Equal(t, filepath.Join(dataDir, "posters"), config.Poster.Dir)
	assert.Equal(t, []string{filepath.Join(home, "films")}, config.Library.WatchPaths)

	// Defaults are applied for values missing from the file
	assert.Equal(t, 16, config.Library.QueueSize)
	assert.EqualValues(t, 20*1024*1024, config.Poster.MaxBytes)
}

func TestLoadConfig_EnvironmentTakesPrecedence(t *testing.T) {
	withHome(t)
	dir := fs.NewDir(t, "config", fs.WithFile("reel.yaml", testConfig))

	t.Setenv("NETWORK_OFFLINE", "false")
	t.Setenv("DB_DRIVER", database.DriverPostgres)
	t.Setenv("DB_PATH", "/var/lib/reel/catalog.db")

	config, err := LoadConfig(dir.Join("reel.yaml"))
	require.NoError(t, err)
	assert.False(t, config.Network.Offline)
	assert.Equal(t, database.DriverPostgres, config.Database.Driver)
	assert.Equal(t, "/var/lib/reel/catalog.db", config.Database.Path)
}

func TestLoadConfig_EnvironmentOnly(t *testing.T) {
	home := withHome(t)
	t.Setenv("DATA_DIR", "~/elsewhere")
	t.Setenv("API_HOST_ADDR", "0.0.0.0:1234")

	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "elsewhere"), config.DataDirPath)
	assert.Equal(t, "0.0.0.0:1234", config.RestConfig.HostAddr)
	assert.Equal(t, database.DriverSQLite, config.Database.Driver)
	assert.Equal(t, "info", config.LogLevel)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	withHome(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNew_RejectsReservedCategory(t *testing.T) {
	withHome(t)
	config, err := LoadConfig("")
	require.NoError(t, err)

	config.Categories = []catalog.Category{{ID: catalog.Unsorted, Name: "Nope"}}
	_, err = New(*config)
	assert.ErrorContains(t, err, "reserved")
}
