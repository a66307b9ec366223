package library

import "time"

// Config controls the background scanning of library folders.
type Config struct {
	// Folders which are watched for changes, and scanned on startup. New
	// files found in these folders are cataloged as 'unsorted'.
	WatchPaths []string `yaml:"watch_paths" env:"LIBRARY_WATCH_PATHS" env-separator:","`

	// The filesystem watcher can miss events (e.g. on network shares), so the
	// watched folders are also rescanned on this interval. Zero disables it.
	ForceSyncSeconds int `yaml:"force_sync_seconds" env:"LIBRARY_FORCE_SYNC_SECONDS" env-default:"3600"`

	// A burst of filesystem events (such as a large copy) only triggers a
	// rescan once no events have been received for this long.
	WatchDebounceSeconds int `yaml:"watch_debounce_seconds" env:"LIBRARY_WATCH_DEBOUNCE_SECONDS" env-default:"10"`

	// The number of finished jobs retained for display.
	JobHistory int `yaml:"job_history" env:"LIBRARY_JOB_HISTORY" env-default:"50"`

	// The number of jobs which may be queued before new requests are refused.
	QueueSize int `yaml:"queue_size" env:"LIBRARY_QUEUE_SIZE" env-default:"16"`
}

func (config Config) forceSyncInterval() time.Duration {
	return time.Duration(config.ForceSyncSeconds) * time.Second
}

func (config Config) debounce() time.Duration {
	return time.Duration(config.WatchDebounceSeconds) * time.Second
}
