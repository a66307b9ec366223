package catalog

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// FormatDuration renders a number of seconds as HH:MM:SS.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}

	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}

// FormatSize renders a byte count using base-1024 units.
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}

	return humanize.IBytes(uint64(bytes))
}
