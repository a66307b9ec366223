package probe

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrFileMissing       = errors.New("file missing on disk")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrTooShort          = errors.New("duration below minimum")
	ErrInspectionFailed  = errors.New("media inspection failed")
	ErrThumbnailFailed   = errors.New("thumbnail generation failed")
)

// TooShortError is returned when the probed file's duration falls below
// the configured minimum. It matches ErrTooShort.
type TooShortError struct {
	Path     string
	Duration time.Duration
	Minimum  time.Duration
}

func (e *TooShortError) Error() string {
	return fmt.Sprintf("%s: %s is %s long, minimum is %s", ErrTooShort, e.Path, e.Duration.Round(time.Second), e.Minimum)
}

func (e *TooShortError) Is(target error) bool {
	return target == ErrTooShort
}
