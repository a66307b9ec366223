package workflow

import (
	"errors"
	"fmt"
)

type Stage int

const (
	IDLE Stage = iota
	SCANNING
	CLASSIFYING
	DETAILING
	COMMITTING
	DONE
)

func (s Stage) String() string {
	switch s {
	case IDLE:
		return "IDLE"
	case SCANNING:
		return "SCANNING"
	case CLASSIFYING:
		return "CLASSIFYING"
	case DETAILING:
		return "DETAILING"
	case COMMITTING:
		return "COMMITTING"
	case DONE:
		return "DONE"
	}

	return fmt.Sprintf("UNKNOWN(%d)", int(s))
}

func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type ScanMode string

const (
	FolderMode ScanMode = "folder"
	FileMode   ScanMode = "file"
)

// ScanRequest starts a new classification session, scanning either a
// single file or an entire folder for new candidates.
type ScanRequest struct {
	Mode ScanMode `json:"mode" validate:"required,oneof=folder file"`
	Path string   `json:"path" validate:"required"`
}

var (
	ErrSessionActive            = errors.New("a classification session is already active")
	ErrNoCandidates             = errors.New("no new video files found")
	ErrInvalidStage             = errors.New("action not permitted in current stage")
	ErrInvalidMode              = errors.New("scan mode must be 'folder' or 'file'")
	ErrClassificationIncomplete = errors.New("all candidates must be classified before proceeding")
	ErrUnknownCategory          = errors.New("unknown category")
	ErrCandidateNotFound        = errors.New("candidate not found")
	ErrSessionCancelled         = errors.New("classification session was cancelled")
)

func invalidStage(action string, stage Stage) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidStage, action, stage)
}
