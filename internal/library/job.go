package library

import (
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Reel/internal/scan"
)

type JobState int

const (
	QUEUED JobState = iota
	SCANNING
	COMPLETE
	FAILED
)

func (s JobState) String() string {
	switch s {
	case QUEUED:
		return "QUEUED"
	case SCANNING:
		return "SCANNING"
	case COMPLETE:
		return "COMPLETE"
	case FAILED:
		return "FAILED"
	}

	return "UNKNOWN"
}

func (s JobState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Job is a single background scan of a folder. Every new file
// found is cataloged as 'unsorted'.
type Job struct {
	ID         uuid.UUID     `json:"id"`
	Root       string        `json:"root"`
	State      JobState      `json:"state"`
	Discovered int           `json:"discovered"`
	Cataloged  int           `json:"cataloged"`
	Failed     int           `json:"failed"`
	Errors     []string      `json:"errors"`
	Scan       *scan.Summary `json:"scan,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	StartedAt  *time.Time    `json:"startedAt,omitempty"`
	FinishedAt *time.Time    `json:"finishedAt,omitempty"`
}

func newJob(root string) *Job {
	return &Job{ID: uuid.New(), Root: root, State: QUEUED, Errors: make([]string, 0), CreatedAt: time.Now()}
}

func (job *Job) finished() bool { return job.State == COMPLETE || job.State == FAILED }

func (job *Job) clone() *Job {
	cp := *job
	cp.Errors = append([]string(nil), job.Errors...)
	return &cp
}
