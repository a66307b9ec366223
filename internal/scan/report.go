package scan

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hbomb79/Reel/internal/probe"
)

var ErrInvalidRoot = errors.New("scan root is not an accessible directory")

// ScanIOError is a non-fatal failure to read a single entry during a walk.
type ScanIOError struct {
	Path string
	Err  error
}

func (e *ScanIOError) Error() string { return fmt.Sprintf("scan %s: %v", e.Path, e.Err) }
func (e *ScanIOError) Unwrap() error { return e.Err }

type (
	// Report summarises a single scan. It is safe for concurrent use
	// while the scan is running.
	Report struct {
		mutex            sync.Mutex
		Root             string
		Visited          int
		Accepted         int
		AlreadyCataloged int
		Unsupported      int
		TooShort         int
		ProbeFailed      int
		Errors           []error
	}

	Result struct {
		Candidates []*probe.Candidate
		Report     *Report
	}
)

func newReport(root string) *Report {
	return &Report{Root: root, Errors: make([]error, 0)}
}

func (report *Report) update(fn func(*Report)) {
	report.mutex.Lock()
	defer report.mutex.Unlock()
	fn(report)
}

func (report *Report) addError(err error) {
	report.update(func(r *Report) { r.Errors = append(r.Errors, err) })
}

func (report *Report) String() string {
	report.mutex.Lock()
	defer report.mutex.Unlock()

	return fmt.Sprintf(
		"visited=%d accepted=%d cataloged=%d unsupported=%d too_short=%d probe_failed=%d errors=%d",
		report.Visited, report.Accepted, report.AlreadyCataloged, report.Unsupported, report.TooShort, report.ProbeFailed, len(report.Errors),
	)
}

// Summary is a point-in-time copy of a Report, suitable for
// serialising to clients.
type Summary struct {
	Root             string   `json:"root"`
	Visited          int      `json:"visited"`
	Accepted         int      `json:"accepted"`
	AlreadyCataloged int      `json:"alreadyCataloged"`
	Unsupported      int      `json:"unsupported"`
	TooShort         int      `json:"tooShort"`
	ProbeFailed      int      `json:"probeFailed"`
	Errors           []string `json:"errors"`
}

func (report *Report) Summary() Summary {
	report.mutex.Lock()
	defer report.mutex.Unlock()

	errs := make([]string, 0, len(report.Errors))
	for _, err := range report.Errors {
		errs = append(errs, err.Error())
	}

	return Summary{
		Root:             report.Root,
		Visited:          report.Visited,
		Accepted:         report.Accepted,
		AlreadyCataloged: report.AlreadyCataloged,
		Unsupported:      report.Unsupported,
		TooShort:         report.TooShort,
		ProbeFailed:      report.ProbeFailed,
		Errors:           errs,
	}
}
