package workflow

import (
	"fmt"
	"strings"

	"github.com/hbomb79/Reel/internal/catalog"
)

// CommitReport describes the outcome of committing a batch of candidates
// to the catalog. A commit may partially succeed.
type CommitReport struct {
	Succeeded int                    `json:"succeeded"`
	Failed    int                    `json:"failed"`
	Errors    []string               `json:"errors"`
	Records   []*catalog.MediaRecord `json:"-"`
}

func (report *CommitReport) addError(err error) {
	report.Failed++
	msg := err.Error()
	for _, existing := range report.Errors {
		if existing == msg {
			return
		}
	}

	report.Errors = append(report.Errors, msg)
}

// Summary renders the report for display, e.g. '3 succeeded, 2 failed: ...'
func (report *CommitReport) Summary() string {
	summary := fmt.Sprintf("%d succeeded, %d failed", report.Succeeded, report.Failed)
	if len(report.Errors) == 0 {
		return summary
	}

	return summary + ": " + strings.Join(report.Errors, "; ")
}

func (report *CommitReport) recordIDs() []int64 {
	ids := make([]int64, 0, len(report.Records))
	for _, r := range report.Records {
		ids = append(ids, r.ID)
	}

	return ids
}
