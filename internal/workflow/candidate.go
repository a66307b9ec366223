package workflow

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/hbomb79/Reel/internal/catalog"
	"github.com/hbomb79/Reel/internal/probe"
)

var (
	yearPattern       = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	separatorReplacer = strings.NewReplacer(".", " ", "_", " ", "-", " ")
)

type (
	// Candidate is a file found by the scan which is waiting to be
	// classified and committed to the catalog.
	Candidate struct {
		ID              uuid.UUID `json:"id"`
		Path            string    `json:"path"`
		Title           string    `json:"title"`
		Format          string    `json:"format"`
		DurationSeconds int       `json:"durationSeconds"`
		SizeBytes       int64     `json:"sizeBytes"`
		ThumbnailPath   *string   `json:"thumbnailPath"`
		Classification  *string   `json:"classification"`
		Details         *Details  `json:"details,omitempty"`
	}

	// Details are user provided overrides for the probed information.
	Details struct {
		Title       *string `json:"title,omitempty"`
		Year        *int    `json:"year,omitempty"`
		Description *string `json:"description,omitempty"`
	}
)

func newCandidate(c *probe.Candidate) *Candidate {
	return &Candidate{
		ID:              uuid.New(),
		Path:            c.Path,
		Title:           c.Title,
		Format:          c.Format,
		DurationSeconds: c.DurationSeconds,
		SizeBytes:       c.SizeBytes,
		ThumbnailPath:   c.ThumbnailPath,
	}
}

func (c *Candidate) isClassified() bool { return c.Classification != nil }

// needsDetails is true for candidates which were given a real category
func (c *Candidate) needsDetails() bool {
	return c.Classification != nil && *c.Classification != catalog.Unsorted
}

func (c *Candidate) clone() Candidate {
	cp := *c
	if c.Classification != nil {
		classification := *c.Classification
		cp.Classification = &classification
	}
	if c.Details != nil {
		details := *c.Details
		cp.Details = &details
	}

	return cp
}

// newRecord converts the candidate to a catalog record. Details are only
// applied to classified candidates; unsorted candidates keep their defaults.
func (c *Candidate) newRecord() catalog.NewRecord {
	record := catalog.NewRecord{
		Path:            c.Path,
		Title:           c.Title,
		Format:          c.Format,
		DurationSeconds: c.DurationSeconds,
		SizeBytes:       c.SizeBytes,
		ThumbnailPath:   c.ThumbnailPath,
		Category:        catalog.Unsorted,
	}
	if c.Classification != nil {
		record.Category = *c.Classification
	}

	if c.Details != nil && c.needsDetails() {
		if c.Details.Title != nil && strings.TrimSpace(*c.Details.Title) != "" {
			record.Title = strings.TrimSpace(*c.Details.Title)
		}
		record.Year = c.Details.Year
		record.Description = c.Details.Description
	}

	return record
}

// merge applies any non-nil fields of the update to the details
func (d *Details) merge(update Details) {
	if update.Title != nil {
		d.Title = update.Title
	}
	if update.Year != nil {
		d.Year = update.Year
	}
	if update.Description != nil {
		d.Description = update.Description
	}
}

// InferDetails derives a clean title and (if present) a release year
// from a file name such as 'The.Matrix.1999.1080p.mkv'.
//
// The extension is stripped, the first 19xx/20xx token is extracted as the
// year, and dots, underscores and dashes are replaced with spaces.
func InferDetails(path string) Details {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	var year *int
	if loc := yearPattern.FindStringIndex(name); loc != nil {
		if y, err := strconv.Atoi(name[loc[0]:loc[1]]); err == nil {
			year = &y
		}
		name = name[:loc[0]] + " " + name[loc[1]:]
	}

	title := strings.Join(strings.Fields(separatorReplacer.Replace(name)), " ")
	return Details{Title: &title, Year: year}
}
