package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hbomb79/Reel/internal/catalog"
	"github.com/hbomb79/Reel/internal/metrics"
	"github.com/hbomb79/Reel/internal/probe"
	"github.com/hbomb79/Reel/pkg/logger"
	"github.com/hbomb79/Reel/pkg/worker"
)

var log = logger.Get("Scanner")

type (
	Prober interface {
		Supports(path string) bool
		Probe(ctx context.Context, path string) (*probe.Candidate, error)
	}

	Catalog interface {
		GetRecordByPath(ctx context.Context, path string) (*catalog.MediaRecord, error)
	}

	Config struct {
		// The maximum number of files being probed at once.
		Parallelism int `yaml:"parallelism" env:"SCAN_PARALLELISM" env-default:"4"`
	}

	// Scanner walks directory trees looking for video files which are not
	// yet present in the catalog, and probes them to produce candidates.
	Scanner struct {
		config  Config
		prober  Prober
		catalog Catalog
	}
)

func New(config Config, prober Prober, catalog Catalog) *Scanner {
	if config.Parallelism < 1 {
		config.Parallelism = 1
	}

	return &Scanner{config: config, prober: prober, catalog: catalog}
}

// Discover walks the root directory depth-first and calls 'fn' with every
// supported file which is not already cataloged, in walk order. Errors reading
// individual entries are recorded on the report and the walk continues. If 'fn'
// returns an error, the walk is stopped and that error is returned.
//
// Symbolic links to directories are NOT followed, which guarantees termination
// in the presence of link cycles. Links to regular files are followed.
func (scanner *Scanner) Discover(ctx context.Context, root string, fn func(path string) error) (*Report, error) {
	report := newReport(filepath.Clean(root))
	if err := scanner.walk(ctx, report, fn); err != nil {
		return report, err
	}

	return report, nil
}

// Scan discovers all new files under the root and probes them using a
// bounded pool of workers. The walk blocks whenever the pool is saturated.
// Candidates are returned in discovery order; files which failed probing
// are omitted and recorded on the report.
func (scanner *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	log.Emit(logger.NEW, "Scanning %s\n", root)

	report := newReport(filepath.Clean(root))
	pool := worker.NewPool(ctx, "scan", scanner.config.Parallelism)
	mutex := &sync.Mutex{}
	found := make(map[int]*probe.Candidate)
	seq := 0

	walkErr := scanner.walk(ctx, report, func(path string) error {
		index := seq
		seq++

		return pool.Submit(func(ctx context.Context) error {
			if candidate := scanner.probe(ctx, report, path); candidate != nil {
				mutex.Lock()
				found[index] = candidate
				mutex.Unlock()
			}

			return nil
		})
	})
	pool.Wait()

	if walkErr != nil {
		return nil, walkErr
	}

	result := &Result{Candidates: ordered(found), Report: report}
	log.Emit(logger.SUCCESS, "Scan of %s complete, %d new candidates (%s)\n", root, len(result.Candidates), report)
	return result, nil
}

// ScanFile probes a single file, applying the same filtering and
// de-duplication as a directory scan.
func (scanner *Scanner) ScanFile(ctx context.Context, path string) (*Result, error) {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ScanIOError{Path: path, Err: err}
	} else if !info.Mode().IsRegular() {
		return nil, &ScanIOError{Path: path, Err: errors.New("not a regular file")}
	}

	report := newReport(path)
	result := &Result{Candidates: make([]*probe.Candidate, 0, 1), Report: report}
	err = scanner.visitFile(ctx, report, path, func(p string) error {
		if candidate := scanner.probe(ctx, report, p); candidate != nil {
			result.Candidates = append(result.Candidates, candidate)
		}
		return nil
	})

	return result, err
}

func (scanner *Scanner) walk(ctx context.Context, report *Report, fn func(path string) error) error {
	root := report.Root
	if info, err := os.Stat(root); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	} else if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, root)
	}

	// WalkDir does not descend in to a root which is itself a link, so the
	// root is resolved first. Paths are still reported beneath the root given.
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}

	return filepath.WalkDir(resolved, func(walked string, entry fs.DirEntry, err error) error {
		path := walked
		if rel, relErr := filepath.Rel(resolved, walked); relErr == nil {
			path = filepath.Join(root, rel)
		}

		if err != nil {
			if walked == resolved {
				return fmt.Errorf("%w: %w", ErrInvalidRoot, err)
			}

			log.Emit(logger.WARNING, "Failed to read %s, skipping: %v\n", path, err)
			report.addError(&ScanIOError{Path: path, Err: err})
			metrics.RecordScannedFile("io_error")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if entry.IsDir() {
			return nil
		}

		if entry.Type()&fs.ModeSymlink != 0 {
			target, err := os.Stat(path)
			if err != nil {
				log.Emit(logger.WARNING, "Broken link %s: %v\n", path, err)
				report.addError(&ScanIOError{Path: path, Err: err})
				metrics.RecordScannedFile("io_error")
				return nil
			}
			if target.IsDir() {
				log.Emit(logger.DEBUG, "Not following directory link %s\n", path)
				return nil
			}
			if !target.Mode().IsRegular() {
				return nil
			}
		} else if !entry.Type().IsRegular() {
			return nil
		}

		return scanner.visitFile(ctx, report, path, fn)
	})
}

func (scanner *Scanner) visitFile(ctx context.Context, report *Report, path string, fn func(string) error) error {
	report.update(func(r *Report) { r.Visited++ })
	if !scanner.prober.Supports(path) {
		report.update(func(r *Report) { r.Unsupported++ })
		metrics.RecordScannedFile("unsupported")
		return nil
	}

	if _, err := scanner.catalog.GetRecordByPath(ctx, path); err == nil {
		report.update(func(r *Report) { r.AlreadyCataloged++ })
		metrics.RecordScannedFile("cataloged")
		return nil
	} else if !errors.Is(err, catalog.ErrRecordNotFound) {
		log.Emit(logger.ERROR, "Catalog lookup for %s failed: %v\n", path, err)
		report.addError(fmt.Errorf("catalog lookup for %s: %w", path, err))
		return nil
	}

	report.update(func(r *Report) { r.Accepted++ })
	metrics.RecordScannedFile("accepted")
	return fn(path)
}

// probe runs the prober against the path, and records any failure on
// the report. Nil is returned if the file is not a valid candidate.
func (scanner *Scanner) probe(ctx context.Context, report *Report, path string) *probe.Candidate {
	candidate, err := scanner.prober.Probe(ctx, path)
	switch {
	case err == nil:
		return candidate
	case errors.Is(err, probe.ErrTooShort):
		log.Emit(logger.DEBUG, "Ignoring %s: %v\n", path, err)
		report.update(func(r *Report) { r.TooShort++ })
	case errors.Is(err, probe.ErrUnsupportedFormat):
		report.update(func(r *Report) { r.Unsupported++ })
	default:
		log.Emit(logger.WARNING, "Probe of %s failed: %v\n", path, err)
		report.update(func(r *Report) {
			r.ProbeFailed++
			r.Errors = append(r.Errors, err)
		})
	}

	return nil
}

func ordered(found map[int]*probe.Candidate) []*probe.Candidate {
	keys := make([]int, 0, len(found))
	for k := range found {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	out := make([]*probe.Candidate, 0, len(keys))
	for _, k := range keys {
		out = append(out, found[k])
	}

	return out
}
