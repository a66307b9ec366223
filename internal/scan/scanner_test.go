package scan_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hbomb79/Reel/internal/catalog"
	"github.com/hbomb79/Reel/internal/probe"
	"github.com/hbomb79/Reel/internal/scan"
	"github.com/hbomb79/Reel/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gotest.tools/v3/fs"
)

func init() {
	logger.SetMinLoggingLevel(logger.VERBOSE.Level())
}

var ctx = context.Background()

// fakeInspector reports a duration of 5 minutes for any file with "short"
// in its name, and 2 hours otherwise. It tracks the number of concurrent
// calls to Duration.
type fakeInspector struct {
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeInspector) Duration(_ context.Context, path string) (time.Duration, error) {
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.peak.Load()
		if current <= seen || f.peak.CompareAndSwap(seen, current) {
			break
		}
	}
	time.Sleep(f.delay)

	if strings.Contains(filepath.Base(path), "short") {
		return 5 * time.Minute, nil
	}
	return 2 * time.Hour, nil
}

func (f *fakeInspector) Thumbnail(context.Context, string, string, time.Duration, string) error {
	return nil
}

// fakeCatalog is an in-memory set of cataloged paths
type fakeCatalog struct {
	sync.Mutex
	paths map[string]bool
}

func newFakeCatalog(paths ...string) *fakeCatalog {
	c := &fakeCatalog{paths: make(map[string]bool)}
	for _, p := range paths {
		c.paths[p] = true
	}
	return c
}

func (c *fakeCatalog) GetRecordByPath(_ context.Context, path string) (*catalog.MediaRecord, error) {
	c.Lock()
	defer c.Unlock()
	if c.paths[path] {
		return &catalog.MediaRecord{Path: path}, nil
	}
	return nil, catalog.ErrRecordNotFound
}

func newScanner(parallelism int, inspector probe.Inspector, cat scan.Catalog) *scan.Scanner {
	prober := probe.New(probe.Config{MinDurationMinutes: 15, SupportedFormats: []string{"mp4", "mkv", "avi"}}, inspector)
	return scan.New(scan.Config{Parallelism: parallelism}, prober, cat)
}

func candidatePaths(result *scan.Result) []string {
	paths := make([]string, 0, len(result.Candidates))
	for _, c := range result.Candidates {
		paths = append(paths, c.Path)
	}
	return paths
}

func TestScan_WalksRecursivelyInOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := fs.NewDir(t, "library",
		fs.WithFile("b.mkv", "x"),
		fs.WithFile("a.MP4", "x"),
		fs.WithFile("notes.txt", "x"),
		fs.WithDir("season1",
			fs.WithFile("ep1.avi", "x"),
			fs.WithDir("extras", fs.WithFile("bonus.mp4", "x")),
		),
		fs.WithDir("empty"),
	)
	defer dir.Remove()

	result, err := newScanner(3, &fakeInspector{delay: time.Millisecond}, newFakeCatalog()).Scan(ctx, dir.Path())
	require.NoError(t, err)

	assert.Equal(t, []string{
		dir.Join("a.MP4"),
		dir.Join("b.mkv"),
		dir.Join("season1", "ep1.avi"),
		dir.Join("season1", "extras", "bonus.mp4"),
	}, candidatePaths(result))
	assert.Equal(t, 5, result.Report.Visited)
	assert.Equal(t, 1, result.Report.Unsupported)
	assert.Equal(t, 4, result.Report.Accepted)
	assert.Empty(t, result.Report.Errors)
}

func TestScan_SkipsCatalogedAndShortFiles(t *testing.T) {
	dir := fs.NewDir(t, "library",
		fs.WithFile("known.mp4", "x"),
		fs.WithFile("new.mp4", "x"),
		fs.WithFile("short-clip.mp4", "x"),
	)
	defer dir.Remove()

	cat := newFakeCatalog(dir.Join("known.mp4"))
	result, err := newScanner(2, &fakeInspector{}, cat).Scan(ctx, dir.Path())
	require.NoError(t, err)

	assert.Equal(t, []string{dir.Join("new.mp4")}, candidatePaths(result))
	assert.Equal(t, 1, result.Report.AlreadyCataloged)
	assert.Equal(t, 1, result.Report.TooShort)
	assert.Zero(t, result.Report.ProbeFailed)
}

func TestScan_DoesNotFollowDirectoryLinks(t *testing.T) {
	dir := fs.NewDir(t, "library",
		fs.WithDir("movies", fs.WithFile("film.mkv", "x")),
	)
	defer dir.Remove()

	// A cycle back to the root, and a second route to an existing directory
	require.NoError(t, os.Symlink(dir.Path(), dir.Join("movies", "loop")))
	require.NoError(t, os.Symlink(dir.Join("movies"), dir.Join("alias")))

	result, err := newScanner(2, &fakeInspector{}, newFakeCatalog()).Scan(ctx, dir.Path())
	require.NoError(t, err)
	assert.Equal(t, []string{dir.Join("movies", "film.mkv")}, candidatePaths(result))
}

func TestScan_FollowsFileLinksAndReportsBrokenLinks(t *testing.T) {
	target := fs.NewDir(t, "elsewhere", fs.WithFile("real.mp4", "x"))
	defer target.Remove()

	dir := fs.NewDir(t, "library", fs.WithFile("zzz.mkv", "x"))
	defer dir.Remove()

	require.NoError(t, os.Symlink(target.Join("real.mp4"), dir.Join("linked.mp4")))
	require.NoError(t, os.Symlink(target.Join("gone.mp4"), dir.Join("dangling.mp4")))

	result, err := newScanner(1, &fakeInspector{}, newFakeCatalog()).Scan(ctx, dir.Path())
	require.NoError(t, err)

	assert.Equal(t, []string{dir.Join("linked.mp4"), dir.Join("zzz.mkv")}, candidatePaths(result))
	require.Len(t, result.Report.Errors, 1)

	var ioErr *scan.ScanIOError
	require.ErrorAs(t, result.Report.Errors[0], &ioErr)
	assert.Equal(t, dir.Join("dangling.mp4"), ioErr.Path)
}

func TestScan_RootMayBeALink(t *testing.T) {
	target := fs.NewDir(t, "elsewhere",
		fs.WithFile("film.mkv", "x"),
		fs.WithDir("extras", fs.WithFile("bonus.mp4", "x")),
	)
	defer target.Remove()

	root := filepath.Join(t.TempDir(), "library")
	require.NoError(t, os.Symlink(target.Path(), root))

	result, err := newScanner(1, &fakeInspector{}, newFakeCatalog()).Scan(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "extras", "bonus.mp4"),
		filepath.Join(root, "film.mkv"),
	}, candidatePaths(result))
	assert.Empty(t, result.Report.Errors)
}

func TestScan_UnreadableDirectoryDoesNotAbort(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks are bypassed when running as root")
	}

	dir := fs.NewDir(t, "library",
		fs.WithDir("a-locked", fs.WithFile("hidden.mp4", "x")),
		fs.WithDir("b-open", fs.WithFile("visible.mp4", "x")),
	)
	defer dir.Remove()

	locked := dir.Join("a-locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	defer os.Chmod(locked, 0o755)

	result, err := newScanner(1, &fakeInspector{}, newFakeCatalog()).Scan(ctx, dir.Path())
	require.NoError(t, err)
	assert.Equal(t, []string{dir.Join("b-open", "visible.mp4")}, candidatePaths(result))
	assert.Len(t, result.Report.Errors, 1)
}

func TestScan_BoundedParallelism(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ops := make([]fs.PathOp, 0, 24)
	for i := 0; i < 24; i++ {
		ops = append(ops, fs.WithFile(string(rune('a'+i))+".mp4", "x"))
	}
	dir := fs.NewDir(t, "library", ops...)
	defer dir.Remove()

	inspector := &fakeInspector{delay: 5 * time.Millisecond}
	result, err := newScanner(3, inspector, newFakeCatalog()).Scan(ctx, dir.Path())
	require.NoError(t, err)

	assert.Len(t, result.Candidates, 24)
	assert.LessOrEqual(t, inspector.peak.Load(), int32(3))
	assert.Equal(t, dir.Join("a.mp4"), result.Candidates[0].Path, "candidates must retain discovery order")
}

func TestScan_InvalidRoot(t *testing.T) {
	s := newScanner(1, &fakeInspector{}, newFakeCatalog())

	_, err := s.Scan(ctx, filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, scan.ErrInvalidRoot)

	file := filepath.Join(t.TempDir(), "file.mp4")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = s.Scan(ctx, file)
	assert.ErrorIs(t, err, scan.ErrInvalidRoot)
}

func TestDiscover_StopsWhenCallbackFails(t *testing.T) {
	dir := fs.NewDir(t, "library", fs.WithFile("a.mp4", "x"), fs.WithFile("b.mp4", "x"))
	defer dir.Remove()

	seen := make([]string, 0)
	_, err := newScanner(1, &fakeInspector{}, newFakeCatalog()).Discover(ctx, dir.Path(), func(path string) error {
		seen = append(seen, path)
		return assert.AnError
	})

	assert.ErrorIs(t, err, assert.AnError)
	assert.Len(t, seen, 1)
}

func TestScanFile(t *testing.T) {
	dir := fs.NewDir(t, "library", fs.WithFile("single.mkv", "x"), fs.WithFile("short.mkv", "x"))
	defer dir.Remove()

	s := newScanner(1, &fakeInspector{}, newFakeCatalog())
	result, err := s.ScanFile(ctx, dir.Join("single.mkv"))
	require.NoError(t, err)
	assert.Equal(t, []string{dir.Join("single.mkv")}, candidatePaths(result))

	result, err = s.ScanFile(ctx, dir.Join("short.mkv"))
	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
	assert.Equal(t, 1, result.Report.TooShort)

	_, err = s.ScanFile(ctx, dir.Join("nope.mkv"))
	var ioErr *scan.ScanIOError
	assert.ErrorAs(t, err, &ioErr)
}
