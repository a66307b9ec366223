package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Reel/internal/api"
	"github.com/hbomb79/Reel/internal/auth"
	"github.com/hbomb79/Reel/internal/catalog"
	"github.com/hbomb79/Reel/internal/event"
	"github.com/hbomb79/Reel/internal/library"
	"github.com/hbomb79/Reel/internal/poster"
	"github.com/hbomb79/Reel/internal/probe"
	"github.com/hbomb79/Reel/internal/scan"
	"github.com/hbomb79/Reel/internal/stream"
	"github.com/hbomb79/Reel/internal/workflow"
	"github.com/hbomb79/Reel/pkg/logger"
	"github.com/hbomb79/Reel/tests/helpers"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.SetMinLoggingLevel(logger.VERBOSE.Level())
}

// memoryStore is an in-memory catalog satisfying every store
// interface the gateway depends on.
type memoryStore struct {
	mutex   sync.Mutex
	records map[int64]*catalog.MediaRecord
	nextID  int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[int64]*catalog.MediaRecord)}
}

func (s *memoryStore) CreateRecord(_ context.Context, record catalog.NewRecord) (*catalog.MediaRecord, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, existing := range s.records {
		if existing.Path == record.Path {
			return nil, fmt.Errorf("%w: %s", catalog.ErrDuplicatePath, record.Path)
		}
	}

	s.nextID++
	created := &catalog.MediaRecord{
		ID:              s.nextID,
		Title:           record.Title,
		Path:            record.Path,
		Format:          record.Format,
		DurationSeconds: record.DurationSeconds,
		SizeBytes:       record.SizeBytes,
		ThumbnailPath:   record.ThumbnailPath,
		Category:        record.Category,
		Year:            record.Year,
		Description:     record.Description,
		LastScan:        time.Now(),
	}
	s.records[created.ID] = created
	return created, nil
}

func (s *memoryStore) GetRecord(_ context.Context, id int64) (*catalog.MediaRecord, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if record, ok := s.records[id]; ok {
		cp := *record
		return &cp, nil
	}

	return nil, catalog.ErrRecordNotFound
}

func (s *memoryStore) ListRecords(ctx context.Context) ([]*catalog.MediaRecord, error) {
	return s.ListRecordsByCategory(ctx, "")
}

func (s *memoryStore) ListRecordsByCategory(_ context.Context, category string) ([]*catalog.MediaRecord, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]*catalog.MediaRecord, 0, len(s.records))
	for _, record := range s.records {
		if category == "" || record.Category == category {
			cp := *record
			out = append(out, &cp)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) DeleteRecord(_ context.Context, id int64) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, ok := s.records[id]
	delete(s.records, id)
	return ok, nil
}

func (s *memoryStore) GetStats(_ context.Context) (*catalog.Stats, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	stats := &catalog.Stats{Formats: make([]catalog.FormatStats, 0)}
	for _, record := range s.records {
		stats.TotalFiles++
		stats.TotalSize += record.SizeBytes
	}

	return stats, nil
}

func (s *memoryStore) UpdateRecordCategory(_ context.Context, id int64, category string) error {
	return s.mutate(id, func(r *catalog.MediaRecord) { r.Category = category })
}

func (s *memoryStore) UpdateRecordPoster(_ context.Context, id int64, path string) error {
	return s.mutate(id, func(r *catalog.MediaRecord) { r.LocalPosterPath = &path })
}

func (s *memoryStore) UpdateRecordMetadata(_ context.Context, id int64, metadata catalog.Metadata) error {
	return s.mutate(id, func(r *catalog.MediaRecord) {
		r.Title = metadata.Title
		r.Format = metadata.Format
		r.DurationSeconds = metadata.DurationSeconds
		r.SizeBytes = metadata.SizeBytes
		r.ThumbnailPath = metadata.ThumbnailPath
	})
}

func (s *memoryStore) mutate(id int64, fn func(*catalog.MediaRecord)) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	record, ok := s.records[id]
	if !ok {
		return catalog.ErrRecordNotFound
	}

	fn(record)
	return nil
}

type fakeScanner struct {
	names []string
}

func (f *fakeScanner) Scan(_ context.Context, root string) (*scan.Result, error) {
	candidates := make([]*probe.Candidate, 0, len(f.names))
	for _, name := range f.names {
		path := filepath.Join(root, name)
		candidates = append(candidates, &probe.Candidate{Path: path, Title: probe.TitleOf(path), Format: probe.FormatOf(path), DurationSeconds: 5400, SizeBytes: 2048})
	}

	return &scan.Result{Candidates: candidates, Report: &scan.Report{Root: root, Accepted: len(candidates)}}, nil
}

func (f *fakeScanner) ScanFile(ctx context.Context, path string) (*scan.Result, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &scan.ScanIOError{Path: path, Err: err}
	}

	return f.Scan(ctx, filepath.Dir(path))
}

type fakeProber struct {
	candidate *probe.Candidate
	err       error
}

func (f *fakeProber) Probe(context.Context, string) (*probe.Candidate, error) {
	return f.candidate, f.err
}

type testGateway struct {
	http.Handler
	store   *memoryStore
	scanner *fakeScanner
	prober  *fakeProber
}

type gatewayOptions struct {
	secret    string
	offline   bool
	rateLimit int
}

func newGateway(t *testing.T, opts gatewayOptions) *testGateway {
	store := newMemoryStore()
	scanner := &fakeScanner{}
	prober := &fakeProber{}
	bus := event.New()

	categories, err := catalog.NewCategories(nil)
	require.NoError(t, err)

	gateway := api.NewRestGateway(&api.RestConfig{RateLimit: opts.rateLimit}, api.Services{
		Store:      store,
		Library:    library.New(library.Config{}, scanner, store, bus),
		Streamer:   stream.New(store),
		Prober:     prober,
		Posters:    poster.New(poster.Config{Dir: t.TempDir()}, opts.offline),
		Workflow:   workflow.New(workflow.Config{}, scanner, store, categories, bus),
		Categories: categories,
		Verifier:   auth.NewVerifier(auth.Config{Secret: opts.secret}),
		EventBus:   bus,
		Offline:    opts.offline,
	})

	return &testGateway{Handler: gateway, store: store, scanner: scanner, prober: prober}
}

func (g *testGateway) do(t *testing.T, method string, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, "/api/reel/v1"+path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, req)
	return rec
}

func (g *testGateway) seed(t *testing.T, path string, category string) *catalog.MediaRecord {
	record, err := g.store.CreateRecord(context.Background(), catalog.NewRecord{
		Path:            path,
		Title:           probe.TitleOf(path),
		Format:          probe.FormatOf(path),
		DurationSeconds: 3725,
		SizeBytes:       1536,
		Category:        category,
	})
	require.NoError(t, err)
	return record
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "response body: %s", rec.Body.String())
	return out
}

func TestMovies_List(t *testing.T) {
	gateway := newGateway(t, gatewayOptions{})
	gateway.seed(t, "/media/Alpha.mp4", "film")
	gateway.seed(t, "/media/Beta.mkv", catalog.Unsorted)

	rec := gateway.do(t, http.MethodGet, "/movies", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	type listResponse struct {
		Success bool `json:"success"`
		Count   int  `json:"count"`
		Movies  []struct {
			ID                int64  `json:"id"`
			Format            string `json:"format"`
			FormattedDuration string `json:"formattedDuration"`
			FormattedSize     string `json:"formattedSize"`
		} `json:"movies"`
	}
	list := decode[listResponse](t, rec)
	assert.True(t, list.Success)
	assert.Equal(t, 2, list.Count)
	require.Len(t, list.Movies, 2)
	assert.Equal(t, "mp4", list.Movies[0].Format)
	assert.Equal(t, "01:02:05", list.Movies[0].FormattedDuration)
	assert.Equal(t, "1.5 KiB", list.Movies[0].FormattedSize)

	rec = gateway.do(t, http.MethodGet, "/movies?category=film", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[listResponse](t, rec).Count)
}

func TestMovies_UnknownCategoryIsUnsorted(t *testing.T) {
	gateway := newGateway(t, gatewayOptions{})
	stale := gateway.seed(t, "/media/Alpha.mp4", "documentary")
	gateway.seed(t, "/media/Beta.mkv", catalog.Unsorted)
	gateway.seed(t, "/media/Gamma.mkv", "film")

	type movieResponse struct {
		Movie struct {
			Category string `json:"category"`
		} `json:"movie"`
	}
	rec := gateway.do(t, http.MethodGet, fmt.Sprintf("/movies/%d", stale.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, catalog.Unsorted, decode[movieResponse](t, rec).Movie.Category)

	type listResponse struct {
		Count  int `json:"count"`
		Movies []struct {
			ID       int64  `json:"id"`
			Category string `json:"category"`
		} `json:"movies"`
	}
	rec = gateway.do(t, http.MethodGet, "/movies?category=unsorted", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[listResponse](t, rec)
	assert.Equal(t, 2, list.Count)
	for _, movie := range list.Movies {
		assert.Equal(t, catalog.Unsorted, movie.Category)
	}

	rec = gateway.do(t, http.MethodGet, "/movies?category=documentary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[listResponse](t, rec).Count)
}

func TestMovies_GetAndDelete(t *testing.T) {
	gateway := newGateway(t, gatewayOptions{})
	record := gateway.seed(t, "/media/Alpha.mp4", "film")
	path := fmt.Sprintf("/movies/%d", record.ID)

	rec := gateway.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = gateway.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = gateway.do(t, http.MethodDelete, path, nil)
	helpers.AssertErrorResponse(t, rec, http.StatusNotFound, "record not found")

	rec = gateway.do(t, http.MethodGet, path, nil)
	helpers.AssertErrorResponse(t, rec, http.StatusNotFound, "record not found")

	rec = gateway.do(t, http.MethodGet, "/movies/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMovies_Stream(t *testing.T) {
	gateway := newGateway(t, gatewayOptions{})
	dir := t.TempDir()
	record := gateway.seed(t, helpers.WriteSequentialFile(t, dir, "movie.mp4", 1000), "film")
	missing := gateway.seed(t, filepath.Join(dir, "gone.mp4"), "film")

	rec := gateway.do(t, http.MethodGet, fmt.Sprintf("/movies/stream/%d", record.ID), nil, "Range", "bytes=100-199")
	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 100-199/1000", rec.Header().Get("Content-Range"))
	assert.Equal(t, "100", rec.Header().Get("Content-Length"))
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	require.Len(t, rec.Body.Bytes(), 100)
	assert.Equal(t, byte(100), rec.Body.Bytes()[0])

	rec = gateway.do(t, http.MethodGet, fmt.Sprintf("/movies/stream/%d", record.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Body.Bytes(), 1000)

	rec = gateway.do(t, http.MethodGet, fmt.Sprintf("/movies/stream/%d", record.ID), nil, "Range", "bytes=5000-")
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
	assert.Equal(t, "bytes */1000", rec.Header().Get("Content-Range"))

	rec = gateway.do(t, http.MethodGet, fmt.Sprintf("/movies/stream/%d", missing.ID), nil)
	helpers.AssertErrorResponse(t, rec, http.StatusNotFound, "video file missing on disk")

	rec = gateway.do(t, http.MethodGet, "/movies/stream/999", nil)
	helpers.AssertErrorResponse(t, rec, http.StatusNotFound, "record not found")
}

func TestMovies_Stats(t *testing.T) {
	gateway := newGateway(t, gatewayOptions{})
	gateway.seed(t, "/media/Alpha.mp4", "film")

	rec := gateway.do(t, http.MethodGet, "/movies/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	type statsResponse struct {
		Success bool `json:"success"`
		Stats   struct {
			TotalFiles int64 `json:"totalFiles"`
			TotalSize  int64 `json:"totalSize"`
		} `json:"stats"`
	}
	stats := decode[statsResponse](t, rec)
	assert.Equal(t, int64(1), stats.Stats.TotalFiles)
	assert.Equal(t, int64(1536), stats.Stats.TotalSize)
}

func TestMovies_UpdateCategory(t *testing.T) {
	gateway := newGateway(t, gatewayOptions{})
	record := gateway.seed(t, "/media/Alpha.mp4", catalog.Unsorted)
	path := fmt.Sprintf("/movies/%d/category", record.ID)

	rec := gateway.do(t, http.MethodPatch, path, map[string]string{"category": "documentary"})
	helpers.AssertErrorResponse(t, rec, http.StatusBadRequest, "unknown category 'documentary'")

	rec = gateway.do(t, http.MethodPatch, path, map[string]string{"category": "series"})
	assert.Equal(t, http.StatusOK, rec.Code)

	updated, err := gateway.store.GetRecord(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, "series", updated.Category)

	rec = gateway.do(t, http.MethodPatch, "/movies/999/category", map[string]string{"category": "series"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMovies_Refresh(t *testing.T) {
	gateway := newGateway(t, gatewayOptions{})
	record := gateway.seed(t, "/media/Alpha.mp4", "film")
	path := fmt.Sprintf("/movies/%d/refresh", record.ID)

	gateway.prober.err = fmt.Errorf("%w: too short", probe.ErrTooShort)
	rec := gateway.do(t, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	gateway.prober.err = fmt.Errorf("%w: /media/Alpha.mp4", probe.ErrFileMissing)
	rec = gateway.do(t, http.MethodPost, path, nil)
	helpers.AssertErrorResponse(t, rec, http.StatusNotFound, "video file missing on disk")

	gateway.prober.err = nil
	gateway.prober.candidate = &probe.Candidate{Path: record.Path, Title: "Alpha", Format: "mp4", DurationSeconds: 7200, SizeBytes: 4096}
	rec = gateway.do(t, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	updated, err := gateway.store.GetRecord(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, 7200, updated.DurationSeconds)
	assert.Equal(t, int64(4096), updated.SizeBytes)
	assert.Equal(t, record.Title, updated.Title)
}

func TestMovies_Thumbnail(t *testing.T) {
	gateway := newGateway(t, gatewayOptions{})
	record := gateway.seed(t, "/media/Alpha.mp4", "film")

	rec := gateway.do(t, http.MethodGet, fmt.Sprintf("/movies/%d/thumbnail", record.ID), nil)
	helpers.AssertErrorResponse(t, rec, http.StatusNotFound, "movie has no thumbnail")

	thumbnail := helpers.WriteSequentialFile(t, t.TempDir(), "thumb.jpg", 64)
	require.NoError(t, gateway.store.UpdateRecordMetadata(context.Background(), record.ID, catalog.Metadata{
		Title: record.Title, Format: record.Format, DurationSeconds: record.DurationSeconds, SizeBytes: record.SizeBytes, ThumbnailPath: &thumbnail,
	}))

	rec = gateway.do(t, http.MethodGet, fmt.Sprintf("/movies/%d/thumbnail", record.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Body.Bytes(), 64)
}

func TestMovies_DownloadPoster(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("poster-bytes"))
	}))
	t.Cleanup(server.Close)

	gateway := newGateway(t, gatewayOptions{})
	record := gateway.seed(t, "/media/Alpha.mp4", "film")

	rec := gateway.do(t, http.MethodPost, "/movies/download-poster", map[string]any{"movieId": record.ID, "posterUrl": server.URL + "/poster.png"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	type posterResponse struct {
		LocalPath string `json:"localPath"`
	}
	localPath := decode[posterResponse](t, rec).LocalPath
	assert.True(t, strings.HasSuffix(localPath, ".png"))

	updated, err := gateway.store.GetRecord(context.Background(), record.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.LocalPosterPath)
	assert.Equal(t, localPath, *updated.LocalPosterPath)

	rec = gateway.do(t, http.MethodPost, "/movies/download-poster", map[string]any{"movieId": 999, "posterUrl": server.URL + "/poster.png"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = gateway.do(t, http.MethodPost, "/movies/download-poster", map[string]any{"movieId": record.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMovies_DownloadPosterOffline(t *testing.T) {
	gateway := newGateway(t, gatewayOptions{offline: true})
	record := gateway.seed(t, "/media/Alpha.mp4", "film")

	rec := gateway.do(t, http.MethodPost, "/movies/download-poster", map[string]any{"movieId": record.ID, "posterUrl": "https://example.com/poster.jpg"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	apiErr := helpers.ExtractErrorResponse(t, rec.Body.Bytes())
	require.NotNil(t, apiErr.Offline)
	assert.True(t, *apiErr.Offline)
}

func TestMovies_Scan(t *testing.T) {
	gateway := newGateway(t, gatewayOptions{rateLimit: 3})

	rec := gateway.do(t, http.MethodPost, "/movies/scan", map[string]string{"drivePath": filepath.Join(t.TempDir(), "missing")})
	helpers.AssertErrorResponse(t, rec, http.StatusBadRequest, "drive path is invalid or inaccessible")

	dir := t.TempDir()
	rec = gateway.do(t, http.MethodPost, "/movies/scan", map[string]string{"drivePath": dir})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = gateway.do(t, http.MethodGet, "/movies/scans", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), dir)

	// Scans are rate limited per client
	rec = gateway.do(t, http.MethodPost, "/movies/scan", map[string]string{"drivePath": dir})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = gateway.do(t, http.MethodPost, "/movies/scan", map[string]string{"drivePath": dir})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

type snapshotResponse struct {
	Stage      string `json:"stage"`
	Candidates []struct {
		ID             uuid.UUID `json:"id"`
		Path           string    `json:"path"`
		Classification *string   `json:"classification"`
	} `json:"candidates"`
	LastCommit *struct {
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
	} `json:"lastCommit"`
}

func TestImports_ClassifyDetailAndCommit(t *testing.T) {
	gateway := newGateway(t, gatewayOptions{})
	gateway.scanner.names = []string{"The.Matrix.1999.mkv", "Holiday.mp4"}
	dir := t.TempDir()

	rec := gateway.do(t, http.MethodPost, "/imports", map[string]string{"mode": "folder", "path": dir})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	snapshot := decode[snapshotResponse](t, rec)
	assert.Equal(t, "CLASSIFYING", snapshot.Stage)
	require.Len(t, snapshot.Candidates, 2)
	matrix, holiday := snapshot.Candidates[0].ID, snapshot.Candidates[1].ID

	rec = gateway.do(t, http.MethodPost, "/imports", map[string]string{"mode": "folder", "path": dir})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = gateway.do(t, http.MethodPut, fmt.Sprintf("/imports/candidates/%s/classification", matrix), map[string]string{"category": "film"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = gateway.do(t, http.MethodPost, "/imports/proceed", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = gateway.do(t, http.MethodPut, fmt.Sprintf("/imports/candidates/%s/classification", holiday), map[string]string{"category": "nonsense"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = gateway.do(t, http.MethodPost, fmt.Sprintf("/imports/candidates/%s/skip", uuid.New()), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = gateway.do(t, http.MethodPost, fmt.Sprintf("/imports/candidates/%s/skip", holiday), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = gateway.do(t, http.MethodPost, "/imports/proceed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "DETAILING")

	rec = gateway.do(t, http.MethodPost, fmt.Sprintf("/imports/candidates/%s/autofill", matrix), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"year":1999`)

	rec = gateway.do(t, http.MethodPatch, fmt.Sprintf("/imports/candidates/%s/details", matrix), map[string]any{"year": 1200})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = gateway.do(t, http.MethodPatch, fmt.Sprintf("/imports/candidates/%s/details", matrix), map[string]any{"description": "Red pill"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = gateway.do(t, http.MethodPost, "/imports/commit", map[string]bool{"keepDefaults": false})
	require.Equal(t, http.StatusOK, rec.Code)
	type commitResponse struct {
		Summary string `json:"summary"`
		Report  struct {
			Succeeded int `json:"succeeded"`
			Failed    int `json:"failed"`
		} `json:"report"`
	}
	commit := decode[commitResponse](t, rec)
	assert.Equal(t, 2, commit.Report.Succeeded)
	assert.Equal(t, "2 succeeded, 0 failed", commit.Summary)

	records, err := gateway.store.ListRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	byPath := make(map[string]*catalog.MediaRecord)
	for _, record := range records {
		byPath[filepath.Base(record.Path)] = record
	}

	film := byPath["The.Matrix.1999.mkv"]
	require.NotNil(t, film)
	assert.Equal(t, "The Matrix", film.Title)
	assert.Equal(t, "film", film.Category)
	require.NotNil(t, film.Description)
	assert.Equal(t, "Red pill", *film.Description)
	require.NotNil(t, byPath["Holiday.mp4"])
	assert.Equal(t, catalog.Unsorted, byPath["Holiday.mp4"].Category)

	rec = gateway.do(t, http.MethodGet, "/imports", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	// The session is cleared once committed, leaving the report behind
	snapshot = decode[snapshotResponse](t, rec)
	assert.Equal(t, "IDLE", snapshot.Stage)
	assert.Empty(t, snapshot.Candidates)
	require.NotNil(t, snapshot.LastCommit)
	assert.Equal(t, 2, snapshot.LastCommit.Succeeded)
}

func TestImports_StartFailures(t *testing.T) {
	gateway := newGateway(t, gatewayOptions{})

	rec := gateway.do(t, http.MethodPost, "/imports", map[string]string{"mode": "disk", "path": t.TempDir()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = gateway.do(t, http.MethodPost, "/imports", map[string]string{"mode": "folder", "path": t.TempDir()})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = gateway.do(t, http.MethodPost, "/imports", map[string]string{"mode": "file", "path": filepath.Join(t.TempDir(), "missing.mp4")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = gateway.do(t, http.MethodPost, "/imports/skip-all", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = gateway.do(t, http.MethodDelete, "/imports", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestBodiesAreCheckedBeforeHandlers(t *testing.T) {
	gateway := newGateway(t, gatewayOptions{})
	gateway.scanner.names = []string{"a.mp4"}

	rec := gateway.do(t, http.MethodPost, "/imports", map[string]string{"mode": "folder"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	apiErr := helpers.ExtractErrorResponse(t, rec.Body.Bytes())
	assert.Contains(t, apiErr.Message, `property "path" is missing`)

	rec = gateway.do(t, http.MethodPost, "/imports", map[string]any{"mode": "folder", "path": 12})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Neither request reached the workflow
	rec = gateway.do(t, http.MethodGet, "/imports", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "IDLE", decode[snapshotResponse](t, rec).Stage)

	record := gateway.seed(t, "/media/Alpha.mp4", "film")
	rec = gateway.do(t, http.MethodPatch, fmt.Sprintf("/movies/%d/category", record.ID), map[string]string{"category": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = gateway.do(t, http.MethodPatch, "/movies/0/category", map[string]string{"category": "film"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	apiErr = helpers.ExtractErrorResponse(t, rec.Body.Bytes())
	assert.Contains(t, apiErr.Message, "parameter 'id' is invalid")

	// Routes without a body are not described, and still reach their handler
	rec = gateway.do(t, http.MethodGet, "/movies/stats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestImports_SkipAllCommitsImmediately(t *testing.T) {
	gateway := newGateway(t, gatewayOptions{})
	gateway.scanner.names = []string{"a.mp4", "b.mp4", "c.mp4"}

	rec := gateway.do(t, http.MethodPost, "/imports", map[string]string{"mode": "folder", "path": t.TempDir()})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = gateway.do(t, http.MethodPost, "/imports/skip-all", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = gateway.do(t, http.MethodPost, "/imports/proceed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"succeeded":3`)

	records, err := gateway.store.ListRecordsByCategory(context.Background(), catalog.Unsorted)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestCategoriesAndStatus(t *testing.T) {
	gateway := newGateway(t, gatewayOptions{offline: true})

	rec := gateway.do(t, http.MethodGet, "/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"film"`)
	assert.Contains(t, rec.Body.String(), `"id":"unsorted"`)

	rec = gateway.do(t, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	type statusResponse struct {
		Offline  bool   `json:"offline"`
		Mode     string `json:"mode"`
		Workflow string `json:"workflow"`
	}
	status := decode[statusResponse](t, rec)
	assert.True(t, status.Offline)
	assert.Equal(t, "offline", status.Mode)
	assert.Equal(t, "IDLE", status.Workflow)
}

func TestSessionIsRequired(t *testing.T) {
	secret := helpers.RandomSecret()
	gateway := newGateway(t, gatewayOptions{secret: secret})

	rec := gateway.do(t, http.MethodGet, "/movies", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = gateway.do(t, http.MethodGet, "/imports", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = gateway.do(t, http.MethodGet, "/movies", nil, echo.HeaderAuthorization, "Bearer "+helpers.SignedSessionToken(t, secret, time.Minute))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Status and metrics never require a session
	rec = gateway.do(t, http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = gateway.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
