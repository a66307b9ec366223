package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hbomb79/Reel/internal/catalog"
	"github.com/hbomb79/Reel/internal/event"
	"github.com/hbomb79/Reel/internal/metrics"
	"github.com/hbomb79/Reel/internal/scan"
	"github.com/hbomb79/Reel/pkg/logger"
	"github.com/hbomb79/Reel/pkg/worker"
)

var log = logger.Get("Workflow")

type (
	Scanner interface {
		Scan(ctx context.Context, root string) (*scan.Result, error)
		ScanFile(ctx context.Context, path string) (*scan.Result, error)
	}

	Catalog interface {
		CreateRecord(ctx context.Context, record catalog.NewRecord) (*catalog.MediaRecord, error)
	}

	Config struct {
		// The maximum number of records being created at once during a commit.
		CommitParallelism int `yaml:"commit_parallelism" env:"WORKFLOW_COMMIT_PARALLELISM" env-default:"4"`
	}

	// Listener is notified of every stage the controller enters. Listeners are
	// called synchronously, without the controller lock held.
	Listener func(Stage)

	// Snapshot is a consistent copy of the controller state.
	Snapshot struct {
		Stage      Stage         `json:"stage"`
		Mode       ScanMode      `json:"mode,omitempty"`
		Root       string        `json:"root,omitempty"`
		Candidates []Candidate   `json:"candidates"`
		Scan       *scan.Summary `json:"scan,omitempty"`
		LastCommit *CommitReport `json:"lastCommit,omitempty"`
	}

	session struct {
		stage      Stage
		request    ScanRequest
		candidates []*Candidate
		scan       *scan.Summary
	}

	// Controller drives the classification workflow. At most one session
	// exists at a time; all mutations are serialized by the controller lock.
	// Long running phases (scanning and committing) release the lock while
	// they run.
	Controller struct {
		mutex       sync.Mutex
		config      Config
		scanner     Scanner
		catalog     Catalog
		categories  *catalog.Categories
		eventBus    event.EventDispatcher
		session     *session
		lastCommit  *CommitReport
		listeners   []Listener
		transitions []Stage
	}
)

func New(config Config, scanner Scanner, store Catalog, categories *catalog.Categories, eventBus event.EventDispatcher) *Controller {
	if config.CommitParallelism < 1 {
		config.CommitParallelism = 1
	}

	return &Controller{
		config:     config,
		scanner:    scanner,
		catalog:    store,
		categories: categories,
		eventBus:   eventBus,
		listeners:  make([]Listener, 0),
	}
}

// Subscribe registers a listener for stage changes.
func (c *Controller) Subscribe(listener Listener) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.listeners = append(c.listeners, listener)
}

// Start begins a new session by scanning the path in the request. The call
// blocks until the scan completes. If the scan fails or finds nothing new then
// the session is discarded and an error is returned.
func (c *Controller) Start(ctx context.Context, request ScanRequest) (*Snapshot, error) {
	if request.Mode != FolderMode && request.Mode != FileMode {
		return nil, ErrInvalidMode
	}

	sess := &session{request: request}
	if err := c.update(func() error {
		if c.session != nil {
			return ErrSessionActive
		}

		c.session = sess
		c.setStage(SCANNING)
		return nil
	}); err != nil {
		return nil, err
	}

	var result *scan.Result
	var err error
	if request.Mode == FileMode {
		result, err = c.scanner.ScanFile(ctx, request.Path)
	} else {
		result, err = c.scanner.Scan(ctx, request.Path)
	}

	var snapshot *Snapshot
	if updateErr := c.update(func() error {
		if c.session != sess {
			return ErrSessionCancelled
		}

		if err != nil {
			c.session = nil
			c.setStage(IDLE)
			return fmt.Errorf("scan of %s failed: %w", request.Path, err)
		} else if len(result.Candidates) == 0 {
			c.session = nil
			c.setStage(IDLE)
			return fmt.Errorf("%w in %s", ErrNoCandidates, request.Path)
		}

		summary := result.Report.Summary()
		sess.scan = &summary
		sess.candidates = make([]*Candidate, 0, len(result.Candidates))
		for _, candidate := range result.Candidates {
			sess.candidates = append(sess.candidates, newCandidate(candidate))
		}

		c.setStage(CLASSIFYING)
		snapshot = c.snapshot()
		return nil
	}); updateErr != nil {
		return nil, updateErr
	}

	log.Emit(logger.NEW, "Classification session started with %d candidates from %s\n", len(snapshot.Candidates), request.Path)
	return snapshot, nil
}

// Classify assigns the category (or 'unsorted') to the candidate.
func (c *Controller) Classify(id uuid.UUID, category string) error {
	category = strings.ToLower(strings.TrimSpace(category))
	return c.update(func() error {
		if err := c.requireStage("classify", CLASSIFYING); err != nil {
			return err
		}
		if category != catalog.Unsorted && !c.categories.Has(category) {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
		}

		candidate, err := c.candidate(id)
		if err != nil {
			return err
		}

		candidate.Classification = &category
		return nil
	})
}

// Skip marks the candidate as 'unsorted'.
func (c *Controller) Skip(id uuid.UUID) error {
	return c.Classify(id, catalog.Unsorted)
}

// SkipAll marks every candidate as 'unsorted', replacing any existing
// classification.
func (c *Controller) SkipAll() error {
	return c.update(func() error {
		if err := c.requireStage("skip", CLASSIFYING); err != nil {
			return err
		}

		for _, candidate := range c.session.candidates {
			unsorted := catalog.Unsorted
			candidate.Classification = &unsorted
		}
		return nil
	})
}

// CanProceed returns true if the session is classifying and every
// candidate has been classified.
func (c *Controller) CanProceed() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.canProceed()
}

// Proceed moves on from classification. If any candidate was given a real
// category, the session moves to DETAILING and a nil report is returned.
// Otherwise there are no details to collect, and the batch is committed
// immediately.
func (c *Controller) Proceed(ctx context.Context) (*CommitReport, error) {
	var sess *session
	if err := c.update(func() error {
		if err := c.requireStage("proceed", CLASSIFYING); err != nil {
			return err
		} else if !c.canProceed() {
			return ErrClassificationIncomplete
		}

		for _, candidate := range c.session.candidates {
			if candidate.needsDetails() {
				c.setStage(DETAILING)
				return nil
			}
		}

		sess = c.session
		c.setStage(COMMITTING)
		return nil
	}); err != nil || sess == nil {
		return nil, err
	}

	return c.commit(ctx, sess), nil
}

// Back returns from DETAILING to CLASSIFYING. Details already entered
// are retained.
func (c *Controller) Back() error {
	return c.update(func() error {
		if err := c.requireStage("go back", DETAILING); err != nil {
			return err
		}

		c.setStage(CLASSIFYING)
		return nil
	})
}

// UpdateDetails merges the non-nil fields of the details provided in to
// those of the candidate.
func (c *Controller) UpdateDetails(id uuid.UUID, details Details) (*Candidate, error) {
	var updated Candidate
	err := c.update(func() error {
		candidate, err := c.detailCandidate(id)
		if err != nil {
			return err
		}

		if candidate.Details == nil {
			candidate.Details = &Details{}
		}
		candidate.Details.merge(details)
		updated = candidate.clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// AutoFill infers a title and year from the candidates file name, and
// applies them as its details.
func (c *Controller) AutoFill(id uuid.UUID) (*Candidate, error) {
	var updated Candidate
	err := c.update(func() error {
		candidate, err := c.detailCandidate(id)
		if err != nil {
			return err
		}

		if candidate.Details == nil {
			candidate.Details = &Details{}
		}
		candidate.Details.merge(InferDetails(candidate.Path))
		updated = candidate.clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// KeepDefaults commits the session with whatever classifications and details
// are currently set, including auto-filled and untouched values. It only
// differs from Save in how the client arrived at the commit.
func (c *Controller) KeepDefaults(ctx context.Context) (*CommitReport, error) {
	return c.commitFromDetails(ctx)
}

// Save commits the session, applying the details entered for each candidate.
func (c *Controller) Save(ctx context.Context) (*CommitReport, error) {
	return c.commitFromDetails(ctx)
}

// Cancel discards the current session. A session cannot be cancelled
// while it is being committed.
func (c *Controller) Cancel() error {
	return c.update(func() error {
		if c.session == nil {
			return nil
		} else if c.session.stage == COMMITTING {
			return invalidStage("cancel", COMMITTING)
		}

		log.Emit(logger.REMOVE, "Classification session for %s cancelled\n", c.session.request.Path)
		c.session = nil
		c.setStage(IDLE)
		return nil
	})
}

func (c *Controller) Snapshot() Snapshot {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return *c.snapshot()
}

func (c *Controller) commitFromDetails(ctx context.Context) (*CommitReport, error) {
	var sess *session
	if err := c.update(func() error {
		if err := c.requireStage("commit", DETAILING); err != nil {
			return err
		}

		sess = c.session
		c.setStage(COMMITTING)
		return nil
	}); err != nil {
		return nil, err
	}

	return c.commit(ctx, sess), nil
}

// commit creates a catalog record for every candidate in the session using
// a bounded pool. Failures are collected on the report and do not stop the
// remaining candidates being committed. The session is cleared once complete.
func (c *Controller) commit(ctx context.Context, sess *session) *CommitReport {
	log.Emit(logger.INFO, "Committing %d candidates\n", len(sess.candidates))

	var (
		mutex   sync.Mutex
		records = make([]*catalog.MediaRecord, len(sess.candidates))
		errs    = make([]error, len(sess.candidates))
	)

	pool := worker.NewPool(ctx, "commit", c.config.CommitParallelism)
	for i, candidate := range sess.candidates {
		i := i
		record := candidate.newRecord()
		if err := pool.Submit(func(ctx context.Context) error {
			created, err := c.catalog.CreateRecord(ctx, record)

			mutex.Lock()
			defer mutex.Unlock()
			records[i], errs[i] = created, err
			return nil
		}); err != nil {
			mutex.Lock()
			errs[i] = err
			mutex.Unlock()
		}
	}
	pool.Wait()

	report := &CommitReport{Errors: make([]string, 0), Records: make([]*catalog.MediaRecord, 0, len(records))}
	for i := range sess.candidates {
		if errs[i] != nil {
			metrics.RecordCommit("failure")
			report.addError(errs[i])
			continue
		}

		metrics.RecordCommit("success")
		report.Succeeded++
		report.Records = append(report.Records, records[i])
	}

	_ = c.update(func() error {
		c.lastCommit = report
		if c.session == sess {
			c.session = nil
		}
		c.setStage(DONE)
		return nil
	})

	if report.Succeeded > 0 {
		c.eventBus.Dispatch(event.CATALOG_UPDATE, event.CatalogChange{Reason: "import", RecordIDs: report.recordIDs()})
	}

	level := logger.SUCCESS
	if report.Failed > 0 {
		level = logger.WARNING
	}
	log.Emit(level, "Commit complete: %s\n", report.Summary())
	return report
}

// update runs the function while holding the controller lock. Once released,
// any stage transitions made by the function are announced to the stage
// listeners, and a WORKFLOW_UPDATE is dispatched if anything changed.
func (c *Controller) update(fn func() error) error {
	c.mutex.Lock()
	err := fn()
	transitions := c.transitions
	c.transitions = nil
	listeners := append([]Listener(nil), c.listeners...)
	current := c.stage()
	c.mutex.Unlock()

	for _, stage := range transitions {
		for _, listener := range listeners {
			listener(stage)
		}
		c.eventBus.Dispatch(event.WORKFLOW_UPDATE, event.WorkflowChange{Stage: stage.String()})
	}
	if len(transitions) == 0 && err == nil {
		c.eventBus.Dispatch(event.WORKFLOW_UPDATE, event.WorkflowChange{Stage: current.String()})
	}

	return err
}

// setStage must be called with the lock held
func (c *Controller) setStage(stage Stage) {
	if c.session != nil {
		c.session.stage = stage
	}
	c.transitions = append(c.transitions, stage)
}

func (c *Controller) stage() Stage {
	if c.session == nil {
		return IDLE
	}

	return c.session.stage
}

func (c *Controller) requireStage(action string, stage Stage) error {
	if current := c.stage(); current != stage {
		return invalidStage(action, current)
	}

	return nil
}

func (c *Controller) canProceed() bool {
	if c.stage() != CLASSIFYING {
		return false
	}

	for _, candidate := range c.session.candidates {
		if !candidate.isClassified() {
			return false
		}
	}

	return true
}

func (c *Controller) candidate(id uuid.UUID) (*Candidate, error) {
	for _, candidate := range c.session.candidates {
		if candidate.ID == id {
			return candidate, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrCandidateNotFound, id)
}

// detailCandidate finds a candidate which is awaiting details. Candidates
// classified as 'unsorted' are not part of the details view.
func (c *Controller) detailCandidate(id uuid.UUID) (*Candidate, error) {
	if err := c.requireStage("edit details", DETAILING); err != nil {
		return nil, err
	}

	candidate, err := c.candidate(id)
	if err != nil {
		return nil, err
	} else if !candidate.needsDetails() {
		return nil, fmt.Errorf("%w: %s is unsorted", ErrCandidateNotFound, id)
	}

	return candidate, nil
}

func (c *Controller) snapshot() *Snapshot {
	snapshot := &Snapshot{Stage: c.stage(), Candidates: make([]Candidate, 0), LastCommit: c.lastCommit}
	if c.session == nil {
		return snapshot
	}

	snapshot.Mode = c.session.request.Mode
	snapshot.Root = c.session.request.Path
	snapshot.Scan = c.session.scan
	for _, candidate := range c.session.candidates {
		snapshot.Candidates = append(snapshot.Candidates, candidate.clone())
	}

	return snapshot
}

// DetailCandidates returns the candidates of the snapshot which are
// awaiting details (i.e. those not classified as 'unsorted').
func (snapshot Snapshot) DetailCandidates() []Candidate {
	out := make([]Candidate, 0, len(snapshot.Candidates))
	for _, candidate := range snapshot.Candidates {
		if candidate.needsDetails() {
			out = append(out, candidate)
		}
	}

	return out
}
