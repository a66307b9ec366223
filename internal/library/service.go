package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Reel/internal/catalog"
	"github.com/hbomb79/Reel/internal/event"
	"github.com/hbomb79/Reel/internal/scan"
	"github.com/hbomb79/Reel/pkg/logger"
	"github.com/rjeczalik/notify"
)

var log = logger.Get("Library")

var (
	ErrInvalidPath = errors.New("path is not an accessible directory")
	ErrQueueFull   = errors.New("too many scans are already queued")
)

type (
	Scanner interface {
		Scan(ctx context.Context, root string) (*scan.Result, error)
	}

	Catalog interface {
		CreateRecord(ctx context.Context, record catalog.NewRecord) (*catalog.MediaRecord, error)
	}

	// Service runs background scans of folders, cataloging every new video
	// file it finds as 'unsorted'. Scans are requested explicitly via
	// QueueScan, or automatically for the configured watch paths when the
	// filesystem changes and on a regular interval.
	//
	// Jobs are processed one at a time, in the order they were queued.
	Service struct {
		mutex    sync.Mutex
		config   Config
		scanner  Scanner
		catalog  Catalog
		eventBus event.EventDispatcher
		jobs     []*Job
		queue    chan *Job
	}
)

func New(config Config, scanner Scanner, store Catalog, eventBus event.EventDispatcher) *Service {
	if config.QueueSize < 1 {
		config.QueueSize = 16
	}
	if config.JobHistory < 1 {
		config.JobHistory = 50
	}

	return &Service{
		config:   config,
		scanner:  scanner,
		catalog:  store,
		eventBus: eventBus,
		jobs:     make([]*Job, 0),
		queue:    make(chan *Job, config.QueueSize),
	}
}

// Run processes queued jobs, and watches the configured library folders,
// until the context is cancelled.
func (service *Service) Run(ctx context.Context) error {
	fsEvents := make(chan notify.EventInfo, 64)
	for _, path := range service.config.WatchPaths {
		if err := notify.Watch(filepath.Join(path, "..."), fsEvents, notify.Create, notify.Rename, notify.Write); err != nil {
			log.Emit(logger.WARNING, "Unable to watch library folder %s, it will only be scanned periodically: %v\n", path, err)
			continue
		}

		log.Emit(logger.INFO, "Watching library folder %s\n", path)
	}
	defer notify.Stop(fsEvents)

	var forceSync <-chan time.Time
	if len(service.config.WatchPaths) > 0 && service.config.ForceSyncSeconds > 0 {
		ticker := time.NewTicker(service.config.forceSyncInterval())
		defer ticker.Stop()
		forceSync = ticker.C
	}

	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()
	var debounceCh <-chan time.Time

	service.syncWatchPaths()
	for {
		select {
		case job := <-service.queue:
			service.process(ctx, job)
		case ev := <-fsEvents:
			log.Emit(logger.VERBOSE, "Filesystem event %s for %s\n", ev.Event(), ev.Path())
			debounce.Reset(service.config.debounce())
			debounceCh = debounce.C
		case <-debounceCh:
			debounceCh = nil
			service.syncWatchPaths()
		case <-forceSync:
			service.syncWatchPaths()
		case <-ctx.Done():
			return nil
		}
	}
}

// QueueScan queues a background scan of the folder provided. If a scan of
// the same folder is already waiting in the queue, that job is returned
// instead of queueing a duplicate.
func (service *Service) QueueScan(root string) (*Job, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}
	if info, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPath, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, root)
	}

	service.mutex.Lock()
	for _, job := range service.jobs {
		if job.Root == root && job.State == QUEUED {
			service.mutex.Unlock()
			return job.clone(), nil
		}
	}

	job := newJob(root)
	select {
	case service.queue <- job:
	default:
		service.mutex.Unlock()
		return nil, ErrQueueFull
	}
	service.jobs = append(service.jobs, job)
	cp := job.clone()
	service.mutex.Unlock()

	log.Emit(logger.NEW, "Queued scan %s of %s\n", job.ID, root)
	service.eventBus.Dispatch(event.SCAN_UPDATE, job.ID)
	return cp, nil
}

// Jobs returns a copy of every job known to the service, oldest first.
func (service *Service) Jobs() []*Job {
	service.mutex.Lock()
	defer service.mutex.Unlock()

	out := make([]*Job, 0, len(service.jobs))
	for _, job := range service.jobs {
		out = append(out, job.clone())
	}

	return out
}

func (service *Service) Job(id uuid.UUID) (*Job, bool) {
	service.mutex.Lock()
	defer service.mutex.Unlock()

	for _, job := range service.jobs {
		if job.ID == id {
			return job.clone(), true
		}
	}

	return nil, false
}

func (service *Service) syncWatchPaths() {
	for _, path := range service.config.WatchPaths {
		if _, err := service.QueueScan(path); err != nil {
			log.Emit(logger.WARNING, "Unable to queue scan of library folder %s: %v\n", path, err)
		}
	}
}

// process scans the jobs folder and catalogs every candidate found. Failing
// to catalog one candidate does not prevent the others being cataloged.
func (service *Service) process(ctx context.Context, job *Job) {
	service.updateJob(job, func(j *Job) {
		now := time.Now()
		j.State = SCANNING
		j.StartedAt = &now
	})

	result, err := service.scanner.Scan(ctx, job.Root)
	if err != nil {
		log.Emit(logger.ERROR, "Scan %s of %s failed: %v\n", job.ID, job.Root, err)
		service.updateJob(job, func(j *Job) {
			j.State = FAILED
			j.Errors = append(j.Errors, err.Error())
		})
		return
	}

	var (
		created = make([]int64, 0, len(result.Candidates))
		errs    = make([]string, 0)
	)
	for _, candidate := range result.Candidates {
		record, err := service.catalog.CreateRecord(ctx, catalog.NewRecord{
			Path:            candidate.Path,
			Title:           candidate.Title,
			Format:          candidate.Format,
			DurationSeconds: candidate.DurationSeconds,
			SizeBytes:       candidate.SizeBytes,
			ThumbnailPath:   candidate.ThumbnailPath,
			Category:        catalog.Unsorted,
		})
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}

		created = append(created, record.ID)
	}

	summary := result.Report.Summary()
	service.updateJob(job, func(j *Job) {
		j.State = COMPLETE
		j.Discovered = len(result.Candidates)
		j.Cataloged = len(created)
		j.Failed = len(errs)
		j.Errors = append(append(j.Errors, errs...), summary.Errors...)
		j.Scan = &summary
	})

	if len(created) > 0 {
		service.eventBus.Dispatch(event.CATALOG_UPDATE, event.CatalogChange{Reason: "scan", RecordIDs: created})
	}
	log.Emit(logger.SUCCESS, "Scan %s of %s complete, cataloged %d of %d new files\n", job.ID, job.Root, len(created), len(result.Candidates))
}

// updateJob applies the mutation to the job while holding the lock, and
// notifies the event bus of the change.
func (service *Service) updateJob(job *Job, fn func(*Job)) {
	service.mutex.Lock()
	fn(job)
	if job.finished() {
		now := time.Now()
		job.FinishedAt = &now
		service.trimHistory()
	}
	service.mutex.Unlock()

	service.eventBus.Dispatch(event.SCAN_UPDATE, job.ID)
}

// trimHistory removes the oldest finished jobs until at most JobHistory
// finished jobs remain. Must be called with the lock held.
func (service *Service) trimHistory() {
	finished := 0
	for _, job := range service.jobs {
		if job.finished() {
			finished++
		}
	}

	kept := service.jobs[:0]
	for _, job := range service.jobs {
		if job.finished() && finished > service.config.JobHistory {
			finished--
			continue
		}
		kept = append(kept, job)
	}
	service.jobs = kept
}
