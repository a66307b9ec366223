package internal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Reel/internal/event"
	"github.com/hbomb79/Reel/pkg/logger"
)

const (
	SCAN_DEBOUNCE_DURATION  time.Duration = time.Millisecond * 250
	SCAN_MAX_TIMER_DURATION time.Duration = time.Second
)

type (
	broadcaster interface {
		BroadcastCatalogUpdate(event.CatalogChange) error
		BroadcastScanUpdate(uuid.UUID) error
		BroadcastWorkflowUpdate(event.WorkflowChange) error
	}

	// activityService listens for events on the event bus, and forwards
	// them to the broadcaster so connected clients can be notified.
	//
	// Scan jobs can change rapidly, so their updates are debounced per job.
	// Catalog and workflow changes are forwarded immediately, and in order.
	activityService struct {
		*sync.Mutex
		broadcaster
		eventBus       event.EventHandler
		debounceTimers map[uuid.UUID]*time.Timer
		maxTimers      map[uuid.UUID]*time.Timer
		debounceTime   time.Duration
		maxTime        time.Duration
	}
)

func newActivityService(broadcaster broadcaster, eventBus event.EventHandler) *activityService {
	return &activityService{
		Mutex:          &sync.Mutex{},
		broadcaster:    broadcaster,
		eventBus:       eventBus,
		debounceTimers: make(map[uuid.UUID]*time.Timer),
		maxTimers:      make(map[uuid.UUID]*time.Timer),
		debounceTime:   SCAN_DEBOUNCE_DURATION,
		maxTime:        SCAN_MAX_TIMER_DURATION,
	}
}

func (service *activityService) Run(ctx context.Context) error {
	messageChan := make(chan event.HandlerEvent, 100)
	service.eventBus.RegisterHandlerChannel(messageChan, event.CATALOG_UPDATE, event.SCAN_UPDATE, event.WORKFLOW_UPDATE)

	log.Emit(logger.NEW, "Activity service started\n")
	defer service.stopTimers()
	for {
		select {
		case ev := <-messageChan:
			if err := service.handleEvent(ev); err != nil {
				log.Emit(logger.ERROR, "Handling of event %v failed: %v\n", ev, err)
			}
		case <-ctx.Done():
			log.Emit(logger.STOP, "Activity service closed\n")
			return nil
		}
	}
}

func (service *activityService) handleEvent(ev event.HandlerEvent) error {
	switch ev.Event {
	case event.CATALOG_UPDATE:
		change, ok := ev.Payload.(event.CatalogChange)
		if !ok {
			return errors.New("illegal payload (expected CatalogChange)")
		}
		return service.BroadcastCatalogUpdate(change)
	case event.WORKFLOW_UPDATE:
		change, ok := ev.Payload.(event.WorkflowChange)
		if !ok {
			return errors.New("illegal payload (expected WorkflowChange)")
		}
		return service.BroadcastWorkflowUpdate(change)
	case event.SCAN_UPDATE:
		jobID, ok := ev.Payload.(uuid.UUID)
		if !ok {
			return errors.New("illegal payload (expected UUID)")
		}
		service.scheduleScanBroadcast(jobID)
		return nil
	}

	return errors.New("unknown event type")
}

// scheduleScanBroadcast (re)starts the debounce timer for the job, and
// starts a max timer if one is not already running. Whichever fires first
// broadcasts the update, so a job changing constantly still broadcasts
// at least once every maxTime.
func (service *activityService) scheduleScanBroadcast(jobID uuid.UUID) {
	service.Lock()
	defer service.Unlock()

	broadcast := func() { service.broadcastScan(jobID) }

	// Cancel and re-set a debounce timer
	if t, ok := service.debounceTimers[jobID]; ok {
		t.Stop()
	}
	service.debounceTimers[jobID] = time.AfterFunc(service.debounceTime, broadcast)

	// Set a max timer if not already set
	if _, ok := service.maxTimers[jobID]; !ok {
		service.maxTimers[jobID] = time.AfterFunc(service.maxTime, broadcast)
	}
}

func (service *activityService) broadcastScan(jobID uuid.UUID) {
	service.Lock()
	if t, ok := service.debounceTimers[jobID]; ok {
		t.Stop()
		delete(service.debounceTimers, jobID)
	}

	if t, ok := service.maxTimers[jobID]; ok {
		t.Stop()
		delete(service.maxTimers, jobID)
	}
	service.Unlock()

	if err := service.BroadcastScanUpdate(jobID); err != nil {
		log.Emit(logger.WARNING, "Failed to broadcast update for scan %s: %v\n", jobID, err)
	}
}

func (service *activityService) stopTimers() {
	service.Lock()
	defer service.Unlock()

	for id, t := range service.debounceTimers {
		t.Stop()
		delete(service.debounceTimers, id)
	}
	for id, t := range service.maxTimers {
		t.Stop()
		delete(service.maxTimers, id)
	}
}
