package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/hbomb79/Reel/internal/api"
	"github.com/hbomb79/Reel/internal/auth"
	"github.com/hbomb79/Reel/internal/catalog"
	"github.com/hbomb79/Reel/internal/database"
	"github.com/hbomb79/Reel/internal/event"
	"github.com/hbomb79/Reel/internal/ffmpeg"
	"github.com/hbomb79/Reel/internal/library"
	"github.com/hbomb79/Reel/internal/poster"
	"github.com/hbomb79/Reel/internal/probe"
	"github.com/hbomb79/Reel/internal/scan"
	"github.com/hbomb79/Reel/internal/stream"
	"github.com/hbomb79/Reel/internal/workflow"
	"github.com/hbomb79/Reel/pkg/logger"
)

var log = logger.Get("Core")

type (
	RunnableService interface {
		Run(context.Context) error
	}

	RestGateway interface {
		RunnableService
		broadcaster
	}
)

// Reel represents the top-level object for the server, and is responsible
// for constructing the stores, services and event handling, and for
// running the long-lived services until they're cancelled.
type reelImpl struct {
	config   ReelConfig
	eventBus event.EventCoordinator
	db       database.Manager
	store    *storeOrchestrator

	workflow        *workflow.Controller
	libraryService  *library.Service
	activityService *activityService
	restGateway     RestGateway
}

func New(config ReelConfig) (*reelImpl, error) {
	if level, err := logger.ParseLevel(config.LogLevel); err == nil {
		logger.SetMinLoggingLevel(level.Level())
	} else {
		log.Emit(logger.WARNING, "Ignoring configured log level: %v\n", err)
	}

	log.Emit(logger.DEBUG, "Bootstrapping Reel services using config: %#v\n", config)
	categories, err := catalog.NewCategories(config.Categories)
	if err != nil {
		return nil, fmt.Errorf("failed to construct categories: %w", err)
	}

	db := database.New(config.Database)
	reel := &reelImpl{
		config:   config,
		eventBus: event.New(),
		db:       db,
		store:    newStoreOrchestrator(db),
	}

	prober := probe.New(config.Probe, ffmpeg.NewInspector(config.Ffmpeg))
	scanner := scan.New(config.Scan, prober, reel.store)
	reel.workflow = workflow.New(config.Workflow, scanner, reel.store, categories, reel.eventBus)
	reel.workflow.Subscribe(func(stage workflow.Stage) {
		log.Emit(logger.DEBUG, "Classification workflow entered stage %s\n", stage)
	})
	reel.libraryService = library.New(config.Library, scanner, reel.store, reel.eventBus)

	reel.restGateway = api.NewRestGateway(&config.RestConfig, api.Services{
		Store:      reel.store,
		Library:    reel.libraryService,
		Streamer:   stream.New(reel.store),
		Prober:     prober,
		Posters:    poster.New(config.Poster, config.Network.Offline),
		Workflow:   reel.workflow,
		Categories: categories,
		Verifier:   auth.NewVerifier(config.Auth),
		EventBus:   reel.eventBus,
		Offline:    config.Network.Offline,
	})
	reel.activityService = newActivityService(reel.restGateway, reel.eventBus)

	return reel, nil
}

// Run will start all of Reel by bringing up the database connection and
// then spawning each of the services.
//
// This function will not return until Reel is stopped.
// To stop Reel, the provided context must be cancelled. Errors from which Reel cannot recover
// will also cause Reel to stop.
func (reel *reelImpl) Run(parent context.Context) error {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel(fmt.Errorf("service %s crashed: %w", label, err))
	}

	log.Emit(logger.NEW, "Connecting to %s database...\n", reel.config.Database.Driver)
	if err := reel.db.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err := reel.db.Close(); err != nil {
			log.Emit(logger.WARNING, "Failed to close database: %v\n", err)
		}
	}()

	if reel.config.Network.Offline {
		log.Emit(logger.INFO, "Running in OFFLINE mode; poster downloads are disabled\n")
	}

	wg := &sync.WaitGroup{}
	reel.spawnAsyncService(ctx, wg, reel.activityService, "activity-service", crashHandler)
	reel.spawnAsyncService(ctx, wg, reel.libraryService, "library-service", crashHandler)
	reel.spawnAsyncService(ctx, wg, reel.restGateway, "rest-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "Reel services spawned!\n")

	wg.Wait()
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}

// spawnAsyncService will run the provided service as it's own
// go-routine, ensuring that the Reel service waitgroup is updated correctly
func (reel *reelImpl) spawnAsyncService(ctx context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(label string, crash func(string, error)) {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		if err := service.Run(ctx); err != nil {
			crash(label, err)
		}
	}(serviceLabel, crashHandler)
}
