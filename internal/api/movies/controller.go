package movies

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/Reel/internal/api/util"
	"github.com/hbomb79/Reel/internal/catalog"
	"github.com/hbomb79/Reel/internal/event"
	"github.com/hbomb79/Reel/internal/library"
	"github.com/hbomb79/Reel/internal/poster"
	"github.com/hbomb79/Reel/internal/probe"
	"github.com/hbomb79/Reel/internal/stream"
	"github.com/hbomb79/Reel/pkg/logger"
	"github.com/labstack/echo/v4"
)

var log = logger.Get("MoviesController")

type (
	Store interface {
		GetRecord(ctx context.Context, id int64) (*catalog.MediaRecord, error)
		ListRecords(ctx context.Context) ([]*catalog.MediaRecord, error)
		ListRecordsByCategory(ctx context.Context, category string) ([]*catalog.MediaRecord, error)
		DeleteRecord(ctx context.Context, id int64) (bool, error)
		GetStats(ctx context.Context) (*catalog.Stats, error)
		UpdateRecordCategory(ctx context.Context, id int64, category string) error
		UpdateRecordPoster(ctx context.Context, id int64, path string) error
		UpdateRecordMetadata(ctx context.Context, id int64, metadata catalog.Metadata) error
	}

	Library interface {
		QueueScan(root string) (*library.Job, error)
		Jobs() []*library.Job
	}

	Streamer interface {
		Open(ctx context.Context, id int64, rangeHeader string) (*stream.Content, error)
	}

	Prober interface {
		Probe(ctx context.Context, path string) (*probe.Candidate, error)
	}

	Posters interface {
		Download(ctx context.Context, recordID int64, posterURL string) (string, error)
	}

	// Controller defines the routes for browsing, streaming and managing
	// the cataloged movies.
	Controller struct {
		validate   *validator.Validate
		store      Store
		library    Library
		streamer   Streamer
		prober     Prober
		posters    Posters
		categories *catalog.Categories
		eventBus   event.EventDispatcher
		limiter    echo.MiddlewareFunc
	}
)

func New(
	validate *validator.Validate,
	store Store,
	library Library,
	streamer Streamer,
	prober Prober,
	posters Posters,
	categories *catalog.Categories,
	eventBus event.EventDispatcher,
	limiter echo.MiddlewareFunc,
) *Controller {
	return &Controller{validate, store, library, streamer, prober, posters, categories, eventBus, limiter}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("", controller.list)
	eg.GET("/stats", controller.stats)
	eg.GET("/scans", controller.listScans)
	eg.POST("/scan", controller.scan, controller.limiter)
	eg.POST("/download-poster", controller.downloadPoster, controller.limiter)
	eg.GET("/stream/:id", controller.stream)
	eg.GET("/:id", controller.get)
	eg.DELETE("/:id", controller.delete)
	eg.PATCH("/:id/category", controller.updateCategory)
	eg.POST("/:id/refresh", controller.refresh)
	eg.GET("/:id/thumbnail", controller.thumbnail)
}

// list returns every record in the catalog, optionally filtered by the
// 'category' query param. Filtering by unsorted also matches records
// tagged with a category that is no longer configured.
func (controller *Controller) list(ec echo.Context) error {
	records, err := controller.listRecords(ec.Request().Context(), ec.QueryParam("category"))
	if err != nil {
		log.Emit(logger.ERROR, "Failed to list records: %v\n", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to retrieve movies")
	}

	dtos := util.ApplyConversion(records, controller.newDto)
	return ec.JSON(http.StatusOK, ListResponse{Success: true, Count: len(dtos), Movies: dtos})
}

func (controller *Controller) get(ec echo.Context) error {
	record, err := controller.getRecord(ec)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, MovieResponse{Success: true, Movie: controller.newDto(record)})
}

// scan queues a background scan of the 'drivePath' provided. The response
// is sent as soon as the scan is queued.
func (controller *Controller) scan(ec echo.Context) error {
	var request ScanRequest
	if err := util.BindAndValidate(ec, controller.validate, &request); err != nil {
		return err
	}

	job, err := controller.library.QueueScan(request.DrivePath)
	if err != nil {
		if errors.Is(err, library.ErrInvalidPath) {
			return echo.NewHTTPError(http.StatusBadRequest, "drive path is invalid or inaccessible")
		} else if errors.Is(err, library.ErrQueueFull) {
			return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
		}

		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, ScanResponse{Success: true, Message: "scan started, this may take some time", Job: job})
}

func (controller *Controller) listScans(ec echo.Context) error {
	return ec.JSON(http.StatusOK, ScansResponse{Success: true, Jobs: controller.library.Jobs()})
}

// stream serves the video file of the record, honouring any
// Range header present on the request.
func (controller *Controller) stream(ec echo.Context) error {
	id, err := util.ParseRecordID(ec)
	if err != nil {
		return err
	}

	content, err := controller.streamer.Open(ec.Request().Context(), id, ec.Request().Header.Get("Range"))
	if err != nil {
		var unsatisfiable *stream.UnsatisfiableRangeError
		switch {
		case errors.Is(err, catalog.ErrRecordNotFound):
			return echo.NewHTTPError(http.StatusNotFound, catalog.ErrRecordNotFound.Error())
		case errors.Is(err, stream.ErrFileMissing):
			return echo.NewHTTPError(http.StatusNotFound, stream.ErrFileMissing.Error())
		case errors.As(err, &unsatisfiable):
			ec.Response().Header().Set("Content-Range", unsatisfiable.ContentRange())
			return echo.NewHTTPError(http.StatusRequestedRangeNotSatisfiable, stream.ErrUnsatisfiableRange.Error())
		}

		log.Emit(logger.ERROR, "Failed to open stream for record %d: %v\n", id, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open stream")
	}

	// Once the body has started the status can no longer change, so
	// failures (typically the client going away) are only logged.
	_, _ = content.Serve(ec.Response())
	return nil
}

func (controller *Controller) delete(ec echo.Context) error {
	id, err := util.ParseRecordID(ec)
	if err != nil {
		return err
	}

	removed, err := controller.store.DeleteRecord(ec.Request().Context(), id)
	if err != nil {
		log.Emit(logger.ERROR, "Failed to delete record %d: %v\n", id, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete movie")
	} else if !removed {
		return echo.NewHTTPError(http.StatusNotFound, catalog.ErrRecordNotFound.Error())
	}

	controller.notify("delete", id)
	return ec.JSON(http.StatusOK, MessageResponse{Success: true, Message: "movie deleted"})
}

func (controller *Controller) stats(ec echo.Context) error {
	stats, err := controller.store.GetStats(ec.Request().Context())
	if err != nil {
		log.Emit(logger.ERROR, "Failed to compute catalog statistics: %v\n", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to retrieve statistics")
	}

	return ec.JSON(http.StatusOK, StatsResponse{Success: true, Stats: NewStatsDto(stats)})
}

// downloadPoster fetches the remote poster and stores it locally against
// the record. Unavailable while Reel is offline.
func (controller *Controller) downloadPoster(ec echo.Context) error {
	var request PosterRequest
	if err := util.BindAndValidate(ec, controller.validate, &request); err != nil {
		return err
	}

	ctx := ec.Request().Context()
	if _, err := controller.store.GetRecord(ctx, request.MovieID); err != nil {
		return recordError(err)
	}

	path, err := controller.posters.Download(ctx, request.MovieID, request.PosterURL)
	if err != nil {
		switch {
		case errors.Is(err, poster.ErrOffline):
			return ec.JSON(http.StatusServiceUnavailable, OfflineResponse{Message: "poster downloads are disabled while offline", Offline: true})
		case errors.Is(err, poster.ErrInvalidURL):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}

		log.Emit(logger.ERROR, "Failed to download poster for record %d: %v\n", request.MovieID, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to download poster")
	}

	if err := controller.store.UpdateRecordPoster(ctx, request.MovieID, path); err != nil {
		log.Emit(logger.ERROR, "Poster for record %d downloaded to %s, but could not be saved: %v\n", request.MovieID, path, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "poster downloaded but could not be saved")
	}

	controller.notify("poster", request.MovieID)
	return ec.JSON(http.StatusOK, PosterResponse{Success: true, Message: "poster downloaded", LocalPath: path})
}

func (controller *Controller) updateCategory(ec echo.Context) error {
	record, err := controller.getRecord(ec)
	if err != nil {
		return err
	}

	var request CategoryRequest
	if err := util.BindAndValidate(ec, controller.validate, &request); err != nil {
		return err
	}
	if request.Category != catalog.Unsorted && !controller.categories.Has(request.Category) {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown category '%s'", request.Category))
	}

	if err := controller.store.UpdateRecordCategory(ec.Request().Context(), record.ID, request.Category); err != nil {
		return recordError(err)
	}

	controller.notify("category", record.ID)
	return controller.respondWithRecord(ec, record.ID)
}

// refresh re-probes the file behind the record, and updates the
// stored metadata to match.
func (controller *Controller) refresh(ec echo.Context) error {
	record, err := controller.getRecord(ec)
	if err != nil {
		return err
	}

	ctx := ec.Request().Context()
	candidate, err := controller.prober.Probe(ctx, record.Path)
	if err != nil {
		if errors.Is(err, probe.ErrFileMissing) {
			return echo.NewHTTPError(http.StatusNotFound, stream.ErrFileMissing.Error())
		}

		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	metadata := catalog.Metadata{
		Title:           record.Title,
		Format:          candidate.Format,
		DurationSeconds: candidate.DurationSeconds,
		SizeBytes:       candidate.SizeBytes,
		ThumbnailPath:   candidate.ThumbnailPath,
	}
	if err := controller.store.UpdateRecordMetadata(ctx, record.ID, metadata); err != nil {
		return recordError(err)
	}

	controller.notify("refresh", record.ID)
	return controller.respondWithRecord(ec, record.ID)
}

func (controller *Controller) thumbnail(ec echo.Context) error {
	record, err := controller.getRecord(ec)
	if err != nil {
		return err
	}

	if record.ThumbnailPath == nil {
		return echo.NewHTTPError(http.StatusNotFound, "movie has no thumbnail")
	}

	return ec.File(*record.ThumbnailPath)
}

func (controller *Controller) getRecord(ec echo.Context) (*catalog.MediaRecord, error) {
	id, err := util.ParseRecordID(ec)
	if err != nil {
		return nil, err
	}

	record, err := controller.store.GetRecord(ec.Request().Context(), id)
	if err != nil {
		return nil, recordError(err)
	}

	return record, nil
}

func (controller *Controller) respondWithRecord(ec echo.Context, id int64) error {
	record, err := controller.store.GetRecord(ec.Request().Context(), id)
	if err != nil {
		return recordError(err)
	}

	return ec.JSON(http.StatusOK, MovieResponse{Success: true, Movie: controller.newDto(record)})
}

func (controller *Controller) listRecords(ctx context.Context, category string) ([]*catalog.MediaRecord, error) {
	switch category {
	case "":
		return controller.store.ListRecords(ctx)
	case catalog.Unsorted:
		records, err := controller.store.ListRecords(ctx)
		if err != nil {
			return nil, err
		}

		unsorted := make([]*catalog.MediaRecord, 0, len(records))
		for _, record := range records {
			if !controller.categories.Has(record.Category) {
				unsorted = append(unsorted, record)
			}
		}
		return unsorted, nil
	default:
		return controller.store.ListRecordsByCategory(ctx, category)
	}
}

func (controller *Controller) newDto(record *catalog.MediaRecord) *MovieDto {
	return NewDto(record, controller.categories)
}

func (controller *Controller) notify(reason string, id int64) {
	controller.eventBus.Dispatch(event.CATALOG_UPDATE, event.CatalogChange{Reason: reason, RecordIDs: []int64{id}})
}

func recordError(err error) error {
	if errors.Is(err, catalog.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, catalog.ErrRecordNotFound.Error())
	}

	log.Emit(logger.ERROR, "Catalog operation failed: %v\n", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "catalog operation failed")
}
