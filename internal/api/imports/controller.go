package imports

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hbomb79/Reel/internal/api/util"
	"github.com/hbomb79/Reel/internal/scan"
	"github.com/hbomb79/Reel/internal/workflow"
	"github.com/hbomb79/Reel/pkg/logger"
	"github.com/labstack/echo/v4"
)

var log = logger.Get("ImportsController")

type (
	Workflow interface {
		Snapshot() workflow.Snapshot
		Start(ctx context.Context, request workflow.ScanRequest) (*workflow.Snapshot, error)
		Classify(id uuid.UUID, category string) error
		Skip(id uuid.UUID) error
		SkipAll() error
		Proceed(ctx context.Context) (*workflow.CommitReport, error)
		Back() error
		UpdateDetails(id uuid.UUID, details workflow.Details) (*workflow.Candidate, error)
		AutoFill(id uuid.UUID) (*workflow.Candidate, error)
		KeepDefaults(ctx context.Context) (*workflow.CommitReport, error)
		Save(ctx context.Context) (*workflow.CommitReport, error)
		Cancel() error
	}

	ClassifyRequest struct {
		Category string `json:"category" validate:"required"`
	}

	DetailsRequest struct {
		Title       *string `json:"title" validate:"omitempty,min=1,max=512"`
		Year        *int    `json:"year" validate:"omitempty,min=1870,max=2200"`
		Description *string `json:"description" validate:"omitempty,max=4096"`
	}

	CommitRequest struct {
		KeepDefaults bool `json:"keepDefaults"`
	}

	// ProceedResponse contains the snapshot after proceeding. Report is
	// only present when proceeding caused the session to be committed.
	ProceedResponse struct {
		Snapshot workflow.Snapshot      `json:"snapshot"`
		Report   *workflow.CommitReport `json:"report,omitempty"`
	}

	CommitResponse struct {
		Summary string                 `json:"summary"`
		Report  *workflow.CommitReport `json:"report"`
	}

	// Controller exposes the classification workflow, allowing a client to
	// scan for new files and walk them through classification and commit.
	Controller struct {
		validate *validator.Validate
		workflow Workflow
	}
)

func New(validate *validator.Validate, workflow Workflow) *Controller {
	return &Controller{validate: validate, workflow: workflow}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("", controller.get)
	eg.POST("", controller.start)
	eg.DELETE("", controller.cancel)
	eg.POST("/skip-all", controller.skipAll)
	eg.POST("/proceed", controller.proceed)
	eg.POST("/back", controller.back)
	eg.POST("/commit", controller.commit)
	eg.PUT("/candidates/:id/classification", controller.classify)
	eg.POST("/candidates/:id/skip", controller.skip)
	eg.PATCH("/candidates/:id/details", controller.updateDetails)
	eg.POST("/candidates/:id/autofill", controller.autoFill)
}

func (controller *Controller) get(ec echo.Context) error {
	return ec.JSON(http.StatusOK, controller.workflow.Snapshot())
}

// start scans the requested folder or file, and opens a new session with
// the candidates found. The response is sent once the scan is complete.
func (controller *Controller) start(ec echo.Context) error {
	var request workflow.ScanRequest
	if err := util.BindAndValidate(ec, controller.validate, &request); err != nil {
		return err
	}

	snapshot, err := controller.workflow.Start(ec.Request().Context(), request)
	if err != nil {
		return workflowError(err)
	}

	return ec.JSON(http.StatusCreated, snapshot)
}

func (controller *Controller) classify(ec echo.Context) error {
	id, err := util.ParseCandidateID(ec)
	if err != nil {
		return err
	}

	var request ClassifyRequest
	if err := util.BindAndValidate(ec, controller.validate, &request); err != nil {
		return err
	}

	if err := controller.workflow.Classify(id, request.Category); err != nil {
		return workflowError(err)
	}

	return ec.JSON(http.StatusOK, controller.workflow.Snapshot())
}

func (controller *Controller) skip(ec echo.Context) error {
	id, err := util.ParseCandidateID(ec)
	if err != nil {
		return err
	}

	if err := controller.workflow.Skip(id); err != nil {
		return workflowError(err)
	}

	return ec.JSON(http.StatusOK, controller.workflow.Snapshot())
}

func (controller *Controller) skipAll(ec echo.Context) error {
	if err := controller.workflow.SkipAll(); err != nil {
		return workflowError(err)
	}

	return ec.JSON(http.StatusOK, controller.workflow.Snapshot())
}

func (controller *Controller) proceed(ec echo.Context) error {
	report, err := controller.workflow.Proceed(context.WithoutCancel(ec.Request().Context()))
	if err != nil {
		return workflowError(err)
	}

	return ec.JSON(http.StatusOK, ProceedResponse{Snapshot: controller.workflow.Snapshot(), Report: report})
}

func (controller *Controller) back(ec echo.Context) error {
	if err := controller.workflow.Back(); err != nil {
		return workflowError(err)
	}

	return ec.JSON(http.StatusOK, controller.workflow.Snapshot())
}

func (controller *Controller) updateDetails(ec echo.Context) error {
	id, err := util.ParseCandidateID(ec)
	if err != nil {
		return err
	}

	var request DetailsRequest
	if err := util.BindAndValidate(ec, controller.validate, &request); err != nil {
		return err
	}

	candidate, err := controller.workflow.UpdateDetails(id, workflow.Details{
		Title:       request.Title,
		Year:        request.Year,
		Description: request.Description,
	})
	if err != nil {
		return workflowError(err)
	}

	return ec.JSON(http.StatusOK, candidate)
}

func (controller *Controller) autoFill(ec echo.Context) error {
	id, err := util.ParseCandidateID(ec)
	if err != nil {
		return err
	}

	candidate, err := controller.workflow.AutoFill(id)
	if err != nil {
		return workflowError(err)
	}

	return ec.JSON(http.StatusOK, candidate)
}

// commit finishes the detailing stage. Both forms commit the classifications
// and details currently set; 'keepDefaults' only records that the client
// skipped editing.
func (controller *Controller) commit(ec echo.Context) error {
	var request CommitRequest
	if err := util.BindAndValidate(ec, controller.validate, &request); err != nil {
		return err
	}

	// A commit which has started must not be torn by the client disconnecting
	ctx := context.WithoutCancel(ec.Request().Context())

	var (
		report *workflow.CommitReport
		err    error
	)
	if request.KeepDefaults {
		report, err = controller.workflow.KeepDefaults(ctx)
	} else {
		report, err = controller.workflow.Save(ctx)
	}
	if err != nil {
		return workflowError(err)
	}

	return ec.JSON(http.StatusOK, CommitResponse{Summary: report.Summary(), Report: report})
}

func (controller *Controller) cancel(ec echo.Context) error {
	if err := controller.workflow.Cancel(); err != nil {
		return workflowError(err)
	}

	return ec.JSON(http.StatusOK, controller.workflow.Snapshot())
}

// workflowError converts an error from the workflow in to the HTTP error
// which best describes it.
func workflowError(err error) error {
	var ioErr *scan.ScanIOError
	switch {
	case errors.Is(err, workflow.ErrInvalidStage),
		errors.Is(err, workflow.ErrSessionActive),
		errors.Is(err, workflow.ErrClassificationIncomplete),
		errors.Is(err, workflow.ErrSessionCancelled):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, workflow.ErrNoCandidates):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, workflow.ErrCandidateNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, workflow.ErrUnknownCategory),
		errors.Is(err, workflow.ErrInvalidMode),
		errors.Is(err, scan.ErrInvalidRoot),
		errors.As(err, &ioErr):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	log.Emit(logger.ERROR, "Workflow action failed: %v\n", err)
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
