package status

import (
	"net/http"

	"github.com/hbomb79/Reel/internal/workflow"
	"github.com/labstack/echo/v4"
)

const (
	OnlineMode  = "online"
	OfflineMode = "offline"
)

type (
	Workflow interface {
		Snapshot() workflow.Snapshot
	}

	StatusResponse struct {
		Success  bool           `json:"success"`
		Offline  bool           `json:"offline"`
		Mode     string         `json:"mode"`
		Workflow workflow.Stage `json:"workflow"`
	}

	// Controller reports the connectivity mode Reel is running in. It is
	// served without authentication so clients can probe it before logging in.
	Controller struct {
		offline  bool
		workflow Workflow
	}
)

func New(offline bool, workflow Workflow) *Controller {
	return &Controller{offline: offline, workflow: workflow}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("", controller.get)
}

func (controller *Controller) get(ec echo.Context) error {
	mode := OnlineMode
	if controller.offline {
		mode = OfflineMode
	}

	return ec.JSON(http.StatusOK, StatusResponse{
		Success:  true,
		Offline:  controller.offline,
		Mode:     mode,
		Workflow: controller.workflow.Snapshot().Stage,
	})
}
