package categories

import (
	"net/http"

	"github.com/hbomb79/Reel/internal/catalog"
	"github.com/labstack/echo/v4"
)

type (
	CategoriesResponse struct {
		Success    bool               `json:"success"`
		Categories []catalog.Category `json:"categories"`
		Unsorted   catalog.Category   `json:"unsorted"`
	}

	Controller struct {
		categories *catalog.Categories
	}
)

func New(categories *catalog.Categories) *Controller {
	return &Controller{categories: categories}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("", controller.list)
}

func (controller *Controller) list(ec echo.Context) error {
	return ec.JSON(http.StatusOK, CategoriesResponse{
		Success:    true,
		Categories: controller.categories.All(),
		Unsorted:   catalog.UnsortedCategory,
	})
}
