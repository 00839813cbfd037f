package inventory

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentdesk/dentdesk/internal/platform/apperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/inventory", h.ListItems)
	api.POST("/inventory", h.CreateItem)
	api.GET("/inventory/low", h.LowStock)
	api.POST("/inventory/:id/adjust", h.AdjustItem)
}

func (h *Handler) CreateItem(c echo.Context) error {
	var it Item
	if err := c.Bind(&it); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.Create(c.Request().Context(), &it); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, it)
}

func (h *Handler) ListItems(c echo.Context) error {
	items, err := h.svc.List(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	if items == nil {
		items = []*Item{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) LowStock(c echo.Context) error {
	items, err := h.svc.LowStock(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AdjustItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Delta int `json:"delta"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	it, err := h.svc.Adjust(c.Request().Context(), id, req.Delta)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, it)
}
