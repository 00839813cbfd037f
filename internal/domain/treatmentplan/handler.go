package treatmentplan

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentdesk/dentdesk/internal/domain/ledger"
	"github.com/dentdesk/dentdesk/internal/platform/apperr"
	"github.com/dentdesk/dentdesk/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/plans", h.ListPlans)
	api.POST("/plans", h.CreatePlan)
	api.GET("/plans/:id", h.GetPlan)
	api.POST("/plans/:id/advance", h.AdvancePlan)
	api.PUT("/plans/:id/status", h.SetPlanStatus)
	api.PUT("/plans/:id/items", h.UpdateItems)
	api.POST("/plans/:id/invoices", h.BillPlan)
	api.GET("/plans/:id/export", h.ExportPlan)
}

type createRequest struct {
	PatientID *uuid.UUID      `json:"patient_id"`
	Title     string          `json:"title"`
	TotalCost json.RawMessage `json:"total_cost"`
	ItemsText string          `json:"items_text"`
	Items     []LineItem      `json:"items"`
}

type itemsRequest struct {
	ItemsText string     `json:"items_text"`
	Items     []LineItem `json:"items"`
}

type billRequest struct {
	Description string          `json:"description"`
	Amount      json.RawMessage `json:"amount"`
}

func planID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CreatePlan(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	total, err := ledger.AmountFromJSON("total_cost", req.TotalCost)
	if err != nil {
		return apperr.HTTP(err)
	}
	p, err := h.svc.CreatePlan(c.Request().Context(), PlanInput{
		PatientID: req.PatientID,
		Title:     req.Title,
		TotalCost: total,
		ItemsText: req.ItemsText,
		Items:     req.Items,
	})
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPlan(c echo.Context) error {
	id, err := planID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPlans(c echo.Context) error {
	pg := pagination.FromContext(c)
	var patientID *uuid.UUID
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		patientID = &id
	}
	items, total, err := h.svc.List(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) AdvancePlan(c echo.Context) error {
	id, err := planID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.AdvanceStatus(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) SetPlanStatus(c echo.Context) error {
	id, err := planID(c)
	if err != nil {
		return err
	}
	var req struct {
		Status Status `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.SetStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateItems(c echo.Context) error {
	id, err := planID(c)
	if err != nil {
		return err
	}
	var req itemsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.UpdateItems(c.Request().Context(), id, req.ItemsText, req.Items)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) BillPlan(c echo.Context) error {
	id, err := planID(c)
	if err != nil {
		return err
	}
	var req billRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	in := BillInput{Description: req.Description}
	if raw := strings.TrimSpace(string(req.Amount)); raw != "" && raw != "null" {
		amount, err := ledger.AmountFromJSON("amount", req.Amount)
		if err != nil {
			return apperr.HTTP(err)
		}
		if amount <= 0 {
			return apperr.HTTP(apperr.InvalidAmount("amount must be greater than zero"))
		}
		in.Amount = amount
	}
	inv, err := h.svc.BillPlan(c.Request().Context(), id, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) ExportPlan(c echo.Context) error {
	id, err := planID(c)
	if err != nil {
		return err
	}
	data, r, err := h.svc.ExportPlan(c.Request().Context(), id, c.QueryParam("format"))
	if err != nil {
		return apperr.HTTP(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="devis-%s.%s"`, id, r.Extension()))
	return c.Blob(http.StatusOK, r.ContentType(), data)
}
