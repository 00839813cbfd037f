package ledger

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentdesk/dentdesk/internal/platform/apperr"
	"github.com/dentdesk/dentdesk/internal/platform/money"
	"github.com/dentdesk/dentdesk/pkg/pagination"
)

const xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/invoices", h.ListInvoices)
	api.POST("/invoices", h.CreateInvoice)
	api.GET("/invoices/export.xlsx", h.ExportInvoices)
	api.GET("/invoices/:id", h.GetInvoice)
	api.POST("/invoices/:id/payments", h.ApplyPayment)
	api.GET("/invoices/:id/payments", h.ListPayments)

	api.GET("/patients/:id/balance", h.PatientBalance)

	api.GET("/revenue/daily", h.DailyRevenue)
	api.GET("/revenue/summary", h.Summary)
}

type invoiceRequest struct {
	Description string          `json:"description"`
	Amount      json.RawMessage `json:"amount"`
	Date        string          `json:"date"`
	PatientID   *uuid.UUID      `json:"patient_id"`
	PlanID      *uuid.UUID      `json:"plan_id"`
}

type paymentRequest struct {
	Amount json.RawMessage `json:"amount"`
	Method string          `json:"method"`
	Note   string          `json:"note"`
}

// AmountFromJSON reads a request amount written as 1500, 1500.5 or "1500.50".
func AmountFromJSON(field string, raw json.RawMessage) (money.Cents, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, apperr.InvalidAmount("%s is required", field)
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, apperr.InvalidAmount("%s is not a number", field)
		}
		s = str
	}
	return ParseAmount(s)
}

func (h *Handler) CreateInvoice(c echo.Context) error {
	var req invoiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	amount, err := AmountFromJSON("amount", req.Amount)
	if err != nil {
		return apperr.HTTP(err)
	}
	inv, err := h.svc.CreateInvoice(c.Request().Context(), InvoiceInput{
		Description: req.Description,
		Amount:      amount,
		Date:        req.Date,
		PatientID:   req.PatientID,
		PlanID:      req.PlanID,
	})
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	inv, err := h.svc.GetInvoice(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) ListInvoices(c echo.Context) error {
	pg := pagination.FromContext(c)
	var patientID *uuid.UUID
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		patientID = &id
	}
	items, total, err := h.svc.ListInvoices(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ApplyPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req paymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	amount, err := AmountFromJSON("amount", req.Amount)
	if err != nil {
		return apperr.HTTP(err)
	}
	inv, err := h.svc.ApplyPayment(c.Request().Context(), id, PaymentInput{
		Amount: amount,
		Method: req.Method,
		Note:   req.Note,
	})
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) ListPayments(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListPayments(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	if items == nil {
		items = []*Payment{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) PatientBalance(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	b, err := h.svc.PatientBalance(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) DailyRevenue(c echo.Context) error {
	from, to := c.QueryParam("from"), c.QueryParam("to")
	if from == "" || to == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "from and to are required")
	}
	days, err := h.svc.DailyRevenue(c.Request().Context(), from, to)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, days)
}

func (h *Handler) Summary(c echo.Context) error {
	sum, err := h.svc.Summary(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) ExportInvoices(c echo.Context) error {
	data, err := h.svc.ExportWorkbook(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="factures.xlsx"`)
	return c.Blob(http.StatusOK, xlsxMediaType, data)
}
