package treatmentplan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *fixture) {
	f := newFixture()
	return NewHandler(f.svc), f
}

func TestHandler_CreatePlan(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	body := `{"title":"Soins","total_cost":"1200.50","items_text":"- Détartrage\n- Polissage"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreatePlan(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	for _, want := range []string{`"status":"Proposed"`, `"total_cost":1200.50`, `"procedure":"Polissage"`} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("expected %s in %s", want, rec.Body.String())
		}
	}
}

func TestHandler_CreatePlan_MissingTotal(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"Soins","items_text":"x"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.CreatePlan(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_AdvancePlan_Completed(t *testing.T) {
	h, f := newTestHandler()
	e := echo.New()
	p := f.plan(t, "8500")
	f.svc.SetStatus(context.Background(), p.ID, StatusCompleted)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	err := h.AdvancePlan(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusConflict {
		t.Errorf("expected 409, got %v", err)
	}
}

func TestHandler_ExportPlan(t *testing.T) {
	h, f := newTestHandler()
	e := echo.New()
	p := f.plan(t, "8500")

	req := httptest.NewRequest(http.MethodGet, "/?format=txt", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.ExportPlan(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), "text/plain") {
		t.Errorf("unexpected content type %s", rec.Header().Get(echo.HeaderContentType))
	}
	if !strings.Contains(rec.Body.String(), "Total : 8500.00 MAD") {
		t.Errorf("expected total in export, got %s", rec.Body.String())
	}
}

func TestHandler_BillPlan(t *testing.T) {
	h, f := newTestHandler()
	e := echo.New()
	p := f.plan(t, "8500")
	f.svc.AdvanceStatus(context.Background(), p.ID)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.BillPlan(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"amount":8500.00`) {
		t.Errorf("expected full remainder billed, got %s", rec.Body.String())
	}
}
