package scheduling

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHandler_CreateAppointment(t *testing.T) {
	svc, _, pid := newTestService(t, ConflictFlag)
	h := NewHandler(svc)
	e := echo.New()

	body := `{"patient_id":"` + pid.String() + `","treatment":"Détartrage","date":"2024-05-10","time":"9:30"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"patient_name":"Fatima Zahra"`) {
		t.Errorf("expected patient snapshot, got %s", rec.Body.String())
	}
}

func TestHandler_CreateAppointment_InvalidTime(t *testing.T) {
	svc, _, pid := newTestService(t, ConflictFlag)
	h := NewHandler(svc)
	e := echo.New()

	body := `{"patient_id":"` + pid.String() + `","treatment":"Détartrage","date":"2024-05-10","time":"9h30"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.CreateAppointment(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_CreateAppointment_Conflict(t *testing.T) {
	svc, _, pid := newTestService(t, ConflictReject)
	h := NewHandler(svc)
	e := echo.New()
	book(t, svc, pid, "2024-05-10", "9:30", "A")

	body := `{"patient_id":"` + pid.String() + `","treatment":"B","date":"2024-05-10","time":"09:30"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.CreateAppointment(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusConflict {
		t.Errorf("expected 409, got %v", err)
	}
}

func TestHandler_ListForDay(t *testing.T) {
	svc, _, pid := newTestService(t, ConflictFlag)
	h := NewHandler(svc)
	e := echo.New()
	book(t, svc, pid, "2024-05-10", "11:00", "Extraction")

	req := httptest.NewRequest(http.MethodGet, "/?date=2024-05-10", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.ListForDay(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"has_appointments":true`) {
		t.Errorf("expected has_appointments, got %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	err := h.ListForDay(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without date, got %v", err)
	}
}

func TestHandler_MonthIndicators(t *testing.T) {
	svc, _, pid := newTestService(t, ConflictFlag)
	h := NewHandler(svc)
	e := echo.New()
	book(t, svc, pid, "2024-05-10", "11:00", "Extraction")

	req := httptest.NewRequest(http.MethodGet, "/?year=2024&month=5", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.MonthIndicators(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"days":[10]`) {
		t.Errorf("expected day 10, got %s", rec.Body.String())
	}
}

func TestHandler_UpdateStatus(t *testing.T) {
	svc, _, pid := newTestService(t, ConflictFlag)
	h := NewHandler(svc)
	e := echo.New()
	a := book(t, svc, pid, "2024-05-10", "11:00", "Extraction")

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"status":"Cancelled"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if err := h.UpdateStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"Cancelled"`) {
		t.Errorf("expected Cancelled, got %s", rec.Body.String())
	}
}
