package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	msg   string
	err   error
	calls int
}

func (g *stubGenerator) Generate(_ context.Context, _ Request) (string, error) {
	g.calls++
	return g.msg, g.err
}

func TestTemplateGenerator(t *testing.T) {
	g := TemplateGenerator{ClinicName: "Cabinet Dentaire Atlas", ClinicPhone: "+212522000000"}
	msg, err := g.Generate(context.Background(), Request{PatientName: "Fatima Zahra", AppointmentTime: "12/03/2026 à 09:30"})
	require.NoError(t, err)
	assert.Contains(t, msg, "Bonjour Fatima Zahra")
	assert.Contains(t, msg, "12/03/2026 à 09:30")
	assert.Contains(t, msg, "+212522000000")
}

func TestService_Generate_ExactlyOneSet(t *testing.T) {
	ok := &stubGenerator{msg: "Bonjour"}
	res := NewService(ok, zerolog.Nop()).Generate(context.Background(), Request{PatientName: "Amina", AppointmentTime: "10:00"})
	assert.Equal(t, "Bonjour", res.Message)
	assert.Empty(t, res.ErrorMessage)

	failing := &stubGenerator{err: errors.New("upstream down")}
	res = NewService(failing, zerolog.Nop()).Generate(context.Background(), Request{PatientName: "Amina", AppointmentTime: "10:00"})
	assert.Empty(t, res.Message)
	assert.NotEmpty(t, res.ErrorMessage)
	assert.Equal(t, 1, failing.calls, "generation is attempted once")
}

func TestService_Generate_MissingFields(t *testing.T) {
	gen := &stubGenerator{msg: "x"}
	res := NewService(gen, zerolog.Nop()).Generate(context.Background(), Request{PatientName: "  "})
	assert.NotEmpty(t, res.ErrorMessage)
	assert.Zero(t, gen.calls)
}

func TestHTTPGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Rappel pour " + req.PatientName})
	}))
	defer srv.Close()

	msg, err := NewHTTPGenerator(srv.URL, 0).Generate(context.Background(), Request{PatientName: "Karim", AppointmentTime: "14:00"})
	require.NoError(t, err)
	assert.Equal(t, "Rappel pour Karim", msg)
}

func TestHTTPGenerator_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"model unavailable"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPGenerator(srv.URL, 0).Generate(context.Background(), Request{PatientName: "Karim", AppointmentTime: "14:00"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestHandler_Generate(t *testing.T) {
	e := echo.New()
	h := NewHandler(NewService(&stubGenerator{err: errors.New("boom")}, zerolog.Nop()))

	body := `{"patient_name":"Nadia Saidi","appointment_time":"15:30"}`
	req := httptest.NewRequest(http.MethodPost, "/reminders/generate", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.Generate(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var res Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Empty(t, res.Message)
	assert.NotEmpty(t, res.ErrorMessage)
}
