package reminder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Request is what a reminder is written from.
type Request struct {
	PatientName     string `json:"patient_name"`
	AppointmentTime string `json:"appointment_time"`
}

// Generator writes the text of a reminder.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// TemplateGenerator writes a fixed French reminder without any network call.
type TemplateGenerator struct {
	ClinicName  string
	ClinicPhone string
}

func (g TemplateGenerator) Generate(_ context.Context, req Request) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Bonjour %s, nous vous rappelons votre rendez-vous", req.PatientName)
	if g.ClinicName != "" {
		fmt.Fprintf(&b, " au %s", g.ClinicName)
	}
	fmt.Fprintf(&b, " le %s.", req.AppointmentTime)
	if g.ClinicPhone != "" {
		fmt.Fprintf(&b, " En cas d'empêchement, merci de nous prévenir au %s.", g.ClinicPhone)
	}
	b.WriteString(" À bientôt !")
	return b.String(), nil
}

// HTTPGenerator asks a text-generation service for the reminder. The service
// receives the Request as JSON and answers {"message": "..."}.
type HTTPGenerator struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPGenerator(endpoint string, timeout time.Duration) *HTTPGenerator {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPGenerator{Endpoint: endpoint, Client: &http.Client{Timeout: timeout}}
}

type generateResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call generator: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read generator response: %w", err)
	}
	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode generator response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 {
		if out.Error != "" {
			return "", fmt.Errorf("generator returned %d: %s", resp.StatusCode, out.Error)
		}
		return "", fmt.Errorf("generator returned %d", resp.StatusCode)
	}
	msg := strings.TrimSpace(out.Message)
	if msg == "" {
		return "", fmt.Errorf("generator returned an empty message")
	}
	return msg, nil
}
