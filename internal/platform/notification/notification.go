// Package notification renders patient messages from templates and delivers
// them by email, or to the application log when no address is on file.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ---------------------------------------------------------------------------
// Notification Types
// ---------------------------------------------------------------------------

// Channel is the way a notification reaches the patient.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelLog   Channel = "log"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Notification is a single outbound message.
type Notification struct {
	ID           string            `json:"id"`
	Channel      Channel           `json:"channel"`
	Recipient    string            `json:"recipient"`
	Subject      string            `json:"subject,omitempty"`
	Body         string            `json:"body"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// ---------------------------------------------------------------------------
// Senders
// ---------------------------------------------------------------------------

// Sender delivers a rendered message on one channel.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ---------------------------------------------------------------------------
// Template Engine
// ---------------------------------------------------------------------------

// Template is a reusable message with {{key}} placeholders.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

const TemplateAppointmentReminder = "appointment-reminder"

type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine returns an engine with the clinic's built-in templates.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.RegisterTemplate(Template{
		ID:      TemplateAppointmentReminder,
		Name:    "Rappel de rendez-vous",
		Subject: "Rappel : votre rendez-vous du {{date}} à {{time}}",
		Body:    "{{message}}\n\n{{clinic_name}}\n{{clinic_phone}}",
	})
	e.RegisterTemplate(Template{
		ID:      "payment-receipt",
		Name:    "Reçu de paiement",
		Subject: "Reçu de paiement {{invoice}}",
		Body:    "Bonjour {{patient_name}}, nous avons bien reçu votre paiement de {{amount}} pour la facture {{invoice}}. Reste à payer : {{remaining}}.",
	})
	return e
}

// RegisterTemplate adds or replaces a template.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render replaces {{key}} placeholders with data. Unknown keys are left as is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, strings.TrimSpace(body), nil
}

// ---------------------------------------------------------------------------
// Mock Sender (test double)
// ---------------------------------------------------------------------------

// Call records a single delivery.
type Call struct {
	To      string
	Subject string
	Body    string
}

// MockSender records deliveries and optionally fails them.
type MockSender struct {
	mu         sync.Mutex
	calls      []Call
	ShouldFail bool
	FailError  string
}

func (m *MockSender) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded deliveries.
func (m *MockSender) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// ---------------------------------------------------------------------------
// Manager
// ---------------------------------------------------------------------------

// Manager sends notifications and keeps a record of each attempt.
type Manager struct {
	senders       map[Channel]Sender
	templates     *TemplateEngine
	mu            sync.RWMutex
	notifications map[string]*Notification
}

// NewManager wires the log channel and, when email is non-nil, the email
// channel.
func NewManager(email, log Sender, tpl *TemplateEngine) *Manager {
	senders := map[Channel]Sender{ChannelLog: log}
	if email != nil {
		senders[ChannelEmail] = email
	}
	return &Manager{
		senders:       senders,
		templates:     tpl,
		notifications: make(map[string]*Notification),
	}
}

// ChannelFor picks email when the address is usable and email is wired,
// else the log.
func (m *Manager) ChannelFor(email string) Channel {
	if _, ok := m.senders[ChannelEmail]; ok && strings.Contains(email, "@") {
		return ChannelEmail
	}
	return ChannelLog
}

// Send delivers n, stamps it and stores the outcome. A failed delivery is
// stored too so it can be retried.
func (m *Manager) Send(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = time.Now().UTC()
	n.Status = StatusPending

	sendErr := m.deliver(ctx, n)

	m.mu.Lock()
	m.notifications[n.ID] = n
	m.mu.Unlock()
	return sendErr
}

func (m *Manager) deliver(ctx context.Context, n *Notification) error {
	var err error
	if s, ok := m.senders[n.Channel]; ok {
		err = s.Send(ctx, n.Recipient, n.Subject, n.Body)
	} else {
		err = fmt.Errorf("unsupported channel: %s", n.Channel)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		n.Status = StatusFailed
		n.Error = err.Error()
		return err
	}
	n.Status = StatusSent
	sentAt := time.Now().UTC()
	n.SentAt = &sentAt
	n.Error = ""
	return nil
}

// SendFromTemplate renders a template and sends it on channel.
func (m *Manager) SendFromTemplate(ctx context.Context, channel Channel, templateID string, data map[string]string, recipient string) (*Notification, error) {
	subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	n := &Notification{
		Channel:      channel,
		Recipient:    recipient,
		Subject:      subject,
		Body:         body,
		TemplateID:   templateID,
		TemplateData: data,
	}
	return n, m.Send(ctx, n)
}

func (m *Manager) Get(_ context.Context, id string) (*Notification, error) {
	m.mu.RLock()
	n, ok := m.notifications[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("notification %q not found", id)
	}
	return n, nil
}

// ListByRecipient returns up to limit notifications for recipient, newest
// first.
func (m *Manager) ListByRecipient(_ context.Context, recipient string, limit int) []*Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*Notification{}
	for _, n := range m.notifications {
		if n.Recipient == recipient {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// Retry re-sends a failed notification.
func (m *Manager) Retry(ctx context.Context, id string) error {
	n, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	m.mu.RLock()
	status := n.Status
	m.mu.RUnlock()
	if status != StatusFailed {
		return fmt.Errorf("notification %q is not in failed status (current: %s)", id, status)
	}
	return m.deliver(ctx, n)
}

// Stats counts notifications by status.
func (m *Manager) Stats(_ context.Context) map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]int)
	for _, n := range m.notifications {
		stats[n.Status]++
	}
	return stats
}

// ---------------------------------------------------------------------------
// HTTP Handler
// ---------------------------------------------------------------------------

type Handler struct {
	manager *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{manager: mgr}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications", h.HandleList)
	g.GET("/notifications/stats", h.HandleStats)
	g.POST("/notifications/:id/retry", h.HandleRetry)
}

// HandleList handles GET /notifications?recipient=...
func (h *Handler) HandleList(c echo.Context) error {
	recipient := c.QueryParam("recipient")
	if recipient == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "recipient query parameter is required")
	}
	return c.JSON(http.StatusOK, h.manager.ListByRecipient(c.Request().Context(), recipient, 100))
}

// HandleRetry handles POST /notifications/:id/retry.
func (h *Handler) HandleRetry(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.manager.Get(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err := h.manager.Retry(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, _ := h.manager.Get(c.Request().Context(), id)
	return c.JSON(http.StatusOK, n)
}

// HandleStats handles GET /notifications/stats.
func (h *Handler) HandleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.Stats(c.Request().Context()))
}
