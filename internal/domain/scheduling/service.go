package scheduling

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dentdesk/dentdesk/internal/domain/patient"
	"github.com/dentdesk/dentdesk/internal/platform/apperr"
	"github.com/dentdesk/dentdesk/internal/platform/metrics"
)

// PatientLookup resolves the patient being booked.
type PatientLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	appointments Repository
	patients     PatientLookup
	loc          *time.Location
	policy       ConflictPolicy
}

// NewService buckets appointments into calendar days of loc, the clinic's
// time zone.
func NewService(repo Repository, patients PatientLookup, loc *time.Location, policy ConflictPolicy) *Service {
	if loc == nil {
		loc = time.Local
	}
	if policy == "" {
		policy = ConflictFlag
	}
	return &Service{appointments: repo, patients: patients, loc: loc, policy: policy}
}

// Location is the clinic time zone.
func (s *Service) Location() *time.Location { return s.loc }

// AppointmentInput mirrors the booking form: every field is free text.
type AppointmentInput struct {
	PatientID string `json:"patient_id"`
	Treatment string `json:"treatment"`
	Date      string `json:"date"`
	Time      string `json:"time"`
}

func (s *Service) CreateAppointment(ctx context.Context, in AppointmentInput) (*Appointment, error) {
	fields := []struct{ name, value string }{
		{"patient_id", in.PatientID},
		{"treatment", in.Treatment},
		{"date", in.Date},
		{"time", in.Time},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return nil, apperr.Missing(f.name)
		}
	}

	at, err := ComposeDateTime(strings.TrimSpace(in.Date), strings.TrimSpace(in.Time), s.loc)
	if err != nil {
		return nil, err
	}
	pid, err := uuid.Parse(strings.TrimSpace(in.PatientID))
	if err != nil {
		return nil, apperr.NotFound("patient")
	}
	p, err := s.patients.FindByID(ctx, pid)
	if err != nil {
		return nil, err
	}

	a := &Appointment{
		PatientID:     p.ID,
		PatientName:   p.Name,
		PatientAvatar: p.AvatarURL,
		DateTime:      at,
		Treatment:     strings.TrimSpace(in.Treatment),
		Status:        StatusConfirmed,
	}
	if s.policy != ConflictOff {
		taken, err := s.slotTaken(ctx, at)
		if err != nil {
			return nil, err
		}
		if taken {
			metrics.SlotConflicts.WithLabelValues(string(s.policy)).Inc()
			if s.policy == ConflictReject {
				return nil, apperr.SlotConflict("another appointment is booked at %s", at.Format("2006-01-02 15:04"))
			}
			a.Conflict = true
		}
	}

	if err := s.appointments.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	return a, nil
}

func (s *Service) slotTaken(ctx context.Context, at time.Time) (bool, error) {
	same, err := s.appointments.Between(ctx, at, at.Add(time.Minute))
	if err != nil {
		return false, err
	}
	for _, a := range same {
		if a.DateTime.Equal(at) && a.Status != StatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

// ListForDay returns the appointments whose local calendar date is date,
// earliest first. Appointments at the same instant keep booking order.
func (s *Service) ListForDay(ctx context.Context, date string) ([]*Appointment, error) {
	d, err := ParseDay(date, s.loc)
	if err != nil {
		return nil, err
	}
	start, end := dayBounds(d, s.loc)
	found, err := s.appointments.Between(ctx, start, end)
	if err != nil {
		return nil, err
	}
	day := make([]*Appointment, 0, len(found))
	for _, a := range found {
		if a.DateTime.In(s.loc).Format(dateLayout) == date {
			day = append(day, a)
		}
	}
	sortByTime(day)
	return day, nil
}

func (s *Service) DayHasAppointments(ctx context.Context, date string) (bool, error) {
	day, err := s.ListForDay(ctx, date)
	if err != nil {
		return false, err
	}
	return len(day) > 0, nil
}

// MonthIndicators lists the days of the month that have at least one
// appointment, for calendar dots.
func (s *Service) MonthIndicators(ctx context.Context, year int, month time.Month) ([]int, error) {
	if month < time.January || month > time.December {
		return nil, apperr.Invalid("month", "month must be between 1 and 12")
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, s.loc)
	found, err := s.appointments.Between(ctx, start, start.AddDate(0, 1, 0))
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool)
	days := []int{}
	for _, a := range found {
		local := a.DateTime.In(s.loc)
		if local.Month() != month || seen[local.Day()] {
			continue
		}
		seen[local.Day()] = true
		days = append(days, local.Day())
	}
	sort.Ints(days)
	return days, nil
}

var statusMoves = map[Status]map[Status]bool{
	StatusConfirmed: {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted: {StatusConfirmed: true},
	StatusCancelled: {StatusConfirmed: true},
}

// UpdateStatus completes, cancels or reopens an appointment.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Appointment, error) {
	if !validStatuses[status] {
		return nil, apperr.Invalid("status", "unknown appointment status %q", status)
	}
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == status {
		return a, nil
	}
	if !statusMoves[a.Status][status] {
		return nil, apperr.InvalidTransition(string(a.Status), string(status))
	}
	return s.appointments.UpdateStatus(ctx, id, status)
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByPatient(ctx, patientID, limit, offset)
}

// Upcoming returns confirmed appointments starting in [from, to).
func (s *Service) Upcoming(ctx context.Context, from, to time.Time) ([]*Appointment, error) {
	found, err := s.appointments.Between(ctx, from, to)
	if err != nil {
		return nil, err
	}
	var out []*Appointment
	for _, a := range found {
		if a.Status == StatusConfirmed {
			out = append(out, a)
		}
	}
	return out, nil
}
