package treatment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dentdesk/dentdesk/internal/domain/patient"
	"github.com/dentdesk/dentdesk/internal/platform/apperr"
)

// PatientLookup resolves patient references.
type PatientLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	treatments Repository
	patients   PatientLookup
	loc        *time.Location
}

func NewService(repo Repository, patients PatientLookup, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{treatments: repo, patients: patients, loc: loc}
}

// Record appends a treatment to the patient's history. Date defaults to
// today in the clinic time zone.
func (s *Service) Record(ctx context.Context, t *Treatment) error {
	if t.PatientID == uuid.Nil {
		return apperr.Missing("patient_id")
	}
	t.Procedure = strings.TrimSpace(t.Procedure)
	if t.Procedure == "" {
		return apperr.Missing("procedure")
	}
	if !ValidTooth(t.Tooth) {
		return apperr.Invalid("tooth", "invalid tooth number %d", t.Tooth)
	}
	if t.Cost < 0 {
		return apperr.InvalidAmount("cost must not be negative")
	}
	t.Date = strings.TrimSpace(t.Date)
	if t.Date == "" {
		t.Date = time.Now().In(s.loc).Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", t.Date); err != nil {
		return apperr.Invalid("date", "date must be YYYY-MM-DD")
	}
	if _, err := s.patients.FindByID(ctx, t.PatientID); err != nil {
		return err
	}
	return s.treatments.Create(ctx, t)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Treatment, int, error) {
	return s.treatments.ListByPatient(ctx, patientID, limit, offset)
}
