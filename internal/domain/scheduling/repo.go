package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Create assigns ID, CreatedAt and a Seq larger than any before it.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Appointment, error)
	// Between returns appointments with from <= date_time < to.
	Between(ctx context.Context, from, to time.Time) ([]*Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
}
