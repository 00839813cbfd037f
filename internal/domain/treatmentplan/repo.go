package treatmentplan

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create assigns ID and the next PLAN-NNN number.
	Create(ctx context.Context, p *Plan) error
	GetByID(ctx context.Context, id uuid.UUID) (*Plan, error)
	// Update stores status and items. Title and total are fixed at creation.
	Update(ctx context.Context, p *Plan) error
	List(ctx context.Context, patientID *uuid.UUID, limit, offset int) ([]*Plan, int, error)
	// WithBillingLock runs fn while no other bill can be made against the plan.
	WithBillingLock(ctx context.Context, id uuid.UUID, fn func(ctx context.Context) error) error
}
