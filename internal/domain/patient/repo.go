package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List filters by case-insensitive name substring when query is set,
	// ordered by name.
	List(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error)
}
