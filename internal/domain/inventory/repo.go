package inventory

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	// Adjust applies fn to the stored item and saves the result atomically.
	Adjust(ctx context.Context, id uuid.UUID, fn func(*Item) error) (*Item, error)
	List(ctx context.Context) ([]*Item, error)
}
