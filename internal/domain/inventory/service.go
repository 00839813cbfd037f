package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dentdesk/dentdesk/internal/platform/apperr"
)

type Service struct {
	items Repository
}

func NewService(repo Repository) *Service {
	return &Service{items: repo}
}

func (s *Service) Create(ctx context.Context, it *Item) error {
	it.Name = strings.TrimSpace(it.Name)
	if it.Name == "" {
		return apperr.Missing("name")
	}
	if it.MaxStock <= 0 {
		return apperr.Invalid("max_stock", "max_stock must be greater than zero")
	}
	if it.Stock < 0 || it.Stock > it.MaxStock {
		return apperr.Invalid("stock", "stock must be between 0 and %d", it.MaxStock)
	}
	if err := s.items.Create(ctx, it); err != nil {
		return fmt.Errorf("create inventory item: %w", err)
	}
	return nil
}

// Adjust adds delta to the stock. The result may not go below zero and is
// capped at max stock.
func (s *Service) Adjust(ctx context.Context, id uuid.UUID, delta int) (*Item, error) {
	return s.items.Adjust(ctx, id, func(it *Item) error {
		// Compared against the bounds before adding so a huge delta cannot wrap.
		switch {
		case delta < -it.Stock:
			return apperr.Invalid("delta", "only %d %s left in stock", it.Stock, it.Name)
		case delta > it.MaxStock-it.Stock:
			it.Stock = it.MaxStock
		default:
			it.Stock += delta
		}
		return nil
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Item, error) {
	return s.items.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Item, error) {
	return s.items.List(ctx)
}

// LowStock returns the items that need reordering.
func (s *Service) LowStock(ctx context.Context) ([]*Item, error) {
	all, err := s.items.List(ctx)
	if err != nil {
		return nil, err
	}
	low := []*Item{}
	for _, it := range all {
		if it.Status() != InStock {
			low = append(low, it)
		}
	}
	return low, nil
}
