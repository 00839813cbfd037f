package inventory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dentdesk/dentdesk/internal/platform/apperr"
)

type memRepo struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Item
}

func NewMemRepo() Repository {
	return &memRepo{items: make(map[uuid.UUID]*Item)}
}

func (r *memRepo) Create(_ context.Context, item *Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item.ID = uuid.New()
	item.UpdatedAt = time.Now().UTC()
	cp := *item
	r.items[item.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.items[id]
	if !ok {
		return nil, apperr.NotFound("inventory item")
	}
	cp := *it
	return &cp, nil
}

func (r *memRepo) Adjust(_ context.Context, id uuid.UUID, fn func(*Item) error) (*Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return nil, apperr.NotFound("inventory item")
	}
	cp := *it
	if err := fn(&cp); err != nil {
		return nil, err
	}
	cp.UpdatedAt = time.Now().UTC()
	*it = cp
	return &cp, nil
}

func (r *memRepo) List(_ context.Context) ([]*Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Item, 0, len(r.items))
	for _, it := range r.items {
		cp := *it
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
	})
	return result, nil
}
