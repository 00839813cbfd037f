package patient

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dentdesk/dentdesk/internal/platform/apperr"
	"github.com/dentdesk/dentdesk/pkg/pagination"
)

type memRepo struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Patient
}

// NewMemRepo returns a Repository held in process memory.
func NewMemRepo() Repository {
	return &memRepo{items: make(map[uuid.UUID]*Patient)}
}

func (r *memRepo) Create(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	r.items[p.ID] = p.Clone()
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, apperr.NotFound("patient")
	}
	return p.Clone(), nil
}

func (r *memRepo) Update(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.items[p.ID]
	if !ok {
		return apperr.NotFound("patient")
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	r.items[p.ID] = p.Clone()
	return nil
}

func (r *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return apperr.NotFound("patient")
	}
	delete(r.items, id)
	return nil
}

func (r *memRepo) List(_ context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q := strings.ToLower(strings.TrimSpace(query))
	var result []*Patient
	for _, p := range r.items {
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) {
			continue
		}
		result = append(result, p.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name == result[j].Name {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].Name < result[j].Name
	})
	page, total := pagination.Page(result, limit, offset)
	return page, total, nil
}
