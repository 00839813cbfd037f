package treatmentplan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dentdesk/dentdesk/internal/platform/apperr"
	"github.com/dentdesk/dentdesk/pkg/pagination"
)

type memRepo struct {
	billMu sync.Mutex
	mu     sync.RWMutex
	seq    int
	plans  map[uuid.UUID]*Plan
	order  []uuid.UUID
}

func NewMemRepo() Repository {
	return &memRepo{plans: make(map[uuid.UUID]*Plan)}
}

func (r *memRepo) Create(_ context.Context, p *Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	p.ID = uuid.New()
	p.Number = fmt.Sprintf("PLAN-%03d", r.seq)
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	r.plans[p.ID] = p.clone()
	r.order = append(r.order, p.ID)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, apperr.NotFound("treatment plan")
	}
	return p.clone(), nil
}

func (r *memRepo) Update(_ context.Context, p *Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.plans[p.ID]
	if !ok {
		return apperr.NotFound("treatment plan")
	}
	p.UpdatedAt = time.Now().UTC()
	existing.Status = p.Status
	existing.Items = append([]LineItem(nil), p.Items...)
	existing.UpdatedAt = p.UpdatedAt
	return nil
}

func (r *memRepo) List(_ context.Context, patientID *uuid.UUID, limit, offset int) ([]*Plan, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*Plan
	for i := len(r.order) - 1; i >= 0; i-- {
		p := r.plans[r.order[i]]
		if patientID != nil && (p.PatientID == nil || *p.PatientID != *patientID) {
			continue
		}
		result = append(result, p.clone())
	}
	page, total := pagination.Page(result, limit, offset)
	return page, total, nil
}

func (r *memRepo) WithBillingLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	r.billMu.Lock()
	defer r.billMu.Unlock()
	return fn(ctx)
}
