package treatment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dentdesk/dentdesk/pkg/pagination"
)

type memRepo struct {
	mu    sync.RWMutex
	items []*Treatment
}

func NewMemRepo() Repository {
	return &memRepo{}
}

func (r *memRepo) Create(_ context.Context, t *Treatment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now().UTC()
	cp := *t
	r.items = append(r.items, &cp)
	return nil
}

func (r *memRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Treatment, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*Treatment
	for _, t := range r.items {
		if t.PatientID == patientID {
			cp := *t
			result = append(result, &cp)
		}
	}
	// ISO dates sort lexically; newer insertions win ties.
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Date == result[j].Date {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].Date > result[j].Date
	})
	page, total := pagination.Page(result, limit, offset)
	return page, total, nil
}
