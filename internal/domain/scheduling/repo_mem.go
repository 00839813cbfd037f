package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dentdesk/dentdesk/internal/platform/apperr"
	"github.com/dentdesk/dentdesk/pkg/pagination"
)

type memRepo struct {
	mu    sync.RWMutex
	seq   int64
	items map[uuid.UUID]*Appointment
}

func NewMemRepo() Repository {
	return &memRepo{items: make(map[uuid.UUID]*Appointment)}
}

func (r *memRepo) Create(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	a.ID = uuid.New()
	a.Seq = r.seq
	a.CreatedAt = time.Now().UTC()
	cp := *a
	r.items[a.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[id]
	if !ok {
		return nil, apperr.NotFound("appointment")
	}
	cp := *a
	return &cp, nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, apperr.NotFound("appointment")
	}
	a.Status = status
	cp := *a
	return &cp, nil
}

func (r *memRepo) Between(_ context.Context, from, to time.Time) ([]*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*Appointment
	for _, a := range r.items {
		if !a.DateTime.Before(from) && a.DateTime.Before(to) {
			cp := *a
			result = append(result, &cp)
		}
	}
	sortByTime(result)
	return result, nil
}

func (r *memRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*Appointment
	for _, a := range r.items {
		if a.PatientID == patientID {
			cp := *a
			result = append(result, &cp)
		}
	}
	sortByTime(result)
	page, total := pagination.Page(result, limit, offset)
	return page, total, nil
}

// sortByTime orders by date_time, then by booking order.
func sortByTime(items []*Appointment) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].DateTime.Equal(items[j].DateTime) {
			return items[i].DateTime.Before(items[j].DateTime)
		}
		return items[i].Seq < items[j].Seq
	})
}
