package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dentdesk/dentdesk/internal/platform/apperr"
	"github.com/dentdesk/dentdesk/internal/platform/money"
	"github.com/dentdesk/dentdesk/pkg/pagination"
)

type memRepo struct {
	mu       sync.RWMutex
	seq      int
	invoices map[uuid.UUID]*Invoice
	order    []uuid.UUID
	payments []*Payment
}

func NewMemRepo() Repository {
	return &memRepo{invoices: make(map[uuid.UUID]*Invoice)}
}

func (r *memRepo) Create(_ context.Context, inv *Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	inv.ID = uuid.New()
	inv.Number = fmt.Sprintf("INV-%03d", r.seq)
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	cp := *inv
	r.invoices[inv.ID] = &cp
	r.order = append(r.order, inv.ID)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, apperr.NotFound("invoice")
	}
	cp := *inv
	return &cp, nil
}

func (r *memRepo) List(_ context.Context, patientID *uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*Invoice
	for i := len(r.order) - 1; i >= 0; i-- {
		inv := r.invoices[r.order[i]]
		if patientID != nil && (inv.PatientID == nil || *inv.PatientID != *patientID) {
			continue
		}
		cp := *inv
		result = append(result, &cp)
	}
	page, total := pagination.Page(result, limit, offset)
	return page, total, nil
}

func (r *memRepo) ListByPlan(_ context.Context, planID uuid.UUID) ([]*Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*Invoice
	for _, id := range r.order {
		inv := r.invoices[id]
		if inv.PlanID != nil && *inv.PlanID == planID {
			cp := *inv
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (r *memRepo) RecordPayment(_ context.Context, p *Payment, expectedPaid money.Cents) (*Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[p.InvoiceID]
	if !ok {
		return nil, apperr.NotFound("invoice")
	}
	if inv.PaidAmount != expectedPaid {
		return nil, ErrStalePayment
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	inv.PaidAmount += p.Amount
	inv.UpdatedAt = time.Now().UTC()
	cp := *p
	r.payments = append(r.payments, &cp)
	out := *inv
	return &out, nil
}

func (r *memRepo) ListPayments(_ context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*Payment
	for _, p := range r.payments {
		if p.InvoiceID == invoiceID {
			cp := *p
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (r *memRepo) PaymentsBetween(_ context.Context, from, to time.Time) ([]*Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*Payment
	for _, p := range r.payments {
		if !p.PaidAt.Before(from) && p.PaidAt.Before(to) {
			cp := *p
			result = append(result, &cp)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].PaidAt.Before(result[j].PaidAt) })
	return result, nil
}
