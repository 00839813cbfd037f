package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dentdesk/dentdesk/internal/platform/money"
)

// ErrStalePayment means the invoice changed between read and write; the
// caller re-reads and retries.
var ErrStalePayment = errors.New("invoice paid amount changed concurrently")

type Repository interface {
	// Create assigns ID and the next INV-NNN number. Numbers are never reused.
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// List returns invoices newest first, optionally for one patient.
	List(ctx context.Context, patientID *uuid.UUID, limit, offset int) ([]*Invoice, int, error)
	ListByPlan(ctx context.Context, planID uuid.UUID) ([]*Invoice, error)
	// RecordPayment appends p and moves paid_amount from expectedPaid to
	// expectedPaid+p.Amount in one step, or returns ErrStalePayment.
	RecordPayment(ctx context.Context, p *Payment, expectedPaid money.Cents) (*Invoice, error)
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error)
	// PaymentsBetween returns payments with from <= paid_at < to, oldest first.
	PaymentsBetween(ctx context.Context, from, to time.Time) ([]*Payment, error)
}
