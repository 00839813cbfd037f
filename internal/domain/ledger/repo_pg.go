package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentdesk/dentdesk/internal/platform/apperr"
	"github.com/dentdesk/dentdesk/internal/platform/db"
	"github.com/dentdesk/dentdesk/internal/platform/money"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const invCols = `id, number, patient_id, plan_id, issued_on, description,
	amount_cents, paid_cents, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var issued time.Time
	var amount, paid int64
	err := row.Scan(&inv.ID, &inv.Number, &inv.PatientID, &inv.PlanID, &issued, &inv.Description,
		&amount, &paid, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, db.NoRows(err, "invoice")
	}
	inv.Date = issued.Format("2006-01-02")
	inv.Amount = money.Cents(amount)
	inv.PaidAmount = money.Cents(paid)
	return &inv, nil
}

const payCols = `id, invoice_id, amount_cents, method, note, paid_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	var amount int64
	if err := row.Scan(&p.ID, &p.InvoiceID, &amount, &p.Method, &p.Note, &p.PaidAt); err != nil {
		return nil, err
	}
	p.Amount = money.Cents(amount)
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, inv *Invoice) error {
	var seq int64
	if err := r.conn(ctx).QueryRow(ctx, `SELECT nextval('invoice_number_seq')`).Scan(&seq); err != nil {
		return fmt.Errorf("next invoice number: %w", err)
	}
	inv.ID = uuid.New()
	inv.Number = fmt.Sprintf("INV-%03d", seq)
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO invoices (id, number, seq, patient_id, plan_id, issued_on, description, amount_cents, paid_cents)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		inv.ID, inv.Number, seq, inv.PatientID, inv.PlanID, inv.Date, inv.Description,
		int64(inv.Amount), int64(inv.PaidAmount)).Scan(&inv.CreatedAt, &inv.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invCols+` FROM invoices WHERE id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, patientID *uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices WHERE $1::uuid IS NULL OR patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+invCols+` FROM invoices
		WHERE $1::uuid IS NULL OR patient_id = $1
		ORDER BY seq DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectInvoices(rows)
	return items, total, err
}

func (r *repoPG) ListByPlan(ctx context.Context, planID uuid.UUID) ([]*Invoice, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+invCols+` FROM invoices WHERE plan_id = $1 ORDER BY seq`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvoices(rows)
}

func collectInvoices(rows pgx.Rows) ([]*Invoice, error) {
	var items []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, inv)
	}
	return items, rows.Err()
}

// RecordPayment guards the update with the paid amount read by the caller so
// two desks cannot both spend the same remaining balance.
func (r *repoPG) RecordPayment(ctx context.Context, p *Payment, expectedPaid money.Cents) (*Invoice, error) {
	var updated *Invoice
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		inv, err := scanInvoice(r.conn(ctx).QueryRow(ctx, `
			UPDATE invoices SET paid_cents = paid_cents + $2, updated_at = NOW()
			WHERE id = $1 AND paid_cents = $3 AND paid_cents + $2 <= amount_cents
			RETURNING `+invCols,
			p.InvoiceID, int64(p.Amount), int64(expectedPaid)))
		if err != nil {
			if apperr.IsNotFound(err) {
				return ErrStalePayment
			}
			return err
		}
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO payments (id, invoice_id, amount_cents, method, note, paid_at)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			p.ID, p.InvoiceID, int64(p.Amount), p.Method, p.Note, p.PaidAt); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *repoPG) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+payCols+` FROM payments WHERE invoice_id = $1 ORDER BY paid_at, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

func (r *repoPG) PaymentsBetween(ctx context.Context, from, to time.Time) ([]*Payment, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+payCols+` FROM payments
		WHERE paid_at >= $1 AND paid_at < $2 ORDER BY paid_at`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

func collectPayments(rows pgx.Rows) ([]*Payment, error) {
	var items []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
