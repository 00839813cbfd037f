package treatmentplan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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

const planCols = `id, number, patient_id, title, plan_date, status, total_cost_cents, created_at, updated_at`

func scanPlan(row pgx.Row) (*Plan, error) {
	var p Plan
	var date time.Time
	var total int64
	err := row.Scan(&p.ID, &p.Number, &p.PatientID, &p.Title, &date, &p.Status, &total, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, db.NoRows(err, "treatment plan")
	}
	p.Date = date.Format("2006-01-02")
	p.TotalCost = money.Cents(total)
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Plan) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		var seq int64
		if err := r.conn(ctx).QueryRow(ctx, `SELECT nextval('plan_number_seq')`).Scan(&seq); err != nil {
			return fmt.Errorf("next plan number: %w", err)
		}
		p.ID = uuid.New()
		p.Number = fmt.Sprintf("PLAN-%03d", seq)
		err := r.conn(ctx).QueryRow(ctx, `
			INSERT INTO treatment_plans (id, number, seq, patient_id, title, plan_date, status, total_cost_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			RETURNING created_at, updated_at`,
			p.ID, p.Number, seq, p.PatientID, p.Title, p.Date, p.Status, int64(p.TotalCost)).Scan(&p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return err
		}
		return r.insertItems(ctx, p)
	})
}

func (r *repoPG) insertItems(ctx context.Context, p *Plan) error {
	for i, it := range p.Items {
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO plan_items (plan_id, position, tooth, procedure, cost_cents)
			VALUES ($1,$2,$3,$4,$5)`,
			p.ID, i, it.Tooth, it.Procedure, int64(it.Cost)); err != nil {
			return fmt.Errorf("insert plan item %d: %w", i, err)
		}
	}
	return nil
}

func (r *repoPG) loadItems(ctx context.Context, p *Plan) error {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT tooth, procedure, cost_cents FROM plan_items WHERE plan_id = $1 ORDER BY position`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	p.Items = []LineItem{}
	for rows.Next() {
		var it LineItem
		var cost int64
		if err := rows.Scan(&it.Tooth, &it.Procedure, &cost); err != nil {
			return err
		}
		it.Cost = money.Cents(cost)
		p.Items = append(p.Items, it)
	}
	return rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Plan, error) {
	p, err := scanPlan(r.conn(ctx).QueryRow(ctx, `SELECT `+planCols+` FROM treatment_plans WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Plan) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		err := r.conn(ctx).QueryRow(ctx, `
			UPDATE treatment_plans SET status = $2, updated_at = NOW()
			WHERE id = $1 RETURNING updated_at`, p.ID, p.Status).Scan(&p.UpdatedAt)
		if err != nil {
			return db.NoRows(err, "treatment plan")
		}
		if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM plan_items WHERE plan_id = $1`, p.ID); err != nil {
			return err
		}
		return r.insertItems(ctx, p)
	})
}

func (r *repoPG) List(ctx context.Context, patientID *uuid.UUID, limit, offset int) ([]*Plan, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM treatment_plans WHERE $1::uuid IS NULL OR patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+planCols+` FROM treatment_plans
		WHERE $1::uuid IS NULL OR patient_id = $1
		ORDER BY seq DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	var items []*Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		items = append(items, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for _, p := range items {
		if err := r.loadItems(ctx, p); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

// WithBillingLock holds the plan row FOR UPDATE for the length of fn. The
// invoice insert joins the same transaction through the context.
func (r *repoPG) WithBillingLock(ctx context.Context, id uuid.UUID, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		var locked uuid.UUID
		err := r.conn(ctx).QueryRow(ctx, `SELECT id FROM treatment_plans WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if err != nil {
			return db.NoRows(err, "treatment plan")
		}
		return fn(ctx)
	})
}
