package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentdesk/dentdesk/internal/platform/db"
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

const itemCols = `id, name, stock, max_stock, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	if err := row.Scan(&it.ID, &it.Name, &it.Stock, &it.MaxStock, &it.UpdatedAt); err != nil {
		return nil, db.NoRows(err, "inventory item")
	}
	return &it, nil
}

func (r *repoPG) Create(ctx context.Context, it *Item) error {
	it.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO inventory_items (id, name, stock, max_stock)
		VALUES ($1,$2,$3,$4) RETURNING updated_at`,
		it.ID, it.Name, it.Stock, it.MaxStock).Scan(&it.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	return scanItem(r.conn(ctx).QueryRow(ctx, `SELECT `+itemCols+` FROM inventory_items WHERE id = $1`, id))
}

func (r *repoPG) Adjust(ctx context.Context, id uuid.UUID, fn func(*Item) error) (*Item, error) {
	var out *Item
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		it, err := scanItem(r.conn(ctx).QueryRow(ctx,
			`SELECT `+itemCols+` FROM inventory_items WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := fn(it); err != nil {
			return err
		}
		err = r.conn(ctx).QueryRow(ctx, `
			UPDATE inventory_items SET stock = $2, updated_at = NOW()
			WHERE id = $1 RETURNING updated_at`, id, it.Stock).Scan(&it.UpdatedAt)
		if err != nil {
			return err
		}
		out = it
		return nil
	})
	return out, err
}

func (r *repoPG) List(ctx context.Context) ([]*Item, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+itemCols+` FROM inventory_items ORDER BY lower(name)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
