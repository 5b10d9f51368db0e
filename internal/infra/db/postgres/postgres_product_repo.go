package postgres

import (
	"context"
	"fmt"

	"telegram-payment-links/internal/domain"
	"telegram-payment-links/internal/domain/model"
	"telegram-payment-links/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Ensure interface compliance
var _ repository.ProductRepository = (*PostgresProductRepo)(nil)

type PostgresProductRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresProductRepo(pool *pgxpool.Pool) *PostgresProductRepo {
	return &PostgresProductRepo{pool: pool}
}

func (r *PostgresProductRepo) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	const sql = `
INSERT INTO products (product_id, name, amount, validity_days, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (product_id) DO UPDATE
  SET name          = EXCLUDED.name,
      amount        = EXCLUDED.amount,
      validity_days = EXCLUDED.validity_days;
`
	if _, err := execSQL(ctx, r.pool, tx, sql, p.ID, p.Name, p.Amount, p.ValidityDays, p.CreatedAt); err != nil {
		return fmt.Errorf("save product: %w", err)
	}
	return nil
}

func (r *PostgresProductRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Product, error) {
	const sql = `
SELECT product_id, name, amount, validity_days, created_at
  FROM products
 WHERE product_id = $1;
`
	row, err := pickRow(ctx, r.pool, tx, sql, id)
	if err != nil {
		return nil, err
	}
	var p model.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Amount, &p.ValidityDays, &p.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find product: %w", storeErr(err))
	}
	return &p, nil
}

// ListAll returns the catalog ordered by price, cheapest first.
func (r *PostgresProductRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Product, error) {
	const sql = `
SELECT product_id, name, amount, validity_days, created_at
  FROM products
 ORDER BY amount ASC, product_id ASC;
`
	rows, err := queryRows(ctx, r.pool, tx, sql)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	var out []*model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Amount, &p.ValidityDays, &p.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
