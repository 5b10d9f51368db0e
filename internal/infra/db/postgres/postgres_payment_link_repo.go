package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-payment-links/internal/domain"
	"telegram-payment-links/internal/domain/model"
	"telegram-payment-links/internal/domain/ports/repository"
)

var _ repository.PaymentLinkRepository = (*paymentLinkRepo)(nil)

type paymentLinkRepo struct{ pool *pgxpool.Pool }

func NewPaymentLinkRepo(pool *pgxpool.Pool) *paymentLinkRepo {
	return &paymentLinkRepo{pool: pool}
}

const linkColumns = `id, user_id, product_id, provider_link_id, reference_id, amount, currency, payment_url, status, created_at, updated_at`

func scanLink(row pgx.Row) (*model.PaymentLink, error) {
	l := &model.PaymentLink{}
	var status string
	if err := row.Scan(&l.ID, &l.UserID, &l.ProductID, &l.ProviderLinkID, &l.ReferenceID, &l.Amount, &l.Currency, &l.PaymentURL, &status, &l.CreatedAt, &l.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	l.Status = model.LinkStatus(status)
	return l, nil
}

func (r *paymentLinkRepo) Create(ctx context.Context, tx repository.Tx, l *model.PaymentLink) error {
	const q = `
INSERT INTO payment_links (` + linkColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11);`

	_, err := execSQL(ctx, r.pool, tx, q, l.ID, l.UserID, l.ProductID, l.ProviderLinkID, l.ReferenceID, l.Amount, l.Currency, l.PaymentURL, string(l.Status), l.CreatedAt, l.UpdatedAt)
	return err
}

func (r *paymentLinkRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentLink, error) {
	q := `SELECT ` + linkColumns + ` FROM payment_links WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanLink(row)
}

func (r *paymentLinkRepo) FindByProviderLinkID(ctx context.Context, tx repository.Tx, providerLinkID string) (*model.PaymentLink, error) {
	q := `SELECT ` + linkColumns + ` FROM payment_links WHERE provider_link_id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, providerLinkID)
	if err != nil {
		return nil, err
	}
	return scanLink(row)
}

// ListByUser returns the user's links, newest first.
func (r *paymentLinkRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.PaymentLink, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT ` + linkColumns + ` FROM payment_links WHERE user_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2;`
	return r.list(ctx, tx, q, userID, limit)
}

func (r *paymentLinkRepo) ListOpenByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.PaymentLink, error) {
	q := `SELECT ` + linkColumns + ` FROM payment_links WHERE user_id=$1 AND status IN ('created','pending') ORDER BY created_at ASC`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	return r.list(ctx, tx, q, userID)
}

// ListUnresolved returns non-terminal links, oldest first.
func (r *paymentLinkRepo) ListUnresolved(ctx context.Context, tx repository.Tx, limit int) ([]*model.PaymentLink, error) {
	if limit <= 0 {
		limit = 500
	}
	const q = `SELECT ` + linkColumns + ` FROM payment_links WHERE status IN ('created','pending') ORDER BY created_at ASC LIMIT $1;`
	return r.list(ctx, tx, q, limit)
}

func (r *paymentLinkRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.PaymentLink, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PaymentLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// UpdateStatusIfOpen atomically updates status only while the current status is 'created' or 'pending'.
func (r *paymentLinkRepo) UpdateStatusIfOpen(ctx context.Context, tx repository.Tx, id string, status model.LinkStatus, at time.Time) (bool, error) {
	const q = `
    UPDATE payment_links
       SET status = $2,
           updated_at = $3
     WHERE id = $1
       AND status IN ('created','pending')`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status), at)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() >= 1, nil
}

// LockUser takes a transaction-scoped advisory lock keyed by user id.
func (r *paymentLinkRepo) LockUser(ctx context.Context, tx repository.Tx, userID string) error {
	if !inTx(tx) {
		return domain.ErrInvalidExecContext
	}
	_, err := execSQL(ctx, r.pool, tx, `SELECT pg_advisory_xact_lock(hashtext('payment_links:' || $1));`, userID)
	return err
}
