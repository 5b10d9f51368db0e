package repository

import (
	"context"
	"time"

	"telegram-payment-links/internal/domain/model"
)

// PaymentLinkRepository is the persistence boundary for payment links.
type PaymentLinkRepository interface {
	Create(ctx context.Context, tx Tx, l *model.PaymentLink) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentLink, error)
	FindByProviderLinkID(ctx context.Context, tx Tx, providerLinkID string) (*model.PaymentLink, error)
	ListByUser(ctx context.Context, tx Tx, userID string, limit int) ([]*model.PaymentLink, error)
	ListOpenByUser(ctx context.Context, tx Tx, userID string) ([]*model.PaymentLink, error)
	ListUnresolved(ctx context.Context, tx Tx, limit int) ([]*model.PaymentLink, error)
	// UpdateStatusIfOpen changes status only while the stored status is non-terminal.
	// It reports whether a row was updated.
	UpdateStatusIfOpen(ctx context.Context, tx Tx, id string, status model.LinkStatus, at time.Time) (bool, error)
	// LockUser serializes link issuance for a user until tx ends.
	LockUser(ctx context.Context, tx Tx, userID string) error
}
