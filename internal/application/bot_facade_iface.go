package application

import (
	"context"

	"telegram-payment-links/internal/domain/model"
)

// Narrow views of the usecases the facade calls. Tests pass light-weight fakes.
type CatalogUseCaseIface interface {
	Get(ctx context.Context, id string) (*model.Product, error)
	List(ctx context.Context) ([]*model.Product, error)
}

type PaymentLinkUseCaseIface interface {
	CreateLink(ctx context.Context, userID, productID string) (*model.PaymentLink, error)
	CheckStatus(ctx context.Context, providerLinkID string) (*model.PaymentLink, error)
	LatestForUser(ctx context.Context, userID string) (*model.PaymentLink, error)
}
