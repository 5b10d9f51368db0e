package usecase

import (
	"context"

	"telegram-payment-links/internal/domain/model"
	"telegram-payment-links/internal/domain/ports/repository"
)

// CatalogUseCase exposes the product catalog. It is read-only to the link lifecycle.
type CatalogUseCase struct {
	repo repository.ProductRepository
}

// NewCatalogUseCase constructs a CatalogUseCase.
func NewCatalogUseCase(repo repository.ProductRepository) *CatalogUseCase {
	return &CatalogUseCase{repo: repo}
}

// Upsert saves or updates a product after validating it.
func (uc *CatalogUseCase) Upsert(ctx context.Context, id, name string, amount int64, validityDays int) (*model.Product, error) {
	p, err := model.NewProduct(id, name, amount, validityDays)
	if err != nil {
		return nil, err
	}
	if err := uc.repo.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get retrieves a product by ID.
func (uc *CatalogUseCase) Get(ctx context.Context, id string) (*model.Product, error) {
	return uc.repo.FindByID(ctx, repository.NoTX, id)
}

// List returns all products, cheapest first.
func (uc *CatalogUseCase) List(ctx context.Context) ([]*model.Product, error) {
	return uc.repo.ListAll(ctx, repository.NoTX)
}
