package model

import (
	"strings"
	"time"

	"telegram-payment-links/internal/domain"
)

// Product is a purchasable catalog entry. Amount is in minor currency units.
type Product struct {
	ID           string
	Name         string
	Amount       int64
	ValidityDays int
	CreatedAt    time.Time
}

func (p *Product) IsZero() bool { return p == nil || p.ID == "" }

// NewProduct validates and constructs a catalog product.
func NewProduct(id, name string, amount int64, validityDays int) (*Product, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" || name == "" || amount <= 0 || validityDays < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Product{
		ID:           id,
		Name:         name,
		Amount:       amount,
		ValidityDays: validityDays,
		CreatedAt:    time.Now(),
	}, nil
}
