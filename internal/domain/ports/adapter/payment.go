package adapter

import (
	"context"
	"fmt"
	"time"

	"telegram-payment-links/internal/domain"
	"telegram-payment-links/internal/domain/model"
)

// CreateLinkRequest carries what the provider needs to issue a payment link.
type CreateLinkRequest struct {
	Amount      int64  // minor units
	Currency    string // e.g. "INR"
	CustomerRef string // opaque user reference shown on the provider page
	ReferenceID string // our unique reference for the link
	Description string
	ExpireBy    time.Time
}

// ProviderLink is the provider's view of a payment link.
// Status is "" when the provider reported something we do not model.
type ProviderLink struct {
	ID     string
	URL    string
	Status model.LinkStatus
}

// PaymentProvider is the hex port for the external payment-link API.
// Every call is network I/O and may fail transiently.
type PaymentProvider interface {
	Name() string
	CreateLink(ctx context.Context, req CreateLinkRequest) (ProviderLink, error)
	CancelLink(ctx context.Context, providerLinkID string) error
	FetchLink(ctx context.Context, providerLinkID string) (ProviderLink, error)
}

// ProviderError reports a failed provider call. It always matches
// domain.ErrProviderUnavailable under errors.Is.
type ProviderError struct {
	Op         string // create | cancel | fetch
	StatusCode int    // 0 for transport errors
	Transient  bool   // network error, 429 or 5xx
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s: http %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() []error { return []error{domain.ErrProviderUnavailable, e.Err} }
