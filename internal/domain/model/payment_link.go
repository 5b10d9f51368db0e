package model

import (
	"time"

	"telegram-payment-links/internal/domain"

	"github.com/google/uuid"
)

// DefaultLinkTTL is how long an issued link stays payable.
const DefaultLinkTTL = 18 * time.Minute

type LinkStatus string

const (
	LinkStatusCreated   LinkStatus = "created"   // issued at provider, nothing paid yet
	LinkStatusPending   LinkStatus = "pending"   // provider saw activity (e.g. partial payment)
	LinkStatusPaid      LinkStatus = "paid"      // terminal
	LinkStatusExpired   LinkStatus = "expired"   // terminal; also used when superseded locally
	LinkStatusCancelled LinkStatus = "cancelled" // terminal; cancelled at provider
)

// OpenLinkStatuses lists the non-terminal statuses, in store filter order.
var OpenLinkStatuses = []LinkStatus{LinkStatusCreated, LinkStatusPending}

func (s LinkStatus) IsTerminal() bool {
	switch s {
	case LinkStatusPaid, LinkStatusExpired, LinkStatusCancelled:
		return true
	}
	return false
}

func (s LinkStatus) IsValid() bool {
	switch s {
	case LinkStatusCreated, LinkStatusPending, LinkStatusPaid, LinkStatusExpired, LinkStatusCancelled:
		return true
	}
	return false
}

// PaymentLink is a single issued, time-boxed request for payment.
type PaymentLink struct {
	ID             string // UUID
	UserID         string // opaque external id (Telegram user id for bot users)
	ProductID      string
	ProviderLinkID string // unique, assigned by the provider
	ReferenceID    string // our reference sent to the provider
	Amount         int64  // minor units, captured at creation
	Currency       string
	PaymentURL     string
	Status         LinkStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (l *PaymentLink) IsZero() bool { return l == nil || l.ID == "" }

// ExpiresAt is the internal expiry deadline of the link.
func (l *PaymentLink) ExpiresAt(ttl time.Duration) time.Time {
	return l.CreatedAt.Add(ttl)
}

// NewPaymentLink builds a link from a product snapshot and the provider's answer.
func NewPaymentLink(userID string, product *Product, providerLinkID, paymentURL string, status LinkStatus, createdAt time.Time) (*PaymentLink, error) {
	if userID == "" || product.IsZero() || providerLinkID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if !status.IsValid() {
		status = LinkStatusCreated
	}
	return &PaymentLink{
		ID:             uuid.NewString(),
		UserID:         userID,
		ProductID:      product.ID,
		ProviderLinkID: providerLinkID,
		Amount:         product.Amount,
		PaymentURL:     paymentURL,
		Status:         status,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}, nil
}

// NextStatus merges one reconciliation pass into the current status.
// observed is the provider-reported status, or "" when no signal is available.
// A terminal current status is never changed.
func NextStatus(current LinkStatus, observed LinkStatus, createdAt, now time.Time, ttl time.Duration) LinkStatus {
	if current.IsTerminal() {
		return current
	}
	if observed.IsTerminal() {
		return observed
	}
	if now.Sub(createdAt) > ttl {
		return LinkStatusExpired
	}
	if observed.IsValid() {
		return observed
	}
	return current
}
