package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"telegram-payment-links/internal/domain"
	"telegram-payment-links/internal/domain/model"
)

// BotFacade composes usecases into bot replies.
// Methods return display strings so the Telegram adapter just forwards them to the chat.
type BotFacade struct {
	Catalog CatalogUseCaseIface
	Links   PaymentLinkUseCaseIface
}

func NewBotFacade(catalog CatalogUseCaseIface, links PaymentLinkUseCaseIface) *BotFacade {
	return &BotFacade{Catalog: catalog, Links: links}
}

// Plans returns the catalog in display order.
func (b *BotFacade) Plans(ctx context.Context) ([]*model.Product, error) {
	if b.Catalog == nil {
		return nil, fmt.Errorf("catalog usecase not available")
	}
	return b.Catalog.List(ctx)
}

// PlanLabel renders a catalog button label.
func PlanLabel(p *model.Product, currency string) string {
	return p.Name + " - " + FormatAmount(p.Amount, currency)
}

// HandleBuy issues a link for tgID. The link itself is delivered by the notifier,
// so the returned text is a short acknowledgement or a user-facing error.
func (b *BotFacade) HandleBuy(ctx context.Context, tgID int64, productID string) (string, error) {
	if b.Links == nil {
		return "", fmt.Errorf("payment link usecase not available")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return "❌ Invalid plan selected.", domain.ErrInvalidArgument
	}
	link, err := b.Links.CreateLink(ctx, strconv.FormatInt(tgID, 10), productID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidArgument):
		return "❌ Invalid plan selected.", err
	case errors.Is(err, domain.ErrProviderUnavailable):
		return "❌ Payment provider is not reachable. Please try again shortly.", err
	default:
		return "❌ Could not create a payment link. Please try again later.", err
	}
	if link.PaymentURL == "" {
		return "❌ Could not create a payment link. Please try again later.", fmt.Errorf("link %s has no payment url", link.ID)
	}
	return "✅ Payment link created, check your messages.", nil
}

// HandleStatus refreshes and describes the user's most recent link. When the
// provider cannot be reached the stored status is shown instead.
func (b *BotFacade) HandleStatus(ctx context.Context, tgID int64) (string, error) {
	if b.Links == nil {
		return "", fmt.Errorf("payment link usecase not available")
	}
	latest, err := b.Links.LatestForUser(ctx, strconv.FormatInt(tgID, 10))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "❌ No payment record found.", nil
		}
		return "", fmt.Errorf("latest link: %w", err)
	}

	stale := false
	if fresh, err := b.Links.CheckStatus(ctx, latest.ProviderLinkID); err == nil {
		latest = fresh
	} else if errors.Is(err, domain.ErrProviderUnavailable) {
		stale = true
	} else {
		return "", fmt.Errorf("check status: %w", err)
	}

	productName := latest.ProductID
	if b.Catalog != nil {
		if p, err := b.Catalog.Get(ctx, latest.ProductID); err == nil {
			productName = p.Name
		}
	}

	var sb strings.Builder
	sb.WriteString("💳 Payment Status\n")
	sb.WriteString("🔗 Link ID: " + MaskLinkID(latest.ProviderLinkID) + "\n")
	sb.WriteString("💰 Amount: " + FormatAmount(latest.Amount, latest.Currency) + "\n")
	sb.WriteString("🛍️ Product: " + productName + "\n")
	sb.WriteString("📄 Status: " + strings.ToUpper(string(latest.Status)))
	sb.WriteString("\n\n" + statusHint(latest.Status))
	if stale {
		sb.WriteString("\n(last known status, the payment provider is not reachable right now)")
	}
	return sb.String(), nil
}

func statusHint(s model.LinkStatus) string {
	switch s {
	case model.LinkStatusPaid:
		return "✅ Payment received. Thank you!"
	case model.LinkStatusCreated, model.LinkStatusPending:
		return "🕐 Payment pending."
	default:
		return "⚠️ Payment expired or failed."
	}
}

// MaskLinkID keeps the last six characters visible.
func MaskLinkID(id string) string {
	if len(id) <= 6 {
		return id
	}
	return strings.Repeat("*", len(id)-6) + id[len(id)-6:]
}

// FormatAmount prints minor units as a major amount with thousands separators, e.g. "1,499.00 INR".
func FormatAmount(minor int64, currency string) string {
	neg := minor < 0
	if neg {
		minor = -minor
	}
	s := strconv.FormatInt(minor/100, 10)
	var b strings.Builder
	if neg {
		b.WriteString("-")
	}
	pre := len(s) % 3
	if pre == 0 {
		pre = 3
	}
	b.WriteString(s[:pre])
	for i := pre; i < len(s); i += 3 {
		b.WriteString(",")
		b.WriteString(s[i : i+3])
	}
	fmt.Fprintf(&b, ".%02d", minor%100)
	if currency != "" {
		b.WriteString(" " + currency)
	}
	return b.String()
}
