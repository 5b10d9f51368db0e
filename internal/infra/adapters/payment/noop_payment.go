package payment

import (
	"context"
	"fmt"
	"sync"

	"telegram-payment-links/internal/domain/model"
	"telegram-payment-links/internal/domain/ports/adapter"
)

var _ adapter.PaymentProvider = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is a simple in-memory provider for dev mode and tests.
// Statuses can be driven with SetStatus; Fail makes every call return err.
type NoopPaymentGateway struct {
	mu       sync.Mutex
	seq      int64
	links    map[string]model.LinkStatus
	cancels  []string
	fetches  int
	failWith error
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		links: make(map[string]model.LinkStatus),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) next() string {
	g.seq++
	return fmt.Sprintf("plink_noop%d", g.seq)
}

func (g *NoopPaymentGateway) CreateLink(ctx context.Context, req adapter.CreateLinkRequest) (adapter.ProviderLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failWith != nil {
		return adapter.ProviderLink{}, &adapter.ProviderError{Op: "create", Transient: true, Err: g.failWith}
	}
	id := g.next()
	g.links[id] = model.LinkStatusCreated
	return adapter.ProviderLink{ID: id, URL: "https://example.test/pay/" + id, Status: model.LinkStatusCreated}, nil
}

func (g *NoopPaymentGateway) CancelLink(ctx context.Context, providerLinkID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancels = append(g.cancels, providerLinkID)
	if g.failWith != nil {
		return &adapter.ProviderError{Op: "cancel", Transient: true, Err: g.failWith}
	}
	if st, ok := g.links[providerLinkID]; ok && !st.IsTerminal() {
		g.links[providerLinkID] = model.LinkStatusCancelled
	}
	return nil
}

func (g *NoopPaymentGateway) FetchLink(ctx context.Context, providerLinkID string) (adapter.ProviderLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches++
	if g.failWith != nil {
		return adapter.ProviderLink{}, &adapter.ProviderError{Op: "fetch", Transient: true, Err: g.failWith}
	}
	st, ok := g.links[providerLinkID]
	if !ok {
		return adapter.ProviderLink{}, &adapter.ProviderError{Op: "fetch", StatusCode: 404, Err: fmt.Errorf("noop: link %s not found", providerLinkID)}
	}
	return adapter.ProviderLink{ID: providerLinkID, URL: "https://example.test/pay/" + providerLinkID, Status: st}, nil
}

// SetStatus overrides the provider-side status of a link, e.g. to simulate a payment.
func (g *NoopPaymentGateway) SetStatus(providerLinkID string, st model.LinkStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.links[providerLinkID] = st
}

// Fail makes subsequent calls fail with err; nil restores normal behaviour.
func (g *NoopPaymentGateway) Fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failWith = err
}

// Cancelled returns the provider ids passed to CancelLink, in call order.
func (g *NoopPaymentGateway) Cancelled() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.cancels...)
}

// Fetches reports how many FetchLink calls were made.
func (g *NoopPaymentGateway) Fetches() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetches
}
