//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"telegram-payment-links/internal/domain"
	"telegram-payment-links/internal/domain/model"
	"telegram-payment-links/internal/domain/ports/adapter"
	"telegram-payment-links/internal/domain/ports/repository"
	"telegram-payment-links/internal/infra/worker"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- In-memory link store ----

type memLinkRepo struct {
	mu      sync.Mutex
	byID    map[string]*model.PaymentLink
	creates int
	writes  int // successful status updates
	locks   []string
}

func newMemLinkRepo() *memLinkRepo {
	return &memLinkRepo{byID: map[string]*model.PaymentLink{}}
}

var _ repository.PaymentLinkRepository = (*memLinkRepo)(nil)

func (m *memLinkRepo) put(l *model.PaymentLink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.byID[l.ID] = &cp
}

func (m *memLinkRepo) Create(ctx context.Context, tx repository.Tx, l *model.PaymentLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byID {
		if x.ProviderLinkID == l.ProviderLinkID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *l
	m.byID[l.ID] = &cp
	m.creates++
	return nil
}

func (m *memLinkRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memLinkRepo) FindByProviderLinkID(ctx context.Context, tx repository.Tx, providerLinkID string) (*model.PaymentLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.byID {
		if l.ProviderLinkID == providerLinkID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memLinkRepo) sorted(filter func(*model.PaymentLink) bool, newestFirst bool) []*model.PaymentLink {
	var out []*model.PaymentLink
	for _, l := range m.byID {
		if filter(l) {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *memLinkRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.PaymentLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sorted(func(l *model.PaymentLink) bool { return l.UserID == userID }, true)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memLinkRepo) ListOpenByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.PaymentLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(l *model.PaymentLink) bool { return l.UserID == userID && !l.Status.IsTerminal() }, false), nil
}

func (m *memLinkRepo) ListUnresolved(ctx context.Context, tx repository.Tx, limit int) ([]*model.PaymentLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sorted(func(l *model.PaymentLink) bool { return !l.Status.IsTerminal() }, false)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memLinkRepo) UpdateStatusIfOpen(ctx context.Context, tx repository.Tx, id string, status model.LinkStatus, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.byID[id]
	if !ok || l.Status.IsTerminal() {
		return false, nil
	}
	l.Status = status
	l.UpdatedAt = at
	m.writes++
	return true, nil
}

func (m *memLinkRepo) LockUser(ctx context.Context, tx repository.Tx, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks = append(m.locks, userID)
	return nil
}

func (m *memLinkRepo) openCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.byID {
		if l.UserID == userID && !l.Status.IsTerminal() {
			n++
		}
	}
	return n
}

func (m *memLinkRepo) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes + m.creates
}

// ---- In-memory catalog ----

type memProductRepo struct {
	mu    sync.Mutex
	items map[string]*model.Product
}

func newMemProductRepo(products ...*model.Product) *memProductRepo {
	r := &memProductRepo{items: map[string]*model.Product{}}
	for _, p := range products {
		r.items[p.ID] = p
	}
	return r
}

func (r *memProductRepo) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[p.ID] = p
	return nil
}

func (r *memProductRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (r *memProductRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Product
	for _, p := range r.items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Amount < out[j].Amount })
	return out, nil
}

// ---- Provider mock ----

type mockProvider struct {
	CreateFunc func(ctx context.Context, req adapter.CreateLinkRequest) (adapter.ProviderLink, error)
	CancelFunc func(ctx context.Context, id string) error
	FetchFunc  func(ctx context.Context, id string) (adapter.ProviderLink, error)

	mu        sync.Mutex
	creates   []adapter.CreateLinkRequest
	cancelled []string
	fetches   int
	seq       int
}

var _ adapter.PaymentProvider = (*mockProvider)(nil)

func (p *mockProvider) Name() string { return "mock" }

func (p *mockProvider) CreateLink(ctx context.Context, req adapter.CreateLinkRequest) (adapter.ProviderLink, error) {
	p.mu.Lock()
	p.creates = append(p.creates, req)
	p.seq++
	seq := p.seq
	p.mu.Unlock()
	if p.CreateFunc != nil {
		return p.CreateFunc(ctx, req)
	}
	id := "plink_" + string(rune('A'+seq-1))
	return adapter.ProviderLink{ID: id, URL: "https://rzp.io/i/" + id, Status: model.LinkStatusCreated}, nil
}

func (p *mockProvider) CancelLink(ctx context.Context, id string) error {
	p.mu.Lock()
	p.cancelled = append(p.cancelled, id)
	p.mu.Unlock()
	if p.CancelFunc != nil {
		return p.CancelFunc(ctx, id)
	}
	return nil
}

func (p *mockProvider) FetchLink(ctx context.Context, id string) (adapter.ProviderLink, error) {
	p.mu.Lock()
	p.fetches++
	p.mu.Unlock()
	if p.FetchFunc != nil {
		return p.FetchFunc(ctx, id)
	}
	return adapter.ProviderLink{ID: id, Status: model.LinkStatusCreated}, nil
}

func (p *mockProvider) fetchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetches
}

// ---- Tx manager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- Notifications ----

type sentMessage struct {
	Kind      string
	Recipient string
	URL       string
	Product   string
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

var _ adapter.Notifier = (*mockNotifier)(nil)

func (n *mockNotifier) SendPaymentLink(ctx context.Context, recipientRef, paymentURL, productName string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{"link", recipientRef, paymentURL, productName})
	return n.err
}

func (n *mockNotifier) SendPaymentConfirmed(ctx context.Context, recipientRef, productName string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{"paid", recipientRef, "", productName})
	return n.err
}

func (n *mockNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

// syncDispatcher runs tasks inline so tests can assert on their effects.
type syncDispatcher struct{ full bool }

func (d *syncDispatcher) Submit(task worker.Task) error {
	if d.full {
		return worker.ErrQueueFull
	}
	return task(context.Background())
}
