// File: internal/usecase/payment_link_uc.go
package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-payment-links/internal/domain"
	"telegram-payment-links/internal/domain/model"
	"telegram-payment-links/internal/domain/ports/adapter"
	"telegram-payment-links/internal/domain/ports/repository"
	"telegram-payment-links/internal/infra/logging"
	"telegram-payment-links/internal/infra/metrics"
	"telegram-payment-links/internal/infra/worker"
)

// Compile-time check
var _ PaymentLinkUseCase = (*paymentLinkUC)(nil)

// ReconcileOutcome classifies what a single reconciliation did to a link.
type ReconcileOutcome string

const (
	OutcomeUnchanged       ReconcileOutcome = "unchanged"
	OutcomeUpdated         ReconcileOutcome = "updated"
	OutcomeExpiredFallback ReconcileOutcome = "expired_fallback"
	OutcomeFailed          ReconcileOutcome = "failed"
)

type PaymentLinkUseCase interface {
	// CreateLink supersedes the user's open links and issues a new one.
	CreateLink(ctx context.Context, userID, productID string) (*model.PaymentLink, error)
	// CheckStatus refreshes one link from the provider. Terminal links are returned as stored.
	CheckStatus(ctx context.Context, providerLinkID string) (*model.PaymentLink, error)
	// ReconcileLink is CheckStatus for the background sweep: the internal expiry
	// still applies when the provider cannot be reached.
	ReconcileLink(ctx context.Context, providerLinkID string) (ReconcileOutcome, error)
	LatestForUser(ctx context.Context, userID string) (*model.PaymentLink, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.PaymentLink, error)
	ListUnresolved(ctx context.Context, limit int) ([]*model.PaymentLink, error)
}

// Dispatcher runs tasks off the request path. *worker.Pool satisfies it.
type Dispatcher interface {
	Submit(task worker.Task) error
}

// PaymentLinkConfig holds the lifecycle knobs.
type PaymentLinkConfig struct {
	TTL      time.Duration
	Currency string
}

type paymentLinkUC struct {
	links    repository.PaymentLinkRepository
	products repository.ProductRepository
	provider adapter.PaymentProvider
	tm       repository.TransactionManager
	notifier adapter.Notifier
	dispatch Dispatcher
	cfg      PaymentLinkConfig
	log      *zerolog.Logger
	now      func() time.Time
}

// NewPaymentLinkUseCase wires the lifecycle service. notifier and dispatch may be
// nil, in which case no messages are sent.
func NewPaymentLinkUseCase(
	links repository.PaymentLinkRepository,
	products repository.ProductRepository,
	provider adapter.PaymentProvider,
	tm repository.TransactionManager,
	notifier adapter.Notifier,
	dispatch Dispatcher,
	cfg PaymentLinkConfig,
	logger *zerolog.Logger,
) *paymentLinkUC {
	if cfg.TTL <= 0 {
		cfg.TTL = model.DefaultLinkTTL
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	l := logger.With().Str("component", "PaymentLinkUseCase").Logger()
	return &paymentLinkUC{
		links:    links,
		products: products,
		provider: provider,
		tm:       tm,
		notifier: notifier,
		dispatch: dispatch,
		cfg:      cfg,
		log:      &l,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source. Used by tests.
func (u *paymentLinkUC) WithClock(now func() time.Time) *paymentLinkUC {
	u.now = now
	return u
}

func (u *paymentLinkUC) CreateLink(ctx context.Context, userID, productID string) (*model.PaymentLink, error) {
	ctx = logging.WithUserID(ctx, userID)
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "PaymentLinkUC.CreateLink")()

	if userID == "" || productID == "" {
		return nil, domain.ErrInvalidArgument
	}
	product, err := u.products.FindByID(ctx, repository.NoTX, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("product %q: %w", productID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("load product: %w", err)
	}

	var (
		created     *model.PaymentLink
		providerErr error
	)
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.links.LockUser(ctx, tx, userID); err != nil {
			return err
		}
		if err := u.supersede(ctx, tx, userID, log); err != nil {
			return err
		}

		now := u.now()
		refID := newReferenceID(now)
		pl, err := u.provider.CreateLink(ctx, adapter.CreateLinkRequest{
			Amount:      product.Amount,
			Currency:    u.cfg.Currency,
			CustomerRef: userID,
			ReferenceID: refID,
			Description: product.Name,
			ExpireBy:    now.Add(u.cfg.TTL),
		})
		if err != nil {
			// Keep the supersede writes: the provider-side cancels already happened.
			providerErr = err
			return nil
		}

		link, err := model.NewPaymentLink(userID, product, pl.ID, pl.URL, pl.Status, now)
		if err != nil {
			return err
		}
		link.Currency = u.cfg.Currency
		link.ReferenceID = refID
		if err := u.links.Create(ctx, tx, link); err != nil {
			return fmt.Errorf("persist link: %w", err)
		}
		created = link
		return nil
	})
	if err != nil {
		return nil, err
	}
	if providerErr != nil {
		log.Warn().Err(providerErr).Str("product_id", productID).Msg("provider create failed")
		return nil, fmt.Errorf("create payment link: %w", asProviderErr(providerErr))
	}

	metrics.IncLinkCreated(product.ID)
	log.Info().
		Str("link_id", created.ID).
		Str("provider_link_id", logging.Redact(created.ProviderLinkID, false)).
		Str("product_id", product.ID).
		Msg("payment link issued")

	u.notify(ctx, "link", func(ctx context.Context) error {
		return u.notifier.SendPaymentLink(ctx, userID, created.PaymentURL, product.Name)
	})
	return created, nil
}

// supersede cancels and locally expires every open link of the user.
// Provider cancel failures are logged and never block issuance.
func (u *paymentLinkUC) supersede(ctx context.Context, tx repository.Tx, userID string, log *zerolog.Logger) error {
	open, err := u.links.ListOpenByUser(ctx, tx, userID)
	if err != nil {
		return fmt.Errorf("list open links: %w", err)
	}
	for _, l := range open {
		cancelErr := u.provider.CancelLink(ctx, l.ProviderLinkID)
		if cancelErr != nil {
			log.Warn().Err(cancelErr).Str("link_id", l.ID).Msg("provider cancel failed; expiring locally")
		}
		metrics.IncLinkSuperseded(cancelErr == nil)

		if _, err := u.links.UpdateStatusIfOpen(ctx, tx, l.ID, model.LinkStatusExpired, u.now()); err != nil {
			return fmt.Errorf("expire superseded link: %w", err)
		}
		metrics.IncLinkTransition(string(l.Status), string(model.LinkStatusExpired))
	}
	return nil
}

func (u *paymentLinkUC) CheckStatus(ctx context.Context, providerLinkID string) (*model.PaymentLink, error) {
	link, err := u.links.FindByProviderLinkID(ctx, repository.NoTX, providerLinkID)
	if err != nil {
		return nil, err
	}
	if link.Status.IsTerminal() {
		return link, nil
	}

	pl, err := u.provider.FetchLink(ctx, providerLinkID)
	if err != nil {
		return nil, fmt.Errorf("fetch link status: %w", asProviderErr(err))
	}
	updated, _, err := u.apply(ctx, providerLinkID, pl.Status)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (u *paymentLinkUC) ReconcileLink(ctx context.Context, providerLinkID string) (ReconcileOutcome, error) {
	link, err := u.links.FindByProviderLinkID(ctx, repository.NoTX, providerLinkID)
	if err != nil {
		return OutcomeFailed, err
	}
	if link.Status.IsTerminal() {
		return OutcomeUnchanged, nil
	}

	var observed model.LinkStatus
	pl, fetchErr := u.provider.FetchLink(ctx, providerLinkID)
	if fetchErr == nil {
		observed = pl.Status
	} else {
		logging.With(ctx, u.log).Debug().Err(fetchErr).Str("link_id", link.ID).Msg("provider fetch failed; applying internal expiry only")
	}

	_, changed, err := u.apply(ctx, providerLinkID, observed)
	if err != nil {
		return OutcomeFailed, err
	}
	switch {
	case !changed && fetchErr != nil:
		return OutcomeFailed, fmt.Errorf("fetch link status: %w", asProviderErr(fetchErr))
	case !changed:
		return OutcomeUnchanged, nil
	case fetchErr != nil:
		return OutcomeExpiredFallback, nil
	}
	return OutcomeUpdated, nil
}

// apply re-reads the link under a row lock, merges the observed status and
// persists it only when it changed. Network I/O happens before the lock.
func (u *paymentLinkUC) apply(ctx context.Context, providerLinkID string, observed model.LinkStatus) (*model.PaymentLink, bool, error) {
	var (
		result  *model.PaymentLink
		changed bool
		from    model.LinkStatus
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		link, err := u.links.FindByProviderLinkID(ctx, tx, providerLinkID)
		if err != nil {
			return err
		}
		result = link
		from = link.Status
		now := u.now()
		next := model.NextStatus(link.Status, observed, link.CreatedAt, now, u.cfg.TTL)
		if next == link.Status {
			return nil
		}
		ok, err := u.links.UpdateStatusIfOpen(ctx, tx, link.ID, next, now)
		if err != nil {
			return fmt.Errorf("update link status: %w", err)
		}
		if ok {
			link.Status = next
			link.UpdatedAt = now
			changed = true
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		metrics.IncLinkTransition(string(from), string(result.Status))
		logging.With(ctx, u.log).Info().
			Str("link_id", result.ID).
			Str("from", string(from)).
			Str("to", string(result.Status)).
			Msg("payment link status changed")
		if result.Status == model.LinkStatusPaid {
			u.notifyPaid(ctx, result)
		}
	}
	return result, changed, nil
}

func (u *paymentLinkUC) notifyPaid(ctx context.Context, link *model.PaymentLink) {
	name := link.ProductID
	if p, err := u.products.FindByID(ctx, repository.NoTX, link.ProductID); err == nil {
		name = p.Name
	}
	userID := link.UserID
	u.notify(ctx, "paid", func(ctx context.Context) error {
		return u.notifier.SendPaymentConfirmed(ctx, userID, name)
	})
}

func (u *paymentLinkUC) notify(ctx context.Context, kind string, send worker.Task) {
	if u.notifier == nil || u.dispatch == nil {
		return
	}
	traceID := logging.TraceIDFrom(ctx)
	task := func(ctx context.Context) error {
		err := send(logging.WithTraceID(ctx, traceID))
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.IncPaymentDM(kind, status)
		return err
	}
	if err := u.dispatch.Submit(task); err != nil {
		metrics.IncPaymentDM(kind, "dropped")
		logging.With(ctx, u.log).Warn().Err(err).Str("kind", kind).Msg("notification dropped")
	}
}

func (u *paymentLinkUC) LatestForUser(ctx context.Context, userID string) (*model.PaymentLink, error) {
	links, err := u.links.ListByUser(ctx, repository.NoTX, userID, 1)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, domain.ErrNotFound
	}
	return links[0], nil
}

func (u *paymentLinkUC) ListByUser(ctx context.Context, userID string, limit int) ([]*model.PaymentLink, error) {
	return u.links.ListByUser(ctx, repository.NoTX, userID, limit)
}

func (u *paymentLinkUC) ListUnresolved(ctx context.Context, limit int) ([]*model.PaymentLink, error) {
	return u.links.ListUnresolved(ctx, repository.NoTX, limit)
}

// asProviderErr makes sure a provider failure matches domain.ErrProviderUnavailable.
func asProviderErr(err error) error {
	if errors.Is(err, domain.ErrProviderUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
}

func newReferenceID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}
