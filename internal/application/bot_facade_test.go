package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-payment-links/internal/application"
	"telegram-payment-links/internal/domain"
	"telegram-payment-links/internal/domain/model"
)

type mockCatalog struct {
	products []*model.Product
	listErr  error
}

func (m *mockCatalog) Get(ctx context.Context, id string) (*model.Product, error) {
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockCatalog) List(ctx context.Context) ([]*model.Product, error) {
	return m.products, m.listErr
}

type mockLinks struct {
	created   []string
	createErr error
	latest    *model.PaymentLink
	latestErr error
	checked   *model.PaymentLink
	checkErr  error
}

func (m *mockLinks) CreateLink(ctx context.Context, userID, productID string) (*model.PaymentLink, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, userID+":"+productID)
	return &model.PaymentLink{ID: "l1", UserID: userID, ProductID: productID, PaymentURL: "https://rzp.io/i/abc"}, nil
}

func (m *mockLinks) CheckStatus(ctx context.Context, providerLinkID string) (*model.PaymentLink, error) {
	if m.checkErr != nil {
		return nil, m.checkErr
	}
	return m.checked, nil
}

func (m *mockLinks) LatestForUser(ctx context.Context, userID string) (*model.PaymentLink, error) {
	return m.latest, m.latestErr
}

func testLink(status model.LinkStatus) *model.PaymentLink {
	return &model.PaymentLink{
		ID:             "l1",
		UserID:         "42",
		ProductID:      "premium",
		ProviderLinkID: "plink_ABCDEF123456",
		Amount:         49900,
		Currency:       "INR",
		Status:         status,
		CreatedAt:      time.Now(),
	}
}

func TestBotFacade_HandleBuy(t *testing.T) {
	ctx := context.Background()

	t.Run("success uses telegram id as user id", func(t *testing.T) {
		links := &mockLinks{}
		f := application.NewBotFacade(&mockCatalog{}, links)

		text, err := f.HandleBuy(ctx, 42, "premium")
		require.NoError(t, err)
		assert.Contains(t, text, "Payment link created")
		assert.Equal(t, []string{"42:premium"}, links.created)
	})

	t.Run("unknown product", func(t *testing.T) {
		f := application.NewBotFacade(&mockCatalog{}, &mockLinks{createErr: domain.ErrNotFound})

		text, err := f.HandleBuy(ctx, 42, "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, "❌ Invalid plan selected.", text)
	})

	t.Run("blank product is rejected before the usecase", func(t *testing.T) {
		links := &mockLinks{}
		f := application.NewBotFacade(&mockCatalog{}, links)

		_, err := f.HandleBuy(ctx, 42, "  ")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		assert.Empty(t, links.created)
	})

	t.Run("provider down", func(t *testing.T) {
		f := application.NewBotFacade(&mockCatalog{}, &mockLinks{createErr: domain.ErrProviderUnavailable})

		text, err := f.HandleBuy(ctx, 42, "premium")
		assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
		assert.Contains(t, text, "not reachable")
	})
}

func TestBotFacade_HandleStatus(t *testing.T) {
	ctx := context.Background()
	catalog := &mockCatalog{products: []*model.Product{{ID: "premium", Name: "Premium Plan", Amount: 49900}}}

	t.Run("no links", func(t *testing.T) {
		f := application.NewBotFacade(catalog, &mockLinks{latestErr: domain.ErrNotFound})

		text, err := f.HandleStatus(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, "❌ No payment record found.", text)
	})

	t.Run("refreshed paid link", func(t *testing.T) {
		f := application.NewBotFacade(catalog, &mockLinks{
			latest:  testLink(model.LinkStatusCreated),
			checked: testLink(model.LinkStatusPaid),
		})

		text, err := f.HandleStatus(ctx, 42)
		require.NoError(t, err)
		assert.Contains(t, text, "************123456")
		assert.Contains(t, text, "499.00 INR")
		assert.Contains(t, text, "Premium Plan")
		assert.Contains(t, text, "Status: PAID")
		assert.Contains(t, text, "Payment received")
	})

	t.Run("provider down shows stored status", func(t *testing.T) {
		f := application.NewBotFacade(catalog, &mockLinks{
			latest:   testLink(model.LinkStatusPending),
			checkErr: domain.ErrProviderUnavailable,
		})

		text, err := f.HandleStatus(ctx, 42)
		require.NoError(t, err)
		assert.Contains(t, text, "Status: PENDING")
		assert.Contains(t, text, "Payment pending")
		assert.Contains(t, text, "last known status")
	})

	t.Run("store failure", func(t *testing.T) {
		f := application.NewBotFacade(catalog, &mockLinks{latestErr: domain.ErrStore})

		_, err := f.HandleStatus(ctx, 42)
		assert.True(t, errors.Is(err, domain.ErrStore))
	})

	t.Run("expired hint", func(t *testing.T) {
		f := application.NewBotFacade(catalog, &mockLinks{
			latest:  testLink(model.LinkStatusCreated),
			checked: testLink(model.LinkStatusExpired),
		})

		text, err := f.HandleStatus(ctx, 42)
		require.NoError(t, err)
		assert.Contains(t, text, "expired or failed")
	})
}

func TestMaskLinkID(t *testing.T) {
	assert.Equal(t, "****567890", application.MaskLinkID("link567890"))
	assert.Equal(t, "abc", application.MaskLinkID("abc"))
}

func TestFormatAmount(t *testing.T) {
	cases := map[int64]string{
		0:         "0.00 INR",
		5:         "0.05 INR",
		49900:     "499.00 INR",
		149950:    "1,499.50 INR",
		123456789: "1,234,567.89 INR",
	}
	for in, want := range cases {
		assert.Equal(t, want, application.FormatAmount(in, "INR"))
	}
}
