//go:build !integration

package model

import (
	"errors"
	"testing"
	"time"

	"telegram-payment-links/internal/domain"
)

// --- Product Model Tests ---

func TestNewProduct(t *testing.T) {
	t.Run("should create a new product successfully", func(t *testing.T) {
		p, err := NewProduct(" basic ", "Basic Plan", 10000, 30)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if p.ID != "basic" {
			t.Errorf("expected product id to be trimmed to 'basic', but got %q", p.ID)
		}
		if p.Amount != 10000 {
			t.Errorf("expected amount to be 10000, but got %d", p.Amount)
		}
		if p.CreatedAt.IsZero() {
			t.Error("expected CreatedAt to be set")
		}
	})

	t.Run("should fail with invalid arguments", func(t *testing.T) {
		testCases := []struct {
			name     string
			id       string
			prodName string
			amount   int64
			validity int
		}{
			{"empty id", "", "Basic", 100, 30},
			{"empty name", "basic", "  ", 100, 30},
			{"zero amount", "basic", "Basic", 0, 30},
			{"negative validity", "basic", "Basic", 100, -1},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				p, err := NewProduct(tc.id, tc.prodName, tc.amount, tc.validity)
				if p != nil {
					t.Errorf("expected product to be nil on error")
				}
				if !errors.Is(err, domain.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, but got %v", err)
				}
			})
		}
	})
}

// --- PaymentLink Model Tests ---

func TestNewPaymentLink(t *testing.T) {
	product := &Product{ID: "basic", Name: "Basic", Amount: 10000}
	now := time.Now()

	t.Run("should snapshot the product amount", func(t *testing.T) {
		l, err := NewPaymentLink("u1", product, "plink_1", "https://rzp.io/i/abc", LinkStatusCreated, now)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if l.ID == "" {
			t.Error("expected link ID to be generated")
		}
		if l.Amount != 10000 || l.ProductID != "basic" {
			t.Errorf("unexpected snapshot: amount=%d product=%s", l.Amount, l.ProductID)
		}
		product.Amount = 20000
		if l.Amount != 10000 {
			t.Error("link amount must not follow later product price changes")
		}
		product.Amount = 10000
	})

	t.Run("should default unknown provider status to created", func(t *testing.T) {
		l, err := NewPaymentLink("u1", product, "plink_1", "", LinkStatus("weird"), now)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if l.Status != LinkStatusCreated {
			t.Errorf("expected status 'created', got %s", l.Status)
		}
	})

	t.Run("should reject missing provider id", func(t *testing.T) {
		if _, err := NewPaymentLink("u1", product, "", "", LinkStatusCreated, now); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestLinkStatus_IsTerminal(t *testing.T) {
	terminal := map[LinkStatus]bool{
		LinkStatusCreated:   false,
		LinkStatusPending:   false,
		LinkStatusPaid:      true,
		LinkStatusExpired:   true,
		LinkStatusCancelled: true,
	}
	for s, want := range terminal {
		if got := s.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, got, want)
		}
	}
}

func TestNextStatus(t *testing.T) {
	now := time.Now()
	fresh := now.Add(-5 * time.Minute)
	stale := now.Add(-19 * time.Minute)

	testCases := []struct {
		name      string
		current   LinkStatus
		observed  LinkStatus
		createdAt time.Time
		want      LinkStatus
	}{
		{"provider paid wins", LinkStatusCreated, LinkStatusPaid, fresh, LinkStatusPaid},
		{"provider paid wins even when stale", LinkStatusPending, LinkStatusPaid, stale, LinkStatusPaid},
		{"provider cancelled adopted verbatim", LinkStatusCreated, LinkStatusCancelled, fresh, LinkStatusCancelled},
		{"provider pending adopted", LinkStatusCreated, LinkStatusPending, fresh, LinkStatusPending},
		{"stale non-terminal signal expires internally", LinkStatusCreated, LinkStatusCreated, stale, LinkStatusExpired},
		{"no signal and stale expires internally", LinkStatusCreated, "", stale, LinkStatusExpired},
		{"no signal and fresh keeps status", LinkStatusPending, "", fresh, LinkStatusPending},
		{"terminal current never changes", LinkStatusPaid, LinkStatusExpired, stale, LinkStatusPaid},
		{"expired current never changes", LinkStatusExpired, LinkStatusPaid, fresh, LinkStatusExpired},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextStatus(tc.current, tc.observed, tc.createdAt, now, DefaultLinkTTL)
			if got != tc.want {
				t.Errorf("NextStatus(%s, %q) = %s, want %s", tc.current, tc.observed, got, tc.want)
			}
		})
	}
}
