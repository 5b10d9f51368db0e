//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"telegram-payment-links/internal/domain"
	"telegram-payment-links/internal/domain/model"
	"telegram-payment-links/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
)

func seedProduct(t *testing.T, ctx context.Context) *model.Product {
	t.Helper()
	p, err := model.NewProduct("premium", "Premium", 49900, 30)
	if err != nil {
		t.Fatalf("model.NewProduct() failed: %v", err)
	}
	if err := NewPostgresProductRepo(testPool).Save(ctx, repository.NoTX, p); err != nil {
		t.Fatalf("Failed to save product: %v", err)
	}
	return p
}

func newLink(t *testing.T, p *model.Product, userID, providerID string, createdAt time.Time) *model.PaymentLink {
	t.Helper()
	l, err := model.NewPaymentLink(userID, p, providerID, "https://rzp.io/i/"+providerID, model.LinkStatusCreated, createdAt)
	if err != nil {
		t.Fatalf("model.NewPaymentLink() failed: %v", err)
	}
	l.ReferenceID = "ref-" + providerID
	l.Currency = "INR"
	return l
}

func TestProductRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	cleanup(t)
	repo := NewPostgresProductRepo(testPool)
	p := seedProduct(t, ctx)

	p.Amount = 59900
	if err := repo.Save(ctx, repository.NoTX, p); err != nil {
		t.Fatalf("Failed to update product: %v", err)
	}
	got, err := repo.FindByID(ctx, repository.NoTX, "premium")
	if err != nil {
		t.Fatalf("Failed to find product: %v", err)
	}
	if got.Amount != 59900 {
		t.Errorf("expected upsert to change amount, got %d", got.Amount)
	}
	if _, err := repo.FindByID(ctx, repository.NoTX, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPaymentLinkRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	cleanup(t)
	repo := NewPaymentLinkRepo(testPool)
	p := seedProduct(t, ctx)
	base := time.Now().UTC().Truncate(time.Millisecond)

	older := newLink(t, p, "u1", "plink_A", base.Add(-10*time.Minute))
	newer := newLink(t, p, "u1", "plink_B", base)
	other := newLink(t, p, "u2", "plink_C", base)
	for _, l := range []*model.PaymentLink{older, newer, other} {
		if err := repo.Create(ctx, repository.NoTX, l); err != nil {
			t.Fatalf("Failed to create link: %v", err)
		}
	}

	t.Run("duplicate provider id is rejected", func(t *testing.T) {
		dup := newLink(t, p, "u3", "plink_A", base)
		if err := repo.Create(ctx, repository.NoTX, dup); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("lookups", func(t *testing.T) {
		got, err := repo.FindByProviderLinkID(ctx, repository.NoTX, "plink_B")
		if err != nil {
			t.Fatalf("FindByProviderLinkID: %v", err)
		}
		if got.ID != newer.ID || got.PaymentURL != newer.PaymentURL || got.Status != model.LinkStatusCreated {
			t.Errorf("unexpected link: %+v", got)
		}
		if _, err := repo.FindByID(ctx, repository.NoTX, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListByUser is newest first", func(t *testing.T) {
		links, err := repo.ListByUser(ctx, repository.NoTX, "u1", 10)
		if err != nil {
			t.Fatalf("ListByUser: %v", err)
		}
		if len(links) != 2 || links[0].ID != newer.ID {
			t.Fatalf("expected newest link first, got %d links", len(links))
		}
	})

	t.Run("UpdateStatusIfOpen never leaves a terminal state", func(t *testing.T) {
		ok, err := repo.UpdateStatusIfOpen(ctx, repository.NoTX, older.ID, model.LinkStatusPaid, base)
		if err != nil || !ok {
			t.Fatalf("expected first transition to apply, ok=%v err=%v", ok, err)
		}
		ok, err = repo.UpdateStatusIfOpen(ctx, repository.NoTX, older.ID, model.LinkStatusExpired, base)
		if err != nil {
			t.Fatalf("UpdateStatusIfOpen: %v", err)
		}
		if ok {
			t.Error("a paid link must not be overwritten")
		}
		got, _ := repo.FindByID(ctx, repository.NoTX, older.ID)
		if got.Status != model.LinkStatusPaid {
			t.Errorf("expected paid, got %s", got.Status)
		}
	})

	t.Run("ListOpenByUser and ListUnresolved skip terminal links", func(t *testing.T) {
		open, err := repo.ListOpenByUser(ctx, repository.NoTX, "u1")
		if err != nil {
			t.Fatalf("ListOpenByUser: %v", err)
		}
		if len(open) != 1 || open[0].ID != newer.ID {
			t.Errorf("expected only the newer link to be open, got %d", len(open))
		}
		unresolved, err := repo.ListUnresolved(ctx, repository.NoTX, 100)
		if err != nil {
			t.Fatalf("ListUnresolved: %v", err)
		}
		if len(unresolved) != 2 {
			t.Errorf("expected 2 unresolved links, got %d", len(unresolved))
		}
	})

	t.Run("LockUser requires a transaction", func(t *testing.T) {
		if err := repo.LockUser(ctx, repository.NoTX, "u1"); !errors.Is(err, domain.ErrInvalidExecContext) {
			t.Errorf("expected ErrInvalidExecContext, got %v", err)
		}
	})

	t.Run("LockUser serializes same-user transactions", func(t *testing.T) {
		tm := NewTxManager(testPool)
		var mu sync.Mutex
		var order []string
		var wg sync.WaitGroup
		held := make(chan struct{})

		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
				if err := repo.LockUser(ctx, tx, "u1"); err != nil {
					return err
				}
				close(held)
				time.Sleep(200 * time.Millisecond)
				mu.Lock()
				order = append(order, "first")
				mu.Unlock()
				return nil
			})
		}()

		<-held
		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if err := repo.LockUser(ctx, tx, "u1"); err != nil {
				return err
			}
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
		wg.Wait()
		if err != nil {
			t.Fatalf("second tx failed: %v", err)
		}
		if len(order) != 2 || order[0] != "first" {
			t.Errorf("expected lock holder to finish first, got %v", order)
		}
	})
}
