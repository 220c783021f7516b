package product

import (
	"context"
	"testing"

	domain "github.com/TLF1607916/loopbuy-trade/internal/domain/product"
	"github.com/TLF1607916/loopbuy-trade/internal/infrastructure/memory"
	"github.com/TLF1607916/loopbuy-trade/internal/pkg/apperr"
	"github.com/shopspring/decimal"
)

func seedProduct(t *testing.T, repo *memory.ProductRepository, id, sellerID string) {
	t.Helper()
	p, err := domain.New(id, sellerID, "bike", "barely used", decimal.NewFromInt(80), nil)
	if err != nil {
		t.Fatalf("new product: %v", err)
	}
	if err := repo.Insert(context.Background(), p); err != nil {
		t.Fatalf("insert product: %v", err)
	}
}

func TestTryLock(t *testing.T) {
	ctx := context.Background()

	t.Run("locks an on-sale product", func(t *testing.T) {
		repo := memory.NewProductRepository()
		seedProduct(t, repo, "p1", "seller-1")
		m := NewLockManager(repo)

		p, err := m.TryLock(ctx, "p1", "buyer-1")
		if err != nil {
			t.Fatalf("try lock: %v", err)
		}
		if p.Price.String() != "80" || p.SellerID != "seller-1" {
			t.Fatalf("snapshot source wrong: %+v", p)
		}
		stored, _ := repo.Get(ctx, "p1")
		if stored.Status != domain.StatusLocked || stored.LockedBy != "buyer-1" {
			t.Fatalf("got status=%s lockedBy=%q", stored.Status, stored.LockedBy)
		}
	})

	t.Run("rejects self purchase", func(t *testing.T) {
		repo := memory.NewProductRepository()
		seedProduct(t, repo, "p1", "seller-1")
		m := NewLockManager(repo)

		_, err := m.TryLock(ctx, "p1", "seller-1")
		if !apperr.IsValidation(err) || apperr.CodeOf(err) != "SELF_PURCHASE" {
			t.Fatalf("expected SELF_PURCHASE validation error, got %v", err)
		}
	})

	t.Run("rejects a locked product", func(t *testing.T) {
		repo := memory.NewProductRepository()
		seedProduct(t, repo, "p1", "seller-1")
		m := NewLockManager(repo)

		if _, err := m.TryLock(ctx, "p1", "buyer-1"); err != nil {
			t.Fatalf("first lock: %v", err)
		}
		_, err := m.TryLock(ctx, "p1", "buyer-2")
		if !apperr.IsStateConflict(err) || apperr.CodeOf(err) != "PRODUCT_NOT_AVAILABLE" {
			t.Fatalf("expected PRODUCT_NOT_AVAILABLE conflict, got %v", err)
		}
	})

	t.Run("missing product", func(t *testing.T) {
		m := NewLockManager(memory.NewProductRepository())
		_, err := m.TryLock(ctx, "nope", "buyer-1")
		if !apperr.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestRelease(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewProductRepository()
	seedProduct(t, repo, "p1", "seller-1")
	m := NewLockManager(repo)

	if _, err := m.TryLock(ctx, "p1", "buyer-1"); err != nil {
		t.Fatalf("lock: %v", err)
	}

	t.Run("returns the product to sale", func(t *testing.T) {
		ok, err := m.Release(ctx, "p1")
		if err != nil || !ok {
			t.Fatalf("release: ok=%v err=%v", ok, err)
		}
		stored, _ := repo.Get(ctx, "p1")
		if stored.Status != domain.StatusOnSale || stored.LockedBy != "" {
			t.Fatalf("got status=%s lockedBy=%q", stored.Status, stored.LockedBy)
		}
	})

	t.Run("releasing again is a no-op success", func(t *testing.T) {
		ok, err := m.Release(ctx, "p1")
		if err != nil || !ok {
			t.Fatalf("idempotent release: ok=%v err=%v", ok, err)
		}
	})
}

func TestMarkSold(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewProductRepository()
	seedProduct(t, repo, "p1", "seller-1")
	m := NewLockManager(repo)

	t.Run("requires a locked product", func(t *testing.T) {
		ok, err := m.MarkSold(ctx, "p1")
		if err != nil {
			t.Fatalf("mark sold: %v", err)
		}
		if ok {
			t.Fatal("on-sale product must not be marked sold")
		}
	})

	t.Run("keeps the buyer attribution", func(t *testing.T) {
		if _, err := m.TryLock(ctx, "p1", "buyer-1"); err != nil {
			t.Fatalf("lock: %v", err)
		}
		ok, err := m.MarkSold(ctx, "p1")
		if err != nil || !ok {
			t.Fatalf("mark sold: ok=%v err=%v", ok, err)
		}
		stored, _ := repo.Get(ctx, "p1")
		if stored.Status != domain.StatusSold || stored.LockedBy != "buyer-1" {
			t.Fatalf("got status=%s lockedBy=%q", stored.Status, stored.LockedBy)
		}
	})
}

func TestCatalogDelist(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewProductRepository()
	seedProduct(t, repo, "p1", "seller-1")
	catalog := NewCatalog(repo, nil)

	t.Run("only the seller may delist", func(t *testing.T) {
		_, err := catalog.Delist(ctx, "p1", "someone-else")
		if !apperr.IsPermission(err) {
			t.Fatalf("expected permission error, got %v", err)
		}
	})

	t.Run("delist and relist round trip", func(t *testing.T) {
		p, err := catalog.Delist(ctx, "p1", "seller-1")
		if err != nil {
			t.Fatalf("delist: %v", err)
		}
		if p.Status != domain.StatusDelisted {
			t.Fatalf("got status %s", p.Status)
		}
		p, err = catalog.Relist(ctx, "p1", "seller-1")
		if err != nil {
			t.Fatalf("relist: %v", err)
		}
		if p.Status != domain.StatusOnSale {
			t.Fatalf("got status %s", p.Status)
		}
	})

	t.Run("locked products cannot be delisted", func(t *testing.T) {
		m := NewLockManager(repo)
		if _, err := m.TryLock(ctx, "p1", "buyer-1"); err != nil {
			t.Fatalf("lock: %v", err)
		}
		_, err := catalog.Delist(ctx, "p1", "seller-1")
		if !apperr.IsStateConflict(err) {
			t.Fatalf("expected state conflict, got %v", err)
		}
	})
}
