package product

import (
	"context"
	"errors"

	domain "github.com/TLF1607916/loopbuy-trade/internal/domain/product"
	"github.com/TLF1607916/loopbuy-trade/internal/pkg/apperr"
	"github.com/TLF1607916/loopbuy-trade/internal/pkg/logging"
	"go.uber.org/zap"
)

// LockManager owns the availability state of sellable items. All transitions
// are conditional swaps; losing a race is reported as a state conflict, never
// as a silent overwrite.
type LockManager struct {
	repo domain.Repository
}

func NewLockManager(repo domain.Repository) *LockManager {
	return &LockManager{repo: repo}
}

// TryLock moves the product ON_SALE -> LOCKED for the given buyer and returns
// the product as read at lock time, for snapshotting into the order.
func (m *LockManager) TryLock(ctx context.Context, productID, buyerID string) (*domain.Product, error) {
	logger := logging.FromContext(ctx).With(
		zap.String("component", "product_lock"),
		zap.String("product_id", productID),
	)

	p, err := m.repo.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperr.NotFound("PRODUCT_NOT_FOUND", "product does not exist")
		}
		return nil, apperr.System("PRODUCT_LOOKUP_FAILED", "could not load product", err)
	}

	if p.SellerID == buyerID {
		logger.Warn("lock_rejected_self_purchase", zap.String("buyer_id", buyerID))
		return nil, apperr.Validation("SELF_PURCHASE", "cannot purchase your own product")
	}
	if p.Status != domain.StatusOnSale {
		logger.Warn("lock_rejected_not_available", zap.String("status", string(p.Status)))
		return nil, apperr.StateConflict("PRODUCT_NOT_AVAILABLE", "product is not available for purchase")
	}

	swapped, err := m.repo.CompareAndSwapStatus(ctx, productID, domain.StatusOnSale, domain.StatusLocked, buyerID)
	if err != nil {
		return nil, apperr.System("PRODUCT_LOCK_FAILED", "could not lock product", err)
	}
	if !swapped {
		// Lost the race to another checkout between the read and the swap.
		logger.Warn("lock_lost_race", zap.String("buyer_id", buyerID))
		return nil, apperr.StateConflict("PRODUCT_NOT_AVAILABLE", "product is not available for purchase")
	}

	logger.Info("product_locked", zap.String("buyer_id", buyerID))
	return p, nil
}

// Release moves the product LOCKED -> ON_SALE. It is idempotent: a product
// already back on sale reports success.
func (m *LockManager) Release(ctx context.Context, productID string) (bool, error) {
	logger := logging.FromContext(ctx).With(
		zap.String("component", "product_lock"),
		zap.String("product_id", productID),
	)

	p, err := m.repo.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, apperr.NotFound("PRODUCT_NOT_FOUND", "product does not exist")
		}
		return false, apperr.System("PRODUCT_LOOKUP_FAILED", "could not load product", err)
	}

	if p.Status == domain.StatusOnSale {
		return true, nil
	}

	swapped, err := m.repo.CompareAndSwapStatus(ctx, productID, domain.StatusLocked, domain.StatusOnSale, "")
	if err != nil {
		return false, apperr.System("PRODUCT_RELEASE_FAILED", "could not release product", err)
	}
	if !swapped {
		// A concurrent release already succeeded, or the product is in a
		// state a release cannot leave (SOLD, DELISTED).
		current, getErr := m.repo.Get(ctx, productID)
		if getErr == nil && current.Status == domain.StatusOnSale {
			return true, nil
		}
		logger.Warn("release_skipped", zap.String("status", string(p.Status)))
		return false, nil
	}

	logger.Info("product_released")
	return true, nil
}

// MarkSold moves the product LOCKED -> SOLD at order completion, keeping the
// buyer attribution of the lock.
func (m *LockManager) MarkSold(ctx context.Context, productID string) (bool, error) {
	logger := logging.FromContext(ctx).With(
		zap.String("component", "product_lock"),
		zap.String("product_id", productID),
	)

	p, err := m.repo.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, apperr.NotFound("PRODUCT_NOT_FOUND", "product does not exist")
		}
		return false, apperr.System("PRODUCT_LOOKUP_FAILED", "could not load product", err)
	}

	swapped, err := m.repo.CompareAndSwapStatus(ctx, productID, domain.StatusLocked, domain.StatusSold, p.LockedBy)
	if err != nil {
		return false, apperr.System("PRODUCT_SOLD_UPDATE_FAILED", "could not mark product sold", err)
	}
	if !swapped {
		logger.Warn("mark_sold_skipped", zap.String("status", string(p.Status)))
		return false, nil
	}

	logger.Info("product_sold")
	return true, nil
}
