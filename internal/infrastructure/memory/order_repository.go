package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/TLF1607916/loopbuy-trade/internal/domain/order"
)

type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders: make(map[string]*domain.Order),
	}
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	_ = ctx
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[o.ID]; exists {
		return domain.ErrConflict
	}

	r.orders[o.ID] = o.Clone()
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok || o.Deleted {
		return nil, domain.ErrNotFound
	}

	return o.Clone(), nil
}

func (r *OrderRepository) CompareAndSwapStatus(ctx context.Context, id string, from, to domain.Status, mutate func(*domain.Order)) (bool, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok || o.Deleted {
		return false, domain.ErrNotFound
	}
	if o.Status != from {
		return false, nil
	}

	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	if to == domain.StatusCompleted && from == domain.StatusShipped {
		o.CompletedAt = o.UpdatedAt
	}
	if mutate != nil {
		mutate(o)
	}
	return true, nil
}

func (r *OrderRepository) FindByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Order
	for _, o := range r.orders {
		if o.Deleted || o.BuyerID != buyerID {
			continue
		}
		out = append(out, o.Clone())
	}
	return out, nil
}

func (r *OrderRepository) FindBySeller(ctx context.Context, sellerID string) ([]*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Order
	for _, o := range r.orders {
		if o.Deleted || o.SellerID != sellerID {
			continue
		}
		out = append(out, o.Clone())
	}
	return out, nil
}
