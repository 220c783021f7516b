package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/TLF1607916/loopbuy-trade/internal/domain/product"
)

// ProductRepository is an in-process availability store. The conditional
// update under the write lock gives the same single-winner guarantee as an
// "UPDATE ... WHERE status = ?" against a relational row.
type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
}

func NewProductRepository() *ProductRepository {
	return &ProductRepository{
		products: make(map[string]*domain.Product),
	}
}

func (r *ProductRepository) Insert(ctx context.Context, p *domain.Product) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return fmt.Errorf("product repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[p.ID]; exists {
		return domain.ErrConflict
	}

	r.products[p.ID] = p.Clone()
	return nil
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok || p.Deleted {
		return nil, domain.ErrNotFound
	}

	return p.Clone(), nil
}

func (r *ProductRepository) CompareAndSwapStatus(ctx context.Context, id string, from, to domain.Status, lockedBy string) (bool, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok || p.Deleted {
		return false, domain.ErrNotFound
	}
	if p.Status != from {
		return false, nil
	}

	p.Status = to
	p.LockedBy = lockedBy
	p.UpdatedAt = time.Now().UTC()
	return true, nil
}
