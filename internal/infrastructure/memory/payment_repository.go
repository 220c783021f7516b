package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/TLF1607916/loopbuy-trade/internal/domain/payment"
)

type PaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment // keyed by external reference
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		payments: make(map[string]*domain.Payment),
	}
}

func (r *PaymentRepository) Insert(ctx context.Context, p *domain.Payment) error {
	_ = ctx
	if p == nil || p.Ref == "" {
		return fmt.Errorf("payment repository: ref is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.payments[p.Ref]; exists {
		return domain.ErrConflict
	}

	r.payments[p.Ref] = p.Clone()
	return nil
}

func (r *PaymentRepository) GetByRef(ctx context.Context, ref string) (*domain.Payment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[ref]
	if !ok || p.Deleted {
		return nil, domain.ErrNotFound
	}

	return p.Clone(), nil
}

func (r *PaymentRepository) CompareAndSwapStatus(ctx context.Context, ref string, from, to domain.Status, transactionID, failureReason string) (bool, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[ref]
	if !ok || p.Deleted {
		return false, domain.ErrNotFound
	}
	if p.Status != from {
		return false, nil
	}

	now := time.Now().UTC()
	p.Status = to
	p.UpdatedAt = now
	if transactionID != "" {
		p.TransactionID = transactionID
	}
	if failureReason != "" {
		p.FailureReason = failureReason
	}
	if to == domain.StatusSuccess {
		p.PaidAt = now
	}
	return true, nil
}

func (r *PaymentRepository) FindExpired(ctx context.Context, now time.Time) ([]*domain.Payment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Payment
	for _, p := range r.payments {
		if p.Deleted || p.Status != domain.StatusPending {
			continue
		}
		if p.ExpiredAt(now) {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (r *PaymentRepository) FindPendingByOrder(ctx context.Context, orderID string) (*domain.Payment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.payments {
		if p.Deleted || p.Status != domain.StatusPending {
			continue
		}
		for _, id := range p.OrderIDs {
			if id == orderID {
				return p.Clone(), nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (r *PaymentRepository) FindByUser(ctx context.Context, userID string) ([]*domain.Payment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Payment
	for _, p := range r.payments {
		if p.Deleted || p.UserID != userID {
			continue
		}
		out = append(out, p.Clone())
	}
	return out, nil
}
