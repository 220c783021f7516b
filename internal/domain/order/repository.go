package order

import "context"

// Repository persists orders. Status changes go through CompareAndSwapStatus
// so that concurrent writers (payment confirmation vs. the timeout sweep)
// resolve via the affected-row signal rather than a lock.
type Repository interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// CompareAndSwapStatus transitions id from -> to and applies mutate (may
	// be nil) to the stored record in the same step. It returns false when
	// the current status differs from the expected one.
	CompareAndSwapStatus(ctx context.Context, id string, from, to Status, mutate func(*Order)) (bool, error)
	FindByBuyer(ctx context.Context, buyerID string) ([]*Order, error)
	FindBySeller(ctx context.Context, sellerID string) ([]*Order, error)
}
