package product

import "context"

// Repository persists product availability records. CompareAndSwapStatus is
// the sole mutation path for availability: the conditional update is what
// prevents two orders from locking the same product.
type Repository interface {
	Insert(ctx context.Context, p *Product) error
	Get(ctx context.Context, id string) (*Product, error)
	// CompareAndSwapStatus transitions id from -> to and replaces LockedBy
	// with lockedBy (empty clears the holder). Returns false when the current
	// status differs from the expected one.
	CompareAndSwapStatus(ctx context.Context, id string, from, to Status, lockedBy string) (bool, error)
}
