package order

import (
	"context"

	domproduct "github.com/TLF1607916/loopbuy-trade/internal/domain/product"
)

// IDGenerator issues record identifiers and prefixed reference tokens.
type IDGenerator interface {
	NewID() string
	NewRef(prefix string) string
}

// ProductLocks is the availability port the order lifecycle drives. Only the
// lock/release/sold trio is visible here; catalog reads stay elsewhere.
type ProductLocks interface {
	TryLock(ctx context.Context, productID, buyerID string) (*domproduct.Product, error)
	Release(ctx context.Context, productID string) (bool, error)
	MarkSold(ctx context.Context, productID string) (bool, error)
}
