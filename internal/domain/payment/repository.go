package payment

import (
	"context"
	"time"
)

// Repository persists payments. The conditional status update is the race
// arbiter between user confirmation and the timeout sweep: whichever caller
// wins the swap owns the transition, the other observes a conflict.
type Repository interface {
	Insert(ctx context.Context, p *Payment) error
	GetByRef(ctx context.Context, ref string) (*Payment, error)
	// CompareAndSwapStatus transitions ref from -> to, recording the
	// transaction reference and failure reason in the same step. Returns
	// false when the current status differs from the expected one.
	CompareAndSwapStatus(ctx context.Context, ref string, from, to Status, transactionID, failureReason string) (bool, error)
	// FindExpired returns pending payments whose window closed at or before
	// now. The query-then-act pattern tolerates duplicate sweeps because the
	// subsequent swap is conditional.
	FindExpired(ctx context.Context, now time.Time) ([]*Payment, error)
	// FindPendingByOrder returns the pending payment covering orderID, if
	// any. At most one may exist.
	FindPendingByOrder(ctx context.Context, orderID string) (*Payment, error)
	FindByUser(ctx context.Context, userID string) ([]*Payment, error)
}
