package order

import (
	"sync"
	"time"

	domain "github.com/TLF1607916/loopbuy-trade/internal/domain/order"
	"github.com/shopspring/decimal"
)

// RefundTransaction is a simulated refund record written when a return is
// approved. No money moves; the record exists for reconciliation.
type RefundTransaction struct {
	Ref       string
	OrderID   string
	BuyerID   string
	SellerID  string
	Amount    decimal.Decimal
	Reason    string
	CreatedAt time.Time
}

// RefundLog keeps refund records in process memory, one per order.
type RefundLog struct {
	mu      sync.RWMutex
	byRef   map[string]*RefundTransaction
	byOrder map[string]*RefundTransaction
}

func NewRefundLog() *RefundLog {
	return &RefundLog{
		byRef:   make(map[string]*RefundTransaction),
		byOrder: make(map[string]*RefundTransaction),
	}
}

func (l *RefundLog) Record(ref string, o *domain.Order, reason string) *RefundTransaction {
	txn := &RefundTransaction{
		Ref:       ref,
		OrderID:   o.ID,
		BuyerID:   o.BuyerID,
		SellerID:  o.SellerID,
		Amount:    o.PriceAtPurchase,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.byRef[ref] = txn
	l.byOrder[o.ID] = txn
	return txn
}

func (l *RefundLog) ByOrder(orderID string) (*RefundTransaction, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	txn, ok := l.byOrder[orderID]
	return txn, ok
}

func (l *RefundLog) ByRef(ref string) (*RefundTransaction, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	txn, ok := l.byRef[ref]
	return txn, ok
}
