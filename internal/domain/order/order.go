package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound       = errors.New("order: not found")
	ErrConflict       = errors.New("order: already exists")
	ErrInvalidBuyer   = errors.New("order: buyer id is required")
	ErrInvalidProduct = errors.New("order: product id is required")
)

// Order is a purchase record for a single product. Price, title, description
// and image references are immutable snapshots taken at lock time; later
// edits to the product never flow back into the order.
type Order struct {
	ID                  string
	BuyerID             string
	SellerID            string
	ProductID           string
	PriceAtPurchase     decimal.Decimal
	TitleSnapshot       string
	DescriptionSnapshot string
	ImageURLsSnapshot   []string
	Status              Status
	CancelReason        string
	ReturnReason        string
	RejectReason        string
	Deleted             bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
	// CompletedAt anchors the return-request window.
	CompletedAt time.Time
}

// Snapshot carries the product fields frozen into an order at lock time.
type Snapshot struct {
	SellerID    string
	Price       decimal.Decimal
	Title       string
	Description string
	ImageURLs   []string
}

func New(id, buyerID, productID string, snap Snapshot) (*Order, error) {
	if buyerID == "" {
		return nil, ErrInvalidBuyer
	}
	if productID == "" {
		return nil, ErrInvalidProduct
	}

	now := time.Now().UTC()
	return &Order{
		ID:                  id,
		BuyerID:             buyerID,
		SellerID:            snap.SellerID,
		ProductID:           productID,
		PriceAtPurchase:     snap.Price,
		TitleSnapshot:       snap.Title,
		DescriptionSnapshot: snap.Description,
		ImageURLsSnapshot:   append([]string(nil), snap.ImageURLs...),
		Status:              StatusAwaitingPayment,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.ImageURLsSnapshot = append([]string(nil), o.ImageURLsSnapshot...)
	return &clone
}

// HoldsProductLock reports whether the order's status implies the referenced
// product must currently be locked for this order's buyer.
func (o *Order) HoldsProductLock() bool {
	switch o.Status {
	case StatusAwaitingPayment, StatusAwaitingShipping, StatusShipped:
		return true
	}
	return false
}
