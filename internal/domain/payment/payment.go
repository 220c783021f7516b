package payment

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("payment: not found")
	ErrConflict      = errors.New("payment: already exists")
	ErrInvalidUser   = errors.New("payment: user id is required")
	ErrInvalidOrders = errors.New("payment: order list must not be empty")
	ErrInvalidAmount = errors.New("payment: amount must be greater than zero")
)

// Payment covers one or more orders of the same buyer. Amount is a snapshot
// of the covered orders' purchase prices, validated once at creation.
type Payment struct {
	ID            string
	Ref           string
	UserID        string
	OrderIDs      []string
	Amount        decimal.Decimal
	Method        Method
	Status        Status
	ExpireAt      time.Time
	TransactionID string
	FailureReason string
	PaidAt        time.Time
	Deleted       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func New(id, ref, userID string, orderIDs []string, amount decimal.Decimal, method Method, expireAt time.Time) (*Payment, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}
	if len(orderIDs) == 0 {
		return nil, ErrInvalidOrders
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	now := time.Now().UTC()
	return &Payment{
		ID:        id,
		Ref:       ref,
		UserID:    userID,
		OrderIDs:  append([]string(nil), orderIDs...),
		Amount:    amount,
		Method:    method,
		Status:    StatusPending,
		ExpireAt:  expireAt,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	clone := *p
	clone.OrderIDs = append([]string(nil), p.OrderIDs...)
	return &clone
}

// ExpiredAt reports whether the payment window has closed at the given time.
func (p *Payment) ExpiredAt(now time.Time) bool {
	return !now.Before(p.ExpireAt)
}
