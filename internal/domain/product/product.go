package product

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("product: not found")
	ErrConflict      = errors.New("product: already exists")
	ErrInvalidSeller = errors.New("product: seller id is required")
	ErrInvalidPrice  = errors.New("product: price must be greater than zero")
)

// Product is the availability record of a single sellable item. A LOCKED
// product is held for exactly one in-flight order; LockedBy records the buyer
// that holds the sale lock.
type Product struct {
	ID          string
	SellerID    string
	Title       string
	Description string
	Price       decimal.Decimal
	ImageURLs   []string
	Status      Status
	LockedBy    string
	Deleted     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func New(id, sellerID, title, description string, price decimal.Decimal, imageURLs []string) (*Product, error) {
	if sellerID == "" {
		return nil, ErrInvalidSeller
	}
	if !price.IsPositive() {
		return nil, ErrInvalidPrice
	}

	now := time.Now().UTC()
	return &Product{
		ID:          id,
		SellerID:    sellerID,
		Title:       title,
		Description: description,
		Price:       price,
		ImageURLs:   append([]string(nil), imageURLs...),
		Status:      StatusOnSale,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	clone.ImageURLs = append([]string(nil), p.ImageURLs...)
	return &clone
}
