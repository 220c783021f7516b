package product

import (
	"context"
	"errors"

	domain "github.com/TLF1607916/loopbuy-trade/internal/domain/product"
	"github.com/TLF1607916/loopbuy-trade/internal/pkg/apperr"
	"github.com/TLF1607916/loopbuy-trade/internal/pkg/logging"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// IDGenerator issues product identifiers.
type IDGenerator interface {
	NewID() string
}

// Catalog is the listing surface: putting items on sale and taking them off.
// Availability during checkout belongs to LockManager.
type Catalog struct {
	repo  domain.Repository
	idGen IDGenerator
}

func NewCatalog(repo domain.Repository, idGen IDGenerator) *Catalog {
	return &Catalog{repo: repo, idGen: idGen}
}

// List puts a new item on sale.
func (c *Catalog) List(ctx context.Context, sellerID, title, description string, price decimal.Decimal, imageURLs []string) (*domain.Product, error) {
	p, err := domain.New(c.idGen.NewID(), sellerID, title, description, price, imageURLs)
	if err != nil {
		return nil, apperr.Validation("INVALID_PARAMS", err.Error())
	}
	if err := c.repo.Insert(ctx, p); err != nil {
		return nil, apperr.System("CREATE_PRODUCT_FAILED", "could not create product", err)
	}

	logging.FromContext(ctx).Info("product_listed",
		zap.String("component", "product_catalog"),
		zap.String("product_id", p.ID),
		zap.String("seller_id", sellerID),
	)
	return p, nil
}

func (c *Catalog) Get(ctx context.Context, productID string) (*domain.Product, error) {
	p, err := c.repo.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperr.NotFound("PRODUCT_NOT_FOUND", "product does not exist")
		}
		return nil, apperr.System("PRODUCT_LOOKUP_FAILED", "could not load product", err)
	}
	return p, nil
}

// Delist takes an on-sale item off the market. Locked or sold items cannot be
// delisted.
func (c *Catalog) Delist(ctx context.Context, productID, sellerID string) (*domain.Product, error) {
	p, err := c.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.SellerID != sellerID {
		return nil, apperr.Permission("DELIST_PERMISSION_DENIED", "only the seller may delist this product")
	}

	swapped, err := c.repo.CompareAndSwapStatus(ctx, productID, domain.StatusOnSale, domain.StatusDelisted, "")
	if err != nil {
		return nil, apperr.System("DELIST_PRODUCT_FAILED", "could not delist product", err)
	}
	if !swapped {
		return nil, apperr.StateConflict("PRODUCT_NOT_ON_SALE", "only on-sale products can be delisted")
	}

	p.Status = domain.StatusDelisted
	return p, nil
}

// Relist puts a delisted item back on sale.
func (c *Catalog) Relist(ctx context.Context, productID, sellerID string) (*domain.Product, error) {
	p, err := c.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.SellerID != sellerID {
		return nil, apperr.Permission("DELIST_PERMISSION_DENIED", "only the seller may relist this product")
	}

	swapped, err := c.repo.CompareAndSwapStatus(ctx, productID, domain.StatusDelisted, domain.StatusOnSale, "")
	if err != nil {
		return nil, apperr.System("RELIST_PRODUCT_FAILED", "could not relist product", err)
	}
	if !swapped {
		return nil, apperr.StateConflict("PRODUCT_NOT_DELISTED", "only delisted products can be relisted")
	}

	p.Status = domain.StatusOnSale
	return p, nil
}
