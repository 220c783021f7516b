package httpapi

import (
	"time"

	domorder "github.com/TLF1607916/loopbuy-trade/internal/domain/order"
	dompayment "github.com/TLF1607916/loopbuy-trade/internal/domain/payment"
	domproduct "github.com/TLF1607916/loopbuy-trade/internal/domain/product"
)

type productView struct {
	ID          string   `json:"id"`
	SellerID    string   `json:"seller_id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Price       string   `json:"price"`
	ImageURLs   []string `json:"image_urls,omitempty"`
	Status      string   `json:"status"`
}

func toProductView(p *domproduct.Product) productView {
	return productView{
		ID:          p.ID,
		SellerID:    p.SellerID,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price.String(),
		ImageURLs:   p.ImageURLs,
		Status:      string(p.Status),
	}
}

type orderView struct {
	ID           string     `json:"id"`
	BuyerID      string     `json:"buyer_id"`
	SellerID     string     `json:"seller_id"`
	ProductID    string     `json:"product_id"`
	Price        string     `json:"price"`
	Title        string     `json:"title"`
	Status       string     `json:"status"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	ReturnReason string     `json:"return_reason,omitempty"`
	RejectReason string     `json:"reject_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func toOrderView(o *domorder.Order) orderView {
	v := orderView{
		ID:           o.ID,
		BuyerID:      o.BuyerID,
		SellerID:     o.SellerID,
		ProductID:    o.ProductID,
		Price:        o.PriceAtPurchase.String(),
		Title:        o.TitleSnapshot,
		Status:       string(o.Status),
		CancelReason: o.CancelReason,
		ReturnReason: o.ReturnReason,
		RejectReason: o.RejectReason,
		CreatedAt:    o.CreatedAt,
	}
	if !o.CompletedAt.IsZero() {
		t := o.CompletedAt
		v.CompletedAt = &t
	}
	return v
}

func toOrderViews(orders []*domorder.Order) []orderView {
	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, toOrderView(o))
	}
	return views
}

type paymentView struct {
	Ref           string    `json:"ref"`
	UserID        string    `json:"user_id"`
	OrderIDs      []string  `json:"order_ids"`
	Amount        string    `json:"amount"`
	Method        string    `json:"method"`
	Status        string    `json:"status"`
	ExpireAt      time.Time `json:"expire_at"`
	TransactionID string    `json:"transaction_id,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

func toPaymentView(p *dompayment.Payment) paymentView {
	return paymentView{
		Ref:           p.Ref,
		UserID:        p.UserID,
		OrderIDs:      p.OrderIDs,
		Amount:        p.Amount.String(),
		Method:        string(p.Method),
		Status:        string(p.Status),
		ExpireAt:      p.ExpireAt,
		TransactionID: p.TransactionID,
		FailureReason: p.FailureReason,
	}
}

func toPaymentViews(payments []*dompayment.Payment) []paymentView {
	views := make([]paymentView, 0, len(payments))
	for _, p := range payments {
		views = append(views, toPaymentView(p))
	}
	return views
}
