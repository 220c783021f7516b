package order

import "time"

// OrderCreatedEvent is emitted once per order in a successful checkout batch.
type OrderCreatedEvent struct {
	OrderID    string
	BuyerID    string
	SellerID   string
	ProductID  string
	OccurredAt time.Time
}

func (OrderCreatedEvent) EventName() string { return "order.created" }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:    o.ID,
		BuyerID:    o.BuyerID,
		SellerID:   o.SellerID,
		ProductID:  o.ProductID,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderStatusChangedEvent is emitted on every order transition so that
// downstream consumers (audit, notifications) can react without being on the
// saga's critical path.
type OrderStatusChangedEvent struct {
	OrderID    string
	BuyerID    string
	SellerID   string
	ProductID  string
	From       Status
	To         Status
	ActorID    string
	Reason     string
	OccurredAt time.Time
}

func (OrderStatusChangedEvent) EventName() string { return "order.status_changed" }

func NewOrderStatusChangedEvent(o *Order, from Status, actorID, reason string) OrderStatusChangedEvent {
	return OrderStatusChangedEvent{
		OrderID:    o.ID,
		BuyerID:    o.BuyerID,
		SellerID:   o.SellerID,
		ProductID:  o.ProductID,
		From:       from,
		To:         o.Status,
		ActorID:    actorID,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}
