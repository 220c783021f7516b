package audit

import (
	"context"

	domevent "github.com/TLF1607916/loopbuy-trade/internal/domain/event"
	domorder "github.com/TLF1607916/loopbuy-trade/internal/domain/order"
	dompayment "github.com/TLF1607916/loopbuy-trade/internal/domain/payment"
	"go.uber.org/zap"
)

// Recorder receives trade events off the bus and writes audit entries.
// Recording is fire-and-forget: a failure here never reaches the saga.
type Recorder struct {
	log *zap.Logger
}

func NewRecorder(logger *zap.Logger) *Recorder {
	return &Recorder{log: logger.With(zap.String("component", "audit"))}
}

// Start registers the recorder on the bus.
func (r *Recorder) Start(subscriber domevent.Subscriber) {
	if subscriber == nil {
		return
	}
	subscriber.Subscribe(domorder.OrderCreatedEvent{}.EventName(), r.handleOrderCreated)
	subscriber.Subscribe(domorder.OrderStatusChangedEvent{}.EventName(), r.handleOrderStatusChanged)
	subscriber.Subscribe(dompayment.PaymentSettledEvent{}.EventName(), r.handlePaymentSettled)
}

func (r *Recorder) handleOrderCreated(ctx context.Context, e domevent.Event) error {
	_ = ctx
	evt, ok := e.(domorder.OrderCreatedEvent)
	if !ok {
		return nil
	}
	r.Record(evt.EventName(), evt.BuyerID, evt.OrderID, "created",
		zap.String("seller_id", evt.SellerID),
		zap.String("product_id", evt.ProductID),
	)
	return nil
}

func (r *Recorder) handleOrderStatusChanged(ctx context.Context, e domevent.Event) error {
	_ = ctx
	evt, ok := e.(domorder.OrderStatusChangedEvent)
	if !ok {
		return nil
	}
	r.Record(evt.EventName(), evt.ActorID, evt.OrderID, string(evt.To),
		zap.String("from", string(evt.From)),
		zap.String("product_id", evt.ProductID),
		zap.String("reason", evt.Reason),
	)
	return nil
}

func (r *Recorder) handlePaymentSettled(ctx context.Context, e domevent.Event) error {
	_ = ctx
	evt, ok := e.(dompayment.PaymentSettledEvent)
	if !ok {
		return nil
	}
	r.Record(evt.EventName(), evt.UserID, evt.Ref, string(evt.Status),
		zap.Strings("order_ids", evt.OrderIDs),
		zap.String("reason", evt.Reason),
	)
	return nil
}

// Record writes a single audit entry.
func (r *Recorder) Record(event, actorID, targetID, outcome string, extra ...zap.Field) {
	fields := append([]zap.Field{
		zap.String("event", event),
		zap.String("actor_id", actorID),
		zap.String("target_id", targetID),
		zap.String("outcome", outcome),
	}, extra...)
	r.log.Info("audit_record", fields...)
}
