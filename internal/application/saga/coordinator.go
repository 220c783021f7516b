package saga

import (
	"context"
	"time"

	apporder "github.com/TLF1607916/loopbuy-trade/internal/application/order"
	apppayment "github.com/TLF1607916/loopbuy-trade/internal/application/payment"
	domorder "github.com/TLF1607916/loopbuy-trade/internal/domain/order"
	dompayment "github.com/TLF1607916/loopbuy-trade/internal/domain/payment"
	"github.com/TLF1607916/loopbuy-trade/internal/pkg/apperr"
	"github.com/TLF1607916/loopbuy-trade/internal/pkg/logging"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Coordinator sequences the multi-entity trade flows. Each step below is a
// single-entity conditional write owned by the order or payment service; the
// coordinator fixes their order and drives the compensating steps when a flow
// cannot go forward. It holds no state of its own, so a crash between steps
// loses nothing that the conditional swaps cannot absorb on retry.
type Coordinator struct {
	orders   *apporder.Service
	payments *apppayment.Service
	metrics  *Metrics
}

func NewCoordinator(orders *apporder.Service, payments *apppayment.Service, metrics *Metrics) *Coordinator {
	return &Coordinator{
		orders:   orders,
		payments: payments,
		metrics:  metrics,
	}
}

var tracer = otel.Tracer("loopbuy-trade/saga")

// Checkout locks the requested products and creates their orders. Lock
// acquisition and rollback on partial failure live in the order service; the
// coordinator only frames the flow.
func (c *Coordinator) Checkout(ctx context.Context, buyerID string, productIDs []string) (orders []*domorder.Order, err error) {
	ctx, span := tracer.Start(ctx, "Saga.Checkout")
	defer span.End()
	defer c.observe(span, "checkout", time.Now(), &err)
	span.SetAttributes(
		attribute.String("buyer.id", buyerID),
		attribute.Int("product.count", len(productIDs)),
	)

	orders, err = c.orders.CreateBatch(ctx, buyerID, productIDs)
	return orders, err
}

// CreatePayment opens a PENDING payment over the given orders.
func (c *Coordinator) CreatePayment(ctx context.Context, userID string, orderIDs []string, amount decimal.Decimal, method dompayment.Method) (p *dompayment.Payment, err error) {
	ctx, span := tracer.Start(ctx, "Saga.CreatePayment")
	defer span.End()
	defer c.observe(span, "create_payment", time.Now(), &err)
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Int("order.count", len(orderIDs)),
	)

	p, err = c.payments.Create(ctx, userID, orderIDs, amount, method)
	if err == nil {
		span.SetAttributes(attribute.String("payment.ref", p.Ref))
	}
	return p, err
}

// ConfirmPayment settles the payment, then advances its orders to
// AWAITING_SHIPPING. The payment swap is the arbiter: once it lands, order
// advancement is idempotent catch-up and a partial advance is retried, not
// rolled back. Confirming an expired payment triggers the timeout
// compensation before the expiry is reported to the caller.
func (c *Coordinator) ConfirmPayment(ctx context.Context, ref, credential, userID string) (p *dompayment.Payment, err error) {
	ctx, span := tracer.Start(ctx, "Saga.ConfirmPayment")
	defer span.End()
	defer c.observe(span, "confirm_payment", time.Now(), &err)
	span.SetAttributes(attribute.String("payment.ref", ref))

	p, err = c.payments.Confirm(ctx, ref, credential, userID)
	if err != nil {
		if apperr.IsExpired(err) {
			c.expireNow(ctx, ref)
		}
		return nil, err
	}

	advanced, advErr := c.orders.AdvanceAfterPayment(ctx, p.OrderIDs)
	if advErr != nil {
		logging.FromContext(ctx).Error("confirm_payment_advance_failed",
			zap.String("payment_ref", ref),
			zap.Error(advErr),
		)
	}
	span.SetAttributes(attribute.Int("order.advanced", advanced))
	return p, nil
}

// CancelPayment settles the payment as CANCELLED, then cancels its orders and
// releases their product locks. Settlement comes first so a racing confirm
// cannot interleave with the rollback.
func (c *Coordinator) CancelPayment(ctx context.Context, ref, userID string) (p *dompayment.Payment, err error) {
	ctx, span := tracer.Start(ctx, "Saga.CancelPayment")
	defer span.End()
	defer c.observe(span, "cancel_payment", time.Now(), &err)
	span.SetAttributes(attribute.String("payment.ref", ref))

	p, err = c.payments.Cancel(ctx, ref, userID)
	if err != nil {
		return nil, err
	}

	cancelled, cnlErr := c.orders.CancelBatch(ctx, p.OrderIDs, "payment cancelled")
	if cnlErr != nil {
		logging.FromContext(ctx).Error("cancel_payment_rollback_failed",
			zap.String("payment_ref", ref),
			zap.Error(cnlErr),
		)
	}
	span.SetAttributes(attribute.Int("order.cancelled", cancelled))
	return p, nil
}

// ExpirePayment is the sweep entry point: it settles an overdue payment as
// TIMEOUT and runs the same order rollback as a cancellation.
func (c *Coordinator) ExpirePayment(ctx context.Context, ref string) (p *dompayment.Payment, err error) {
	ctx, span := tracer.Start(ctx, "Saga.ExpirePayment")
	defer span.End()
	defer c.observe(span, "expire_payment", time.Now(), &err)
	span.SetAttributes(attribute.String("payment.ref", ref))

	p, err = c.payments.Expire(ctx, ref)
	if err != nil {
		return nil, err
	}

	cancelled, cnlErr := c.orders.CancelBatch(ctx, p.OrderIDs, "payment expired")
	if cnlErr != nil {
		logging.FromContext(ctx).Error("expire_payment_rollback_failed",
			zap.String("payment_ref", ref),
			zap.Error(cnlErr),
		)
	}
	span.SetAttributes(attribute.Int("order.cancelled", cancelled))
	return p, nil
}

func (c *Coordinator) Ship(ctx context.Context, orderID, sellerID string) (o *domorder.Order, err error) {
	ctx, span := tracer.Start(ctx, "Saga.Ship")
	defer span.End()
	defer c.observe(span, "ship", time.Now(), &err)
	span.SetAttributes(attribute.String("order.id", orderID))

	o, err = c.orders.Ship(ctx, orderID, sellerID)
	return o, err
}

func (c *Coordinator) ConfirmReceipt(ctx context.Context, orderID, buyerID string) (o *domorder.Order, err error) {
	ctx, span := tracer.Start(ctx, "Saga.ConfirmReceipt")
	defer span.End()
	defer c.observe(span, "confirm_receipt", time.Now(), &err)
	span.SetAttributes(attribute.String("order.id", orderID))

	o, err = c.orders.ConfirmReceipt(ctx, orderID, buyerID)
	return o, err
}

func (c *Coordinator) RequestReturn(ctx context.Context, orderID, buyerID, reason string) (o *domorder.Order, err error) {
	ctx, span := tracer.Start(ctx, "Saga.RequestReturn")
	defer span.End()
	defer c.observe(span, "request_return", time.Now(), &err)
	span.SetAttributes(attribute.String("order.id", orderID))

	o, err = c.orders.RequestReturn(ctx, orderID, buyerID, reason)
	return o, err
}

func (c *Coordinator) ProcessReturn(ctx context.Context, orderID, sellerID string, approve bool, rejectReason string) (o *domorder.Order, err error) {
	ctx, span := tracer.Start(ctx, "Saga.ProcessReturn")
	defer span.End()
	defer c.observe(span, "process_return", time.Now(), &err)
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.Bool("return.approved", approve),
	)

	o, err = c.orders.ProcessReturn(ctx, orderID, sellerID, approve, rejectReason)
	return o, err
}

// expireNow runs the timeout compensation for a payment found expired on the
// confirm path, without waiting for the sweep.
func (c *Coordinator) expireNow(ctx context.Context, ref string) {
	if _, err := c.ExpirePayment(ctx, ref); err != nil {
		// The sweep may have settled it already; anything else is logged for
		// the next sweep pass to retry.
		if !apperr.IsStateConflict(err) {
			logging.FromContext(ctx).Error("inline_expire_failed",
				zap.String("payment_ref", ref),
				zap.Error(err),
			)
		}
	}
}

// observe closes out a coordinator span and records the outcome metrics.
// Deferred with a named error result so the final error is seen.
func (c *Coordinator) observe(span trace.Span, operation string, start time.Time, err *error) {
	outcome := "success"
	if *err != nil {
		outcome = string(apperr.KindOf(*err))
		span.RecordError(*err)
		span.SetStatus(codes.Error, apperr.CodeOf(*err))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	if c.metrics != nil {
		c.metrics.Operations.WithLabelValues(operation, outcome).Inc()
		c.metrics.Duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
