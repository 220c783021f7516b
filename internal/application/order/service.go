package order

import (
	"context"
	"errors"
	"time"

	domevent "github.com/TLF1607916/loopbuy-trade/internal/domain/event"
	domain "github.com/TLF1607916/loopbuy-trade/internal/domain/order"
	"github.com/TLF1607916/loopbuy-trade/internal/pkg/apperr"
	"github.com/TLF1607916/loopbuy-trade/internal/pkg/logging"
	"go.uber.org/zap"
)

const (
	publishTimeout  = 300 * time.Millisecond
	maxReasonLength = 500
)

// Service drives the order lifecycle. Multi-entity sequences (checkout,
// cancellation) acquire and release product locks through the ProductLocks
// port; everything else is a single-order conditional transition.
type Service struct {
	repo         domain.Repository
	locks        ProductLocks
	idGen        IDGenerator
	publisher    domevent.Publisher
	refunds      *RefundLog
	returnWindow time.Duration
	now          func() time.Time
}

func NewService(repo domain.Repository, locks ProductLocks, idGen IDGenerator, publisher domevent.Publisher, returnWindow time.Duration) *Service {
	return &Service{
		repo:         repo,
		locks:        locks,
		idGen:        idGen,
		publisher:    publisher,
		refunds:      NewRefundLog(),
		returnWindow: returnWindow,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Refunds exposes the simulated refund records for read paths.
func (s *Service) Refunds() *RefundLog { return s.refunds }

// CreateBatch locks every requested product and creates one order per
// product, all status AWAITING_PAYMENT. The first lock failure releases every
// lock taken so far and rejects the whole batch: partial success is never
// visible to callers.
func (s *Service) CreateBatch(ctx context.Context, buyerID string, productIDs []string) ([]*domain.Order, error) {
	logger := logging.FromContext(ctx).With(
		zap.String("component", "order_service"),
		zap.String("buyer_id", buyerID),
	)

	if buyerID == "" {
		return nil, apperr.Validation("INVALID_PARAMS", "buyer id is required")
	}
	if len(productIDs) == 0 {
		return nil, apperr.Validation("EMPTY_PRODUCT_LIST", "product list must not be empty")
	}

	logger.Info("create_order_batch_start", zap.Int("product_count", len(productIDs)))

	// Phase 1: take every lock before writing any order row.
	locked := make([]string, 0, len(productIDs))
	snapshots := make([]domain.Snapshot, 0, len(productIDs))
	for _, productID := range productIDs {
		p, err := s.locks.TryLock(ctx, productID, buyerID)
		if err != nil {
			logger.Warn("create_order_batch_lock_failed",
				zap.String("product_id", productID),
				zap.Error(err),
			)
			s.releaseAll(ctx, locked)
			return nil, err
		}
		locked = append(locked, productID)
		snapshots = append(snapshots, domain.Snapshot{
			SellerID:    p.SellerID,
			Price:       p.Price,
			Title:       p.Title,
			Description: p.Description,
			ImageURLs:   p.ImageURLs,
		})
	}

	// Phase 2: persist the batch.
	orders := make([]*domain.Order, 0, len(productIDs))
	for i, productID := range productIDs {
		o, err := domain.New(s.idGen.NewID(), buyerID, productID, snapshots[i])
		if err != nil {
			s.discardBatch(ctx, logger, orders, locked)
			return nil, apperr.Validation("INVALID_PARAMS", err.Error())
		}
		if err := s.repo.Insert(ctx, o); err != nil {
			logger.Error("create_order_insert_failed",
				zap.String("product_id", productID),
				zap.Error(err),
			)
			s.discardBatch(ctx, logger, orders, locked)
			return nil, apperr.System("CREATE_ORDER_FAILED", "could not create order", err)
		}
		orders = append(orders, o)
		s.publish(ctx, domain.NewOrderCreatedEvent(o))
	}

	logger.Info("create_order_batch_success", zap.Int("order_count", len(orders)))
	return orders, nil
}

// AdvanceAfterPayment moves orders AWAITING_PAYMENT -> AWAITING_SHIPPING.
// Orders no longer awaiting payment are skipped, not errored, so repeated
// payment-success delivery is harmless. Returns the number advanced.
func (s *Service) AdvanceAfterPayment(ctx context.Context, orderIDs []string) (int, error) {
	logger := logging.FromContext(ctx).With(zap.String("component", "order_service"))

	advanced := 0
	for _, orderID := range orderIDs {
		swapped, err := s.repo.CompareAndSwapStatus(ctx, orderID, domain.StatusAwaitingPayment, domain.StatusAwaitingShipping, nil)
		if err != nil {
			logger.Error("advance_after_payment_failed",
				zap.String("order_id", orderID),
				zap.Error(err),
			)
			continue
		}
		if !swapped {
			logger.Warn("advance_after_payment_skipped", zap.String("order_id", orderID))
			continue
		}
		advanced++

		if o, getErr := s.repo.Get(ctx, orderID); getErr == nil {
			s.publish(ctx, domain.NewOrderStatusChangedEvent(o, domain.StatusAwaitingPayment, o.BuyerID, "payment confirmed"))
		}
	}

	logger.Info("advance_after_payment_done",
		zap.Int("requested", len(orderIDs)),
		zap.Int("advanced", advanced),
	)
	return advanced, nil
}

// CancelBatch cancels orders still awaiting payment or shipping and releases
// their product locks. Orders in any other state are skipped. Returns the
// number cancelled.
func (s *Service) CancelBatch(ctx context.Context, orderIDs []string, reason string) (int, error) {
	logger := logging.FromContext(ctx).With(
		zap.String("component", "order_service"),
		zap.String("reason", reason),
	)
	if reason == "" {
		reason = "payment failed"
	}

	cancelled := 0
	for _, orderID := range orderIDs {
		o, err := s.repo.Get(ctx, orderID)
		if err != nil {
			logger.Warn("cancel_order_not_found", zap.String("order_id", orderID))
			continue
		}

		from := domain.StatusAwaitingPayment
		swapped, err := s.repo.CompareAndSwapStatus(ctx, orderID, from, domain.StatusCancelled, func(stored *domain.Order) {
			stored.CancelReason = reason
		})
		if err == nil && !swapped {
			from = domain.StatusAwaitingShipping
			swapped, err = s.repo.CompareAndSwapStatus(ctx, orderID, from, domain.StatusCancelled, func(stored *domain.Order) {
				stored.CancelReason = reason
			})
		}
		if err != nil {
			logger.Error("cancel_order_failed",
				zap.String("order_id", orderID),
				zap.Error(err),
			)
			continue
		}
		if !swapped {
			logger.Warn("cancel_order_skipped",
				zap.String("order_id", orderID),
				zap.String("status", string(o.Status)),
			)
			continue
		}
		cancelled++

		// Release only after the order is marked cancelled; a failure here
		// leaves enough context for manual reconciliation.
		if ok, relErr := s.locks.Release(ctx, o.ProductID); relErr != nil || !ok {
			logger.Error("cancel_order_release_failed",
				zap.String("order_id", orderID),
				zap.String("product_id", o.ProductID),
				zap.Error(relErr),
			)
		}

		o.Status = domain.StatusCancelled
		s.publish(ctx, domain.NewOrderStatusChangedEvent(o, from, o.BuyerID, reason))
	}

	logger.Info("cancel_order_batch_done",
		zap.Int("requested", len(orderIDs)),
		zap.Int("cancelled", cancelled),
	)
	return cancelled, nil
}

// Ship moves an order AWAITING_SHIPPING -> SHIPPED. Only the seller of record
// may ship.
func (s *Service) Ship(ctx context.Context, orderID, sellerID string) (*domain.Order, error) {
	logger := logging.FromContext(ctx).With(
		zap.String("component", "order_service"),
		zap.String("order_id", orderID),
	)

	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.SellerID != sellerID {
		return nil, apperr.Permission("SHIP_PERMISSION_DENIED", "only the seller may ship this order")
	}
	if o.Status != domain.StatusAwaitingShipping {
		return nil, apperr.StateConflict("ORDER_NOT_AWAITING_SHIPPING", "order is not awaiting shipping")
	}

	swapped, err := s.repo.CompareAndSwapStatus(ctx, orderID, domain.StatusAwaitingShipping, domain.StatusShipped, nil)
	if err != nil {
		return nil, apperr.System("SHIP_ORDER_FAILED", "could not update order", err)
	}
	if !swapped {
		return nil, apperr.StateConflict("ORDER_NOT_AWAITING_SHIPPING", "order is not awaiting shipping")
	}

	o.Status = domain.StatusShipped
	s.publish(ctx, domain.NewOrderStatusChangedEvent(o, domain.StatusAwaitingShipping, sellerID, ""))
	logger.Info("order_shipped", zap.String("seller_id", sellerID))
	return o, nil
}

// ConfirmReceipt moves an order SHIPPED -> COMPLETED and marks the product
// sold. A product update failure is reported but the completed order stands;
// the availability record is reconciled manually.
func (s *Service) ConfirmReceipt(ctx context.Context, orderID, buyerID string) (*domain.Order, error) {
	logger := logging.FromContext(ctx).With(
		zap.String("component", "order_service"),
		zap.String("order_id", orderID),
	)

	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != buyerID {
		return nil, apperr.Permission("CONFIRM_RECEIPT_PERMISSION_DENIED", "only the buyer may confirm receipt")
	}
	if o.Status != domain.StatusShipped {
		return nil, apperr.StateConflict("ORDER_NOT_SHIPPED", "order has not been shipped")
	}

	swapped, err := s.repo.CompareAndSwapStatus(ctx, orderID, domain.StatusShipped, domain.StatusCompleted, nil)
	if err != nil {
		return nil, apperr.System("CONFIRM_RECEIPT_FAILED", "could not update order", err)
	}
	if !swapped {
		return nil, apperr.StateConflict("ORDER_NOT_SHIPPED", "order has not been shipped")
	}

	o.Status = domain.StatusCompleted
	o.CompletedAt = s.now()
	s.publish(ctx, domain.NewOrderStatusChangedEvent(o, domain.StatusShipped, buyerID, ""))
	logger.Info("order_completed", zap.String("buyer_id", buyerID))

	if ok, soldErr := s.locks.MarkSold(ctx, o.ProductID); soldErr != nil || !ok {
		logger.Error("product_sold_update_failed",
			zap.String("order_id", orderID),
			zap.String("product_id", o.ProductID),
			zap.Error(soldErr),
		)
		return o, apperr.System("PRODUCT_UPDATE_FAILED", "order completed but product update failed", soldErr)
	}

	return o, nil
}

// RequestReturn moves a completed order to RETURN_REQUESTED. Allowed only for
// the buyer, within the return window, once per order.
func (s *Service) RequestReturn(ctx context.Context, orderID, buyerID, reason string) (*domain.Order, error) {
	logger := logging.FromContext(ctx).With(
		zap.String("component", "order_service"),
		zap.String("order_id", orderID),
	)

	if reason == "" {
		return nil, apperr.Validation("RETURN_REASON_REQUIRED", "return reason is required")
	}
	if len(reason) > maxReasonLength {
		return nil, apperr.Validation("RETURN_REASON_TOO_LONG", "return reason is too long")
	}

	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != buyerID {
		return nil, apperr.Permission("RETURN_PERMISSION_DENIED", "only the buyer may request a return")
	}
	switch o.Status {
	case domain.StatusReturnRequested, domain.StatusReturned:
		return nil, apperr.StateConflict("RETURN_ALREADY_REQUESTED", "a return was already requested for this order")
	case domain.StatusCompleted:
	default:
		return nil, apperr.StateConflict("ORDER_NOT_COMPLETED", "only completed orders can be returned")
	}
	// One return request per order: a rejected request leaves its reason set.
	if o.ReturnReason != "" {
		return nil, apperr.StateConflict("RETURN_ALREADY_REQUESTED", "a return was already requested for this order")
	}

	completedAt := o.CompletedAt
	if completedAt.IsZero() {
		completedAt = o.UpdatedAt
	}
	if s.now().Sub(completedAt) > s.returnWindow {
		return nil, apperr.Expired("RETURN_WINDOW_CLOSED", "the return window for this order has closed")
	}

	swapped, err := s.repo.CompareAndSwapStatus(ctx, orderID, domain.StatusCompleted, domain.StatusReturnRequested, func(stored *domain.Order) {
		stored.ReturnReason = reason
	})
	if err != nil {
		return nil, apperr.System("APPLY_RETURN_FAILED", "could not update order", err)
	}
	if !swapped {
		return nil, apperr.StateConflict("RETURN_ALREADY_REQUESTED", "a return was already requested for this order")
	}

	o.Status = domain.StatusReturnRequested
	o.ReturnReason = reason
	s.publish(ctx, domain.NewOrderStatusChangedEvent(o, domain.StatusCompleted, buyerID, reason))
	logger.Info("return_requested", zap.String("buyer_id", buyerID))
	return o, nil
}

// ProcessReturn resolves a return request. Approval moves the order to
// RETURNED and records a simulated refund; rejection moves it back to
// COMPLETED with the stored rejection reason.
func (s *Service) ProcessReturn(ctx context.Context, orderID, sellerID string, approve bool, rejectReason string) (*domain.Order, error) {
	logger := logging.FromContext(ctx).With(
		zap.String("component", "order_service"),
		zap.String("order_id", orderID),
	)

	if !approve && rejectReason == "" {
		return nil, apperr.Validation("REJECT_REASON_REQUIRED", "a rejection reason is required")
	}
	if len(rejectReason) > maxReasonLength {
		return nil, apperr.Validation("REJECT_REASON_TOO_LONG", "rejection reason is too long")
	}

	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.SellerID != sellerID {
		return nil, apperr.Permission("PROCESS_RETURN_PERMISSION_DENIED", "only the seller may process this return")
	}
	if o.Status != domain.StatusReturnRequested {
		return nil, apperr.StateConflict("NO_RETURN_REQUESTED", "order has no pending return request")
	}

	if approve {
		swapped, casErr := s.repo.CompareAndSwapStatus(ctx, orderID, domain.StatusReturnRequested, domain.StatusReturned, nil)
		if casErr != nil {
			return nil, apperr.System("PROCESS_RETURN_FAILED", "could not update order", casErr)
		}
		if !swapped {
			return nil, apperr.StateConflict("NO_RETURN_REQUESTED", "order has no pending return request")
		}

		refund := s.refunds.Record(s.idGen.NewRef("RFD"), o, o.ReturnReason)
		o.Status = domain.StatusReturned
		s.publish(ctx, domain.NewOrderStatusChangedEvent(o, domain.StatusReturnRequested, sellerID, "return approved"))
		logger.Info("return_approved",
			zap.String("refund_ref", refund.Ref),
			zap.String("amount", refund.Amount.String()),
		)
		return o, nil
	}

	swapped, casErr := s.repo.CompareAndSwapStatus(ctx, orderID, domain.StatusReturnRequested, domain.StatusCompleted, func(stored *domain.Order) {
		stored.RejectReason = rejectReason
	})
	if casErr != nil {
		return nil, apperr.System("PROCESS_RETURN_FAILED", "could not update order", casErr)
	}
	if !swapped {
		return nil, apperr.StateConflict("NO_RETURN_REQUESTED", "order has no pending return request")
	}

	o.Status = domain.StatusCompleted
	o.RejectReason = rejectReason
	s.publish(ctx, domain.NewOrderStatusChangedEvent(o, domain.StatusReturnRequested, sellerID, rejectReason))
	logger.Info("return_rejected", zap.String("reason", rejectReason))
	return o, nil
}

// Get returns an order visible to userID (buyer or seller of record).
func (s *Service) Get(ctx context.Context, orderID, userID string) (*domain.Order, error) {
	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != userID && o.SellerID != userID {
		// Hidden rather than forbidden, as the original does.
		return nil, apperr.NotFound("ORDER_NOT_FOUND", "order does not exist")
	}
	return o, nil
}

func (s *Service) ListByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error) {
	if buyerID == "" {
		return nil, apperr.Validation("INVALID_PARAMS", "buyer id is required")
	}
	orders, err := s.repo.FindByBuyer(ctx, buyerID)
	if err != nil {
		return nil, apperr.System("LIST_ORDERS_FAILED", "could not list orders", err)
	}
	return orders, nil
}

func (s *Service) ListBySeller(ctx context.Context, sellerID string) ([]*domain.Order, error) {
	if sellerID == "" {
		return nil, apperr.Validation("INVALID_PARAMS", "seller id is required")
	}
	orders, err := s.repo.FindBySeller(ctx, sellerID)
	if err != nil {
		return nil, apperr.System("LIST_ORDERS_FAILED", "could not list orders", err)
	}
	return orders, nil
}

func (s *Service) load(ctx context.Context, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, apperr.Validation("INVALID_PARAMS", "order id is required")
	}
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperr.NotFound("ORDER_NOT_FOUND", "order does not exist")
		}
		return nil, apperr.System("ORDER_LOOKUP_FAILED", "could not load order", err)
	}
	return o, nil
}

// releaseAll is the checkout compensation: every lock taken by the failed
// batch goes back on sale.
func (s *Service) releaseAll(ctx context.Context, productIDs []string) {
	logger := logging.FromContext(ctx).With(zap.String("component", "order_service"))
	for _, productID := range productIDs {
		if ok, err := s.locks.Release(ctx, productID); err != nil || !ok {
			logger.Error("checkout_compensation_release_failed",
				zap.String("product_id", productID),
				zap.Error(err),
			)
		}
	}
}

// discardBatch cancels orders inserted by a failed checkout and releases all
// batch locks.
func (s *Service) discardBatch(ctx context.Context, logger *zap.Logger, inserted []*domain.Order, locked []string) {
	for _, o := range inserted {
		if _, err := s.repo.CompareAndSwapStatus(ctx, o.ID, domain.StatusAwaitingPayment, domain.StatusCancelled, func(stored *domain.Order) {
			stored.CancelReason = "checkout failed"
		}); err != nil {
			logger.Error("checkout_compensation_cancel_failed",
				zap.String("order_id", o.ID),
				zap.Error(err),
			)
		}
	}
	s.releaseAll(ctx, locked)
}

func (s *Service) publish(ctx context.Context, e domevent.Event) {
	if s.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pctx, e); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed",
			zap.String("event", e.EventName()),
			zap.Error(err),
		)
	}
}
