package payment

import (
	"context"
	"errors"
	"time"

	domevent "github.com/TLF1607916/loopbuy-trade/internal/domain/event"
	domorder "github.com/TLF1607916/loopbuy-trade/internal/domain/order"
	domain "github.com/TLF1607916/loopbuy-trade/internal/domain/payment"
	"github.com/TLF1607916/loopbuy-trade/internal/infrastructure/cache"
	"github.com/TLF1607916/loopbuy-trade/internal/pkg/apperr"
	"github.com/TLF1607916/loopbuy-trade/internal/pkg/logging"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const publishTimeout = 300 * time.Millisecond

// Service drives the payment lifecycle. It creates payments against orders it
// validates through the order repository, and settles them with conditional
// swaps so that a user confirmation and the timeout sweep can never both win.
// No product or order state changes happen here; sequencing multi-entity
// steps is the coordinator's job.
type Service struct {
	repo      domain.Repository
	orderRepo domorder.Repository
	idGen     IDGenerator
	verifier  CredentialVerifier
	publisher domevent.Publisher
	// settled caches terminal payments for status reads. Terminal states are
	// immutable, so a hit can never be stale.
	settled *cache.TTLStore[*domain.Payment]
	expiry  time.Duration
	now     func() time.Time
}

func NewService(repo domain.Repository, orderRepo domorder.Repository, idGen IDGenerator, verifier CredentialVerifier, publisher domevent.Publisher, settled *cache.TTLStore[*domain.Payment], expiry time.Duration) *Service {
	return &Service{
		repo:      repo,
		orderRepo: orderRepo,
		idGen:     idGen,
		verifier:  verifier,
		publisher: publisher,
		settled:   settled,
		expiry:    expiry,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create validates every covered order and persists a PENDING payment with a
// fresh external reference. The declared amount must equal the sum of the
// orders' purchase-time prices; the amount is a snapshot, never re-validated.
func (s *Service) Create(ctx context.Context, userID string, orderIDs []string, declaredAmount decimal.Decimal, method domain.Method) (*domain.Payment, error) {
	logger := logging.FromContext(ctx).With(
		zap.String("component", "payment_service"),
		zap.String("user_id", userID),
	)

	if userID == "" {
		return nil, apperr.Validation("INVALID_PARAMS", "user id is required")
	}
	if len(orderIDs) == 0 {
		return nil, apperr.Validation("EMPTY_ORDER_LIST", "order list must not be empty")
	}
	if !declaredAmount.IsPositive() {
		return nil, apperr.Validation("INVALID_AMOUNT", "payment amount must be greater than zero")
	}
	if !domain.ValidMethod(method) {
		return nil, apperr.Validation("INVALID_PAYMENT_METHOD", "unsupported payment method")
	}

	seen := make(map[string]bool, len(orderIDs))
	total := decimal.Zero
	for _, orderID := range orderIDs {
		if seen[orderID] {
			return nil, apperr.Validation("DUPLICATE_ORDER", "order listed more than once")
		}
		seen[orderID] = true

		o, err := s.orderRepo.Get(ctx, orderID)
		if err != nil {
			if errors.Is(err, domorder.ErrNotFound) {
				return nil, apperr.NotFound("ORDER_NOT_FOUND", "order does not exist")
			}
			return nil, apperr.System("ORDER_LOOKUP_FAILED", "could not load order", err)
		}
		if o.BuyerID != userID {
			return nil, apperr.Permission("ORDER_PERMISSION_DENIED", "order belongs to another user")
		}
		if o.Status != domorder.StatusAwaitingPayment {
			return nil, apperr.StateConflict("ORDER_STATUS_INVALID", "order is not awaiting payment")
		}

		// At most one pending payment may cover an order.
		if _, err := s.repo.FindPendingByOrder(ctx, orderID); err == nil {
			return nil, apperr.StateConflict("PAYMENT_ALREADY_PENDING", "a pending payment already covers this order")
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, apperr.System("PAYMENT_LOOKUP_FAILED", "could not check pending payments", err)
		}

		total = total.Add(o.PriceAtPurchase)
	}

	if !total.Equal(declaredAmount) {
		logger.Warn("create_payment_amount_mismatch",
			zap.String("declared", declaredAmount.String()),
			zap.String("expected", total.String()),
		)
		return nil, apperr.Validation("AMOUNT_MISMATCH", "payment amount does not match order total")
	}

	p, err := domain.New(
		s.idGen.NewID(),
		s.idGen.NewRef("PAY"),
		userID,
		orderIDs,
		declaredAmount,
		method,
		s.now().Add(s.expiry),
	)
	if err != nil {
		return nil, apperr.Validation("INVALID_PARAMS", err.Error())
	}

	if err := s.repo.Insert(ctx, p); err != nil {
		logger.Error("create_payment_insert_failed", zap.Error(err))
		return nil, apperr.System("CREATE_PAYMENT_FAILED", "could not create payment", err)
	}

	logger.Info("payment_created",
		zap.String("payment_ref", p.Ref),
		zap.String("amount", p.Amount.String()),
		zap.Int("order_count", len(orderIDs)),
	)
	return p, nil
}

// Confirm settles a pending payment as SUCCESS, conditional on the window
// still being open and the credential matching. An expired payment is
// reported as such; the caller drives the timeout compensation. The swap is
// conditional on PENDING so a racing sweep cannot be double-processed.
func (s *Service) Confirm(ctx context.Context, ref, credential, userID string) (*domain.Payment, error) {
	logger := logging.FromContext(ctx).With(
		zap.String("component", "payment_service"),
		zap.String("payment_ref", ref),
	)

	p, err := s.loadOwned(ctx, ref, userID)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.StatusPending {
		return nil, apperr.StateConflict("PAYMENT_ALREADY_PROCESSED", "payment has already been processed")
	}
	if p.ExpiredAt(s.now()) {
		logger.Warn("confirm_payment_expired", zap.Time("expire_at", p.ExpireAt))
		return nil, apperr.Expired("PAYMENT_EXPIRED", "payment window has closed")
	}
	if credential == "" {
		return nil, apperr.Validation("CREDENTIAL_REQUIRED", "payment credential is required")
	}
	if !s.verifier.Verify(ctx, userID, credential) {
		logger.Warn("confirm_payment_bad_credential")
		return nil, apperr.Validation("CREDENTIAL_INVALID", "payment credential is incorrect")
	}

	transactionID := s.idGen.NewRef("TXN")
	swapped, err := s.repo.CompareAndSwapStatus(ctx, ref, domain.StatusPending, domain.StatusSuccess, transactionID, "")
	if err != nil {
		return nil, apperr.System("CONFIRM_PAYMENT_FAILED", "could not update payment", err)
	}
	if !swapped {
		// A duplicate confirm or the timeout sweep won the race.
		logger.Warn("confirm_payment_lost_race")
		return nil, apperr.StateConflict("PAYMENT_ALREADY_PROCESSED", "payment has already been processed")
	}

	p.Status = domain.StatusSuccess
	p.TransactionID = transactionID
	p.PaidAt = s.now()
	s.cacheSettled(p)
	s.publish(ctx, domain.NewPaymentSettledEvent(p, ""))

	logger.Info("payment_confirmed",
		zap.String("transaction_id", transactionID),
		zap.Int("order_count", len(p.OrderIDs)),
	)
	return p, nil
}

// Cancel settles a pending payment as CANCELLED on the owner's request.
func (s *Service) Cancel(ctx context.Context, ref, userID string) (*domain.Payment, error) {
	p, err := s.loadOwned(ctx, ref, userID)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, p, domain.StatusCancelled, "cancelled by user")
}

// Expire settles a pending payment as TIMEOUT. It carries no ownership check
// and must only be reached through the coordinator's sweep entry points.
func (s *Service) Expire(ctx context.Context, ref string) (*domain.Payment, error) {
	p, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, p, domain.StatusTimeout, "expired")
}

func (s *Service) settle(ctx context.Context, p *domain.Payment, to domain.Status, reason string) (*domain.Payment, error) {
	logger := logging.FromContext(ctx).With(
		zap.String("component", "payment_service"),
		zap.String("payment_ref", p.Ref),
	)

	if p.Status != domain.StatusPending {
		return nil, apperr.StateConflict("PAYMENT_ALREADY_PROCESSED", "payment has already been processed")
	}

	swapped, err := s.repo.CompareAndSwapStatus(ctx, p.Ref, domain.StatusPending, to, "", reason)
	if err != nil {
		return nil, apperr.System("SETTLE_PAYMENT_FAILED", "could not update payment", err)
	}
	if !swapped {
		logger.Warn("settle_payment_lost_race", zap.String("target", string(to)))
		return nil, apperr.StateConflict("PAYMENT_ALREADY_PROCESSED", "payment has already been processed")
	}

	p.Status = to
	p.FailureReason = reason
	s.cacheSettled(p)
	s.publish(ctx, domain.NewPaymentSettledEvent(p, reason))

	logger.Info("payment_settled",
		zap.String("status", string(to)),
		zap.String("reason", reason),
	)
	return p, nil
}

// GetByRef returns a payment visible to userID. Terminal payments are served
// from the settled cache when present.
func (s *Service) GetByRef(ctx context.Context, ref, userID string) (*domain.Payment, error) {
	if cached, ok := s.cachedSettled(ref); ok {
		if cached.UserID != userID {
			return nil, apperr.Permission("PAYMENT_PERMISSION_DENIED", "payment belongs to another user")
		}
		return cached.Clone(), nil
	}

	p, err := s.loadOwned(ctx, ref, userID)
	if err != nil {
		return nil, err
	}
	if domain.IsTerminal(p.Status) {
		s.cacheSettled(p)
	}
	return p, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]*domain.Payment, error) {
	if userID == "" {
		return nil, apperr.Validation("INVALID_PARAMS", "user id is required")
	}
	payments, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, apperr.System("LIST_PAYMENTS_FAILED", "could not list payments", err)
	}
	return payments, nil
}

// FindCovering returns the user's payment that covers all the given orders.
func (s *Service) FindCovering(ctx context.Context, orderIDs []string, userID string) (*domain.Payment, error) {
	if len(orderIDs) == 0 || userID == "" {
		return nil, apperr.Validation("INVALID_PARAMS", "order ids and user id are required")
	}

	payments, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, apperr.System("LIST_PAYMENTS_FAILED", "could not list payments", err)
	}

	for _, p := range payments {
		covered := make(map[string]bool, len(p.OrderIDs))
		for _, id := range p.OrderIDs {
			covered[id] = true
		}
		all := true
		for _, id := range orderIDs {
			if !covered[id] {
				all = false
				break
			}
		}
		if all {
			return p, nil
		}
	}
	return nil, apperr.NotFound("PAYMENT_NOT_FOUND", "no payment covers these orders")
}

func (s *Service) load(ctx context.Context, ref string) (*domain.Payment, error) {
	if ref == "" {
		return nil, apperr.Validation("INVALID_PARAMS", "payment reference is required")
	}
	p, err := s.repo.GetByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperr.NotFound("PAYMENT_NOT_FOUND", "payment does not exist")
		}
		return nil, apperr.System("PAYMENT_LOOKUP_FAILED", "could not load payment", err)
	}
	return p, nil
}

func (s *Service) loadOwned(ctx context.Context, ref, userID string) (*domain.Payment, error) {
	p, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, apperr.Permission("PAYMENT_PERMISSION_DENIED", "payment belongs to another user")
	}
	return p, nil
}

func (s *Service) cacheSettled(p *domain.Payment) {
	if s.settled == nil {
		return
	}
	s.settled.Set(p.Ref, p.Clone())
}

func (s *Service) cachedSettled(ref string) (*domain.Payment, bool) {
	if s.settled == nil {
		return nil, false
	}
	return s.settled.Get(ref)
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
