package payment

import (
	"context"
	"strings"
	"testing"
	"time"

	domorder "github.com/TLF1607916/loopbuy-trade/internal/domain/order"
	domain "github.com/TLF1607916/loopbuy-trade/internal/domain/payment"
	"github.com/TLF1607916/loopbuy-trade/internal/infrastructure/cache"
	"github.com/TLF1607916/loopbuy-trade/internal/infrastructure/id"
	"github.com/TLF1607916/loopbuy-trade/internal/infrastructure/memory"
	"github.com/TLF1607916/loopbuy-trade/internal/infrastructure/paygate"
	"github.com/TLF1607916/loopbuy-trade/internal/pkg/apperr"
	"github.com/shopspring/decimal"
)

const testSecret = "123456"

type fixture struct {
	svc         *Service
	paymentRepo *memory.PaymentRepository
	orderRepo   *memory.OrderRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	paymentRepo := memory.NewPaymentRepository()
	orderRepo := memory.NewOrderRepository()
	svc := NewService(
		paymentRepo,
		orderRepo,
		id.NewUUIDGenerator(),
		paygate.NewStaticVerifier(testSecret),
		nil,
		cache.NewTTLStore[*domain.Payment](time.Minute, time.Minute),
		15*time.Minute,
	)
	return &fixture{svc: svc, paymentRepo: paymentRepo, orderRepo: orderRepo}
}

func (f *fixture) seedOrder(t *testing.T, orderID, buyerID string, price int64) {
	t.Helper()
	o, err := domorder.New(orderID, buyerID, "prod-"+orderID, domorder.Snapshot{
		SellerID: "seller-1",
		Price:    decimal.NewFromInt(price),
		Title:    "item",
	})
	if err != nil {
		t.Fatalf("new order: %v", err)
	}
	if err := f.orderRepo.Insert(context.Background(), o); err != nil {
		t.Fatalf("insert order: %v", err)
	}
}

func TestCreatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a pending payment for the order total", func(t *testing.T) {
		f := newFixture(t)
		f.seedOrder(t, "o1", "buyer-1", 40)
		f.seedOrder(t, "o2", "buyer-1", 60)

		p, err := f.svc.Create(ctx, "buyer-1", []string{"o1", "o2"}, decimal.NewFromInt(100), domain.MethodAlipay)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if p.Status != domain.StatusPending {
			t.Fatalf("got status %s", p.Status)
		}
		if !strings.HasPrefix(p.Ref, "PAY") {
			t.Fatalf("got ref %q", p.Ref)
		}
		if p.ExpireAt.IsZero() {
			t.Fatal("expected a payment deadline")
		}
	})

	t.Run("declared amount must match the order total", func(t *testing.T) {
		f := newFixture(t)
		f.seedOrder(t, "o1", "buyer-1", 40)

		_, err := f.svc.Create(ctx, "buyer-1", []string{"o1"}, decimal.NewFromInt(99), domain.MethodAlipay)
		if !apperr.IsValidation(err) || apperr.CodeOf(err) != "AMOUNT_MISMATCH" {
			t.Fatalf("expected AMOUNT_MISMATCH, got %v", err)
		}
	})

	t.Run("another user's order is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.seedOrder(t, "o1", "buyer-1", 40)

		_, err := f.svc.Create(ctx, "buyer-2", []string{"o1"}, decimal.NewFromInt(40), domain.MethodAlipay)
		if !apperr.IsPermission(err) {
			t.Fatalf("expected permission error, got %v", err)
		}
	})

	t.Run("order not awaiting payment is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.seedOrder(t, "o1", "buyer-1", 40)
		if _, err := f.orderRepo.CompareAndSwapStatus(ctx, "o1", domorder.StatusAwaitingPayment, domorder.StatusCancelled, nil); err != nil {
			t.Fatalf("cas: %v", err)
		}

		_, err := f.svc.Create(ctx, "buyer-1", []string{"o1"}, decimal.NewFromInt(40), domain.MethodAlipay)
		if !apperr.IsStateConflict(err) || apperr.CodeOf(err) != "ORDER_STATUS_INVALID" {
			t.Fatalf("expected ORDER_STATUS_INVALID, got %v", err)
		}
	})

	t.Run("one pending payment per order", func(t *testing.T) {
		f := newFixture(t)
		f.seedOrder(t, "o1", "buyer-1", 40)
		if _, err := f.svc.Create(ctx, "buyer-1", []string{"o1"}, decimal.NewFromInt(40), domain.MethodAlipay); err != nil {
			t.Fatalf("first create: %v", err)
		}

		_, err := f.svc.Create(ctx, "buyer-1", []string{"o1"}, decimal.NewFromInt(40), domain.MethodWechat)
		if !apperr.IsStateConflict(err) || apperr.CodeOf(err) != "PAYMENT_ALREADY_PENDING" {
			t.Fatalf("expected PAYMENT_ALREADY_PENDING, got %v", err)
		}
	})

	t.Run("unknown method is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.seedOrder(t, "o1", "buyer-1", 40)

		_, err := f.svc.Create(ctx, "buyer-1", []string{"o1"}, decimal.NewFromInt(40), domain.Method("CASH"))
		if !apperr.IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func createPending(t *testing.T, f *fixture) *domain.Payment {
	t.Helper()
	f.seedOrder(t, "o1", "buyer-1", 40)
	p, err := f.svc.Create(context.Background(), "buyer-1", []string{"o1"}, decimal.NewFromInt(40), domain.MethodAlipay)
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	return p
}

func TestConfirmPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("settles as SUCCESS with a transaction id", func(t *testing.T) {
		f := newFixture(t)
		p := createPending(t, f)

		got, err := f.svc.Confirm(ctx, p.Ref, testSecret, "buyer-1")
		if err != nil {
			t.Fatalf("confirm: %v", err)
		}
		if got.Status != domain.StatusSuccess {
			t.Fatalf("got status %s", got.Status)
		}
		if !strings.HasPrefix(got.TransactionID, "TXN") {
			t.Fatalf("got transaction id %q", got.TransactionID)
		}
	})

	t.Run("another user cannot confirm", func(t *testing.T) {
		f := newFixture(t)
		p := createPending(t, f)

		_, err := f.svc.Confirm(ctx, p.Ref, testSecret, "buyer-2")
		if !apperr.IsPermission(err) {
			t.Fatalf("expected permission error, got %v", err)
		}
		stored, _ := f.paymentRepo.GetByRef(ctx, p.Ref)
		if stored.Status != domain.StatusPending {
			t.Fatalf("payment must stay pending, got %s", stored.Status)
		}
	})

	t.Run("wrong credential is rejected", func(t *testing.T) {
		f := newFixture(t)
		p := createPending(t, f)

		_, err := f.svc.Confirm(ctx, p.Ref, "654321", "buyer-1")
		if !apperr.IsValidation(err) || apperr.CodeOf(err) != "CREDENTIAL_INVALID" {
			t.Fatalf("expected CREDENTIAL_INVALID, got %v", err)
		}
	})

	t.Run("second confirm conflicts", func(t *testing.T) {
		f := newFixture(t)
		p := createPending(t, f)

		if _, err := f.svc.Confirm(ctx, p.Ref, testSecret, "buyer-1"); err != nil {
			t.Fatalf("first confirm: %v", err)
		}
		_, err := f.svc.Confirm(ctx, p.Ref, testSecret, "buyer-1")
		if !apperr.IsStateConflict(err) || apperr.CodeOf(err) != "PAYMENT_ALREADY_PROCESSED" {
			t.Fatalf("expected PAYMENT_ALREADY_PROCESSED, got %v", err)
		}
	})

	t.Run("confirm after the deadline reports expiry", func(t *testing.T) {
		f := newFixture(t)
		p := createPending(t, f)
		f.svc.now = func() time.Time { return time.Now().UTC().Add(16 * time.Minute) }

		_, err := f.svc.Confirm(ctx, p.Ref, testSecret, "buyer-1")
		if !apperr.IsExpired(err) || apperr.CodeOf(err) != "PAYMENT_EXPIRED" {
			t.Fatalf("expected PAYMENT_EXPIRED, got %v", err)
		}
	})

	t.Run("unknown reference", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Confirm(ctx, "PAY000", testSecret, "buyer-1")
		if !apperr.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestCancelAndExpire(t *testing.T) {
	ctx := context.Background()

	t.Run("cancel settles as CANCELLED", func(t *testing.T) {
		f := newFixture(t)
		p := createPending(t, f)

		got, err := f.svc.Cancel(ctx, p.Ref, "buyer-1")
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if got.Status != domain.StatusCancelled || got.FailureReason != "cancelled by user" {
			t.Fatalf("got status=%s reason=%q", got.Status, got.FailureReason)
		}
	})

	t.Run("expire settles as TIMEOUT", func(t *testing.T) {
		f := newFixture(t)
		p := createPending(t, f)

		got, err := f.svc.Expire(ctx, p.Ref)
		if err != nil {
			t.Fatalf("expire: %v", err)
		}
		if got.Status != domain.StatusTimeout || got.FailureReason != "expired" {
			t.Fatalf("got status=%s reason=%q", got.Status, got.FailureReason)
		}
	})

	t.Run("expire after confirm conflicts", func(t *testing.T) {
		f := newFixture(t)
		p := createPending(t, f)

		if _, err := f.svc.Confirm(ctx, p.Ref, testSecret, "buyer-1"); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		_, err := f.svc.Expire(ctx, p.Ref)
		if !apperr.IsStateConflict(err) {
			t.Fatalf("expected state conflict, got %v", err)
		}
	})
}

func TestPaymentQueries(t *testing.T) {
	ctx := context.Background()

	t.Run("get by ref enforces ownership", func(t *testing.T) {
		f := newFixture(t)
		p := createPending(t, f)

		if _, err := f.svc.GetByRef(ctx, p.Ref, "buyer-1"); err != nil {
			t.Fatalf("owner read: %v", err)
		}
		if _, err := f.svc.GetByRef(ctx, p.Ref, "buyer-2"); !apperr.IsPermission(err) {
			t.Fatalf("expected permission error, got %v", err)
		}
	})

	t.Run("terminal payments are served from cache", func(t *testing.T) {
		f := newFixture(t)
		p := createPending(t, f)
		if _, err := f.svc.Confirm(ctx, p.Ref, testSecret, "buyer-1"); err != nil {
			t.Fatalf("confirm: %v", err)
		}

		got, err := f.svc.GetByRef(ctx, p.Ref, "buyer-1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status != domain.StatusSuccess {
			t.Fatalf("got status %s", got.Status)
		}
		if cached, ok := f.svc.settled.Get(p.Ref); !ok || cached.Ref != p.Ref {
			t.Fatal("settled payment should be cached")
		}
	})

	t.Run("find covering", func(t *testing.T) {
		f := newFixture(t)
		f.seedOrder(t, "o1", "buyer-1", 40)
		f.seedOrder(t, "o2", "buyer-1", 60)
		p, err := f.svc.Create(ctx, "buyer-1", []string{"o1", "o2"}, decimal.NewFromInt(100), domain.MethodAlipay)
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		got, err := f.svc.FindCovering(ctx, []string{"o1", "o2"}, "buyer-1")
		if err != nil {
			t.Fatalf("find covering: %v", err)
		}
		if got.Ref != p.Ref {
			t.Fatalf("got ref %s", got.Ref)
		}
		if _, err := f.svc.FindCovering(ctx, []string{"o1", "o3"}, "buyer-1"); !apperr.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("list by user", func(t *testing.T) {
		f := newFixture(t)
		createPending(t, f)

		payments, err := f.svc.ListByUser(ctx, "buyer-1")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(payments) != 1 {
			t.Fatalf("expected 1 payment, got %d", len(payments))
		}
	})
}
