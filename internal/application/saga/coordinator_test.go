package saga

import (
	"context"
	"testing"
	"time"

	apporder "github.com/TLF1607916/loopbuy-trade/internal/application/order"
	apppayment "github.com/TLF1607916/loopbuy-trade/internal/application/payment"
	appproduct "github.com/TLF1607916/loopbuy-trade/internal/application/product"
	domorder "github.com/TLF1607916/loopbuy-trade/internal/domain/order"
	dompayment "github.com/TLF1607916/loopbuy-trade/internal/domain/payment"
	domproduct "github.com/TLF1607916/loopbuy-trade/internal/domain/product"
	"github.com/TLF1607916/loopbuy-trade/internal/infrastructure/cache"
	"github.com/TLF1607916/loopbuy-trade/internal/infrastructure/id"
	"github.com/TLF1607916/loopbuy-trade/internal/infrastructure/memory"
	"github.com/TLF1607916/loopbuy-trade/internal/infrastructure/paygate"
	"github.com/TLF1607916/loopbuy-trade/internal/pkg/apperr"
	"github.com/shopspring/decimal"
)

const testSecret = "123456"

type fixture struct {
	coordinator *Coordinator
	orders      *apporder.Service
	payments    *apppayment.Service
	orderRepo   *memory.OrderRepository
	paymentRepo *memory.PaymentRepository
	productRepo *memory.ProductRepository
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithExpiry(t, 15*time.Minute)
}

// newFixtureWithExpiry allows a negative expiry so payments are born overdue.
func newFixtureWithExpiry(t *testing.T, expiry time.Duration) *fixture {
	t.Helper()
	productRepo := memory.NewProductRepository()
	orderRepo := memory.NewOrderRepository()
	paymentRepo := memory.NewPaymentRepository()
	idGen := id.NewUUIDGenerator()

	orders := apporder.NewService(orderRepo, appproduct.NewLockManager(productRepo), idGen, nil, 7*24*time.Hour)
	payments := apppayment.NewService(
		paymentRepo,
		orderRepo,
		idGen,
		paygate.NewStaticVerifier(testSecret),
		nil,
		cache.NewTTLStore[*dompayment.Payment](time.Minute, time.Minute),
		expiry,
	)

	return &fixture{
		coordinator: NewCoordinator(orders, payments, NewMetrics()),
		orders:      orders,
		payments:    payments,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		productRepo: productRepo,
	}
}

func (f *fixture) seedProduct(t *testing.T, productID, sellerID string, price int64) {
	t.Helper()
	p, err := domproduct.New(productID, sellerID, "item "+productID, "", decimal.NewFromInt(price), nil)
	if err != nil {
		t.Fatalf("new product: %v", err)
	}
	if err := f.productRepo.Insert(context.Background(), p); err != nil {
		t.Fatalf("insert product: %v", err)
	}
}

func (f *fixture) orderStatus(t *testing.T, orderID string) domorder.Status {
	t.Helper()
	o, err := f.orderRepo.Get(context.Background(), orderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	return o.Status
}

func (f *fixture) productStatus(t *testing.T, productID string) domproduct.Status {
	t.Helper()
	p, err := f.productRepo.Get(context.Background(), productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	return p.Status
}

// The full happy path: checkout, pay, ship, confirm receipt, return, approve.
func TestTradeHappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedProduct(t, "p1", "seller-1", 40)
	f.seedProduct(t, "p2", "seller-1", 60)

	orders, err := f.coordinator.Checkout(ctx, "buyer-1", []string{"p1", "p2"})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	orderIDs := []string{orders[0].ID, orders[1].ID}

	p, err := f.coordinator.CreatePayment(ctx, "buyer-1", orderIDs, decimal.NewFromInt(100), dompayment.MethodAlipay)
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}

	p, err = f.coordinator.ConfirmPayment(ctx, p.Ref, testSecret, "buyer-1")
	if err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
	if p.Status != dompayment.StatusSuccess {
		t.Fatalf("payment status %s", p.Status)
	}
	for _, orderID := range orderIDs {
		if got := f.orderStatus(t, orderID); got != domorder.StatusAwaitingShipping {
			t.Fatalf("order %s status %s", orderID, got)
		}
	}

	if _, err := f.coordinator.Ship(ctx, orderIDs[0], "seller-1"); err != nil {
		t.Fatalf("ship: %v", err)
	}
	if _, err := f.coordinator.ConfirmReceipt(ctx, orderIDs[0], "buyer-1"); err != nil {
		t.Fatalf("confirm receipt: %v", err)
	}
	if got := f.productStatus(t, "p1"); got != domproduct.StatusSold {
		t.Fatalf("product p1 status %s", got)
	}

	if _, err := f.coordinator.RequestReturn(ctx, orderIDs[0], "buyer-1", "wrong size"); err != nil {
		t.Fatalf("request return: %v", err)
	}
	o, err := f.coordinator.ProcessReturn(ctx, orderIDs[0], "seller-1", true, "")
	if err != nil {
		t.Fatalf("process return: %v", err)
	}
	if o.Status != domorder.StatusReturned {
		t.Fatalf("order status %s", o.Status)
	}
	if _, ok := f.orders.Refunds().ByOrder(orderIDs[0]); !ok {
		t.Fatal("approved return must record a refund")
	}
}

// Cancelling a payment rolls the covered orders back and puts the products
// back on sale.
func TestCancelPaymentRollsBackOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedProduct(t, "p1", "seller-1", 40)

	orders, err := f.coordinator.Checkout(ctx, "buyer-1", []string{"p1"})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	p, err := f.coordinator.CreatePayment(ctx, "buyer-1", []string{orders[0].ID}, decimal.NewFromInt(40), dompayment.MethodWechat)
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}

	p, err = f.coordinator.CancelPayment(ctx, p.Ref, "buyer-1")
	if err != nil {
		t.Fatalf("cancel payment: %v", err)
	}
	if p.Status != dompayment.StatusCancelled {
		t.Fatalf("payment status %s", p.Status)
	}
	if got := f.orderStatus(t, orders[0].ID); got != domorder.StatusCancelled {
		t.Fatalf("order status %s", got)
	}
	if got := f.productStatus(t, "p1"); got != domproduct.StatusOnSale {
		t.Fatalf("product status %s", got)
	}

	// The product is immediately available to another buyer.
	if _, err := f.coordinator.Checkout(ctx, "buyer-2", []string{"p1"}); err != nil {
		t.Fatalf("second checkout: %v", err)
	}
}

// Confirming an expired payment runs the timeout compensation inline.
func TestConfirmExpiredPaymentCompensates(t *testing.T) {
	ctx := context.Background()
	// A negative expiry makes the payment overdue the moment it is created.
	f := newFixtureWithExpiry(t, -time.Minute)
	f.seedProduct(t, "p1", "seller-1", 40)

	orders, err := f.coordinator.Checkout(ctx, "buyer-1", []string{"p1"})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	p, err := f.coordinator.CreatePayment(ctx, "buyer-1", []string{orders[0].ID}, decimal.NewFromInt(40), dompayment.MethodAlipay)
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}

	_, err = f.coordinator.ConfirmPayment(ctx, p.Ref, testSecret, "buyer-1")
	if !apperr.IsExpired(err) {
		t.Fatalf("expected expired error, got %v", err)
	}

	stored, _ := f.paymentRepo.GetByRef(ctx, p.Ref)
	if stored.Status != dompayment.StatusTimeout {
		t.Fatalf("payment status %s", stored.Status)
	}
	if got := f.orderStatus(t, orders[0].ID); got != domorder.StatusCancelled {
		t.Fatalf("order status %s", got)
	}
	if got := f.productStatus(t, "p1"); got != domproduct.StatusOnSale {
		t.Fatalf("product status %s", got)
	}
}

// A payment already settled by the sweep cannot be confirmed afterwards.
func TestConfirmAfterExpiryLosesCleanly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedProduct(t, "p1", "seller-1", 40)

	orders, err := f.coordinator.Checkout(ctx, "buyer-1", []string{"p1"})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	p, err := f.coordinator.CreatePayment(ctx, "buyer-1", []string{orders[0].ID}, decimal.NewFromInt(40), dompayment.MethodAlipay)
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}

	if _, err := f.coordinator.ExpirePayment(ctx, p.Ref); err != nil {
		t.Fatalf("expire: %v", err)
	}
	_, err = f.coordinator.ConfirmPayment(ctx, p.Ref, testSecret, "buyer-1")
	if !apperr.IsStateConflict(err) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if got := f.orderStatus(t, orders[0].ID); got != domorder.StatusCancelled {
		t.Fatalf("order status %s", got)
	}
}
