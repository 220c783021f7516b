package payment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewValidation(t *testing.T) {
	expireAt := time.Now().Add(15 * time.Minute)

	t.Run("requires user", func(t *testing.T) {
		if _, err := New("p1", "PAY1", "", []string{"o1"}, decimal.NewFromInt(10), MethodAlipay, expireAt); err != ErrInvalidUser {
			t.Fatalf("expected ErrInvalidUser, got %v", err)
		}
	})

	t.Run("requires orders", func(t *testing.T) {
		if _, err := New("p1", "PAY1", "u1", nil, decimal.NewFromInt(10), MethodAlipay, expireAt); err != ErrInvalidOrders {
			t.Fatalf("expected ErrInvalidOrders, got %v", err)
		}
	})

	t.Run("requires positive amount", func(t *testing.T) {
		if _, err := New("p1", "PAY1", "u1", []string{"o1"}, decimal.Zero, MethodAlipay, expireAt); err != ErrInvalidAmount {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("starts pending", func(t *testing.T) {
		p, err := New("p1", "PAY1", "u1", []string{"o1"}, decimal.NewFromInt(10), MethodAlipay, expireAt)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Status != StatusPending {
			t.Fatalf("expected PENDING, got %s", p.Status)
		}
	})
}

func TestExpiredAt(t *testing.T) {
	deadline := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	p := &Payment{ExpireAt: deadline}

	if p.ExpiredAt(deadline.Add(-time.Second)) {
		t.Error("payment should not be expired before the deadline")
	}
	if !p.ExpiredAt(deadline) {
		t.Error("payment should be expired exactly at the deadline")
	}
	if !p.ExpiredAt(deadline.Add(time.Second)) {
		t.Error("payment should be expired after the deadline")
	}
}

func TestStatusTable(t *testing.T) {
	for _, to := range []Status{StatusSuccess, StatusCancelled, StatusTimeout} {
		if !CanTransition(StatusPending, to) {
			t.Errorf("expected PENDING -> %s to be allowed", to)
		}
		if !IsTerminal(to) {
			t.Errorf("expected %s to be terminal", to)
		}
		if CanTransition(to, StatusPending) {
			t.Errorf("expected %s -> PENDING to be denied", to)
		}
	}
	if IsTerminal(StatusPending) {
		t.Error("PENDING should not be terminal")
	}
}

func TestValidMethod(t *testing.T) {
	for _, m := range []Method{MethodAlipay, MethodWechat, MethodBankCard} {
		if !ValidMethod(m) {
			t.Errorf("expected %s to be valid", m)
		}
	}
	if ValidMethod(Method("PAYPAL")) {
		t.Error("unknown method should be rejected")
	}
}
