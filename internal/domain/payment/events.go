package payment

import "time"

// PaymentSettledEvent is emitted when a payment leaves PENDING, whichever
// terminal state it reached.
type PaymentSettledEvent struct {
	Ref        string
	UserID     string
	OrderIDs   []string
	Status     Status
	Reason     string
	OccurredAt time.Time
}

func (PaymentSettledEvent) EventName() string { return "payment.settled" }

func NewPaymentSettledEvent(p *Payment, reason string) PaymentSettledEvent {
	return PaymentSettledEvent{
		Ref:        p.Ref,
		UserID:     p.UserID,
		OrderIDs:   append([]string(nil), p.OrderIDs...),
		Status:     p.Status,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}
