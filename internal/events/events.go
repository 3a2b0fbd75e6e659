package events

// Billing event types recorded in the outbox.
const (
	EventMinutesDeducted     = "minutes.deducted"
	EventMinutesCredited     = "minutes.credited"
	EventPaymentConfirmed    = "payment.confirmed"
	EventPlanMutationApplied = "plan.mutation.applied"
	EventLowBalanceNotified  = "balance.low_notified"
)

// LedgerPayload captures a balance change for downstream consumers.
type LedgerPayload struct {
	UserID     string  `json:"user_id"`
	Minutes    float64 `json:"minutes"`
	NewBalance float64 `json:"new_balance"`
	Source     string  `json:"source,omitempty"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p LedgerPayload) ToMap() map[string]any {
	payload := map[string]any{
		"user_id":     p.UserID,
		"minutes":     p.Minutes,
		"new_balance": p.NewBalance,
	}
	if p.Source != "" {
		payload["source"] = p.Source
	}
	return payload
}

// PaymentPayload captures a confirmed payment.
type PaymentPayload struct {
	OrderID        string  `json:"order_id"`
	PaymentID      string  `json:"payment_id"`
	Plan           string  `json:"plan"`
	MinutesGranted float64 `json:"minutes_granted"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p PaymentPayload) ToMap() map[string]any {
	return map[string]any{
		"order_id":        p.OrderID,
		"payment_id":      p.PaymentID,
		"plan":            p.Plan,
		"minutes_granted": p.MinutesGranted,
	}
}
