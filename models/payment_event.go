package models

import "time"

// PaymentEvent is published to Kafka (and mirrored to SNS best-effort) when a
// pending GRIN payment settles, so the storefront's order flow can react.
type PaymentEvent struct {
	Type             string    `json:"type"` // "grin_payment_completed"
	OrderID          string    `json:"order_id"`
	PaymentReference string    `json:"payment_reference"`
	GrinAmount       string    `json:"grin_amount"` // 8-decimal string
	Currency         string    `json:"currency"`
	Timestamp        time.Time `json:"timestamp"` // UTC event time
}

// CartClearEvent asks the storefront's cart service to empty the user's cart
// once a GRIN checkout has been initiated. Fire-and-forget.
type CartClearEvent struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}
