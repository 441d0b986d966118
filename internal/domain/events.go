package domain

import "time"

type OrderPlacedEvent struct {
	OrderNumber  string    `json:"order_number"`
	Email        string    `json:"email"`
	GrandTotal   string    `json:"grand_total"`
	ProductCount int       `json:"product_count"`
	StripePID    string    `json:"stripe_pid"`
	Timestamp    time.Time `json:"timestamp"`
}

type PaymentEvent struct {
	Type      string    `json:"type"`
	IntentID  string    `json:"intent_id"`
	Timestamp time.Time `json:"timestamp"`
}
