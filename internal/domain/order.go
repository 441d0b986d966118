package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is immutable once created, except for the EmailSent flag which is
// flipped after the confirmation email goes out.
type Order struct {
	ID             int64           `json:"-"`
	OrderNumber    string          `json:"order_number"`
	FullName       string          `json:"full_name"`
	Email          string          `json:"email"`
	PhoneNumber    string          `json:"phone_number"`
	Country        string          `json:"country"`
	Postcode       string          `json:"postcode,omitempty"`
	TownOrCity     string          `json:"town_or_city"`
	StreetAddress1 string          `json:"street_address1"`
	StreetAddress2 string          `json:"street_address2,omitempty"`
	County         string          `json:"county,omitempty"`
	DeliveryCost   decimal.Decimal `json:"delivery_cost"`
	OrderTotal     decimal.Decimal `json:"order_total"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
	OriginalBag    Cart            `json:"original_bag"`
	StripePID      string          `json:"stripe_pid"`
	EmailSent      bool            `json:"email_sent"`
	CreatedAt      time.Time       `json:"created_at"`
	LineItems      []OrderLineItem `json:"line_items"`
}

type OrderLineItem struct {
	ID          int64           `json:"-"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductSize string          `json:"product_size,omitempty"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}
