package model

import "time"

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderBaking    OrderStatus = "baking"
	OrderReady     OrderStatus = "ready"
	OrderPickedUp  OrderStatus = "picked_up"
	OrderCanceled  OrderStatus = "canceled"
)

type PaymentMethod string

const (
	PaymentCash    PaymentMethod = "cash"
	PaymentCard    PaymentMethod = "card"
	PaymentInvoice PaymentMethod = "invoice" // organizations only
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentCard, PaymentInvoice:
		return true
	}
	return false
}

type Order struct {
	ID             int64         `json:"id"`
	Number         string        `json:"number"`
	StoreID        int64         `json:"store_id"`
	OrganizationID *int64        `json:"organization_id,omitempty"`
	CustomerName   string        `json:"customer_name"`
	CustomerPhone  string        `json:"customer_phone"`
	CustomerEmail  string        `json:"customer_email,omitempty"`
	PickupDate     string        `json:"pickup_date"` // YYYY-MM-DD
	PickupTime     string        `json:"pickup_time"` // HH:MM
	PaymentMethod  PaymentMethod `json:"payment_method"`
	Status         OrderStatus   `json:"status"`
	SubtotalCents  int64         `json:"subtotal_cents"`
	DiscountCents  int64         `json:"discount_cents"`
	TotalCents     int64         `json:"total_cents"`
	Items          []OrderItem   `json:"items,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

type OrderItem struct {
	ProductID  int64  `json:"product_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// OrderFilter narrows admin order listings. Zero fields are ignored.
type OrderFilter struct {
	StoreID int64
	Status  OrderStatus
	From    string // pickup date, inclusive
	To      string // pickup date, inclusive
	Limit   int
}
