package model

import (
	"time"

	"bakehouse/internal/pickup"
)

type Cart struct {
	ID          string      `json:"id"`
	Lines       []CartLine  `json:"lines"`
	Preferences Preferences `json:"preferences"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type CartLine struct {
	ProductID  int64     `json:"product_id"`
	Name       string    `json:"name,omitempty"`
	Quantity   int       `json:"quantity"`
	PriceCents int64     `json:"price_cents"`
	Category   *Category `json:"category,omitempty"`
}

// PickupDays exposes the category restriction of the line, nil when unrestricted.
func (l CartLine) PickupDays() *pickup.WeekdaySet {
	if l.Category == nil {
		return nil
	}
	return l.Category.PickupDays
}

// Preferences is what a guest chose before checkout. It travels with the cart.
type Preferences struct {
	StoreID  int64     `json:"store_id,omitempty"`
	Customer *Customer `json:"customer,omitempty"`
}

type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// Line returns the line for productID and its index, or -1.
func (c Cart) Line(productID int64) (CartLine, int) {
	for i, l := range c.Lines {
		if l.ProductID == productID {
			return l, i
		}
	}
	return CartLine{}, -1
}

// Subtotal sums line prices.
func (c Cart) Subtotal() int64 {
	var total int64
	for _, l := range c.Lines {
		total += l.PriceCents * int64(l.Quantity)
	}
	return total
}
