package model

import (
	"time"

	"bakehouse/internal/pickup"
)

type Category struct {
	ID         int64              `json:"id"`
	Slug       string             `json:"slug"`
	Name       string             `json:"name"`
	PickupDays *pickup.WeekdaySet `json:"pickup_days,omitempty"` // nil = any day the store is open
	SortOrder  int                `json:"sort_order"`
	IsActive   bool               `json:"is_active"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

type Product struct {
	ID          int64     `json:"id"`
	CategoryID  int64     `json:"category_id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PriceTier is the wholesale discount granted to an approved organization.
type PriceTier struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	DiscountPercent int    `json:"discount_percent"`
}

// Apply returns the discount in cents for a subtotal, rounded down.
func (t PriceTier) Apply(subtotal int64) int64 {
	if t.DiscountPercent <= 0 {
		return 0
	}
	pct := t.DiscountPercent
	if pct > 100 {
		pct = 100
	}
	return subtotal * int64(pct) / 100
}

type Organization struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	TaxID         string    `json:"tax_id"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	PriceTierID   *int64    `json:"price_tier_id,omitempty"`
	ApplicationID int64     `json:"application_id"`
	CreatedAt     time.Time `json:"created_at"`

	// AccessToken is only set right after it was issued; the database keeps its hash.
	AccessToken string `json:"access_token,omitempty"`
}
