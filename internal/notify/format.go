package notify

import (
	"fmt"
	"html"
	"strings"

	"bakehouse/internal/events"
)

// Format renders e as an HTML staff message. Events staff do not need yield "".
func Format(e events.Event) (string, error) {
	switch e.Type {
	case events.TypeOrderCreated:
		p, err := events.Decode[events.OrderCreated](e)
		if err != nil {
			return "", err
		}
		return formatOrderCreated(p), nil
	case events.TypeApplicationSubmitted, events.TypeApplicationReviewed:
		p, err := events.Decode[events.ApplicationEvent](e)
		if err != nil {
			return "", err
		}
		return formatApplication(e.Type, p), nil
	}
	return "", nil
}

func formatOrderCreated(p events.OrderCreated) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🥐 <b>New order %s</b>\n", html.EscapeString(p.Number))
	fmt.Fprintf(&b, "Store: %s\n", html.EscapeString(p.StoreName))
	fmt.Fprintf(&b, "Pickup: %s %s\n", p.PickupDate, p.PickupTime)
	fmt.Fprintf(&b, "Customer: %s", html.EscapeString(p.CustomerName))
	if p.CustomerPhone != "" {
		fmt.Fprintf(&b, ", %s", html.EscapeString(p.CustomerPhone))
	}
	if p.OrganizationID != nil {
		fmt.Fprintf(&b, " (organization #%d)", *p.OrganizationID)
	}
	fmt.Fprintf(&b, "\nItems: %d, total: %s", p.Items, FormatCents(p.TotalCents))
	return b.String()
}

func formatApplication(eventType string, p events.ApplicationEvent) string {
	company := html.EscapeString(p.CompanyName)
	if eventType == events.TypeApplicationSubmitted {
		return fmt.Sprintf("📝 <b>B2B application #%d</b>\nCompany: %s\nContact: %s, %s",
			p.ApplicationID, company, html.EscapeString(p.ContactName), html.EscapeString(p.Email))
	}
	switch p.Status {
	case "approved":
		return fmt.Sprintf("✅ B2B application #%d (%s) approved by %s", p.ApplicationID, company, html.EscapeString(p.Reviewer))
	case "rejected":
		return fmt.Sprintf("❌ B2B application #%d (%s) rejected by %s", p.ApplicationID, company, html.EscapeString(p.Reviewer))
	}
	return ""
}

// FormatCents renders an amount as 12.34.
func FormatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
