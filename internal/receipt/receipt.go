// Package receipt renders the plain-text counter receipt handed to the
// customer at drop-off. The layout targets 32-column thermal printers.
package receipt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lavandera/api/internal/database"
	"github.com/lavandera/api/internal/service"
)

const width = 32

// Render formats a receipt for a created order. The monetary lines come from
// the order's stored breakdown, so a reprint always matches what was charged.
func Render(order database.Order, customer database.Customer) (string, error) {
	var breakdown service.Breakdown
	if len(order.Breakdown) > 0 {
		if err := json.Unmarshal(order.Breakdown, &breakdown); err != nil {
			return "", fmt.Errorf("decode breakdown: %w", err)
		}
	}

	var b strings.Builder
	divider := strings.Repeat("-", width) + "\n"

	center(&b, "LAVANDERA")
	center(&b, "Order "+order.OrderNumber)
	center(&b, order.CreatedAt.Format("2006-01-02 15:04"))
	b.WriteString(divider)

	fmt.Fprintf(&b, "Customer: %s\n", customer.Name)
	if customer.Phone != "" {
		fmt.Fprintf(&b, "Phone:    %s\n", customer.Phone)
	}
	b.WriteString(divider)

	for _, basket := range breakdown.Baskets {
		label := fmt.Sprintf("Basket %d", basket.BasketNumber)
		if basket.Weight != "" {
			label += fmt.Sprintf(" (%s kg)", basket.Weight)
		}
		line(&b, label, basket.Price)
		if len(basket.Services) > 0 {
			fmt.Fprintf(&b, "  %s\n", strings.Join(basket.Services, ", "))
		}
	}
	for _, item := range breakdown.Items {
		line(&b, fmt.Sprintf("%s x%d", item.Name, item.Quantity), item.Subtotal)
	}
	b.WriteString(divider)

	line(&b, "Subtotal", breakdown.Summary.Subtotal)
	if breakdown.Summary.Fees != "" && breakdown.Summary.Fees != "0.00" {
		line(&b, "Fees", breakdown.Summary.Fees)
	}
	line(&b, "TOTAL", breakdown.Summary.Total)
	if p := breakdown.Payment; p != nil && p.AmountReceived != "" {
		line(&b, "Paid ("+p.Method+")", p.AmountReceived)
		line(&b, "Change", p.Change)
	}
	b.WriteString(divider)

	if order.PickupAddress.Valid {
		fmt.Fprintf(&b, "Pickup:   %s\n", order.PickupAddress.String)
	}
	if order.DeliveryAddress.Valid {
		fmt.Fprintf(&b, "Delivery: %s\n", order.DeliveryAddress.String)
	}
	fmt.Fprintf(&b, "Loyalty points: %d\n", customer.LoyaltyPoints)
	center(&b, "Thank you!")

	return b.String(), nil
}

// line writes a label left-aligned and an amount right-aligned on one row.
func line(b *strings.Builder, label, amount string) {
	pad := width - len(label) - len(amount)
	if pad < 1 {
		pad = 1
	}
	b.WriteString(label + strings.Repeat(" ", pad) + amount + "\n")
}

func center(b *strings.Builder, s string) {
	pad := (width - len(s)) / 2
	if pad < 0 {
		pad = 0
	}
	b.WriteString(strings.Repeat(" ", pad) + s + "\n")
}

// Reprint annotates a receipt copy with the reprint time.
func Reprint(order database.Order, customer database.Customer, at time.Time) (string, error) {
	body, err := Render(order, customer)
	if err != nil {
		return "", err
	}
	return body + fmt.Sprintf("\nREPRINT %s\n", at.Format("2006-01-02 15:04")), nil
}
