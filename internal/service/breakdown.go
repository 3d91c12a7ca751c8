package service

import (
	"fmt"
	"time"

	"github.com/lavandera/api/internal/enum"
	"github.com/shopspring/decimal"
)

// Breakdown is the structured payload persisted on orders.breakdown: the
// baskets with their elected services, the retail line items, payment info,
// totals, and the audit log of destructive operations.
type Breakdown struct {
	Baskets  []BasketEntry `json:"baskets"`
	Items    []LineItem    `json:"items"`
	Payment  *Payment      `json:"payment,omitempty"`
	Summary  Summary       `json:"summary"`
	AuditLog []AuditEntry  `json:"audit_log,omitempty"`
}

type BasketEntry struct {
	BasketNumber int32    `json:"basket_number"`
	Weight       string   `json:"weight,omitempty"`
	Price        string   `json:"price"`
	Notes        string   `json:"notes,omitempty"`
	Services     []string `json:"services"`
}

type LineItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type Payment struct {
	Method         string `json:"method"`
	AmountReceived string `json:"amount_received,omitempty"`
	Change         string `json:"change,omitempty"`
}

type Summary struct {
	Subtotal string `json:"subtotal"`
	Fees     string `json:"fees"`
	Total    string `json:"total"`
}

type AuditEntry struct {
	At      time.Time `json:"at"`
	StaffID string    `json:"staff_id"`
	Action  string    `json:"action"`
	Reason  string    `json:"reason,omitempty"`
	Notes   string    `json:"notes,omitempty"`
}

// validateBaskets checks basket numbering, prices, and service elections.
// Basket numbers must be 1..n contiguous so the per-basket routes stay
// unambiguous after a modify.
func validateBaskets(baskets []CreateBasketRequest) error {
	for i, b := range baskets {
		if _, err := decimal.NewFromString(b.Price); err != nil {
			return fmt.Errorf("baskets[%d]: %w", i, ErrInvalidPrice)
		}
		if b.Weight != "" {
			w, err := decimal.NewFromString(b.Weight)
			if err != nil || w.IsNegative() {
				return fmt.Errorf("baskets[%d]: %w", i, ErrInvalidWeight)
			}
		}
		if len(b.Services) == 0 {
			return fmt.Errorf("baskets[%d]: %w", i, ErrEmptyServices)
		}
		seen := map[string]bool{}
		for _, s := range b.Services {
			if !enum.IsServiceType(s) {
				return fmt.Errorf("baskets[%d]: %w: %q", i, ErrInvalidService, s)
			}
			if seen[s] {
				return fmt.Errorf("baskets[%d]: %w: duplicate %q", i, ErrInvalidService, s)
			}
			seen[s] = true
		}
	}
	return nil
}
