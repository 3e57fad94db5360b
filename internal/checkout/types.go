// Package checkout implements the UCP CheckoutSession state machine: a
// merchant-side cart that accumulates line items while OPEN, then on
// `complete` atomically derives a checkout mandate and payment mandate
// linked cart→checkout→payment.
package checkout

import (
	"time"

	"github.com/sardis-payments/sardis/internal/ap2"
)

// Status is a CheckoutSession's lifecycle state.
type Status string

const (
	StatusOpen               Status = "open"
	StatusPendingPayment     Status = "pending_payment"
	StatusCompleted          Status = "completed"
	StatusRequiresEscalation Status = "requires_escalation"
	StatusCancelled          Status = "cancelled"
	StatusExpired            Status = "expired"
)

// Totals is the recomputed monetary breakdown of a session's cart.
type Totals struct {
	SubtotalMinor int64 `json:"subtotal_minor" bson:"subtotal_minor"`
	TaxesMinor    int64 `json:"taxes_minor" bson:"taxes_minor"`
	ShippingMinor int64 `json:"shipping_minor" bson:"shipping_minor"`
	DiscountMinor int64 `json:"discount_minor" bson:"discount_minor"`
	TotalMinor    int64 `json:"total_minor" bson:"total_minor"`
}

// Session is a UCP checkout cart bound to an agent subject and merchant
// domain.
type Session struct {
	ID             string         `json:"id" bson:"_id"`
	Subject        string         `json:"subject" bson:"subject"` // requesting agent's subject id
	MerchantDomain string         `json:"merchant_domain" bson:"merchant_domain"`
	Status         Status         `json:"status" bson:"status"`
	LineItems      []ap2.LineItem `json:"line_items" bson:"line_items"`
	Discounts      []ap2.Discount `json:"discounts" bson:"discounts"`
	ShippingMinor  int64          `json:"shipping_minor" bson:"shipping_minor"`
	TaxRate        float64        `json:"tax_rate" bson:"tax_rate"` // e.g. 0.0825 for 8.25%

	Totals Totals `json:"totals" bson:"totals"`

	CartMandateID     string `json:"cart_mandate_id,omitempty" bson:"cart_mandate_id,omitempty"`
	CheckoutMandateID string `json:"checkout_mandate_id,omitempty" bson:"checkout_mandate_id,omitempty"`
	PaymentMandateID  string `json:"payment_mandate_id,omitempty" bson:"payment_mandate_id,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
}

// allowedTransitions maps a current status to the set of statuses it may
// move to, mirroring the state diagram.
var allowedTransitions = map[Status]map[Status]bool{
	StatusOpen: {
		StatusPendingPayment:     true,
		StatusRequiresEscalation: true,
		StatusCancelled:          true,
		StatusExpired:            true,
	},
	StatusPendingPayment: {
		StatusCompleted: true,
		StatusOpen:      true, // pay_fail
		StatusExpired:   true,
	},
	StatusRequiresEscalation: {
		StatusOpen:    true,
		StatusExpired: true,
	},
}

func canTransition(from, to Status) bool {
	set, ok := allowedTransitions[from]
	return ok && set[to]
}
