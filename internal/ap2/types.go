// Package ap2 implements the Intent→Cart→Payment mandate chain: the
// AP2-style signed, chained authorization objects agents present to move
// money, their canonicalization, and the chain verifier.
package ap2

import (
	"time"
)

// MandateType enumerates the mandate kinds in the chain, plus the
// checkout-derived mandate used by the UCP capability.
type MandateType string

const (
	MandateTypeIntent   MandateType = "intent"
	MandateTypeCart     MandateType = "cart"
	MandateTypePayment  MandateType = "payment"
	MandateTypeCheckout MandateType = "checkout"
)

// Purpose is the declared use of a mandate; checks in Verify bind a
// MandateType to the Purpose it must carry.
type Purpose string

const (
	PurposeIntent   Purpose = "intent"
	PurposeCart     Purpose = "cart"
	PurposeCheckout Purpose = "checkout"
)

// Proof is the verifiable-credential-style proof every mandate carries.
// VerificationMethod encodes "algorithm:base64-public-key" (e.g.
// "ed25519:MCow...") and ProofValue is the base64-encoded signature bytes.
type Proof struct {
	VerificationMethod string `json:"verification_method" bson:"verification_method"`
	ProofValue         string `json:"proof_value" bson:"proof_value"`
}

// Base carries the fields common to every mandate in the chain.
type Base struct {
	MandateID string      `json:"mandate_id" bson:"mandate_id"`
	Type      MandateType `json:"type" bson:"type"`
	Subject   string      `json:"subject" bson:"subject"` // agent_id
	Issuer    string      `json:"issuer" bson:"issuer"`   // domain
	Purpose   Purpose     `json:"purpose" bson:"purpose"`
	ExpiresAt time.Time   `json:"expires_at" bson:"expires_at"`
	Nonce     string      `json:"nonce" bson:"nonce"`
	Proof     Proof       `json:"proof" bson:"proof"`
}

// IsExpired reports whether the mandate is past expiry as of now.
func (b Base) IsExpired(now time.Time) bool {
	return now.After(b.ExpiresAt)
}

// IntentMandate is the user's declared purchase intent.
type IntentMandate struct {
	Base                 `bson:"inline"`
	RequestedAmountMinor *int64 `json:"requested_amount_minor,omitempty" bson:"requested_amount_minor,omitempty"`
	MerchantCategory     string `json:"merchant_category,omitempty" bson:"merchant_category,omitempty"`
}

// LineItem is one priced entry in a cart.
type LineItem struct {
	SKU            string `json:"sku" bson:"sku"`
	Description    string `json:"description" bson:"description"`
	Quantity       int    `json:"quantity" bson:"quantity"`
	UnitPriceMinor int64  `json:"unit_price_minor" bson:"unit_price_minor"`
}

// Discount is a percentage-of-subtotal (basis points) or fixed-minor-unit
// reduction applied to a cart's subtotal.
type Discount struct {
	Kind        string `json:"kind" bson:"kind"` // "percentage" | "fixed"
	Description string `json:"description,omitempty" bson:"description,omitempty"`
	Value       int64  `json:"value" bson:"value"` // basis points for percentage, minor units for fixed
}

// CartMandate is the merchant-signed cart a payment is checked against.
type CartMandate struct {
	Base           `bson:"inline"`
	MerchantDomain string     `json:"merchant_domain" bson:"merchant_domain"`
	LineItems      []LineItem `json:"line_items" bson:"line_items"`
	SubtotalMinor  int64      `json:"subtotal_minor" bson:"subtotal_minor"`
	TaxesMinor     int64      `json:"taxes_minor" bson:"taxes_minor"`
	ShippingMinor  int64      `json:"shipping_minor,omitempty" bson:"shipping_minor,omitempty"`
	Discounts      []Discount `json:"discounts,omitempty" bson:"discounts,omitempty"`
}

// Total applies the data-model invariant:
// total = subtotal + taxes + shipping - Σ discounts, floored at 0.
func (c CartMandate) Total() int64 {
	var discountSum int64
	for _, d := range c.Discounts {
		if d.Kind == "percentage" {
			discountSum += (c.SubtotalMinor * d.Value) / 10000
		} else {
			discountSum += d.Value
		}
	}
	total := c.SubtotalMinor + c.TaxesMinor + c.ShippingMinor - discountSum
	if total < 0 {
		return 0
	}
	return total
}

// PaymentMandate is the final, signed authorization to move funds.
type PaymentMandate struct {
	Base        `bson:"inline"`
	Chain       string `json:"chain" bson:"chain"`
	Token       string `json:"token" bson:"token"`
	AmountMinor int64  `json:"amount_minor" bson:"amount_minor"`
	Destination string `json:"destination" bson:"destination"`
	Domain      string `json:"domain" bson:"domain"`
	AuditHash   string `json:"audit_hash" bson:"audit_hash"`
}

// CheckoutMandate links an authorized checkout amount back to its cart.
type CheckoutMandate struct {
	Base                  `bson:"inline"`
	CartMandateID         string `json:"cart_mandate_id" bson:"cart_mandate_id"`
	AuthorizedAmountMinor int64  `json:"authorized_amount_minor" bson:"authorized_amount_minor"`
	Currency              string `json:"currency" bson:"currency"`
}

// Chain is the triple accepted and archived atomically by the verifier.
type Chain struct {
	Intent  IntentMandate  `json:"intent" bson:"intent"`
	Cart    CartMandate    `json:"cart" bson:"cart"`
	Payment PaymentMandate `json:"payment" bson:"payment"`
}
