package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/sardis-payments/sardis/internal/ap2"
)

type fakeSigner struct{}

func (fakeSigner) Sign(payload []byte) ap2.Proof {
	return ap2.Proof{VerificationMethod: "ed25519:test", ProofValue: "signed"}
}

func newTestManager() *Manager {
	return NewManager(NewMemoryStore(), fakeSigner{})
}

func TestComputeTotals_AppliesDiscountsTaxesAndShipping(t *testing.T) {
	session := Session{
		LineItems: []ap2.LineItem{
			{SKU: "a", Quantity: 2, UnitPriceMinor: 1000},
			{SKU: "b", Quantity: 1, UnitPriceMinor: 500},
		},
		Discounts: []ap2.Discount{
			{Kind: "percentage", Value: 1000}, // 10%
			{Kind: "fixed", Value: 100},
		},
		ShippingMinor: 300,
		TaxRate:       0.10,
	}
	totals := computeTotals(session)
	if totals.SubtotalMinor != 2500 {
		t.Fatalf("subtotal = %d, want 2500", totals.SubtotalMinor)
	}
	if totals.TaxesMinor != 250 {
		t.Fatalf("taxes = %d, want 250", totals.TaxesMinor)
	}
	wantDiscount := int64(250 + 100) // 10% of 2500 + fixed 100
	if totals.DiscountMinor != wantDiscount {
		t.Fatalf("discount = %d, want %d", totals.DiscountMinor, wantDiscount)
	}
	wantTotal := 2500 + 250 + 300 - wantDiscount
	if totals.TotalMinor != wantTotal {
		t.Fatalf("total = %d, want %d", totals.TotalMinor, wantTotal)
	}
}

func TestComputeTotals_FloorsAtZero(t *testing.T) {
	session := Session{
		LineItems: []ap2.LineItem{{SKU: "a", Quantity: 1, UnitPriceMinor: 100}},
		Discounts: []ap2.Discount{{Kind: "fixed", Value: 5000}},
	}
	totals := computeTotals(session)
	if totals.TotalMinor != 0 {
		t.Fatalf("total = %d, want 0", totals.TotalMinor)
	}
}

func TestManager_CreateAndAddLineItemRecomputesTotals(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	session, err := m.Create(ctx, "agent-1", "merchant.example", 0.08, now)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if session.Status != StatusOpen {
		t.Fatalf("status = %s, want open", session.Status)
	}

	session, err = m.AddLineItem(ctx, session.ID, ap2.LineItem{SKU: "x", Quantity: 3, UnitPriceMinor: 1000}, now)
	if err != nil {
		t.Fatalf("AddLineItem() error: %v", err)
	}
	if session.Totals.SubtotalMinor != 3000 {
		t.Fatalf("subtotal = %d, want 3000", session.Totals.SubtotalMinor)
	}
	if session.Totals.TaxesMinor != 240 {
		t.Fatalf("taxes = %d, want 240", session.Totals.TaxesMinor)
	}
}

func TestManager_MutationRejectedWhenNotOpen(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	session, _ := m.Create(ctx, "agent-1", "merchant.example", 0, now)
	m.AddLineItem(ctx, session.ID, ap2.LineItem{SKU: "x", Quantity: 1, UnitPriceMinor: 500}, now)

	if _, err := m.Escalate(ctx, session.ID, now); err != nil {
		t.Fatalf("Escalate() error: %v", err)
	}
	if _, err := m.AddLineItem(ctx, session.ID, ap2.LineItem{SKU: "y", Quantity: 1, UnitPriceMinor: 500}, now); err != ErrNotOpen {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
}

func TestManager_EscalateThenResolveReturnsToOpen(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	session, _ := m.Create(ctx, "agent-1", "merchant.example", 0, now)
	if _, err := m.Escalate(ctx, session.ID, now); err != nil {
		t.Fatalf("Escalate() error: %v", err)
	}
	resolved, err := m.Resolve(ctx, session.ID, now)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if resolved.Status != StatusOpen {
		t.Fatalf("status = %s, want open", resolved.Status)
	}
}

func TestManager_CompleteRejectsEmptyCart(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	session, _ := m.Create(ctx, "agent-1", "merchant.example", 0, now)
	_, _, _, err := m.Complete(ctx, session.ID, "base-sepolia", "usdc", "0xdead", now.Add(time.Hour), now)
	if err != ErrEmptyCart {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestManager_CompleteLinksCartCheckoutPaymentAndTransitions(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	session, _ := m.Create(ctx, "agent-1", "merchant.example", 0.08, now)
	session, _ = m.AddLineItem(ctx, session.ID, ap2.LineItem{SKU: "x", Quantity: 2, UnitPriceMinor: 1500}, now)

	session, checkoutMandate, payment, err := m.Complete(ctx, session.ID, "base-sepolia", "usdc", "0xdead", now.Add(time.Hour), now)
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if session.Status != StatusPendingPayment {
		t.Fatalf("status = %s, want pending_payment", session.Status)
	}
	if checkoutMandate.CartMandateID != session.CartMandateID {
		t.Fatal("checkout mandate not linked to cart")
	}
	if payment.AmountMinor != checkoutMandate.AuthorizedAmountMinor {
		t.Fatalf("payment amount %d != authorized amount %d", payment.AmountMinor, checkoutMandate.AuthorizedAmountMinor)
	}
	if payment.AuditHash == "" {
		t.Fatal("expected non-empty audit hash")
	}
	if session.PaymentMandateID != payment.MandateID {
		t.Fatal("session not linked to payment mandate")
	}
}

func TestManager_PaymentOutcomeFailureReturnsToOpen(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	session, _ := m.Create(ctx, "agent-1", "merchant.example", 0, now)
	session, _ = m.AddLineItem(ctx, session.ID, ap2.LineItem{SKU: "x", Quantity: 1, UnitPriceMinor: 1000}, now)
	session, _, _, err := m.Complete(ctx, session.ID, "base-sepolia", "usdc", "0xdead", now.Add(time.Hour), now)
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}

	failed, err := m.PaymentOutcome(ctx, session.ID, false, now)
	if err != nil {
		t.Fatalf("PaymentOutcome() error: %v", err)
	}
	if failed.Status != StatusOpen {
		t.Fatalf("status = %s, want open after pay_fail", failed.Status)
	}
}

func TestManager_LazyExpirationOnFirstOperationAfterTTL(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	session, _ := m.Create(ctx, "agent-1", "merchant.example", 0, now)
	later := now.Add(DefaultTTL + time.Minute)

	if _, err := m.AddLineItem(ctx, session.ID, ap2.LineItem{SKU: "x", Quantity: 1, UnitPriceMinor: 100}, later); err != ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	stored, err := m.store.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if stored.Status != StatusExpired {
		t.Fatalf("status = %s, want expired", stored.Status)
	}
}

func TestManager_SweepOnceExpiresLapsedSessions(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	session, _ := m.Create(ctx, "agent-1", "merchant.example", 0, now)
	later := now.Add(DefaultTTL + time.Minute)

	m.sweepOnce(ctx, later)

	stored, err := m.store.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if stored.Status != StatusExpired {
		t.Fatalf("status = %s, want expired", stored.Status)
	}
}
