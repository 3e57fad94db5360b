package ap2

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/sardis-payments/sardis/internal/apperrors"
)

type fakeReplay struct {
	seen     map[string]bool
	released []string
}

func newFakeReplay() *fakeReplay { return &fakeReplay{seen: make(map[string]bool)} }

func (f *fakeReplay) CheckAndStore(ctx context.Context, mandateID string, expiresAt time.Time) (bool, error) {
	if f.seen[mandateID] {
		return false, nil
	}
	f.seen[mandateID] = true
	return true, nil
}

func (f *fakeReplay) Release(ctx context.Context, mandateID string) error {
	delete(f.seen, mandateID)
	f.released = append(f.released, mandateID)
	return nil
}

type fakeRateLimiter struct{ allow bool }

func (f *fakeRateLimiter) CheckAndIncrement(ctx context.Context, agentID string) (bool, string, error) {
	if !f.allow {
		return false, "rate_limit_minute", nil
	}
	return true, "", nil
}

type fakeIdentity struct{ bound bool }

func (f *fakeIdentity) ResolvePublicKey(ctx context.Context, agentID, domain, algorithm string, publicKey []byte) (bool, error) {
	return f.bound, nil
}

type fakeArchive struct{ stored []Chain }

func (f *fakeArchive) StoreChain(ctx context.Context, chain Chain) error {
	f.stored = append(f.stored, chain)
	return nil
}

type failingArchive struct{ err error }

func (f *failingArchive) StoreChain(ctx context.Context, chain Chain) error {
	return f.err
}

func signedPayment(t *testing.T, pub ed25519.PublicKey, priv ed25519.PrivateKey, amount int64, subject, domain string) PaymentMandate {
	t.Helper()
	pm := PaymentMandate{
		Base: Base{
			MandateID: "mandate_1",
			Type:      MandateTypePayment,
			Subject:   subject,
			Issuer:    domain,
			Purpose:   PurposeCheckout,
			ExpiresAt: time.Now().Add(time.Hour),
			Nonce:     "nonce1",
			Proof: Proof{
				VerificationMethod: "ed25519:" + base64.StdEncoding.EncodeToString(pub),
			},
		},
		Chain:       "base-sepolia",
		Token:       "USDC",
		AmountMinor: amount,
		Destination: "0xabc",
		Domain:      domain,
	}
	pm.AuditHash = AuditHash("cart_1", "checkout_1", amount, pm.Chain, pm.Token, pm.Destination)
	payload, err := CanonicalPaymentPayload(pm, CanonPipe)
	if err != nil {
		t.Fatalf("CanonicalPaymentPayload: %v", err)
	}
	sig := ed25519.Sign(priv, payload)
	pm.Proof.ProofValue = base64.StdEncoding.EncodeToString(sig)
	return pm
}

func TestVerifyPayment_Accepted(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	pm := signedPayment(t, pub, priv, 500, "agent_1", "merchant.example")

	cfg := Config{AllowedDomains: []string{"merchant.example"}, DefaultCanonicalization: CanonPipe}
	v := NewVerifier(cfg, newFakeReplay(), &fakeRateLimiter{allow: true}, &fakeIdentity{bound: true}, &fakeArchive{})

	result := v.VerifyPayment(context.Background(), pm, CanonPipe)
	if !result.Accepted {
		t.Fatalf("expected accepted, got reason %q", result.Reason)
	}
}

func TestVerifyPayment_RejectsReplay(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	pm := signedPayment(t, pub, priv, 500, "agent_1", "merchant.example")

	cfg := Config{AllowedDomains: []string{"merchant.example"}}
	replay := newFakeReplay()
	v := NewVerifier(cfg, replay, &fakeRateLimiter{allow: true}, &fakeIdentity{bound: true}, &fakeArchive{})

	first := v.VerifyPayment(context.Background(), pm, CanonPipe)
	if !first.Accepted {
		t.Fatalf("expected first attempt accepted, got %q", first.Reason)
	}
	second := v.VerifyPayment(context.Background(), pm, CanonPipe)
	if second.Accepted || second.Reason != "mandate_replayed" {
		t.Fatalf("expected mandate_replayed, got accepted=%v reason=%q", second.Accepted, second.Reason)
	}
}

func TestVerifyPayment_RejectsTamperedSignature(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	pm := signedPayment(t, pub, priv, 500, "agent_1", "merchant.example")
	pm.AmountMinor = 999999 // tamper after signing

	cfg := Config{AllowedDomains: []string{"merchant.example"}}
	v := NewVerifier(cfg, newFakeReplay(), &fakeRateLimiter{allow: true}, &fakeIdentity{bound: true}, &fakeArchive{})

	result := v.VerifyPayment(context.Background(), pm, CanonPipe)
	if result.Accepted || result.Reason != "signature_invalid" {
		t.Fatalf("expected signature_invalid, got accepted=%v reason=%q", result.Accepted, result.Reason)
	}
}

func TestVerifyPayment_RejectsDomainNotAllowed(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	pm := signedPayment(t, pub, priv, 500, "agent_1", "not-allowed.example")

	cfg := Config{AllowedDomains: []string{"merchant.example"}}
	v := NewVerifier(cfg, newFakeReplay(), &fakeRateLimiter{allow: true}, &fakeIdentity{bound: true}, &fakeArchive{})

	result := v.VerifyPayment(context.Background(), pm, CanonPipe)
	if result.Accepted || result.Reason != "domain_not_authorized" {
		t.Fatalf("expected domain_not_authorized, got accepted=%v reason=%q", result.Accepted, result.Reason)
	}
}

func TestVerifyChain_Accepted(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	subject := "agent_1"
	domain := "merchant.example"
	now := time.Now()

	requested := int64(10000)
	intent := IntentMandate{
		Base: Base{
			MandateID: "mandate_intent_1", Type: MandateTypeIntent, Subject: subject,
			Issuer: domain, Purpose: PurposeIntent, ExpiresAt: now.Add(time.Hour),
		},
		RequestedAmountMinor: &requested,
	}
	cart := CartMandate{
		Base: Base{
			MandateID: "mandate_cart_1", Type: MandateTypeCart, Subject: subject,
			Issuer: domain, Purpose: PurposeCart, ExpiresAt: now.Add(time.Hour),
		},
		MerchantDomain: domain,
		SubtotalMinor:  400,
		TaxesMinor:     100,
	}
	payment := signedPayment(t, pub, priv, 500, subject, domain)

	cfg := Config{AllowedDomains: []string{domain}}
	archive := &fakeArchive{}
	v := NewVerifier(cfg, newFakeReplay(), &fakeRateLimiter{allow: true}, &fakeIdentity{bound: true}, archive)

	result := v.VerifyChain(context.Background(), intent, cart, payment, CanonPipe)
	if !result.Accepted {
		t.Fatalf("expected chain accepted, got reason %q", result.Reason)
	}
	if len(archive.stored) != 1 {
		t.Fatalf("expected chain archived exactly once, got %d", len(archive.stored))
	}
}

func TestVerifyChain_ArchiveFailureReleasesReplayEntry(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	subject := "agent_1"
	domain := "merchant.example"
	now := time.Now()

	requested := int64(10000)
	intent := IntentMandate{
		Base: Base{
			MandateID: "mandate_intent_1", Type: MandateTypeIntent, Subject: subject,
			Issuer: domain, Purpose: PurposeIntent, ExpiresAt: now.Add(time.Hour),
		},
		RequestedAmountMinor: &requested,
	}
	cart := CartMandate{
		Base: Base{
			MandateID: "mandate_cart_1", Type: MandateTypeCart, Subject: subject,
			Issuer: domain, Purpose: PurposeCart, ExpiresAt: now.Add(time.Hour),
		},
		MerchantDomain: domain,
		SubtotalMinor:  400,
		TaxesMinor:     100,
	}
	payment := signedPayment(t, pub, priv, 500, subject, domain)

	cfg := Config{AllowedDomains: []string{domain}}
	replay := newFakeReplay()
	archive := &failingArchive{err: errors.New("archive unavailable")}
	v := NewVerifier(cfg, replay, &fakeRateLimiter{allow: true}, &fakeIdentity{bound: true}, archive)

	result := v.VerifyChain(context.Background(), intent, cart, payment, CanonPipe)
	if result.Accepted {
		t.Fatalf("expected chain rejected when archive write fails")
	}
	if result.Reason != apperrors.CodeInternalError {
		t.Fatalf("expected %q, got %q", apperrors.CodeInternalError, result.Reason)
	}

	if len(replay.released) != 1 || replay.released[0] != payment.MandateID {
		t.Fatalf("expected replay entry for %q to be released, released=%v", payment.MandateID, replay.released)
	}
	if replay.seen[payment.MandateID] {
		t.Fatalf("expected mandate %q to no longer be marked replayed", payment.MandateID)
	}

	// A retried attempt with the same mandate must now be accepted rather
	// than rejected as a replay, proving the rollback actually freed the key.
	archive.err = nil
	retry := v.VerifyChain(context.Background(), intent, cart, payment, CanonPipe)
	if !retry.Accepted {
		t.Fatalf("expected retry accepted after archive recovers, got reason %q", retry.Reason)
	}
}

func TestVerifyChain_RejectsPaymentExceedingCartTotal(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	subject := "agent_1"
	domain := "merchant.example"
	now := time.Now()

	intent := IntentMandate{
		Base: Base{MandateID: "mi", Type: MandateTypeIntent, Subject: subject, Issuer: domain, Purpose: PurposeIntent, ExpiresAt: now.Add(time.Hour)},
	}
	cart := CartMandate{
		Base:           Base{MandateID: "mc", Type: MandateTypeCart, Subject: subject, Issuer: domain, Purpose: PurposeCart, ExpiresAt: now.Add(time.Hour)},
		MerchantDomain: domain,
		SubtotalMinor:  10,
		TaxesMinor:     10,
	}
	payment := signedPayment(t, pub, priv, 500, subject, domain)

	cfg := Config{AllowedDomains: []string{domain}}
	v := NewVerifier(cfg, newFakeReplay(), &fakeRateLimiter{allow: true}, &fakeIdentity{bound: true}, &fakeArchive{})

	result := v.VerifyChain(context.Background(), intent, cart, payment, CanonPipe)
	if result.Accepted || result.Reason != "payment_exceeds_cart_total" {
		t.Fatalf("expected payment_exceeds_cart_total, got accepted=%v reason=%q", result.Accepted, result.Reason)
	}
}

func TestCartMandate_TotalAppliesPercentageDiscount(t *testing.T) {
	cart := CartMandate{
		SubtotalMinor: 10000,
		TaxesMinor:    800,
		ShippingMinor: 500,
		Discounts:     []Discount{{Kind: "percentage", Value: 1000}}, // 10%
	}
	got := cart.Total()
	want := int64(10000 + 800 + 500 - 1000)
	if got != want {
		t.Errorf("Total() = %d, want %d", got, want)
	}
}

func TestCartMandate_TotalFloorsAtZero(t *testing.T) {
	cart := CartMandate{
		SubtotalMinor: 100,
		Discounts:     []Discount{{Kind: "fixed", Value: 1000}},
	}
	if got := cart.Total(); got != 0 {
		t.Errorf("Total() = %d, want 0", got)
	}
}
