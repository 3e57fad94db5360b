package ap2

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"log/slog"
	"strings"
	"time"

	"github.com/sardis-payments/sardis/internal/apperrors"
)

// ReplayChecker atomically checks-and-stores a mandate id so a chain can be
// accepted at most once. Implemented by internal/replay.
type ReplayChecker interface {
	CheckAndStore(ctx context.Context, mandateID string, expiresAt time.Time) (storedNow bool, err error)

	// Release undoes a CheckAndStore insert. VerifyChain calls it when the
	// archive write that must land atomically with the replay insert fails,
	// so the mandate isn't left permanently (and incorrectly) marked replayed.
	Release(ctx context.Context, mandateID string) error
}

// RateLimitChecker enforces the per-agent sliding windows ahead of any
// signature work. Implemented by internal/ratelimit.
type RateLimitChecker interface {
	CheckAndIncrement(ctx context.Context, agentID string) (allowed bool, reasonCode string, err error)
}

// IdentityResolver confirms the (agent_id, domain, public_key, algorithm)
// binding and hands back the public key material to verify against.
// Implemented by internal/identity.
type IdentityResolver interface {
	ResolvePublicKey(ctx context.Context, agentID, domain, algorithm string, publicKey []byte) (ok bool, err error)
}

// Archive stores an accepted chain exactly once, keyed on payment.mandate_id.
// Implemented by cmd/mandate-gateway's in-memory and Mongo mandate archives.
type Archive interface {
	StoreChain(ctx context.Context, chain Chain) error
}

// Config controls allow-listing and canonicalization defaults for Verifier.
type Config struct {
	AllowedDomains          []string
	DefaultCanonicalization Canonicalization
}

func (c Config) domainAllowed(domain string) bool {
	if len(c.AllowedDomains) == 0 {
		return true
	}
	for _, d := range c.AllowedDomains {
		if d == domain {
			return true
		}
	}
	return false
}

// Verifier implements the ordered mandate-chain verification pipeline from
// spec.md §4.1, grounded directly on verifier.py's MandateVerifier.
type Verifier struct {
	cfg      Config
	replay   ReplayChecker
	rate     RateLimitChecker
	identity IdentityResolver
	archive  Archive
}

func NewVerifier(cfg Config, replay ReplayChecker, rate RateLimitChecker, identity IdentityResolver, archive Archive) *Verifier {
	return &Verifier{cfg: cfg, replay: replay, rate: rate, identity: identity, archive: archive}
}

// Result is the outcome of a verification attempt.
type Result struct {
	Accepted bool
	Reason   string
	Chain    *Chain
}

// VerifyPayment is the single-mandate fast path: checks 3, 8, 9, 11, 12 of
// the chain pipeline applied to a payment mandate in isolation.
func (v *Verifier) VerifyPayment(ctx context.Context, payment PaymentMandate, scheme Canonicalization) Result {
	now := time.Now()
	if payment.IsExpired(now) {
		return Result{Reason: apperrors.CodeMandateExpired}
	}
	if !v.cfg.domainAllowed(payment.Domain) {
		return Result{Reason: apperrors.CodeDomainNotAuthorized}
	}

	storedNow, err := v.replay.CheckAndStore(ctx, payment.MandateID, payment.ExpiresAt)
	if err != nil {
		slog.ErrorContext(ctx, "replay_check_failed", "error", err)
		return Result{Reason: apperrors.CodeInternalError}
	}
	if !storedNow {
		return Result{Reason: apperrors.CodeMandateReplayed}
	}

	algorithm, publicKey, err := parseVerificationMethod(payment.Proof.VerificationMethod)
	if err != nil {
		return Result{Reason: apperrors.CodeIdentityNotResolved}
	}
	ok, err := v.identity.ResolvePublicKey(ctx, payment.Subject, payment.Domain, algorithm, publicKey)
	if err != nil || !ok {
		return Result{Reason: apperrors.CodeIdentityNotResolved}
	}

	sig, err := base64.StdEncoding.DecodeString(payment.Proof.ProofValue)
	if err != nil {
		return Result{Reason: apperrors.CodeSignatureMalformed}
	}

	payload, err := CanonicalPaymentPayload(payment, scheme)
	if err != nil {
		return Result{Reason: apperrors.CodeSignatureMalformed}
	}

	if !verifySignature(algorithm, publicKey, payload, sig) {
		return Result{Reason: apperrors.CodeSignatureInvalid}
	}
	return Result{Accepted: true}
}

// VerifyChain runs the full ordered 12-check pipeline over (intent, cart,
// payment) and archives the chain atomically with the replay insert on
// success.
func (v *Verifier) VerifyChain(ctx context.Context, intent IntentMandate, cart CartMandate, payment PaymentMandate, scheme Canonicalization) Result {
	now := time.Now()

	// 2. type/purpose match per role
	if intent.Type != MandateTypeIntent || intent.Purpose != PurposeIntent {
		return Result{Reason: "intent_invalid_type"}
	}
	if cart.Type != MandateTypeCart || cart.Purpose != PurposeCart {
		return Result{Reason: "cart_invalid_type"}
	}
	if payment.Type != MandateTypePayment || payment.Purpose != PurposeCheckout {
		return Result{Reason: "payment_invalid_type"}
	}

	// 3. expiry
	if intent.IsExpired(now) || cart.IsExpired(now) || payment.IsExpired(now) {
		return Result{Reason: apperrors.CodeMandateExpired}
	}

	// 4. shared subject
	if intent.Subject != cart.Subject || cart.Subject != payment.Subject {
		return Result{Reason: apperrors.CodeSubjectMismatch}
	}

	// 5. merchant domain binding
	if cart.MerchantDomain != payment.Domain {
		return Result{Reason: apperrors.CodeMerchantDomainMismatch}
	}

	// 6. cart total bound
	cartTotal := cart.SubtotalMinor + cart.TaxesMinor
	if payment.AmountMinor > cartTotal {
		return Result{Reason: apperrors.CodePaymentExceedsCartTotal}
	}

	// 7. intent amount bound
	if intent.RequestedAmountMinor != nil && payment.AmountMinor > *intent.RequestedAmountMinor {
		return Result{Reason: apperrors.CodePaymentExceedsIntentAmt}
	}

	// 10. per-agent rate limit, ahead of signature work
	allowed, reason, err := v.rate.CheckAndIncrement(ctx, payment.Subject)
	if err != nil {
		slog.ErrorContext(ctx, "rate_limit_check_failed", "error", err)
		return Result{Reason: apperrors.CodeInternalError}
	}
	if !allowed {
		return Result{Reason: reason}
	}

	// 3 (payment only), 8, 9, 11, 12 via the single-mandate fast path
	paymentResult := v.VerifyPayment(ctx, payment, scheme)
	if !paymentResult.Accepted {
		return Result{Reason: paymentResult.Reason}
	}

	chain := Chain{Intent: intent, Cart: cart, Payment: payment}
	if v.archive != nil {
		if err := v.archive.StoreChain(ctx, chain); err != nil {
			slog.ErrorContext(ctx, "chain_archive_failed", "error", err)
			if relErr := v.replay.Release(ctx, payment.MandateID); relErr != nil {
				slog.ErrorContext(ctx, "replay_release_failed", "mandate_id", payment.MandateID, "error", relErr)
			}
			return Result{Reason: apperrors.CodeInternalError}
		}
	}
	return Result{Accepted: true, Chain: &chain}
}

// parseVerificationMethod splits "algorithm:base64key" the way
// IdentityRegistry.parse_verification_method does in the original source.
func parseVerificationMethod(method string) (algorithm string, publicKey []byte, err error) {
	parts := strings.SplitN(method, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", nil, apperrors.New(apperrors.KindCrypto, apperrors.CodeIdentityNotResolved, "malformed verification method")
	}
	key, decErr := base64.StdEncoding.DecodeString(parts[1])
	if decErr != nil {
		return "", nil, decErr
	}
	return strings.ToLower(parts[0]), key, nil
}

func verifySignature(algorithm string, publicKey, payload, sig []byte) bool {
	switch algorithm {
	case "ed25519":
		if len(publicKey) != ed25519.PublicKeySize {
			return false
		}
		return ed25519.Verify(ed25519.PublicKey(publicKey), payload, sig)
	case "ecdsa-p256", "es256":
		pub, err := x509.ParsePKIXPublicKey(publicKey)
		if err != nil {
			return false
		}
		ecPub, ok := pub.(*ecdsa.PublicKey)
		if !ok || ecPub.Curve != elliptic.P256() {
			return false
		}
		digest := sha256.Sum256(payload)
		return ecdsa.VerifyASN1(ecPub, digest[:], sig)
	case "rs256", "ps256":
		pub, err := x509.ParsePKCS1PublicKey(publicKey)
		if err != nil {
			return verifyRSAFromPKIX(publicKey, payload, sig)
		}
		return verifyRSASignature(pub, payload, sig)
	default:
		return false
	}
}
