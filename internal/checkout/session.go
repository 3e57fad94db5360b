package checkout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/sardis-payments/sardis/internal/ap2"
)

// DefaultTTL is the session lifetime NewManager sets; Create, Resolve and a
// failed PaymentOutcome apply it, and no per-call lifetime can be given.
// The background sweeper expires sessions past it.
const DefaultTTL = 30 * time.Minute

var (
	ErrNotFound         = errors.New("checkout_session_not_found")
	ErrNotOpen          = errors.New("checkout_session_not_open")
	ErrEmptyCart        = errors.New("checkout_cart_empty")
	ErrInvalidTransition = errors.New("checkout_invalid_transition")
	ErrExpired          = errors.New("checkout_session_expired")
)

// Signer produces a proof over an arbitrary payload; implemented by the
// merchant-held signing key management layer.
type Signer interface {
	Sign(payload []byte) ap2.Proof
}

// Manager owns CheckoutSession lifecycle transitions and totals
// recomputation.
type Manager struct {
	store  Store
	signer Signer
	ttl    time.Duration
}

func NewManager(store Store, signer Signer) *Manager {
	return &Manager{store: store, signer: signer, ttl: DefaultTTL}
}

// Create opens a new session for subject against merchantDomain.
func (m *Manager) Create(ctx context.Context, subject, merchantDomain string, taxRate float64, now time.Time) (*Session, error) {
	session := Session{
		ID:             "checkout_" + uuid.NewString(),
		Subject:        subject,
		MerchantDomain: merchantDomain,
		Status:         StatusOpen,
		TaxRate:        taxRate,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(m.ttl),
	}
	session.Totals = computeTotals(session)
	if err := m.store.Upsert(ctx, session); err != nil {
		return nil, err
	}
	return &session, nil
}

// loadOpen fetches a session, applying lazy expiration, and requires it to
// still be OPEN for a mutation.
func (m *Manager) loadOpen(ctx context.Context, id string, now time.Time) (*Session, error) {
	session, err := m.loadWithExpiry(ctx, id, now)
	if err != nil {
		return nil, err
	}
	if session.Status != StatusOpen {
		return nil, ErrNotOpen
	}
	return session, nil
}

// loadWithExpiry fetches a session and lazily transitions it to EXPIRED if
// its TTL has lapsed, persisting the transition before returning.
func (m *Manager) loadWithExpiry(ctx context.Context, id string, now time.Time) (*Session, error) {
	session, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNotFound
	}
	if isNonTerminal(session.Status) && !session.ExpiresAt.After(now) {
		session.Status = StatusExpired
		session.UpdatedAt = now
		if err := m.store.Upsert(ctx, *session); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}
	return session, nil
}

// Get returns a session by id, applying lazy expiration but not requiring
// it be OPEN.
func (m *Manager) Get(ctx context.Context, id string, now time.Time) (*Session, error) {
	session, err := m.loadWithExpiry(ctx, id, now)
	if errors.Is(err, ErrExpired) {
		return m.store.Get(ctx, id)
	}
	return session, err
}

// AddLineItem appends a line item to an OPEN session and recomputes totals.
func (m *Manager) AddLineItem(ctx context.Context, id string, item ap2.LineItem, now time.Time) (*Session, error) {
	session, err := m.loadOpen(ctx, id, now)
	if err != nil {
		return nil, err
	}
	session.LineItems = append(session.LineItems, item)
	return m.saveWithTotals(ctx, session, now)
}

// AddDiscount appends a discount to an OPEN session and recomputes totals.
func (m *Manager) AddDiscount(ctx context.Context, id string, discount ap2.Discount, now time.Time) (*Session, error) {
	session, err := m.loadOpen(ctx, id, now)
	if err != nil {
		return nil, err
	}
	session.Discounts = append(session.Discounts, discount)
	return m.saveWithTotals(ctx, session, now)
}

// SetShipping sets the shipping cost on an OPEN session and recomputes
// totals.
func (m *Manager) SetShipping(ctx context.Context, id string, shippingMinor int64, now time.Time) (*Session, error) {
	session, err := m.loadOpen(ctx, id, now)
	if err != nil {
		return nil, err
	}
	session.ShippingMinor = shippingMinor
	return m.saveWithTotals(ctx, session, now)
}

func (m *Manager) saveWithTotals(ctx context.Context, session *Session, now time.Time) (*Session, error) {
	session.Totals = computeTotals(*session)
	session.UpdatedAt = now
	if err := m.store.Upsert(ctx, *session); err != nil {
		return nil, err
	}
	return session, nil
}

// computeTotals applies the §4.4 formula:
// subtotal = Σ lines; taxes = round(subtotal · tax_rate); discounts apply
// to subtotal (percentage vs fixed); total = max(0, subtotal + taxes +
// shipping − Σ discounts).
func computeTotals(session Session) Totals {
	var subtotal int64
	for _, item := range session.LineItems {
		subtotal += int64(item.Quantity) * item.UnitPriceMinor
	}
	taxes := int64(math.Round(float64(subtotal) * session.TaxRate))

	var discountSum int64
	for _, d := range session.Discounts {
		if d.Kind == "percentage" {
			discountSum += (subtotal * d.Value) / 10000
		} else {
			discountSum += d.Value
		}
	}

	total := subtotal + taxes + session.ShippingMinor - discountSum
	if total < 0 {
		total = 0
	}

	return Totals{
		SubtotalMinor: subtotal,
		TaxesMinor:    taxes,
		ShippingMinor: session.ShippingMinor,
		DiscountMinor: discountSum,
		TotalMinor:    total,
	}
}

// Escalate moves an OPEN session to REQUIRES_ESCALATION.
func (m *Manager) Escalate(ctx context.Context, id string, now time.Time) (*Session, error) {
	session, err := m.loadWithExpiry(ctx, id, now)
	if err != nil {
		return nil, err
	}
	if !canTransition(session.Status, StatusRequiresEscalation) {
		return nil, ErrInvalidTransition
	}
	session.Status = StatusRequiresEscalation
	session.UpdatedAt = now
	if err := m.store.Upsert(ctx, *session); err != nil {
		return nil, err
	}
	return session, nil
}

// Resolve moves a REQUIRES_ESCALATION session back to OPEN.
func (m *Manager) Resolve(ctx context.Context, id string, now time.Time) (*Session, error) {
	session, err := m.loadWithExpiry(ctx, id, now)
	if err != nil {
		return nil, err
	}
	if !canTransition(session.Status, StatusOpen) {
		return nil, ErrInvalidTransition
	}
	session.Status = StatusOpen
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(m.ttl)
	if err := m.store.Upsert(ctx, *session); err != nil {
		return nil, err
	}
	return session, nil
}

// Cancel moves an OPEN session to CANCELLED.
func (m *Manager) Cancel(ctx context.Context, id string, now time.Time) (*Session, error) {
	session, err := m.loadWithExpiry(ctx, id, now)
	if err != nil {
		return nil, err
	}
	if !canTransition(session.Status, StatusCancelled) {
		return nil, ErrInvalidTransition
	}
	session.Status = StatusCancelled
	session.UpdatedAt = now
	if err := m.store.Upsert(ctx, *session); err != nil {
		return nil, err
	}
	return session, nil
}

// PaymentOutcome reports a downstream payment attempt's result for a
// PENDING_PAYMENT session.
func (m *Manager) PaymentOutcome(ctx context.Context, id string, ok bool, now time.Time) (*Session, error) {
	session, err := m.loadWithExpiry(ctx, id, now)
	if err != nil {
		return nil, err
	}
	if session.Status != StatusPendingPayment {
		return nil, ErrInvalidTransition
	}
	if ok {
		session.Status = StatusCompleted
	} else {
		session.Status = StatusOpen
		session.ExpiresAt = now.Add(m.ttl)
	}
	session.UpdatedAt = now
	if err := m.store.Upsert(ctx, *session); err != nil {
		return nil, err
	}
	return session, nil
}

// Complete requires a non-empty, non-escalated OPEN session. It generates
// a checkout mandate and a payment mandate in a single atomic step, links
// them cart→checkout→payment, computes the audit hash, and transitions to
// PENDING_PAYMENT.
func (m *Manager) Complete(ctx context.Context, id, chain, token, destination string, expiresAt time.Time, now time.Time) (*Session, *ap2.CheckoutMandate, *ap2.PaymentMandate, error) {
	session, err := m.loadOpen(ctx, id, now)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(session.LineItems) == 0 {
		return nil, nil, nil, ErrEmptyCart
	}

	totals := computeTotals(*session)
	cartMandateID := session.CartMandateID
	if cartMandateID == "" {
		cartMandateID = "mandate_" + uuid.NewString()
	}

	checkout := ap2.CheckoutMandate{
		Base: ap2.Base{
			MandateID: "mandate_" + uuid.NewString(),
			Type:      ap2.MandateTypeCheckout,
			Subject:   session.Subject,
			Issuer:    session.MerchantDomain,
			Purpose:   ap2.PurposeCheckout,
			ExpiresAt: expiresAt,
			Nonce:     uuid.NewString(),
		},
		CartMandateID:         cartMandateID,
		AuthorizedAmountMinor: totals.TotalMinor,
		Currency:              "usd",
	}
	checkout.Proof = m.signer.Sign(mustCanonical(checkout))

	auditHash := ap2.AuditHash(cartMandateID, checkout.MandateID, totals.TotalMinor, chain, token, destination)

	payment := ap2.PaymentMandate{
		Base: ap2.Base{
			MandateID: "mandate_" + uuid.NewString(),
			Type:      ap2.MandateTypePayment,
			Subject:   session.Subject,
			Issuer:    session.MerchantDomain,
			Purpose:   ap2.PurposeCart,
			ExpiresAt: expiresAt,
			Nonce:     uuid.NewString(),
		},
		Chain:       chain,
		Token:       token,
		AmountMinor: totals.TotalMinor,
		Destination: destination,
		Domain:      session.MerchantDomain,
		AuditHash:   auditHash,
	}
	payload, err := ap2.CanonicalPaymentPayload(payment, ap2.CanonPipe)
	if err != nil {
		return nil, nil, nil, err
	}
	payment.Proof = m.signer.Sign(payload)

	session.CartMandateID = cartMandateID
	session.CheckoutMandateID = checkout.MandateID
	session.PaymentMandateID = payment.MandateID
	session.Totals = totals
	session.Status = StatusPendingPayment
	session.UpdatedAt = now
	if err := m.store.Upsert(ctx, *session); err != nil {
		return nil, nil, nil, err
	}
	return session, &checkout, &payment, nil
}

func mustCanonical(m ap2.CheckoutMandate) []byte {
	return []byte(fmt.Sprintf("%s|%s|%s|%d|%s", m.MandateID, m.Subject, m.CartMandateID, m.AuthorizedAmountMinor, m.Currency))
}
