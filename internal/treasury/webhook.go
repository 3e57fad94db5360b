package treasury

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sardis-payments/sardis/internal/canonledger"
	"github.com/sardis-payments/sardis/internal/replay"
)

var (
	ErrInvalidSignature = errors.New("treasury: invalid webhook signature")
	ErrMissingSignature = errors.New("treasury: missing webhook signature")
	ErrInvalidPayload   = errors.New("treasury: invalid webhook payload")
	ErrPaymentNotFound  = errors.New("treasury: payment not found")
)

// Service processes Lithic-shaped ACH webhook notifications, keeping the
// internal ACH payment record and the canonical cross-rail ledger in sync.
type Service struct {
	store   Store
	ledger  *canonledger.Ledger
	guard   *replay.WebhookGuard
	limits  TreasuryLimits

	// DriftToleranceMinor matches canonledger.Ledger.Ingest's tolerance
	// parameter for settlement events derived from ACH webhooks.
	DriftToleranceMinor int64
}

func NewService(store Store, ledger *canonledger.Ledger, guard *replay.WebhookGuard, limits TreasuryLimits) *Service {
	return &Service{store: store, ledger: ledger, guard: guard, limits: limits, DriftToleranceMinor: 1000}
}

// VerifySignature checks the X-Lithic-HMAC header against HMAC-SHA256(body,
// secret); callers must reject the request on a false return.
func VerifySignature(body []byte, signature, secret string) bool {
	if secret == "" {
		return true
	}
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// EventID extracts the provider-assigned idempotency key for a webhook
// body, falling back to a content hash if the provider omitted one.
func EventID(payload map[string]any, body []byte) string {
	for _, key := range []string{"token", "event_token", "id"} {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// ProcessWebhook applies one ACH webhook body end to end: parses the
// payload, updates the ACH payment record, normalizes the event into the
// canonical ledger, and handles R02/R03/R29 pause vs R01/R09 retry-bump
// return-code branching, per sardis_api/routers/treasury.py's webhook
// handler. Replay protection (7-day TTL) must be applied by the caller via
// Seen before calling ProcessWebhook, mirroring run_with_replay_protection.
func (s *Service) ProcessWebhook(ctx context.Context, body []byte, defaultOrgID string) error {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ErrInvalidPayload
	}

	eventType := strings.ToUpper(stringField(payload, "event_type", "type"))
	data, _ := payload["data"].(map[string]any)
	if data == nil {
		data = payload
	}

	paymentToken := firstNonEmpty(stringField(payload, "payment_token"), stringField(data, "token", "payment_token"))
	if paymentToken == "" {
		return errors.New("treasury: payment_token required")
	}
	orgID := firstNonEmpty(stringField(payload, "organization_id", "org_id"), stringField(data, "organization_id"), defaultOrgID)
	if orgID == "" {
		return errors.New("treasury: organization_id required")
	}

	payment, err := s.store.GetACHPayment(ctx, orgID, paymentToken)
	if err != nil {
		return err
	}
	if payment == nil {
		return ErrPaymentNotFound
	}

	amountMinor := int64Field(payload, "amount")
	if amountMinor == 0 {
		amountMinor = int64Field(data, "amount")
	}
	returnCode := firstNonEmpty(
		stringField(payload, "return_reason_code"),
		stringField(data, "return_reason_code"),
		nestedStringField(data, "method_attributes", "return_reason_code"),
	)
	event := ACHEventRecord{
		Token:            stringField(payload, "event_token", "token"),
		Type:             eventType,
		AmountMinor:      amountMinor,
		Result:           firstNonEmpty(stringField(payload, "result"), stringField(data, "result")),
		ReturnReasonCode: returnCode,
		RawPayload:       payload,
		ReceivedAt:       time.Now().UTC(),
	}
	if err := s.store.AppendACHEvents(ctx, orgID, paymentToken, []ACHEventRecord{event}); err != nil {
		return err
	}

	if s.ledger != nil {
		normalized := normalizeLithicACHEvent(orgID, eventType, paymentToken, amountMinor, returnCode)
		if _, err := s.ledger.Ingest(ctx, normalized, s.DriftToleranceMinor); err != nil {
			return err
		}
	}

	if status, ok := mapEventTypeToStatus(eventType); ok {
		if err := s.store.UpdateACHPaymentStatus(ctx, orgID, paymentToken, status, event.Result, returnCode); err != nil {
			return err
		}
	}

	switch returnCode {
	case "R02", "R03", "R29":
		if payment.ExternalBankAccountToken != "" {
			if err := s.store.PauseExternalBankAccount(ctx, orgID, payment.ExternalBankAccountToken,
				"ACH return code "+returnCode, returnCode); err != nil {
				return err
			}
		}
	case "R01", "R09":
		if _, err := s.store.IncrementRetryCount(ctx, orgID, paymentToken); err != nil {
			return err
		}
		if s.ledger != nil {
			if _, err := s.ledger.BumpRetryCount(ctx, orgID, "fiat_ach", paymentToken, 0); err != nil {
				return err
			}
		}
	}

	return s.store.RecordWebhookEvent(ctx, "lithic", EventID(payload, body), map[string]any{
		"organization_id": orgID,
		"payment_token":   paymentToken,
		"event_type":      eventType,
	})
}

// normalizeLithicACHEvent maps a Lithic ACH webhook event onto the
// canonical ledger's generic IngestEvent shape (canonical_state_machine.py
// is absent from the source pack; the mapping below follows spec.md
// §4.8's ACH-to-canonical-event description directly).
func normalizeLithicACHEvent(orgID, eventType, paymentToken string, amountMinor int64, returnCode string) canonledger.IngestEvent {
	var state canonledger.State
	switch ACHEventType(eventType) {
	case EventOriginationInitiated:
		state = canonledger.StateCreated
	case EventOriginationReviewed, EventOriginationProcessed, EventReceiptProcessed:
		state = canonledger.StateProcessing
	case EventOriginationSettled, EventReceiptSettled, EventOriginationReleased:
		state = canonledger.StateSettled
	case EventReturnInitiated:
		state = canonledger.StateProcessing
	case EventReturnProcessed:
		state = canonledger.StateReturned
	default:
		state = canonledger.StateSubmitted
	}
	var amt *int64
	if amountMinor != 0 {
		amt = &amountMinor
	}
	return canonledger.IngestEvent{
		OrganizationID:     orgID,
		Rail:               "fiat_ach",
		Provider:           "lithic",
		ExternalReference:  paymentToken,
		CanonicalEventType: strings.ToLower(eventType),
		CanonicalState:     state,
		EventTS:            time.Now().UTC(),
		AmountMinor:        amt,
		Currency:           "USD",
		ReturnCode:         returnCode,
	}
}

// EnforceLimits checks a prospective payment against per-payment,
// per-org-daily, and per-org-hourly-count limits.
func (s *Service) EnforceLimits(ctx context.Context, orgID string, amountMinor int64) error {
	if amountMinor > s.limits.MaxPerPaymentMinor {
		return errors.New("treasury: amount exceeds per-payment limit")
	}
	dailyTotal, _, err := s.store.SumOrgPaymentsSince(ctx, orgID, time.Now().Add(-24*time.Hour))
	if err != nil {
		return err
	}
	if dailyTotal+amountMinor > s.limits.MaxDailyOrgMinor {
		return errors.New("treasury: amount would exceed organization daily limit")
	}
	_, hourlyCount, err := s.store.SumOrgPaymentsSince(ctx, orgID, time.Now().Add(-time.Hour))
	if err != nil {
		return err
	}
	if hourlyCount >= s.limits.MaxPaymentsPerHour {
		return errors.New("treasury: organization hourly payment count limit reached")
	}
	return nil
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func nestedStringField(m map[string]any, nestKey, key string) string {
	nested, ok := m[nestKey].(map[string]any)
	if !ok {
		return ""
	}
	return stringField(nested, key)
}

func int64Field(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
