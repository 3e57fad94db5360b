// Package treasury ingests Lithic-shaped ACH webhook events into the
// fiat-rail payment lifecycle, normalizes them into canonical-ledger
// events, and enforces per-payment/per-org/velocity limits, grounded on
// sardis_api/routers/treasury.py.
package treasury

import "time"

// ACHEventType is the Lithic event_type string for an ACH payment
// lifecycle notification.
type ACHEventType string

const (
	EventOriginationInitiated ACHEventType = "ACH_ORIGINATION_INITIATED"
	EventOriginationReviewed  ACHEventType = "ACH_ORIGINATION_REVIEWED"
	EventOriginationProcessed ACHEventType = "ACH_ORIGINATION_PROCESSED"
	EventOriginationSettled   ACHEventType = "ACH_ORIGINATION_SETTLED"
	EventOriginationReleased  ACHEventType = "ACH_ORIGINATION_RELEASED"
	EventReturnInitiated      ACHEventType = "ACH_RETURN_INITIATED"
	EventReturnProcessed      ACHEventType = "ACH_RETURN_PROCESSED"
	EventReceiptProcessed     ACHEventType = "ACH_RECEIPT_PROCESSED"
	EventReceiptSettled       ACHEventType = "ACH_RECEIPT_SETTLED"
)

// PaymentStatus is the internally tracked ACH payment lifecycle status,
// mapped from ACHEventType by mapEventTypeToStatus.
type PaymentStatus string

const (
	PaymentPending         PaymentStatus = "PENDING"
	PaymentReviewed        PaymentStatus = "REVIEWED"
	PaymentProcessed       PaymentStatus = "PROCESSED"
	PaymentSettled         PaymentStatus = "SETTLED"
	PaymentReleased        PaymentStatus = "RELEASED"
	PaymentReturnInitiated PaymentStatus = "RETURN_INITIATED"
	PaymentReturned        PaymentStatus = "RETURNED"
)

// ACHPaymentRecord is the internal record of one ACH collection or
// withdrawal, kept in sync with the provider via webhook events.
type ACHPaymentRecord struct {
	OrganizationID           string        `json:"organization_id" bson:"organization_id"`
	PaymentToken             string        `json:"payment_token" bson:"_id"`
	ExternalBankAccountToken string        `json:"external_bank_account_token" bson:"external_bank_account_token"`
	Direction                string        `json:"direction" bson:"direction"` // collection|withdrawal
	AmountMinor              int64         `json:"amount_minor" bson:"amount_minor"`
	Currency                 string        `json:"currency" bson:"currency"`
	Status                   PaymentStatus `json:"status" bson:"status"`
	Result                   string        `json:"result,omitempty" bson:"result,omitempty"`
	ReturnReasonCode         string        `json:"return_reason_code,omitempty" bson:"return_reason_code,omitempty"`
	RetryCount               int           `json:"retry_count" bson:"retry_count"`
	CreatedAt                time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt                time.Time     `json:"updated_at" bson:"updated_at"`
}

// ACHEventRecord is one raw webhook event appended to a payment's history.
type ACHEventRecord struct {
	Token            string         `json:"token,omitempty" bson:"token,omitempty"`
	Type             string         `json:"type" bson:"type"`
	AmountMinor      int64          `json:"amount_minor" bson:"amount_minor"`
	Result           string         `json:"result,omitempty" bson:"result,omitempty"`
	DetailedResults  []string       `json:"detailed_results,omitempty" bson:"detailed_results,omitempty"`
	ReturnReasonCode string         `json:"return_reason_code,omitempty" bson:"return_reason_code,omitempty"`
	RawPayload       map[string]any `json:"raw_payload,omitempty" bson:"raw_payload,omitempty"`
	ReceivedAt       time.Time      `json:"received_at" bson:"received_at"`
}

// ExternalBankAccountRecord tracks pause state driven by ACH return codes.
type ExternalBankAccountRecord struct {
	OrganizationID string    `json:"organization_id" bson:"organization_id"`
	Token          string    `json:"token" bson:"_id"`
	IsPaused       bool      `json:"is_paused" bson:"is_paused"`
	PauseReason    string    `json:"pause_reason,omitempty" bson:"pause_reason,omitempty"`
	ReturnCode     string    `json:"return_code,omitempty" bson:"return_code,omitempty"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

// TreasuryLimits bounds a single payment, an org's daily volume, and an
// org's hourly payment count, per spec.md §6 velocity-limit prose.
type TreasuryLimits struct {
	MaxPerPaymentMinor  int64
	MaxDailyOrgMinor    int64
	MaxPaymentsPerHour  int
}

func DefaultTreasuryLimits() TreasuryLimits {
	return TreasuryLimits{
		MaxPerPaymentMinor: 250_000_000,   // $2.5m
		MaxDailyOrgMinor:   1_000_000_000, // $10m/day
		MaxPaymentsPerHour: 300,
	}
}

// mapEventTypeToStatus mirrors _map_event_type_to_status's lookup table.
func mapEventTypeToStatus(eventType string) (PaymentStatus, bool) {
	switch ACHEventType(eventType) {
	case EventOriginationInitiated:
		return PaymentPending, true
	case EventOriginationReviewed:
		return PaymentReviewed, true
	case EventOriginationProcessed, EventReceiptProcessed:
		return PaymentProcessed, true
	case EventOriginationSettled, EventReceiptSettled:
		return PaymentSettled, true
	case EventOriginationReleased:
		return PaymentReleased, true
	case EventReturnInitiated:
		return PaymentReturnInitiated, true
	case EventReturnProcessed:
		return PaymentReturned, true
	default:
		return "", false
	}
}
