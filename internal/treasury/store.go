package treasury

import (
	"context"
	"time"
)

// Store persists ACH payment records, their raw event history, and
// external-bank-account pause state.
type Store interface {
	GetACHPayment(ctx context.Context, orgID, paymentToken string) (*ACHPaymentRecord, error)
	UpsertACHPayment(ctx context.Context, payment ACHPaymentRecord) error
	UpdateACHPaymentStatus(ctx context.Context, orgID, paymentToken string, status PaymentStatus, result, returnCode string) error
	IncrementRetryCount(ctx context.Context, orgID, paymentToken string) (int, error)
	AppendACHEvents(ctx context.Context, orgID, paymentToken string, events []ACHEventRecord) error

	PauseExternalBankAccount(ctx context.Context, orgID, token, reason, returnCode string) error
	GetExternalBankAccount(ctx context.Context, orgID, token string) (*ExternalBankAccountRecord, error)

	// SumOrgPaymentsSince returns the total amount_minor and count of
	// payments created on or after since, for velocity-limit enforcement.
	SumOrgPaymentsSince(ctx context.Context, orgID string, since time.Time) (totalMinor int64, count int, err error)

	// RecordWebhookEvent persists a processed-webhook audit row; it is
	// purely observational (replay protection is handled separately by
	// internal/replay.WebhookGuard).
	RecordWebhookEvent(ctx context.Context, provider, eventID string, metadata map[string]any) error
}
