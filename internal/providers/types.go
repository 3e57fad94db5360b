// Package providers defines the capability-interface contracts for the
// platform's injected collaborators — chain execution, identity binding
// verification, fiat ramps, treasury rails, and KYC/KYB/sanctions checks —
// per spec.md §6 and §9's "dynamic dispatch" design note. Only mock
// implementations live here; concrete provider integrations (Bridge,
// Coinbase Onramp, Lithic, Persona, iDenfy, Scorechain) are named but out
// of scope per spec.md §1.
package providers

import (
	"context"
	"time"
)

// ChainExecutor submits a payment mandate (or, for the audit ledger, a
// Merkle root) to a blockchain and must be idempotent on the supplied
// correlation id.
type ChainExecutor interface {
	Submit(ctx context.Context, correlationID string, payload []byte, chain string) (*ChainSubmission, error)
}

// ChainSubmission is the result of a ChainExecutor.Submit call.
type ChainSubmission struct {
	TxHash      string
	Chain       string
	BlockNumber *int64
}

// IdentityRegistry verifies that an agent's (domain, public key, algorithm)
// binding is registered, gating mandate signature verification.
type IdentityRegistry interface {
	VerifyBinding(ctx context.Context, agentID, domain, publicKey, algorithm string) (bool, error)
}

// RampDirection distinguishes fiat-to-crypto from crypto-to-fiat flows.
type RampDirection string

const (
	RampOnramp  RampDirection = "onramp"
	RampOfframp RampDirection = "offramp"
)

// RampStatus mirrors the provider-reported lifecycle of a ramp session.
type RampStatus string

const (
	RampPending    RampStatus = "pending"
	RampProcessing RampStatus = "processing"
	RampCompleted  RampStatus = "completed"
	RampFailed     RampStatus = "failed"
	RampExpired    RampStatus = "expired"
)

// RampQuote is a priced estimate for an on-ramp/off-ramp operation.
type RampQuote struct {
	Provider             string
	AmountFiatMinor      int64
	AmountCryptoMinor    int64
	FiatCurrency         string
	CryptoCurrency       string
	Chain                string
	FeeAmountMinor       int64
	ExchangeRateMillis   int64 // exchange rate * 1000 to avoid float
	ExpiresAt            time.Time
	EstimatedCompletion  *time.Time
	QuoteID              string
}

// RampSession is an active on-ramp or off-ramp flow.
type RampSession struct {
	SessionID          string
	Provider           string
	Direction          RampDirection
	Status             RampStatus
	AmountFiatMinor    int64
	AmountCryptoMinor  int64
	FiatCurrency       string
	CryptoCurrency     string
	Chain              string
	DestinationAddress string
	PaymentURL         string
	TxHash             string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CompletedAt        *time.Time
	Metadata           map[string]any
}

// FiatRampProvider is the capability interface for onramp/offramp rails.
type FiatRampProvider interface {
	ProviderName() string
	SupportsOnramp() bool
	SupportsOfframp() bool
	GetQuote(ctx context.Context, amountMinor int64, sourceCurrency, destCurrency, chain string, direction RampDirection) (*RampQuote, error)
	CreateOnramp(ctx context.Context, amountFiatMinor int64, fiatCurrency, cryptoCurrency, chain, destinationAddress string, metadata map[string]any) (*RampSession, error)
	CreateOfframp(ctx context.Context, amountCryptoMinor int64, cryptoCurrency, chain, fiatCurrency string, bankAccount map[string]any, metadata map[string]any) (*RampSession, error)
	GetStatus(ctx context.Context, sessionID string) (*RampSession, error)
	HandleWebhook(ctx context.Context, payload []byte, headers map[string]string) (map[string]any, error)
}

// FinancialAccount is a treasury-held account balance record.
type FinancialAccount struct {
	Token          string
	OrganizationID string
	AccountType    string
	Currency       string
	BalanceMinor   int64
	Metadata       map[string]any
}

// ExternalBankAccount is a linked bank account verified by micro-deposit.
type ExternalBankAccount struct {
	Token                 string
	OrganizationID        string
	RoutingNumber         string
	AccountNumberLast4    string
	IsPaused              bool
	PauseReason           string
	LastReturnReasonCode  string
	VerifiedAt            *time.Time
}

// ACHPayment is a single ACH collection or withdrawal.
type ACHPayment struct {
	Token                    string
	OrganizationID           string
	ExternalBankAccountToken string
	Direction                string // collection|withdrawal
	AmountMinor              int64
	Currency                 string
	Status                   string
	RetryCount               int
	ResultCode               string
	ReturnReasonCode         string
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// BalanceSnapshot is a point-in-time balance reading for reconciliation.
type BalanceSnapshot struct {
	FinancialAccountToken string
	BalanceMinor          int64
	AsOf                  time.Time
}

// TreasuryProvider is the capability interface for the bank-rail treasury
// backend (Lithic-shaped per spec.md §4.8/§6).
type TreasuryProvider interface {
	CreateFinancialAccount(ctx context.Context, orgID, accountType, currency string) (*FinancialAccount, error)
	GetFinancialAccount(ctx context.Context, token string) (*FinancialAccount, error)
	CreateExternalBankAccount(ctx context.Context, orgID, routingNumber, accountNumber string) (*ExternalBankAccount, error)
	VerifyMicroDeposits(ctx context.Context, token string, amountsMinor []int64) (bool, error)
	CreateACHPayment(ctx context.Context, orgID, externalBankAccountToken, direction string, amountMinor int64, currency string) (*ACHPayment, error)
	GetACHPayment(ctx context.Context, token string) (*ACHPayment, error)
	GetLatestBalance(ctx context.Context, financialAccountToken string) (*BalanceSnapshot, error)
}

// InquiryStatus is the lifecycle state of a KYC/KYB/sanctions inquiry.
type InquiryStatus string

const (
	InquiryPending  InquiryStatus = "pending"
	InquiryApproved InquiryStatus = "approved"
	InquiryDeclined InquiryStatus = "declined"
	InquiryExpired  InquiryStatus = "expired"
)

// Inquiry is a single identity/compliance check in flight.
type Inquiry struct {
	InquiryID string
	SubjectID string
	Status    InquiryStatus
	Reference string
	CreatedAt time.Time
}

// KYCProvider verifies individual owner identity (Persona/iDenfy-shaped).
type KYCProvider interface {
	CreateInquiry(ctx context.Context, subjectID string, metadata map[string]any) (*Inquiry, error)
	GetInquiryStatus(ctx context.Context, inquiryID string) (InquiryStatus, error)
	VerifyWebhookSignature(payload []byte, signature, secret string) bool
}

// KYBProvider verifies business-entity identity.
type KYBProvider interface {
	CreateInquiry(ctx context.Context, businessID string, metadata map[string]any) (*Inquiry, error)
	GetInquiryStatus(ctx context.Context, inquiryID string) (InquiryStatus, error)
	VerifyWebhookSignature(payload []byte, signature, secret string) bool
}

// SanctionsProvider screens a subject against sanctions/PEP lists
// (Scorechain-shaped).
type SanctionsProvider interface {
	Screen(ctx context.Context, subjectID, name, country string) (hit bool, details map[string]any, err error)
}
