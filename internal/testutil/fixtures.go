package testutil

import (
	"time"
)

// LedgerEntryFixture represents a test audit ledger append.
type LedgerEntryFixture struct {
	Type        string
	Actor       string
	Subject     string
	AmountMinor int64
	Currency    string
	CreatedAt   time.Time
}

// NewLedgerEntryFixture creates a default audit ledger entry for testing.
func NewLedgerEntryFixture() LedgerEntryFixture {
	return LedgerEntryFixture{
		Type:        "payment.settled",
		Actor:       "svc_ledger_test",
		Subject:     "jrny_test0000000000000001",
		AmountMinor: 10000,
		Currency:    "USD",
		CreatedAt:   time.Now().UTC(),
	}
}

// WithType sets the entry type.
func (f LedgerEntryFixture) WithType(entryType string) LedgerEntryFixture {
	f.Type = entryType
	return f
}

// WithSubject sets the entry subject.
func (f LedgerEntryFixture) WithSubject(subject string) LedgerEntryFixture {
	f.Subject = subject
	return f
}

// WithAmountMinor sets the entry amount in minor units.
func (f LedgerEntryFixture) WithAmountMinor(amountMinor int64) LedgerEntryFixture {
	f.AmountMinor = amountMinor
	return f
}

// JourneyFixture represents a test canonical settlement journey.
type JourneyFixture struct {
	OrgID       string
	Rail        string
	ExternalRef string
	AmountMinor int64
	Currency    string
}

// NewJourneyFixture creates a default settlement journey for testing.
func NewJourneyFixture() JourneyFixture {
	return JourneyFixture{
		OrgID:       "org_test_001",
		Rail:        "ach",
		ExternalRef: "ext_ref_test_001",
		AmountMinor: 50000,
		Currency:    "USD",
	}
}

// WithOrgID sets the owning organization.
func (f JourneyFixture) WithOrgID(orgID string) JourneyFixture {
	f.OrgID = orgID
	return f
}

// WithRail sets the settlement rail.
func (f JourneyFixture) WithRail(rail string) JourneyFixture {
	f.Rail = rail
	return f
}

// WithAmountMinor sets the journey amount in minor units.
func (f JourneyFixture) WithAmountMinor(amountMinor int64) JourneyFixture {
	f.AmountMinor = amountMinor
	return f
}

// MandateFixture represents a test AP2 payment mandate.
type MandateFixture struct {
	MandateID   string
	PayerID     string
	PayeeID     string
	AmountMinor int64
	Currency    string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// NewMandateFixture creates a default payment mandate for testing.
func NewMandateFixture() MandateFixture {
	now := time.Now().UTC()
	return MandateFixture{
		MandateID:   "mandate_test_001",
		PayerID:     "agent_payer_test_001",
		PayeeID:     "agent_payee_test_001",
		AmountMinor: 25000,
		Currency:    "USD",
		IssuedAt:    now,
		ExpiresAt:   now.Add(24 * time.Hour),
	}
}

// WithAmountMinor sets the mandate amount in minor units.
func (f MandateFixture) WithAmountMinor(amountMinor int64) MandateFixture {
	f.AmountMinor = amountMinor
	return f
}

// WithExpiresAt sets the mandate expiry.
func (f MandateFixture) WithExpiresAt(expiresAt time.Time) MandateFixture {
	f.ExpiresAt = expiresAt
	return f
}
