package providers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// MockChainExecutor fabricates a deterministic transaction hash from the
// correlation id instead of submitting to a real chain, satisfying the
// idempotent-on-mandate-id contract for tests and local runs.
type MockChainExecutor struct {
	mu   sync.Mutex
	seen map[string]*ChainSubmission
}

func NewMockChainExecutor() *MockChainExecutor {
	return &MockChainExecutor{seen: make(map[string]*ChainSubmission)}
}

func (m *MockChainExecutor) Submit(ctx context.Context, correlationID string, payload []byte, chain string) (*ChainSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.seen[correlationID]; ok {
		return sub, nil
	}
	sum := sha256.Sum256(append([]byte(correlationID+":"+chain+":"), payload...))
	block := int64(len(m.seen) + 1)
	sub := &ChainSubmission{TxHash: "0x" + hex.EncodeToString(sum[:]), Chain: chain, BlockNumber: &block}
	m.seen[correlationID] = sub
	return sub, nil
}

// MockIdentityRegistry approves any binding registered via Register, and
// denies everything else — mirroring a real registry's closed-world check
// without a network call.
type MockIdentityRegistry struct {
	mu        sync.Mutex
	bindings  map[string]bool
}

func NewMockIdentityRegistry() *MockIdentityRegistry {
	return &MockIdentityRegistry{bindings: make(map[string]bool)}
}

func bindingKey(agentID, domain, publicKey, algorithm string) string {
	return agentID + "|" + domain + "|" + publicKey + "|" + algorithm
}

func (m *MockIdentityRegistry) Register(agentID, domain, publicKey, algorithm string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[bindingKey(agentID, domain, publicKey, algorithm)] = true
}

func (m *MockIdentityRegistry) VerifyBinding(ctx context.Context, agentID, domain, publicKey, algorithm string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bindings[bindingKey(agentID, domain, publicKey, algorithm)], nil
}

// MockFiatRampProvider simulates a single onramp/offramp rail with
// synchronous "completed" sessions, for local runs and tests.
type MockFiatRampProvider struct {
	name       string
	onramp     bool
	offramp    bool
	mu         sync.Mutex
	sessions   map[string]*RampSession
	nextID     int
}

func NewMockFiatRampProvider(name string, onramp, offramp bool) *MockFiatRampProvider {
	return &MockFiatRampProvider{name: name, onramp: onramp, offramp: offramp, sessions: make(map[string]*RampSession)}
}

func (m *MockFiatRampProvider) ProviderName() string  { return m.name }
func (m *MockFiatRampProvider) SupportsOnramp() bool  { return m.onramp }
func (m *MockFiatRampProvider) SupportsOfframp() bool { return m.offramp }

func (m *MockFiatRampProvider) GetQuote(ctx context.Context, amountMinor int64, sourceCurrency, destCurrency, chain string, direction RampDirection) (*RampQuote, error) {
	fee := amountMinor / 200 // 50 bps
	return &RampQuote{
		Provider: m.name, AmountFiatMinor: amountMinor, AmountCryptoMinor: amountMinor - fee,
		FiatCurrency: sourceCurrency, CryptoCurrency: destCurrency, Chain: chain,
		FeeAmountMinor: fee, ExchangeRateMillis: 1000,
		ExpiresAt: time.Now().Add(5 * time.Minute), QuoteID: fmt.Sprintf("quote_%s_%d", m.name, amountMinor),
	}, nil
}

func (m *MockFiatRampProvider) newSession(direction RampDirection, amountFiat, amountCrypto int64, fiatCcy, cryptoCcy, chain, dest string, metadata map[string]any) *RampSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	now := time.Now().UTC()
	s := &RampSession{
		SessionID: fmt.Sprintf("ramp_%s_%d", m.name, m.nextID), Provider: m.name, Direction: direction,
		Status: RampCompleted, AmountFiatMinor: amountFiat, AmountCryptoMinor: amountCrypto,
		FiatCurrency: fiatCcy, CryptoCurrency: cryptoCcy, Chain: chain, DestinationAddress: dest,
		TxHash: fmt.Sprintf("0xmockramp%d", m.nextID), CreatedAt: now, UpdatedAt: now, CompletedAt: &now,
		Metadata: metadata,
	}
	m.sessions[s.SessionID] = s
	return s
}

func (m *MockFiatRampProvider) CreateOnramp(ctx context.Context, amountFiatMinor int64, fiatCurrency, cryptoCurrency, chain, destinationAddress string, metadata map[string]any) (*RampSession, error) {
	fee := amountFiatMinor / 200
	return m.newSession(RampOnramp, amountFiatMinor, amountFiatMinor-fee, fiatCurrency, cryptoCurrency, chain, destinationAddress, metadata), nil
}

func (m *MockFiatRampProvider) CreateOfframp(ctx context.Context, amountCryptoMinor int64, cryptoCurrency, chain, fiatCurrency string, bankAccount map[string]any, metadata map[string]any) (*RampSession, error) {
	fee := amountCryptoMinor / 200
	return m.newSession(RampOfframp, amountCryptoMinor-fee, amountCryptoMinor, fiatCurrency, cryptoCurrency, chain, "", metadata), nil
}

func (m *MockFiatRampProvider) GetStatus(ctx context.Context, sessionID string) (*RampSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("ramp session %q not found", sessionID)
	}
	return s, nil
}

func (m *MockFiatRampProvider) HandleWebhook(ctx context.Context, payload []byte, headers map[string]string) (map[string]any, error) {
	return map[string]any{"received": true}, nil
}

// MockTreasuryProvider is an in-memory Lithic-shaped treasury backend for
// tests and local runs.
type MockTreasuryProvider struct {
	mu       sync.Mutex
	accounts map[string]*FinancialAccount
	banks    map[string]*ExternalBankAccount
	payments map[string]*ACHPayment
	seq      int
}

func NewMockTreasuryProvider() *MockTreasuryProvider {
	return &MockTreasuryProvider{
		accounts: make(map[string]*FinancialAccount),
		banks:    make(map[string]*ExternalBankAccount),
		payments: make(map[string]*ACHPayment),
	}
}

func (m *MockTreasuryProvider) token(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s_%d", prefix, m.seq)
}

func (m *MockTreasuryProvider) CreateFinancialAccount(ctx context.Context, orgID, accountType, currency string) (*FinancialAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &FinancialAccount{Token: m.token("fa"), OrganizationID: orgID, AccountType: accountType, Currency: currency}
	m.accounts[a.Token] = a
	return a, nil
}

func (m *MockTreasuryProvider) GetFinancialAccount(ctx context.Context, token string) (*FinancialAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[token]
	if !ok {
		return nil, fmt.Errorf("financial account %q not found", token)
	}
	return a, nil
}

func (m *MockTreasuryProvider) CreateExternalBankAccount(ctx context.Context, orgID, routingNumber, accountNumber string) (*ExternalBankAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last4 := accountNumber
	if len(last4) > 4 {
		last4 = last4[len(last4)-4:]
	}
	b := &ExternalBankAccount{Token: m.token("eba"), OrganizationID: orgID, RoutingNumber: routingNumber, AccountNumberLast4: last4}
	m.banks[b.Token] = b
	return b, nil
}

func (m *MockTreasuryProvider) VerifyMicroDeposits(ctx context.Context, token string, amountsMinor []int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.banks[token]
	if !ok {
		return false, fmt.Errorf("external bank account %q not found", token)
	}
	if len(amountsMinor) != 2 {
		return false, nil
	}
	now := time.Now().UTC()
	b.VerifiedAt = &now
	return true, nil
}

func (m *MockTreasuryProvider) CreateACHPayment(ctx context.Context, orgID, externalBankAccountToken, direction string, amountMinor int64, currency string) (*ACHPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	p := &ACHPayment{
		Token: m.token("ach"), OrganizationID: orgID, ExternalBankAccountToken: externalBankAccountToken,
		Direction: direction, AmountMinor: amountMinor, Currency: currency, Status: "pending",
		CreatedAt: now, UpdatedAt: now,
	}
	m.payments[p.Token] = p
	return p, nil
}

func (m *MockTreasuryProvider) GetACHPayment(ctx context.Context, token string) (*ACHPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[token]
	if !ok {
		return nil, fmt.Errorf("ach payment %q not found", token)
	}
	return p, nil
}

func (m *MockTreasuryProvider) GetLatestBalance(ctx context.Context, financialAccountToken string) (*BalanceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[financialAccountToken]
	if !ok {
		return nil, fmt.Errorf("financial account %q not found", financialAccountToken)
	}
	return &BalanceSnapshot{FinancialAccountToken: a.Token, BalanceMinor: a.BalanceMinor, AsOf: time.Now().UTC()}, nil
}

// mockInquiryProvider backs MockKYCProvider/MockKYBProvider/MockSanctionsProvider.
type mockInquiryProvider struct {
	mu       sync.Mutex
	inquiries map[string]*Inquiry
	seq      int
}

func newMockInquiryProvider() *mockInquiryProvider {
	return &mockInquiryProvider{inquiries: make(map[string]*Inquiry)}
}

func (m *mockInquiryProvider) create(subjectID string) *Inquiry {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	inq := &Inquiry{InquiryID: fmt.Sprintf("inq_%d", m.seq), SubjectID: subjectID, Status: InquiryApproved, CreatedAt: time.Now().UTC()}
	m.inquiries[inq.InquiryID] = inq
	return inq
}

func (m *mockInquiryProvider) status(inquiryID string) (InquiryStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inq, ok := m.inquiries[inquiryID]
	if !ok {
		return "", fmt.Errorf("inquiry %q not found", inquiryID)
	}
	return inq.Status, nil
}

// MockKYCProvider approves every individual-owner inquiry immediately.
type MockKYCProvider struct{ *mockInquiryProvider }

func NewMockKYCProvider() *MockKYCProvider { return &MockKYCProvider{newMockInquiryProvider()} }

func (m *MockKYCProvider) CreateInquiry(ctx context.Context, subjectID string, metadata map[string]any) (*Inquiry, error) {
	return m.create(subjectID), nil
}
func (m *MockKYCProvider) GetInquiryStatus(ctx context.Context, inquiryID string) (InquiryStatus, error) {
	return m.status(inquiryID)
}
func (m *MockKYCProvider) VerifyWebhookSignature(payload []byte, signature, secret string) bool {
	return verifyMockSignature(payload, signature, secret)
}

// MockKYBProvider approves every business-entity inquiry immediately.
type MockKYBProvider struct{ *mockInquiryProvider }

func NewMockKYBProvider() *MockKYBProvider { return &MockKYBProvider{newMockInquiryProvider()} }

func (m *MockKYBProvider) CreateInquiry(ctx context.Context, businessID string, metadata map[string]any) (*Inquiry, error) {
	return m.create(businessID), nil
}
func (m *MockKYBProvider) GetInquiryStatus(ctx context.Context, inquiryID string) (InquiryStatus, error) {
	return m.status(inquiryID)
}
func (m *MockKYBProvider) VerifyWebhookSignature(payload []byte, signature, secret string) bool {
	return verifyMockSignature(payload, signature, secret)
}

// MockSanctionsProvider never flags a hit; real screening is out of scope.
type MockSanctionsProvider struct{}

func NewMockSanctionsProvider() *MockSanctionsProvider { return &MockSanctionsProvider{} }

func (m *MockSanctionsProvider) Screen(ctx context.Context, subjectID, name, country string) (bool, map[string]any, error) {
	return false, map[string]any{"screened_name": name, "screened_country": country}, nil
}

func verifyMockSignature(payload []byte, signature, secret string) bool {
	sum := sha256.Sum256(append([]byte(secret+":"), payload...))
	return hex.EncodeToString(sum[:]) == signature
}
