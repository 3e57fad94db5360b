package treasury

import (
	"context"
	"sync"
	"time"
)

type MemoryStore struct {
	mu       sync.Mutex
	payments map[string]*ACHPaymentRecord // orgID|token
	events   map[string][]ACHEventRecord
	banks    map[string]*ExternalBankAccountRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payments: make(map[string]*ACHPaymentRecord),
		events:   make(map[string][]ACHEventRecord),
		banks:    make(map[string]*ExternalBankAccountRecord),
	}
}

func paymentKey(orgID, token string) string { return orgID + "|" + token }

func (s *MemoryStore) GetACHPayment(ctx context.Context, orgID, paymentToken string) (*ACHPaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentKey(orgID, paymentToken)]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) UpsertACHPayment(ctx context.Context, payment ACHPaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	payment.UpdatedAt = time.Now().UTC()
	p := payment
	s.payments[paymentKey(payment.OrganizationID, payment.PaymentToken)] = &p
	return nil
}

func (s *MemoryStore) UpdateACHPaymentStatus(ctx context.Context, orgID, paymentToken string, status PaymentStatus, result, returnCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentKey(orgID, paymentToken)]
	if !ok {
		return nil
	}
	p.Status = status
	if result != "" {
		p.Result = result
	}
	if returnCode != "" {
		p.ReturnReasonCode = returnCode
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) IncrementRetryCount(ctx context.Context, orgID, paymentToken string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentKey(orgID, paymentToken)]
	if !ok {
		return 0, nil
	}
	p.RetryCount++
	p.UpdatedAt = time.Now().UTC()
	return p.RetryCount, nil
}

func (s *MemoryStore) AppendACHEvents(ctx context.Context, orgID, paymentToken string, events []ACHEventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := paymentKey(orgID, paymentToken)
	s.events[key] = append(s.events[key], events...)
	return nil
}

func (s *MemoryStore) PauseExternalBankAccount(ctx context.Context, orgID, token, reason, returnCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := paymentKey(orgID, token)
	b, ok := s.banks[key]
	if !ok {
		b = &ExternalBankAccountRecord{OrganizationID: orgID, Token: token}
		s.banks[key] = b
	}
	b.IsPaused = true
	b.PauseReason = reason
	b.ReturnCode = returnCode
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) GetExternalBankAccount(ctx context.Context, orgID, token string) (*ExternalBankAccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.banks[paymentKey(orgID, token)]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (s *MemoryStore) SumOrgPaymentsSince(ctx context.Context, orgID string, since time.Time) (int64, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	var count int
	for _, p := range s.payments {
		if p.OrganizationID == orgID && !p.CreatedAt.Before(since) {
			total += p.AmountMinor
			count++
		}
	}
	return total, count, nil
}

func (s *MemoryStore) RecordWebhookEvent(ctx context.Context, provider, eventID string, metadata map[string]any) error {
	return nil
}
