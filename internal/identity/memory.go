package identity

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu           sync.RWMutex
	profiles     map[string]AgentProfile
	bindings     map[string]Binding // key: agentID|domain|algorithm
	attestations map[string][]TrustAttestation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:     make(map[string]AgentProfile),
		bindings:     make(map[string]Binding),
		attestations: make(map[string][]TrustAttestation),
	}
}

func bindingKey(agentID, domain, algorithm string) string {
	return agentID + "|" + domain + "|" + algorithm
}

func (s *MemoryStore) UpsertProfile(ctx context.Context, profile AgentProfile) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.AgentID] = profile
	return nil
}

func (s *MemoryStore) GetProfile(ctx context.Context, agentID string) (*AgentProfile, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[agentID]
	if !ok {
		return nil, nil
	}
	out := p
	return &out, nil
}

func (s *MemoryStore) AddBinding(ctx context.Context, binding Binding) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[bindingKey(binding.AgentID, binding.Domain, binding.Algorithm)] = binding
	return nil
}

func (s *MemoryStore) FindBinding(ctx context.Context, agentID, domain, algorithm string) (*Binding, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bindings[bindingKey(agentID, domain, algorithm)]
	if !ok {
		return nil, nil
	}
	out := b
	return &out, nil
}

func (s *MemoryStore) SaveAttestation(ctx context.Context, att TrustAttestation) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attestations[att.AgentID] = append(s.attestations[att.AgentID], att)
	return nil
}

func (s *MemoryStore) ListAttestations(ctx context.Context, agentID string) ([]TrustAttestation, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	atts := s.attestations[agentID]
	out := make([]TrustAttestation, len(atts))
	copy(out, atts)
	return out, nil
}
