package identity

import (
	"context"
	"fmt"

	"github.com/sardis-payments/sardis/internal/agentcard"
)

// CardResolver fetches and validates a counterparty's published A2A agent
// card. Satisfied by *agentcard.Resolver; narrowed to an interface so this
// package doesn't need a concrete HTTP dependency to stay testable.
type CardResolver interface {
	Resolve(ctx context.Context, baseURL string) (*agentcard.ResolvedAgentCard, error)
}

// AttestCapabilitiesFromAgentCard cross-checks the capability set a profile
// claims at registration against the skills the agent's own published
// agent card (at cardURL) actually declares, per spec.md §3's capability
// attestation: only a capability both the manifest and a live, fetched card
// agree on is trustworthy. Capabilities claimed in the profile but absent
// from the card are dropped, never added to — the card can only narrow.
func AttestCapabilitiesFromAgentCard(ctx context.Context, resolver CardResolver, profile AgentProfile, cardURL string) (AgentProfile, error) {
	card, err := resolver.Resolve(ctx, cardURL)
	if err != nil {
		return profile, fmt.Errorf("resolve agent card: %w", err)
	}
	declared := make(map[string]bool, len(card.Skills))
	for _, id := range card.DeclaredCapabilityIDs() {
		declared[id] = true
	}
	attested := make([]string, 0, len(profile.Capabilities))
	for _, c := range profile.Capabilities {
		if declared[c] {
			attested = append(attested, c)
		}
	}
	profile.Capabilities = attested
	return profile, nil
}

// AttestCapabilities resolves agentID's profile, narrows its capability
// claims against its published agent card, and persists the result.
func (r *Registry) AttestCapabilities(ctx context.Context, agentID, cardURL string) (*AgentProfile, error) {
	if r.cardResolver == nil {
		return nil, fmt.Errorf("identity registry has no card resolver configured")
	}
	profile, err := r.store.GetProfile(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, nil
	}
	updated, err := AttestCapabilitiesFromAgentCard(ctx, r.cardResolver, *profile, cardURL)
	if err != nil {
		return nil, err
	}
	if err := r.store.UpsertProfile(ctx, updated); err != nil {
		return nil, err
	}
	return &updated, nil
}
