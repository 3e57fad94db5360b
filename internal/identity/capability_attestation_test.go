package identity

import (
	"context"
	"testing"

	"github.com/sardis-payments/sardis/internal/agentcard"
)

type fakeCardResolver struct {
	card *agentcard.ResolvedAgentCard
	err  error
}

func (f *fakeCardResolver) Resolve(ctx context.Context, baseURL string) (*agentcard.ResolvedAgentCard, error) {
	return f.card, f.err
}

func cardWithSkills(ids ...string) *agentcard.ResolvedAgentCard {
	skills := make([]agentcard.Skill, 0, len(ids))
	for _, id := range ids {
		skills = append(skills, agentcard.Skill{ID: id, Name: id})
	}
	return &agentcard.ResolvedAgentCard{
		AgentCard: agentcard.AgentCard{
			Name:   "test-agent",
			URL:    "https://agent.example.com",
			Skills: skills,
		},
	}
}

func TestAttestCapabilitiesFromAgentCard_NarrowsToDeclaredSkills(t *testing.T) {
	resolver := &fakeCardResolver{card: cardWithSkills("saas_subscription")}
	profile := AgentProfile{
		AgentID:      "agent_1",
		Capabilities: []string{"saas_subscription", "api_credits"},
	}
	updated, err := AttestCapabilitiesFromAgentCard(context.Background(), resolver, profile, "https://agent.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updated.Capabilities) != 1 || updated.Capabilities[0] != "saas_subscription" {
		t.Fatalf("Capabilities = %v, want only [saas_subscription]", updated.Capabilities)
	}
}

func TestAttestCapabilitiesFromAgentCard_NeverAddsCapabilities(t *testing.T) {
	resolver := &fakeCardResolver{card: cardWithSkills("saas_subscription", "api_credits", "refunds")}
	profile := AgentProfile{AgentID: "agent_1", Capabilities: []string{"saas_subscription"}}
	updated, err := AttestCapabilitiesFromAgentCard(context.Background(), resolver, profile, "https://agent.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updated.Capabilities) != 1 || updated.Capabilities[0] != "saas_subscription" {
		t.Fatalf("Capabilities = %v, want unchanged [saas_subscription]", updated.Capabilities)
	}
}

func TestRegistry_AttestCapabilities_RequiresCardResolver(t *testing.T) {
	store := NewMemoryStore()
	registry := NewRegistry(store)
	_, err := registry.AttestCapabilities(context.Background(), "agent_1", "https://agent.example.com")
	if err == nil {
		t.Fatal("expected error when no card resolver is configured")
	}
}

func TestRegistry_AttestCapabilities_PersistsNarrowedProfile(t *testing.T) {
	store := NewMemoryStore()
	resolver := &fakeCardResolver{card: cardWithSkills("api_credits")}
	registry := NewRegistry(store).WithCardResolver(resolver)

	ctx := context.Background()
	if err := store.UpsertProfile(ctx, AgentProfile{
		AgentID:      "agent_1",
		Capabilities: []string{"saas_subscription", "api_credits"},
	}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	updated, err := registry.AttestCapabilities(ctx, "agent_1", "https://agent.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updated.Capabilities) != 1 || updated.Capabilities[0] != "api_credits" {
		t.Fatalf("Capabilities = %v, want only [api_credits]", updated.Capabilities)
	}

	stored, err := store.GetProfile(ctx, "agent_1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if len(stored.Capabilities) != 1 || stored.Capabilities[0] != "api_credits" {
		t.Fatalf("persisted Capabilities = %v, want only [api_credits]", stored.Capabilities)
	}
}

func TestRegistry_AttestCapabilities_UnknownAgentReturnsNil(t *testing.T) {
	store := NewMemoryStore()
	registry := NewRegistry(store).WithCardResolver(&fakeCardResolver{card: cardWithSkills("api_credits")})
	profile, err := registry.AttestCapabilities(context.Background(), "does_not_exist", "https://agent.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile != nil {
		t.Fatalf("expected nil profile for unknown agent, got %+v", profile)
	}
}
