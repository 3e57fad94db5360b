package identity

import "context"

// Store persists agent profiles and their key bindings.
type Store interface {
	UpsertProfile(ctx context.Context, profile AgentProfile) error
	GetProfile(ctx context.Context, agentID string) (*AgentProfile, error)

	AddBinding(ctx context.Context, binding Binding) error
	FindBinding(ctx context.Context, agentID, domain, algorithm string) (*Binding, error)

	SaveAttestation(ctx context.Context, att TrustAttestation) error
	ListAttestations(ctx context.Context, agentID string) ([]TrustAttestation, error)
}
