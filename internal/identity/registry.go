package identity

import (
	"context"
	"encoding/base64"
)

// Registry resolves and manages agent key bindings and profiles; it
// satisfies ap2.IdentityResolver so the mandate verifier can confirm the
// (agent_id, domain, public_key, algorithm) binding named in spec.md §4.1
// check 11 without importing the identity package's store concretely.
type Registry struct {
	store        Store
	cardResolver CardResolver
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// WithCardResolver attaches a CardResolver so AttestCapabilities can
// cross-check a profile's claimed capabilities against its live agent card.
func (r *Registry) WithCardResolver(resolver CardResolver) *Registry {
	r.cardResolver = resolver
	return r
}

// ResolvePublicKey confirms the binding exists and its stored public key
// matches the one the mandate's proof presented.
func (r *Registry) ResolvePublicKey(ctx context.Context, agentID, domain, algorithm string, publicKey []byte) (bool, error) {
	binding, err := r.store.FindBinding(ctx, agentID, domain, algorithm)
	if err != nil {
		return false, err
	}
	if binding == nil {
		return false, nil
	}
	expected, err := base64.StdEncoding.DecodeString(binding.PublicKeyB64)
	if err != nil {
		return false, err
	}
	if len(expected) != len(publicKey) {
		return false, nil
	}
	for i := range expected {
		if expected[i] != publicKey[i] {
			return false, nil
		}
	}
	return true, nil
}

// Bind registers a new (agent_id, domain, algorithm) -> public_key binding.
func (r *Registry) Bind(ctx context.Context, agentID, domain, algorithm string, publicKey []byte) error {
	return r.store.AddBinding(ctx, Binding{
		AgentID:      agentID,
		Domain:       domain,
		Algorithm:    algorithm,
		PublicKeyB64: base64.StdEncoding.EncodeToString(publicKey),
	})
}

// RegisterAgent upserts a profile with a fresh manifest hash, computing it
// from the manifest per the §3 invariant.
func (r *Registry) RegisterAgent(ctx context.Context, manifest AgentManifest, profile AgentProfile) error {
	profile.ManifestHash = ManifestHash(manifest)
	return r.store.UpsertProfile(ctx, profile)
}

// TransitionKYALevel validates and applies a KYA level change.
func (r *Registry) TransitionKYALevel(ctx context.Context, agentID string, requested KYALevel, evidence TransitionInput) (*AgentProfile, error) {
	profile, err := r.store.GetProfile(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, nil
	}
	evidence.Current = profile.KYALevel
	evidence.Requested = requested
	if err := CheckTransition(evidence); err != nil {
		return nil, err
	}
	updated := *profile
	updated.KYALevel = requested
	if requested == KYANone {
		updated.TrustScore = nil
	}
	if err := r.store.UpsertProfile(ctx, updated); err != nil {
		return nil, err
	}
	return &updated, nil
}
