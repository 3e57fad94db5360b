package identity

import (
	"context"
	"testing"
)

func TestManifestHash_Deterministic(t *testing.T) {
	m := AgentManifest{
		AgentID:             "agent_1",
		OwnerID:             "org_1",
		Capabilities:        []string{"saas_subscription", "api_credits"},
		MaxBudgetPerTxMinor: 5000,
		DailyBudgetMinor:    20000,
		AllowedDomains:      []string{"openai.com", "anthropic.com"},
	}
	h1 := ManifestHash(m)
	h2 := ManifestHash(m)
	if h1 != h2 {
		t.Fatalf("ManifestHash() not deterministic: %s != %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("ManifestHash() length = %d, want 64 (hex sha256)", len(h1))
	}
}

func TestManifestHash_OrderIndependentOfFieldOrder(t *testing.T) {
	a := AgentManifest{AgentID: "x", AllowedDomains: []string{"a.com", "b.com"}}
	b := AgentManifest{AgentID: "x", AllowedDomains: []string{"a.com", "b.com"}}
	if ManifestHash(a) != ManifestHash(b) {
		t.Fatal("identical manifests produced different hashes")
	}
}

func TestRequiredKYALevel_Thresholds(t *testing.T) {
	cases := []struct {
		amount int64
		want   KYALevel
	}{
		{500, KYABasic},
		{1000, KYABasic},
		{1001, KYAVerified},
		{100000, KYAVerified},
		{100001, KYAAttested},
	}
	for _, c := range cases {
		if got := RequiredKYALevel(c.amount); got != c.want {
			t.Errorf("RequiredKYALevel(%d) = %v, want %v", c.amount, got, c.want)
		}
	}
}

func TestCheckTransition_VerifiedRequiresAnchorVerification(t *testing.T) {
	err := CheckTransition(TransitionInput{Current: KYABasic, Requested: KYAVerified, HasAnchorVerification: false})
	if err == nil {
		t.Fatal("expected error when anchor verification missing")
	}
	err = CheckTransition(TransitionInput{Current: KYABasic, Requested: KYAVerified, HasAnchorVerification: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckTransition_AttestedRequiresCodeAttestationAndScore(t *testing.T) {
	err := CheckTransition(TransitionInput{
		Current: KYAVerified, Requested: KYAAttested,
		HasCodeAttestation: true, CurrentTrustScore: 0.5,
	})
	if err == nil {
		t.Fatal("expected error when trust score below 0.7")
	}
	err = CheckTransition(TransitionInput{
		Current: KYAVerified, Requested: KYAAttested,
		HasCodeAttestation: true, CurrentTrustScore: 0.75,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckTransition_DowngradeMustStepOneLevel(t *testing.T) {
	err := CheckTransition(TransitionInput{Current: KYAAttested, Requested: KYABasic})
	if err == nil {
		t.Fatal("expected error for multi-level downgrade")
	}
	err = CheckTransition(TransitionInput{Current: KYAAttested, Requested: KYAVerified})
	if err != nil {
		t.Fatalf("unexpected error for single-level downgrade: %v", err)
	}
}

func TestCheckTransition_RevocationAlwaysPermitted(t *testing.T) {
	err := CheckTransition(TransitionInput{Current: KYAAttested, Requested: KYANone})
	if err != nil {
		t.Fatalf("expected revocation to always succeed: %v", err)
	}
}

func TestRegistry_BindThenResolvePublicKey(t *testing.T) {
	reg := NewRegistry(NewMemoryStore())
	ctx := context.Background()
	pubKey := []byte{1, 2, 3, 4}

	if err := reg.Bind(ctx, "agent_1", "merchant.example", "ed25519", pubKey); err != nil {
		t.Fatalf("Bind() error: %v", err)
	}

	ok, err := reg.ResolvePublicKey(ctx, "agent_1", "merchant.example", "ed25519", pubKey)
	if err != nil {
		t.Fatalf("ResolvePublicKey() error: %v", err)
	}
	if !ok {
		t.Fatal("expected binding to resolve")
	}

	ok, err = reg.ResolvePublicKey(ctx, "agent_1", "merchant.example", "ed25519", []byte{9, 9, 9, 9})
	if err != nil {
		t.Fatalf("ResolvePublicKey() error: %v", err)
	}
	if ok {
		t.Fatal("expected mismatched public key to fail resolution")
	}
}

func TestRegistry_TransitionKYALevelAppliesGuard(t *testing.T) {
	store := NewMemoryStore()
	reg := NewRegistry(store)
	ctx := context.Background()

	_ = store.UpsertProfile(ctx, AgentProfile{AgentID: "agent_1", KYALevel: KYABasic})

	_, err := reg.TransitionKYALevel(ctx, "agent_1", KYAVerified, TransitionInput{HasAnchorVerification: false})
	if err == nil {
		t.Fatal("expected transition to be rejected without anchor verification")
	}

	updated, err := reg.TransitionKYALevel(ctx, "agent_1", KYAVerified, TransitionInput{HasAnchorVerification: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.KYALevel != KYAVerified {
		t.Fatalf("KYALevel = %v, want verified", updated.KYALevel)
	}
}
