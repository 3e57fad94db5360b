// Package identity implements agent identity binding (the public key an
// agent signs mandates with, bound to its domain) and the Know-Your-Agent
// (KYA) level state machine, grounded on sardis_compliance/kya.py and
// sardis_v2_core/kya_trust_scoring.py's documented level→limit mapping.
package identity

import "time"

// KYALevel gates the amount an agent may authorize unescorted, per
// spec.md §4.2.
type KYALevel string

const (
	KYANone     KYALevel = "none"
	KYABasic    KYALevel = "basic"
	KYAVerified KYALevel = "verified"
	KYAAttested KYALevel = "attested"
)

var kyaRank = map[KYALevel]int{
	KYANone:     0,
	KYABasic:    1,
	KYAVerified: 2,
	KYAAttested: 3,
}

// Rank orders levels for comparison (higher is more verified).
func (l KYALevel) Rank() int { return kyaRank[l] }

// RequiredKYALevel returns the minimum KYA level an agent must hold to
// authorize amountMinor, per spec.md §4.2's ≤$10 BASIC / ≤$1,000 VERIFIED
// / >$1,000 ATTESTED thresholds.
func RequiredKYALevel(amountMinor int64) KYALevel {
	switch {
	case amountMinor <= 1000:
		return KYABasic
	case amountMinor <= 100000:
		return KYAVerified
	default:
		return KYAAttested
	}
}

// Binding is the (agent_id, domain, algorithm, public_key) tuple an
// identity registry confirms before a signature is checked.
type Binding struct {
	AgentID      string `json:"agent_id" bson:"agent_id"`
	Domain       string `json:"domain" bson:"domain"`
	Algorithm    string `json:"algorithm" bson:"algorithm"`
	PublicKeyB64 string `json:"public_key_b64" bson:"public_key_b64"`
}

// AttestationType enumerates the kinds of trust attestation an agent can
// hold, per spec.md §3.
type AttestationType string

const (
	AttestationIdentity   AttestationType = "identity"
	AttestationCapability AttestationType = "capability"
	AttestationCompliance AttestationType = "compliance"
	AttestationCodeAudit  AttestationType = "code_audit"
	AttestationBehavior   AttestationType = "behavior"
	AttestationCounterparty AttestationType = "counterparty"
)

// TrustAttestation is a signed claim about an agent from an issuer.
type TrustAttestation struct {
	ID        string          `json:"id" bson:"_id"`
	AgentID   string          `json:"agent_id" bson:"agent_id"`
	Type      AttestationType `json:"type" bson:"type"`
	IssuerID  string          `json:"issuer_id" bson:"issuer_id"`
	Claim     map[string]any  `json:"claim" bson:"claim"`
	Signature string          `json:"signature" bson:"signature"`
	IssuedAt  time.Time       `json:"issued_at" bson:"issued_at"`
	ExpiresAt time.Time       `json:"expires_at" bson:"expires_at"`
	Revoked   bool            `json:"revoked" bson:"revoked"`
}

// AgentManifest declares an agent's capabilities and spend limits; its
// hash is the canonical binding an AgentProfile references.
type AgentManifest struct {
	AgentID            string         `json:"agent_id" bson:"agent_id"`
	OwnerID            string         `json:"owner_id" bson:"owner_id"`
	Capabilities       []string       `json:"capabilities" bson:"capabilities"`
	MaxBudgetPerTxMinor int64         `json:"max_budget_per_tx_minor" bson:"max_budget_per_tx_minor"`
	DailyBudgetMinor    int64         `json:"daily_budget_minor" bson:"daily_budget_minor"`
	AllowedDomains      []string      `json:"allowed_domains" bson:"allowed_domains"`
	BlockedDomains      []string      `json:"blocked_domains" bson:"blocked_domains"`
	Metadata            map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// AgentProfile is the registry's record of an agent's verification depth,
// capabilities, and cached trust score.
type AgentProfile struct {
	AgentID      string    `json:"agent_id" bson:"_id"`
	OwnerID      string    `json:"owner_id" bson:"owner_id"`
	KYALevel     KYALevel  `json:"kya_level" bson:"kya_level"`
	Capabilities []string  `json:"capabilities" bson:"capabilities"`
	ManifestHash string    `json:"manifest_hash" bson:"manifest_hash"`
	TrustScore   *float64  `json:"trust_score,omitempty" bson:"trust_score,omitempty"`
	ScoreCachedAt time.Time `json:"score_cached_at,omitempty" bson:"score_cached_at,omitempty"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// ScoreStale reports whether the cached trust score has outlived the
// 5-minute TTL from spec.md §4.2.
func (p AgentProfile) ScoreStale(now time.Time) bool {
	return p.TrustScore == nil || now.Sub(p.ScoreCachedAt) > 5*time.Minute
}
