// Package trust composes KYA state, a weighted behavioural scorer, a
// goal-drift detector, a velocity governor, and a risk scorer into the
// evaluate_trust call the payment orchestrator uses to gate a transaction
// between two agents.
package trust

import "time"

// Tier buckets a [0,1] trust score into the per-tier spending limits the
// orchestrator enforces.
type Tier string

const (
	TierUntrusted Tier = "untrusted"
	TierLow       Tier = "low"
	TierMedium    Tier = "medium"
	TierHigh      Tier = "high"
	TierSovereign Tier = "sovereign"
)

type tierBound struct {
	tier       Tier
	minScore   float64
	maxPerTx   int64
	maxPerDay  int64
}

// tierTable is ordered by descending minScore so TierFor can return on the
// first bound the score clears.
var tierTable = []tierBound{
	{TierSovereign, 0.90, 5_000_000_00, 10_000_000_00},
	{TierHigh, 0.70, 500_000, 1_000_000},
	{TierMedium, 0.50, 50_000, 100_000},
	{TierLow, 0.30, 5_000, 10_000},
	{TierUntrusted, 0.00, 1_000, 2_500},
}

// TierFor maps a trust score to its tier.
func TierFor(score float64) Tier {
	for _, b := range tierTable {
		if score >= b.minScore {
			return b.tier
		}
	}
	return TierUntrusted
}

// Limits returns the per-transaction and per-day caps (in minor units) for a
// tier.
func (t Tier) Limits() (maxPerTxMinor, maxPerDayMinor int64) {
	for _, b := range tierTable {
		if b.tier == t {
			return b.maxPerTx, b.maxPerDay
		}
	}
	return tierTable[len(tierTable)-1].maxPerTx, tierTable[len(tierTable)-1].maxPerDay
}

// Weights are the five signal weights composing the overall trust score.
// They must sum to 1.0 within a 1e-2 tolerance.
type Weights struct {
	KYA         float64
	History     float64
	Compliance  float64
	Reputation  float64
	Behavioral  float64
}

// DefaultWeights returns the spec's default weighting.
func DefaultWeights() Weights {
	return Weights{KYA: 0.30, History: 0.25, Compliance: 0.20, Reputation: 0.15, Behavioral: 0.10}
}

// Sum returns the sum of all weights, for validating the 1e-2 tolerance.
func (w Weights) Sum() float64 {
	return w.KYA + w.History + w.Compliance + w.Reputation + w.Behavioral
}

// HistoryInputs feeds the transaction-history sub-score.
type HistoryInputs struct {
	SuccessRate    float64 // fraction of transactions that settled cleanly, [0,1]
	VolumeMinor    int64   // lifetime transacted volume
	MerchantCount  int     // distinct merchants/counterparties transacted with
	AgeDays        float64 // age of the agent relationship in days
	DisputeRatio   float64 // disputed / total transactions, [0,1]
}

// ComplianceInputs feeds the compliance sub-score.
type ComplianceInputs struct {
	HasActiveAMLHit     bool
	DaysSinceViolation  *int // nil if no violation on record
}

// ReputationInputs feeds the reputation sub-score.
type ReputationInputs struct {
	AverageRating float64 // [0,1], already normalized
	RatingCount   int
}

// Score is the full decomposition of a computed trust score, retained for
// audit/debugging.
type Score struct {
	Value         float64
	Tier          Tier
	KYAScore      float64
	HistoryScore  float64
	Compliance    float64
	Reputation    float64
	Behavioral    float64
	ComputedAt    time.Time
}

// CacheEntry is a cached Score with a TTL, per spec.md's "5-minute TTL,
// invalidated on any state change".
type CacheEntry struct {
	AgentID   string
	Score     Score
	ExpiresAt time.Time
}

const ScoreCacheTTL = 5 * time.Minute

func (c CacheEntry) Stale(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
