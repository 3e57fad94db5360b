package trust

import (
	"math"
	"time"

	"github.com/sardis-payments/sardis/internal/identity"
)

// kyaSubScore maps a KYA level to its [0,1] contribution. The spec names
// the 0.30 weight on "KYA level" but leaves the per-level mapping open; we
// space the four levels evenly since each level represents one additional
// verification tier (none < basic < verified < attested).
func kyaSubScore(level identity.KYALevel) float64 {
	switch level {
	case identity.KYANone:
		return 0.0
	case identity.KYABasic:
		return 1.0 / 3.0
	case identity.KYAVerified:
		return 2.0 / 3.0
	case identity.KYAAttested:
		return 1.0
	default:
		return 0.0
	}
}

// HistorySubScore combines success rate, log-scaled volume, merchant
// diversity, and relationship age into the 0.40/0.25/0.20/0.15 weighted
// transaction-history signal, then applies the dispute penalty multiplier
// 1 − 0.5·dispute_ratio.
func HistorySubScore(in HistoryInputs) float64 {
	successComponent := clamp01(in.SuccessRate)

	// log-scaled volume: $0 -> 0, saturating toward 1 around $1M (in minor units).
	volumeComponent := 0.0
	if in.VolumeMinor > 0 {
		volumeComponent = clamp01(math.Log10(float64(in.VolumeMinor)+1) / math.Log10(100_000_000))
	}

	// merchant diversity saturates at 20 distinct counterparties.
	diversityComponent := clamp01(float64(in.MerchantCount) / 20.0)

	// age saturates at 365 days of relationship history.
	ageComponent := clamp01(in.AgeDays / 365.0)

	base := 0.40*successComponent + 0.25*volumeComponent + 0.20*diversityComponent + 0.15*ageComponent
	disputeMultiplier := 1.0 - 0.5*clamp01(in.DisputeRatio)
	return clamp01(base * disputeMultiplier)
}

// ComplianceSubScore is 0 on any active AML/sanctions hit, or within 7 days
// of a recorded violation; otherwise 1.
func ComplianceSubScore(in ComplianceInputs) float64 {
	if in.HasActiveAMLHit {
		return 0.0
	}
	if in.DaysSinceViolation != nil && *in.DaysSinceViolation <= 7 {
		return 0.0
	}
	return 1.0
}

// ReputationSubScore blends the average rating toward 0.5 (no-signal prior)
// when the rating count is below the 50-rating confidence threshold.
func ReputationSubScore(in ReputationInputs) float64 {
	if in.RatingCount <= 0 {
		return 0.5
	}
	confidence := clamp01(float64(in.RatingCount) / 50.0)
	rating := clamp01(in.AverageRating)
	return confidence*rating + (1-confidence)*0.5
}

// BehavioralSubScore maps a goal-drift severity into a [0,1] consistency
// score: no drift alerts is fully consistent, and each alert knocks the
// score down in proportion to its severity.
func BehavioralSubScore(alerts []DriftAlert) float64 {
	if len(alerts) == 0 {
		return 1.0
	}
	penalty := 0.0
	for _, a := range alerts {
		switch a.Severity {
		case DriftCritical:
			penalty += 0.40
		case DriftHigh:
			penalty += 0.25
		case DriftMedium:
			penalty += 0.10
		case DriftLow:
			penalty += 0.03
		}
	}
	return clamp01(1.0 - penalty)
}

// Compute produces the overall weighted score and its tier.
func Compute(weights Weights, level identity.KYALevel, history HistoryInputs, compliance ComplianceInputs, reputation ReputationInputs, alerts []DriftAlert, now time.Time) Score {
	kya := kyaSubScore(level)
	hist := HistorySubScore(history)
	comp := ComplianceSubScore(compliance)
	rep := ReputationSubScore(reputation)
	behav := BehavioralSubScore(alerts)

	value := clamp01(weights.KYA*kya + weights.History*hist + weights.Compliance*comp + weights.Reputation*rep + weights.Behavioral*behav)

	return Score{
		Value: value, Tier: TierFor(value),
		KYAScore: kya, HistoryScore: hist, Compliance: comp, Reputation: rep, Behavioral: behav,
		ComputedAt: now,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
