package trust

import (
	"context"
	"math"
	"time"

	"github.com/sardis-payments/sardis/internal/identity"
	"github.com/sardis-payments/sardis/internal/ratelimit"
)

// Party bundles the signals EvaluateTrust needs for one side of a
// transaction.
type Party struct {
	AgentID     string
	KYALevel    identity.KYALevel
	History     HistoryInputs
	Compliance  ComplianceInputs
	Reputation  ReputationInputs
	DriftAlerts []DriftAlert
}

// Evaluation is the evaluate_trust contract: a deterministic decision plus
// the evidence behind it.
type Evaluation struct {
	Approved         bool
	TrustScore       float64
	RequesterTier    Tier
	CounterpartyTier Tier
	DenialReason     string
	Warnings         []string
}

// Input bundles a full evaluate_trust call.
type Input struct {
	Requester            Party
	Counterparty         Party
	AmountMinor          int64
	Operation            string
	RelationshipStrength float64 // [0,1]; > 0.7 is a "strong prior relationship"
	Weights              Weights
	VelocityLimiter      *ratelimit.Limiter // nil disables the velocity-governor check
}

// EvaluateTrust composes KYA level, behavioural history, compliance,
// reputation, and goal-drift signals for both parties into a combined
// trust score, then checks it and the velocity governor against the
// requester's tier limits.
func EvaluateTrust(ctx context.Context, in Input, now time.Time) Evaluation {
	weights := in.Weights
	if weights.Sum() == 0 {
		weights = DefaultWeights()
	}

	requesterScore := Compute(weights, in.Requester.KYALevel, in.Requester.History, in.Requester.Compliance, in.Requester.Reputation, in.Requester.DriftAlerts, now)
	counterpartyScore := Compute(weights, in.Counterparty.KYALevel, in.Counterparty.History, in.Counterparty.Compliance, in.Counterparty.Reputation, in.Counterparty.DriftAlerts, now)

	combined := math.Sqrt(requesterScore.Value * counterpartyScore.Value)
	if in.RelationshipStrength > 0.7 {
		combined = math.Min(1.0, combined*1.1)
	}

	eval := Evaluation{
		TrustScore:       combined,
		RequesterTier:    requesterScore.Tier,
		CounterpartyTier: counterpartyScore.Tier,
	}

	if in.Requester.Compliance.HasActiveAMLHit || in.Counterparty.Compliance.HasActiveAMLHit {
		eval.DenialReason = "compliance_hold"
		return eval
	}

	maxPerTx, _ := requesterScore.Tier.Limits()
	if in.AmountMinor > maxPerTx {
		eval.DenialReason = "trust_tier_limit_exceeded"
		return eval
	}

	if in.VelocityLimiter != nil {
		allowed, reason, err := in.VelocityLimiter.CheckAndIncrement(ctx, in.Requester.AgentID)
		if err != nil {
			eval.DenialReason = "velocity_check_error"
			return eval
		}
		if !allowed {
			eval.DenialReason = reason
			return eval
		}
	}

	for _, alerts := range [][]DriftAlert{in.Requester.DriftAlerts, in.Counterparty.DriftAlerts} {
		for _, a := range alerts {
			if a.Severity == DriftHigh || a.Severity == DriftCritical {
				eval.Warnings = append(eval.Warnings, string(a.Type)+":"+string(a.Severity))
			}
		}
	}

	eval.Approved = true
	return eval
}
