package trust

import (
	"context"
	"testing"
	"time"

	"github.com/sardis-payments/sardis/internal/identity"
)

func TestTierFor_Thresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  Tier
	}{
		{0.0, TierUntrusted}, {0.29, TierUntrusted}, {0.30, TierLow},
		{0.49, TierLow}, {0.50, TierMedium}, {0.69, TierMedium},
		{0.70, TierHigh}, {0.89, TierHigh}, {0.90, TierSovereign}, {1.0, TierSovereign},
	}
	for _, c := range cases {
		if got := TierFor(c.score); got != c.want {
			t.Errorf("TierFor(%v) = %v, want %v", c.score, got, c.want)
		}
	}
}

func TestDefaultWeights_SumToOne(t *testing.T) {
	w := DefaultWeights()
	if sum := w.Sum(); sum < 0.99 || sum > 1.01 {
		t.Fatalf("weights sum = %v, want ~1.0", sum)
	}
}

func TestHistorySubScore_DisputesReducePenalize(t *testing.T) {
	clean := HistorySubScore(HistoryInputs{SuccessRate: 1.0, VolumeMinor: 1_000_000, MerchantCount: 10, AgeDays: 180})
	disputed := HistorySubScore(HistoryInputs{SuccessRate: 1.0, VolumeMinor: 1_000_000, MerchantCount: 10, AgeDays: 180, DisputeRatio: 0.5})
	if disputed >= clean {
		t.Fatalf("expected dispute ratio to reduce score: clean=%v disputed=%v", clean, disputed)
	}
}

func TestComplianceSubScore_ZeroOnActiveHit(t *testing.T) {
	if got := ComplianceSubScore(ComplianceInputs{HasActiveAMLHit: true}); got != 0 {
		t.Fatalf("got %v, want 0", got)
	}
	recent := 3
	if got := ComplianceSubScore(ComplianceInputs{DaysSinceViolation: &recent}); got != 0 {
		t.Fatalf("got %v, want 0 for recent violation", got)
	}
	if got := ComplianceSubScore(ComplianceInputs{}); got != 1 {
		t.Fatalf("got %v, want 1 for clean record", got)
	}
}

func TestReputationSubScore_LowConfidenceBlendsTowardHalf(t *testing.T) {
	lowConfidence := ReputationSubScore(ReputationInputs{AverageRating: 1.0, RatingCount: 1})
	if lowConfidence >= 1.0 || lowConfidence <= 0.5 {
		t.Fatalf("expected blend between 0.5 and 1.0, got %v", lowConfidence)
	}
	noRatings := ReputationSubScore(ReputationInputs{RatingCount: 0})
	if noRatings != 0.5 {
		t.Fatalf("expected exactly 0.5 with no ratings, got %v", noRatings)
	}
}

func TestCompute_AttestedCleanHistoryReachesHighTier(t *testing.T) {
	score := Compute(DefaultWeights(), identity.KYAAttested,
		HistoryInputs{SuccessRate: 1.0, VolumeMinor: 10_000_000, MerchantCount: 20, AgeDays: 365},
		ComplianceInputs{}, ReputationInputs{AverageRating: 1.0, RatingCount: 100},
		nil, time.Now())
	if score.Tier != TierHigh && score.Tier != TierSovereign {
		t.Fatalf("expected high/sovereign tier for clean attested agent, got %v (score=%v)", score.Tier, score.Value)
	}
}

func TestBuildProfile_EmptyWindowReturnsFalse(t *testing.T) {
	_, ok := BuildProfile("agent_1", nil, 30, time.Now())
	if ok {
		t.Fatal("expected ok=false for empty transaction list")
	}
}

func TestDetectDrift_FlagsMerchantShift(t *testing.T) {
	now := time.Now()
	baseline := SpendingProfile{
		AgentID: "agent_1",
		MerchantDistribution: map[string]float64{"openai.com": 1.0},
		CategoryDistribution: map[string]float64{"api_credits": 1.0},
		TimeDistribution:      map[int]float64{10: 1.0},
		Amounts:               AmountStats{Mean: 100, Std: 10},
		VelocityPerDay:         5,
	}
	recent := SpendingProfile{
		AgentID: "agent_1",
		MerchantDistribution: map[string]float64{"shady-casino.example": 1.0},
		CategoryDistribution: map[string]float64{"api_credits": 1.0},
		TimeDistribution:      map[int]float64{10: 1.0},
		Amounts:               AmountStats{Mean: 100, Std: 10},
		VelocityPerDay:         5,
	}
	alerts := DetectDrift(DefaultConfig(), baseline, recent, now)
	found := false
	for _, a := range alerts {
		if a.Type == DriftMerchantShift {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected merchant_shift alert, got %+v", alerts)
	}
}

func TestDetectDrift_NoAlertsWhenStable(t *testing.T) {
	now := time.Now()
	profile := SpendingProfile{
		AgentID:              "agent_1",
		MerchantDistribution: map[string]float64{"openai.com": 1.0},
		CategoryDistribution: map[string]float64{"api_credits": 1.0},
		TimeDistribution:     map[int]float64{10: 1.0},
		Amounts:              AmountStats{Mean: 100, Std: 10},
		VelocityPerDay:       5,
	}
	alerts := DetectDrift(DefaultConfig(), profile, profile, now)
	if len(alerts) != 0 {
		t.Fatalf("expected no alerts for identical profiles, got %+v", alerts)
	}
}

func TestAssessTransactionRisk_SanctionsHitForcesBlock(t *testing.T) {
	result := AssessTransactionRisk(TransactionRiskInput{
		SubjectID: "agent_1", AmountMinor: 1000, SourceCountry: "US", DestinationCountry: "US",
		Sanctions: &SanctionsResult{IsSanctioned: true},
	})
	if result.OverallScore != 100 || result.RecommendedAction != ActionBlock {
		t.Fatalf("expected forced block at score 100, got %+v", result)
	}
}

func TestAssessTransactionRisk_StandardTransactionApproves(t *testing.T) {
	result := AssessTransactionRisk(TransactionRiskInput{
		SubjectID: "agent_1", AmountMinor: 500, SourceCountry: "US", DestinationCountry: "US",
	})
	if result.RecommendedAction != ActionApprove {
		t.Fatalf("expected approve for small domestic transaction, got %+v", result)
	}
}

func TestEvaluateTrust_ApprovesWithinTierLimit(t *testing.T) {
	requester := Party{
		AgentID: "agent_req", KYALevel: identity.KYAVerified,
		History:    HistoryInputs{SuccessRate: 0.9, VolumeMinor: 500_000, MerchantCount: 5, AgeDays: 90},
		Reputation: ReputationInputs{AverageRating: 0.8, RatingCount: 60},
	}
	counterparty := Party{
		AgentID: "agent_cp", KYALevel: identity.KYAVerified,
		History:    HistoryInputs{SuccessRate: 0.9, VolumeMinor: 500_000, MerchantCount: 5, AgeDays: 90},
		Reputation: ReputationInputs{AverageRating: 0.8, RatingCount: 60},
	}
	eval := EvaluateTrust(context.Background(), Input{
		Requester: requester, Counterparty: counterparty, AmountMinor: 100,
	}, time.Now())
	if !eval.Approved {
		t.Fatalf("expected approval, got %+v", eval)
	}
}

func TestEvaluateTrust_DeniesOverTierLimit(t *testing.T) {
	requester := Party{AgentID: "agent_req", KYALevel: identity.KYANone}
	counterparty := Party{AgentID: "agent_cp", KYALevel: identity.KYANone}
	eval := EvaluateTrust(context.Background(), Input{
		Requester: requester, Counterparty: counterparty, AmountMinor: 100_000_00,
	}, time.Now())
	if eval.Approved || eval.DenialReason != "trust_tier_limit_exceeded" {
		t.Fatalf("expected tier-limit denial, got %+v", eval)
	}
}

func TestEvaluateTrust_DeniesOnComplianceHold(t *testing.T) {
	requester := Party{AgentID: "agent_req", Compliance: ComplianceInputs{HasActiveAMLHit: true}}
	counterparty := Party{AgentID: "agent_cp"}
	eval := EvaluateTrust(context.Background(), Input{
		Requester: requester, Counterparty: counterparty, AmountMinor: 100,
	}, time.Now())
	if eval.Approved || eval.DenialReason != "compliance_hold" {
		t.Fatalf("expected compliance_hold denial, got %+v", eval)
	}
}

func TestMemoryStore_GetOrCompute_CachesWithinTTL(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	calls := 0
	compute := func() Score {
		calls++
		return Score{Value: 0.5, Tier: TierMedium, ComputedAt: now}
	}
	s1, err := GetOrCompute(context.Background(), store, "agent_1", now, compute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s2, err := GetOrCompute(context.Background(), store, "agent_1", now.Add(1*time.Minute), compute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected compute called once, got %d", calls)
	}
	if s1.Value != s2.Value {
		t.Fatalf("expected cached score to match")
	}
}

func TestMemoryStore_GetOrCompute_RecomputesAfterTTL(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	calls := 0
	compute := func() Score {
		calls++
		return Score{Value: 0.5, Tier: TierMedium, ComputedAt: now}
	}
	_, _ = GetOrCompute(context.Background(), store, "agent_1", now, compute)
	_, _ = GetOrCompute(context.Background(), store, "agent_1", now.Add(6*time.Minute), compute)
	if calls != 2 {
		t.Fatalf("expected compute called twice after TTL expiry, got %d", calls)
	}
}
