package budget

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestCreateCycle_FixedSplitsRemainderEqually(t *testing.T) {
	m := NewManager(NewMemoryStore())
	cycle, err := m.CreateCycle(context.Background(), CreateCycleInput{
		OrganizationID: "org_1", Period: PeriodMonthly, TotalBudget: d("1000"), Currency: "USDC",
		Strategy: StrategyFixed,
		Agents: []AgentConfig{
			{AgentID: "a1", FixedAmount: d("400"), HasFixed: true},
			{AgentID: "a2"},
			{AgentID: "a3"},
		},
	})
	if err != nil {
		t.Fatalf("create cycle: %v", err)
	}
	byAgent := map[string]decimal.Decimal{}
	for _, a := range cycle.Allocations {
		byAgent[a.AgentID] = a.AmountMinor
	}
	if !byAgent["a1"].Equal(d("400")) {
		t.Fatalf("a1 = %s, want 400", byAgent["a1"])
	}
	if !byAgent["a2"].Equal(d("300")) || !byAgent["a3"].Equal(d("300")) {
		t.Fatalf("remainder not split equally: a2=%s a3=%s", byAgent["a2"], byAgent["a3"])
	}
}

func TestCreateCycle_ProportionalUsesWeights(t *testing.T) {
	m := NewManager(NewMemoryStore())
	cycle, err := m.CreateCycle(context.Background(), CreateCycleInput{
		OrganizationID: "org_1", Period: PeriodWeekly, TotalBudget: d("100"), Currency: "USDC",
		Strategy: StrategyProportional,
		Agents: []AgentConfig{
			{AgentID: "a1", Weight: d("3"), HasWeight: true},
			{AgentID: "a2", Weight: d("1"), HasWeight: true},
		},
	})
	if err != nil {
		t.Fatalf("create cycle: %v", err)
	}
	var a1, a2 decimal.Decimal
	for _, a := range cycle.Allocations {
		if a.AgentID == "a1" {
			a1 = a.AmountMinor
		} else {
			a2 = a.AmountMinor
		}
	}
	if !a1.Equal(d("75")) || !a2.Equal(d("25")) {
		t.Fatalf("a1=%s a2=%s, want 75/25", a1, a2)
	}
}

func TestCreateCycle_PerformanceBasedFallsBackWithoutHistory(t *testing.T) {
	m := NewManager(NewMemoryStore())
	cycle, err := m.CreateCycle(context.Background(), CreateCycleInput{
		OrganizationID: "org_1", Period: PeriodMonthly, TotalBudget: d("200"), Currency: "USDC",
		Strategy: StrategyPerformanceBased,
		Agents:   []AgentConfig{{AgentID: "a1"}, {AgentID: "a2"}},
	})
	if err != nil {
		t.Fatalf("create cycle: %v", err)
	}
	for _, a := range cycle.Allocations {
		if !a.AmountMinor.Equal(d("100")) {
			t.Fatalf("agent %s = %s, want equal 100 split without history", a.AgentID, a.AmountMinor)
		}
	}
}

func TestCreateCycle_RolloverAddsCappedUnusedToBaseShare(t *testing.T) {
	m := NewManager(NewMemoryStore())
	history := []SpendRecord{
		{AgentID: "a1", AllocatedMinor: d("100"), SpentMinor: d("20")}, // unused 80, cap 25
	}
	cycle, err := m.CreateCycle(context.Background(), CreateCycleInput{
		OrganizationID: "org_1", Period: PeriodMonthly, TotalBudget: d("200"), Currency: "USDC",
		Strategy: StrategyRollover,
		Agents:   []AgentConfig{{AgentID: "a1"}, {AgentID: "a2"}},
		History:  history,
	})
	if err != nil {
		t.Fatalf("create cycle: %v", err)
	}
	byAgent := map[string]decimal.Decimal{}
	for _, a := range cycle.Allocations {
		byAgent[a.AgentID] = a.AmountMinor
	}
	// rollover capped at 25% of 100 = 25; fresh budget = 200-25 = 175, base share 87.5
	if !byAgent["a1"].Equal(d("112.5")) {
		t.Fatalf("a1 = %s, want 112.5", byAgent["a1"])
	}
	if !byAgent["a2"].Equal(d("87.5")) {
		t.Fatalf("a2 = %s, want 87.5", byAgent["a2"])
	}
}

func TestGetCurrentCycle_ReturnsActiveCycleOnly(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store)
	ctx := context.Background()
	cycle, err := m.CreateCycle(ctx, CreateCycleInput{
		OrganizationID: "org_1", Period: PeriodWeekly, TotalBudget: d("10"), Currency: "USDC",
		Strategy: StrategyFixed, Agents: []AgentConfig{{AgentID: "a1"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := m.GetCurrentCycle(ctx, "org_1")
	if err != nil || got == nil {
		t.Fatalf("get current cycle: %v", err)
	}
	if got.CycleID != cycle.CycleID {
		t.Fatalf("got wrong cycle")
	}

	if _, err := m.CloseCycle(ctx, CloseCycleInput{CycleID: cycle.CycleID}); err != nil {
		t.Fatalf("close cycle: %v", err)
	}
	got, err = m.GetCurrentCycle(ctx, "org_1")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected no active cycle after close")
	}
}
