package budget

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// allocate computes one {agent_id: amount} entry per agent for the given
// strategy; history is only consulted by performance_based and rollover.
func allocate(strategy AllocationStrategy, totalBudget decimal.Decimal, agents []AgentConfig, history []SpendRecord) ([]BudgetAllocation, error) {
	if len(agents) == 0 {
		return nil, nil
	}
	switch strategy {
	case StrategyFixed:
		return allocateFixed(totalBudget, agents)
	case StrategyProportional:
		return allocateProportional(totalBudget, agents)
	case StrategyPerformanceBased:
		return allocatePerformanceBased(totalBudget, agents, history)
	case StrategyRollover:
		return allocateRollover(totalBudget, agents, history)
	default:
		return nil, fmt.Errorf("budget: unknown strategy %q", strategy)
	}
}

func allocateFixed(totalBudget decimal.Decimal, agents []AgentConfig) ([]BudgetAllocation, error) {
	predefinedTotal := decimal.Zero
	var withFixed, withoutFixed []AgentConfig
	for _, a := range agents {
		if a.HasFixed {
			withFixed = append(withFixed, a)
			predefinedTotal = predefinedTotal.Add(a.FixedAmount)
		} else {
			withoutFixed = append(withoutFixed, a)
		}
	}
	var out []BudgetAllocation
	for _, a := range withFixed {
		out = append(out, BudgetAllocation{AgentID: a.AgentID, AmountMinor: a.FixedAmount})
	}
	if len(withoutFixed) > 0 {
		remaining := totalBudget.Sub(predefinedTotal)
		if remaining.IsNegative() {
			return nil, fmt.Errorf("budget: predefined amounts exceed total budget")
		}
		equalShare := remaining.Div(decimal.NewFromInt(int64(len(withoutFixed))))
		for _, a := range withoutFixed {
			out = append(out, BudgetAllocation{AgentID: a.AgentID, AmountMinor: equalShare})
		}
	} else if predefinedTotal.GreaterThan(totalBudget) {
		return nil, fmt.Errorf("budget: predefined amounts exceed total budget")
	}
	return out, nil
}

func allocateProportional(totalBudget decimal.Decimal, agents []AgentConfig) ([]BudgetAllocation, error) {
	totalWeight := decimal.Zero
	for _, a := range agents {
		if !a.HasWeight {
			return nil, fmt.Errorf("budget: agent %s missing required weight", a.AgentID)
		}
		totalWeight = totalWeight.Add(a.Weight)
	}
	if !totalWeight.IsPositive() {
		return nil, fmt.Errorf("budget: total weight must be positive")
	}
	out := make([]BudgetAllocation, 0, len(agents))
	for _, a := range agents {
		proportion := a.Weight.Div(totalWeight)
		out = append(out, BudgetAllocation{AgentID: a.AgentID, AmountMinor: totalBudget.Mul(proportion)})
	}
	return out, nil
}

const minAllocationPct = "0.05"

func allocatePerformanceBased(totalBudget decimal.Decimal, agents []AgentConfig, history []SpendRecord) ([]BudgetAllocation, error) {
	equalAllocation := func() []BudgetAllocation {
		share := totalBudget.Div(decimal.NewFromInt(int64(len(agents))))
		out := make([]BudgetAllocation, 0, len(agents))
		for _, a := range agents {
			out = append(out, BudgetAllocation{AgentID: a.AgentID, AmountMinor: share})
		}
		return out
	}
	if len(history) == 0 {
		return equalAllocation(), nil
	}

	type perf struct{ roi decimal.Decimal }
	performance := make(map[string]perf)
	for _, rec := range history {
		if rec.AgentID == "" {
			continue
		}
		roi := decimal.Zero
		if rec.SpentMinor.IsPositive() {
			roi = rec.ValueGenerated.Div(rec.SpentMinor)
		}
		cur, ok := performance[rec.AgentID]
		if !ok {
			performance[rec.AgentID] = perf{roi: roi}
		} else {
			performance[rec.AgentID] = perf{roi: cur.roi.Add(roi).Div(decimal.NewFromInt(2))}
		}
	}
	totalROI := decimal.Zero
	for _, p := range performance {
		totalROI = totalROI.Add(p.roi)
	}
	if !totalROI.IsPositive() {
		return equalAllocation(), nil
	}

	minPct, _ := decimal.NewFromString(minAllocationPct)
	minAmount := totalBudget.Mul(minPct)
	out := make([]BudgetAllocation, 0, len(agents))
	for _, a := range agents {
		p, ok := performance[a.AgentID]
		amount := minAmount
		if ok {
			roiProportion := p.roi.Div(totalROI)
			candidate := totalBudget.Mul(roiProportion)
			if candidate.GreaterThan(minAmount) {
				amount = candidate
			}
		}
		out = append(out, BudgetAllocation{AgentID: a.AgentID, AmountMinor: amount})
	}

	allocatedTotal := decimal.Zero
	for _, a := range out {
		allocatedTotal = allocatedTotal.Add(a.AmountMinor)
	}
	if allocatedTotal.GreaterThan(totalBudget) {
		scale := totalBudget.Div(allocatedTotal)
		for i := range out {
			out[i].AmountMinor = out[i].AmountMinor.Mul(scale)
		}
	}
	return out, nil
}

const rolloverCapPct = "0.25"

func allocateRollover(totalBudget decimal.Decimal, agents []AgentConfig, history []SpendRecord) ([]BudgetAllocation, error) {
	capPct, _ := decimal.NewFromString(rolloverCapPct)
	rolloverByAgent := make(map[string]decimal.Decimal)
	totalRollover := decimal.Zero
	for _, rec := range history {
		if rec.AgentID == "" {
			continue
		}
		unused := rec.AllocatedMinor.Sub(rec.SpentMinor)
		if !unused.IsPositive() {
			continue
		}
		maxRollover := rec.AllocatedMinor.Mul(capPct)
		rollover := unused
		if rollover.GreaterThan(maxRollover) {
			rollover = maxRollover
		}
		rolloverByAgent[rec.AgentID] = rollover
		totalRollover = totalRollover.Add(rollover)
	}

	freshBudget := totalBudget.Sub(totalRollover)
	if freshBudget.IsNegative() {
		return nil, fmt.Errorf("budget: rollover amount exceeds total budget")
	}
	baseShare := freshBudget.Div(decimal.NewFromInt(int64(len(agents))))

	out := make([]BudgetAllocation, 0, len(agents))
	for _, a := range agents {
		rollover := rolloverByAgent[a.AgentID]
		out = append(out, BudgetAllocation{AgentID: a.AgentID, AmountMinor: baseShare.Add(rollover)})
	}
	return out, nil
}
