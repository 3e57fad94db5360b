package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Manager orchestrates budget cycle creation, lookup, and closure across
// an organization's agents.
type Manager struct {
	store Store
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// CreateCycleInput is the caller-supplied configuration for a new cycle.
type CreateCycleInput struct {
	OrganizationID string
	Period         Period
	TotalBudget    decimal.Decimal
	Currency       string
	Strategy       AllocationStrategy
	Agents         []AgentConfig
	StartDate      time.Time
	History        []SpendRecord
	RolloverFrom   string
	RolloverAmount decimal.Decimal
}

// CreateCycle computes allocations with the chosen strategy and persists a
// new active BudgetCycle.
func (m *Manager) CreateCycle(ctx context.Context, in CreateCycleInput) (*BudgetCycle, error) {
	start := in.StartDate
	if start.IsZero() {
		now := time.Now().UTC()
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	end := start.Add(periodDuration(in.Period))

	allocated, err := allocate(in.Strategy, in.TotalBudget, in.Agents, in.History)
	if err != nil {
		return nil, err
	}

	cycleID := "cycle_" + uuid.NewString()
	now := time.Now().UTC()
	allocations := make([]BudgetAllocation, 0, len(allocated))
	for _, a := range allocated {
		allocations = append(allocations, BudgetAllocation{
			AllocationID: "alloc_" + uuid.NewString(),
			CycleID:      cycleID,
			AgentID:      a.AgentID,
			AmountMinor:  a.AmountMinor,
			Currency:     in.Currency,
			Period:       in.Period,
			Strategy:     in.Strategy,
			AllocatedAt:  now,
			ExpiresAt:    end,
		})
	}

	cycle := BudgetCycle{
		CycleID:        cycleID,
		OrganizationID: in.OrganizationID,
		Period:         in.Period,
		StartDate:      start,
		EndDate:        end,
		TotalBudget:    in.TotalBudget,
		Currency:       in.Currency,
		Strategy:       in.Strategy,
		Allocations:    allocations,
		Status:         CycleActive,
		RolloverFrom:   in.RolloverFrom,
		RolloverAmount: in.RolloverAmount,
		CreatedAt:      now,
	}
	if cycle.RolloverAmount.IsZero() {
		cycle.RolloverAmount = decimal.Zero
	}
	if err := m.store.InsertCycle(ctx, cycle); err != nil {
		return nil, err
	}
	return &cycle, nil
}

// GetCurrentCycle returns the active cycle covering now, or nil if none.
func (m *Manager) GetCurrentCycle(ctx context.Context, orgID string) (*BudgetCycle, error) {
	return m.store.GetActiveCycle(ctx, orgID, time.Now().UTC())
}

// CloseCycleInput carries actual per-agent spend used to compute rollover
// eligibility for the next cycle.
type CloseCycleInput struct {
	CycleID      string
	SpendByAgent map[string]decimal.Decimal
}

// CloseCycle marks a cycle closed. Callers use the returned cycle's
// allocations plus the supplied spend data as history input to the next
// CreateCycle call when Strategy is rollover.
func (m *Manager) CloseCycle(ctx context.Context, in CloseCycleInput) (*BudgetCycle, error) {
	cycle, err := m.store.GetCycle(ctx, in.CycleID)
	if err != nil {
		return nil, err
	}
	if cycle == nil {
		return nil, fmt.Errorf("budget: cycle %q not found", in.CycleID)
	}
	now := time.Now().UTC()
	cycle.Status = CycleClosed
	cycle.ClosedAt = &now
	if err := m.store.UpdateCycle(ctx, *cycle); err != nil {
		return nil, err
	}
	return cycle, nil
}

// BuildHistory converts a closed cycle's allocations plus observed spend
// into the SpendRecord slice CreateCycle expects for rollover/
// performance-based strategies.
func BuildHistory(cycle BudgetCycle, spendByAgent map[string]decimal.Decimal, valueByAgent map[string]decimal.Decimal) []SpendRecord {
	history := make([]SpendRecord, 0, len(cycle.Allocations))
	for _, a := range cycle.Allocations {
		history = append(history, SpendRecord{
			AgentID:        a.AgentID,
			AllocatedMinor: a.AmountMinor,
			SpentMinor:     spendByAgent[a.AgentID],
			ValueGenerated: valueByAgent[a.AgentID],
		})
	}
	return history
}
