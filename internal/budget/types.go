// Package budget implements per-organization agent spending cycles and
// the four allocation strategies (fixed, proportional, performance-based,
// rollover), grounded on budget_allocator.py. Allocation math uses
// shopspring/decimal since ratio splits need exact decimal division that
// integer minor units cannot express without repeated rounding.
package budget

import (
	"time"

	"github.com/shopspring/decimal"
)

// AllocationStrategy selects how a cycle's total budget is split across
// agents.
type AllocationStrategy string

const (
	StrategyFixed             AllocationStrategy = "fixed"
	StrategyProportional      AllocationStrategy = "proportional"
	StrategyPerformanceBased  AllocationStrategy = "performance_based"
	StrategyRollover          AllocationStrategy = "rollover"
)

// Period is a budget cycle's cadence.
type Period string

const (
	PeriodWeekly    Period = "weekly"
	PeriodMonthly   Period = "monthly"
	PeriodQuarterly Period = "quarterly"
)

// CycleStatus is a BudgetCycle's lifecycle state.
type CycleStatus string

const (
	CycleActive CycleStatus = "active"
	CycleClosed CycleStatus = "closed"
)

// AgentConfig is one agent's allocation input: a weight for proportional
// allocation, a fixed amount for fixed allocation, or neither (equal
// split / performance-based fallback).
type AgentConfig struct {
	AgentID      string
	Weight       decimal.Decimal
	HasWeight    bool
	FixedAmount  decimal.Decimal
	HasFixed     bool
}

// SpendRecord is one agent's historical spend/value-generated datum, fed
// to the performance-based and rollover strategies.
type SpendRecord struct {
	AgentID        string
	AllocatedMinor decimal.Decimal
	SpentMinor     decimal.Decimal
	ValueGenerated decimal.Decimal
}

// BudgetAllocation is one agent's share of a cycle's total budget.
type BudgetAllocation struct {
	AllocationID string             `json:"allocation_id" bson:"_id"`
	CycleID      string             `json:"cycle_id" bson:"cycle_id"`
	AgentID      string             `json:"agent_id" bson:"agent_id"`
	AmountMinor  decimal.Decimal    `json:"amount_minor" bson:"amount_minor"`
	Currency     string             `json:"currency" bson:"currency"`
	Period       Period             `json:"period" bson:"period"`
	Strategy     AllocationStrategy `json:"strategy" bson:"strategy"`
	AllocatedAt  time.Time          `json:"allocated_at" bson:"allocated_at"`
	ExpiresAt    time.Time          `json:"expires_at" bson:"expires_at"`
}

// BudgetCycle is one organization's budget period, holding its per-agent
// allocations.
type BudgetCycle struct {
	CycleID        string             `json:"cycle_id" bson:"_id"`
	OrganizationID string             `json:"organization_id" bson:"organization_id"`
	Period         Period             `json:"period" bson:"period"`
	StartDate      time.Time          `json:"start_date" bson:"start_date"`
	EndDate        time.Time          `json:"end_date" bson:"end_date"`
	TotalBudget    decimal.Decimal    `json:"total_budget" bson:"total_budget"`
	Currency       string             `json:"currency" bson:"currency"`
	Strategy       AllocationStrategy `json:"strategy" bson:"strategy"`
	Allocations    []BudgetAllocation `json:"allocations" bson:"allocations"`
	Status         CycleStatus        `json:"status" bson:"status"`
	RolloverFrom   string             `json:"rollover_from,omitempty" bson:"rollover_from,omitempty"`
	RolloverAmount decimal.Decimal    `json:"rollover_amount" bson:"rollover_amount"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	ClosedAt       *time.Time         `json:"closed_at,omitempty" bson:"closed_at,omitempty"`
}

func periodDuration(period Period) time.Duration {
	switch period {
	case PeriodWeekly:
		return 7 * 24 * time.Hour
	case PeriodMonthly:
		return 30 * 24 * time.Hour
	case PeriodQuarterly:
		return 90 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}
