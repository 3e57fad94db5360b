package budget

import (
	"context"
	"time"
)

// Store persists budget cycles and their allocations.
type Store interface {
	InsertCycle(ctx context.Context, cycle BudgetCycle) error
	UpdateCycle(ctx context.Context, cycle BudgetCycle) error
	GetCycle(ctx context.Context, cycleID string) (*BudgetCycle, error)

	// GetActiveCycle returns the active cycle for orgID whose
	// [start_date, end_date] window contains asOf, or nil.
	GetActiveCycle(ctx context.Context, orgID string, asOf time.Time) (*BudgetCycle, error)

	ListCycles(ctx context.Context, orgID string, limit int) ([]BudgetCycle, error)
}
