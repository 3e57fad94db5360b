package budget

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryStore struct {
	mu     sync.Mutex
	cycles map[string]*BudgetCycle
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cycles: make(map[string]*BudgetCycle)}
}

func (s *MemoryStore) InsertCycle(ctx context.Context, cycle BudgetCycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cycle
	s.cycles[c.CycleID] = &c
	return nil
}

func (s *MemoryStore) UpdateCycle(ctx context.Context, cycle BudgetCycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cycle
	s.cycles[c.CycleID] = &c
	return nil
}

func (s *MemoryStore) GetCycle(ctx context.Context, cycleID string) (*BudgetCycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cycles[cycleID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) GetActiveCycle(ctx context.Context, orgID string, asOf time.Time) (*BudgetCycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cycles {
		if c.OrganizationID == orgID && c.Status == CycleActive &&
			!asOf.Before(c.StartDate) && !asOf.After(c.EndDate) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListCycles(ctx context.Context, orgID string, limit int) ([]BudgetCycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []BudgetCycle
	for _, c := range s.cycles {
		if c.OrganizationID == orgID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
