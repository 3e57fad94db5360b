package org

import (
	"context"
	"testing"
)

func newTestManager() *Manager {
	return NewManager(NewMemoryStore())
}

func TestCreateOrg_RejectsDuplicateSlug(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, err := m.CreateOrg(ctx, "Acme", "acme", PlanFree, "billing@acme.test"); err != nil {
		t.Fatalf("CreateOrg: %v", err)
	}
	if _, err := m.CreateOrg(ctx, "Acme Two", "acme", PlanPro, "billing2@acme.test"); err != ErrSlugExists {
		t.Fatalf("expected ErrSlugExists, got %v", err)
	}
}

func TestCreateTeam_RejectsUnknownParent(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	o, err := m.CreateOrg(ctx, "Acme", "acme", PlanFree, "billing@acme.test")
	if err != nil {
		t.Fatalf("CreateOrg: %v", err)
	}
	if _, err := m.CreateTeam(ctx, o.OrgID, "Ghost Parent", "team_nonexistent", nil); err != ErrTeamNotFound {
		t.Fatalf("expected ErrTeamNotFound, got %v", err)
	}
}

func TestReparentTeam_RejectsSelfAndCycle(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	o, err := m.CreateOrg(ctx, "Acme", "acme", PlanFree, "billing@acme.test")
	if err != nil {
		t.Fatalf("CreateOrg: %v", err)
	}
	root, err := m.CreateTeam(ctx, o.OrgID, "Root", "", nil)
	if err != nil {
		t.Fatalf("CreateTeam root: %v", err)
	}
	child, err := m.CreateTeam(ctx, o.OrgID, "Child", root.TeamID, nil)
	if err != nil {
		t.Fatalf("CreateTeam child: %v", err)
	}
	grandchild, err := m.CreateTeam(ctx, o.OrgID, "Grandchild", child.TeamID, nil)
	if err != nil {
		t.Fatalf("CreateTeam grandchild: %v", err)
	}

	if err := m.ReparentTeam(ctx, o.OrgID, root.TeamID, root.TeamID); err != ErrTeamCycle {
		t.Fatalf("expected ErrTeamCycle for self-parenting, got %v", err)
	}
	if err := m.ReparentTeam(ctx, o.OrgID, root.TeamID, grandchild.TeamID); err != ErrTeamCycle {
		t.Fatalf("expected ErrTeamCycle for reparenting root under its own descendant, got %v", err)
	}

	if err := m.ReparentTeam(ctx, o.OrgID, grandchild.TeamID, root.TeamID); err != nil {
		t.Fatalf("expected valid reparent to succeed, got %v", err)
	}
	moved, err := m.store.GetTeam(ctx, grandchild.TeamID)
	if err != nil {
		t.Fatalf("GetTeam: %v", err)
	}
	if moved.ParentTeamID != root.TeamID {
		t.Fatalf("expected grandchild reparented under root, got parent %q", moved.ParentTeamID)
	}
}

type stubSpendLookup struct {
	settled   map[string]int64
	allocated map[string]int64
}

func (s *stubSpendLookup) SettledAmountMinor(ctx context.Context, teamID string) (int64, error) {
	return s.settled[teamID], nil
}

func (s *stubSpendLookup) AllocatedAmountMinor(ctx context.Context, teamID string) (int64, error) {
	return s.allocated[teamID], nil
}

func TestRollUpSpend_SumsTeamAndDescendants(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	o, err := m.CreateOrg(ctx, "Acme", "acme", PlanFree, "billing@acme.test")
	if err != nil {
		t.Fatalf("CreateOrg: %v", err)
	}
	root, err := m.CreateTeam(ctx, o.OrgID, "Root", "", nil)
	if err != nil {
		t.Fatalf("CreateTeam root: %v", err)
	}
	childA, err := m.CreateTeam(ctx, o.OrgID, "ChildA", root.TeamID, nil)
	if err != nil {
		t.Fatalf("CreateTeam childA: %v", err)
	}
	childB, err := m.CreateTeam(ctx, o.OrgID, "ChildB", root.TeamID, nil)
	if err != nil {
		t.Fatalf("CreateTeam childB: %v", err)
	}

	lookup := &stubSpendLookup{
		settled:   map[string]int64{root.TeamID: 1000, childA.TeamID: 2000, childB.TeamID: 500},
		allocated: map[string]int64{root.TeamID: 5000, childA.TeamID: 3000, childB.TeamID: 1000},
	}

	rollup, err := m.RollUpSpend(ctx, o.OrgID, root.TeamID, lookup)
	if err != nil {
		t.Fatalf("RollUpSpend: %v", err)
	}
	if rollup.SettledAmountMinor != 3500 {
		t.Errorf("expected settled 3500, got %d", rollup.SettledAmountMinor)
	}
	if rollup.AllocatedAmountMinor != 9000 {
		t.Errorf("expected allocated 9000, got %d", rollup.AllocatedAmountMinor)
	}
	if len(rollup.DescendantTeamIDs) != 2 {
		t.Errorf("expected 2 descendants, got %d", len(rollup.DescendantTeamIDs))
	}

	leafRollup, err := m.RollUpSpend(ctx, o.OrgID, childA.TeamID, lookup)
	if err != nil {
		t.Fatalf("RollUpSpend leaf: %v", err)
	}
	if leafRollup.SettledAmountMinor != 2000 || len(leafRollup.DescendantTeamIDs) != 0 {
		t.Errorf("expected leaf rollup to be its own values only, got %+v", leafRollup)
	}
}

func TestAddMember_DefaultsToViewerRole(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	o, err := m.CreateOrg(ctx, "Acme", "acme", PlanFree, "billing@acme.test")
	if err != nil {
		t.Fatalf("CreateOrg: %v", err)
	}
	mem, err := m.AddMember(ctx, o.OrgID, "user_1", "", "user_admin")
	if err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if mem.Role != RoleViewer {
		t.Errorf("expected default role viewer, got %q", mem.Role)
	}
}
