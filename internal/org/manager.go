package org

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSlugExists     = errors.New("org: slug already exists")
	ErrOrgNotFound    = errors.New("org: organization not found")
	ErrTeamNotFound   = errors.New("org: team not found")
	ErrTeamCycle      = errors.New("org: team hierarchy would contain a cycle")
)

// Manager provides CRUD and hierarchy-aware operations over organizations,
// teams, and members.
type Manager struct {
	store Store
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

func (m *Manager) CreateOrg(ctx context.Context, name, slug string, plan Plan, billingEmail string) (*Organization, error) {
	if plan == "" {
		plan = PlanFree
	}
	now := time.Now().UTC()
	o := Organization{
		OrgID: "org_" + uuid.NewString(), Name: name, Slug: slug, Plan: plan,
		BillingEmail: billingEmail, CreatedAt: now, UpdatedAt: now,
	}
	if err := m.store.InsertOrg(ctx, o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (m *Manager) GetOrg(ctx context.Context, orgID string) (*Organization, error) {
	return m.store.GetOrg(ctx, orgID)
}

func (m *Manager) GetOrgBySlug(ctx context.Context, slug string) (*Organization, error) {
	return m.store.GetOrgBySlug(ctx, slug)
}

// CreateTeam inserts a new team. A non-empty parentTeamID must name an
// existing team of the same organization, otherwise ErrTeamNotFound is
// returned. A new team has no descendants, so inserting it cannot close a
// cycle; cycle checks happen in ReparentTeam.
func (m *Manager) CreateTeam(ctx context.Context, orgID, name, parentTeamID string, budgetLimitMinor *int64) (*Team, error) {
	if parentTeamID != "" {
		parent, err := m.store.GetTeam(ctx, parentTeamID)
		if err != nil {
			return nil, err
		}
		if parent == nil || parent.OrganizationID != orgID {
			return nil, ErrTeamNotFound
		}
	}
	now := time.Now().UTC()
	t := Team{
		TeamID: "team_" + uuid.NewString(), OrganizationID: orgID, Name: name,
		ParentTeamID: parentTeamID, BudgetLimitMinor: budgetLimitMinor,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := m.store.InsertTeam(ctx, t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ReparentTeam moves teamID under newParentTeamID, rejecting the move if
// newParentTeamID is teamID itself or a descendant of teamID (which would
// otherwise create a cycle walked forever by the spend roll-up).
func (m *Manager) ReparentTeam(ctx context.Context, orgID, teamID, newParentTeamID string) error {
	if teamID == newParentTeamID {
		return ErrTeamCycle
	}
	if newParentTeamID != "" {
		descendants, err := m.descendantTeamIDs(ctx, orgID, teamID)
		if err != nil {
			return err
		}
		for _, d := range descendants {
			if d == newParentTeamID {
				return ErrTeamCycle
			}
		}
	}
	team, err := m.store.GetTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if team == nil {
		return ErrTeamNotFound
	}
	team.ParentTeamID = newParentTeamID
	team.UpdatedAt = time.Now().UTC()
	return m.store.UpdateTeam(ctx, *team)
}

func (m *Manager) AddMember(ctx context.Context, orgID, userID string, role MemberRole, invitedBy string) (*Member, error) {
	if role == "" {
		role = RoleViewer
	}
	mem := Member{
		MemberID: "member_" + uuid.NewString(), OrganizationID: orgID, UserID: userID,
		Role: role, InvitedBy: invitedBy, InvitedAt: time.Now().UTC(),
	}
	if err := m.store.InsertMember(ctx, mem); err != nil {
		return nil, err
	}
	return &mem, nil
}

// descendantTeamIDs returns every team whose chain of parent_team_id
// eventually reaches rootTeamID, walking the whole org's team set once.
func (m *Manager) descendantTeamIDs(ctx context.Context, orgID, rootTeamID string) ([]string, error) {
	all, err := m.store.ListTeams(ctx, orgID)
	if err != nil {
		return nil, err
	}
	childrenOf := make(map[string][]string)
	for _, t := range all {
		if t.ParentTeamID != "" {
			childrenOf[t.ParentTeamID] = append(childrenOf[t.ParentTeamID], t.TeamID)
		}
	}
	var out []string
	queue := childrenOf[rootTeamID]
	visited := make(map[string]bool)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		out = append(out, id)
		queue = append(queue, childrenOf[id]...)
	}
	return out, nil
}

// SpendLookup supplies per-team settled and allocated amounts the roll-up
// sums across a team and its descendants. The only implementation outside
// tests is cmd/org-service's zeroSpendLookup, which returns 0 for both; no
// implementation reads internal/canonledger or internal/budget.
type SpendLookup interface {
	SettledAmountMinor(ctx context.Context, teamID string) (int64, error)
	AllocatedAmountMinor(ctx context.Context, teamID string) (int64, error)
}

// RollUpSpend aggregates teamID's own spend/allocation with every
// descendant team's, per spec.md §4.10's hierarchical budget roll-up.
func (m *Manager) RollUpSpend(ctx context.Context, orgID, teamID string, lookup SpendLookup) (*SpendRollup, error) {
	descendants, err := m.descendantTeamIDs(ctx, orgID, teamID)
	if err != nil {
		return nil, err
	}
	teamIDs := append([]string{teamID}, descendants...)

	var settled, allocated int64
	for _, id := range teamIDs {
		s, err := lookup.SettledAmountMinor(ctx, id)
		if err != nil {
			return nil, err
		}
		a, err := lookup.AllocatedAmountMinor(ctx, id)
		if err != nil {
			return nil, err
		}
		settled += s
		allocated += a
	}
	return &SpendRollup{
		TeamID: teamID, SettledAmountMinor: settled, AllocatedAmountMinor: allocated,
		DescendantTeamIDs: descendants,
	}, nil
}
