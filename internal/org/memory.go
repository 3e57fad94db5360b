package org

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu         sync.Mutex
	orgs       map[string]*Organization
	slugToOrg  map[string]string
	teams      map[string]*Team
	members    map[string]*Member
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orgs:      make(map[string]*Organization),
		slugToOrg: make(map[string]string),
		teams:     make(map[string]*Team),
		members:   make(map[string]*Member),
	}
}

func (s *MemoryStore) InsertOrg(ctx context.Context, o Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.slugToOrg[o.Slug]; exists {
		return ErrSlugExists
	}
	cp := o
	s.orgs[o.OrgID] = &cp
	s.slugToOrg[o.Slug] = o.OrgID
	return nil
}

func (s *MemoryStore) GetOrg(ctx context.Context, orgID string) (*Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orgs[orgID]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (s *MemoryStore) GetOrgBySlug(ctx context.Context, slug string) (*Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.slugToOrg[slug]
	if !ok {
		return nil, nil
	}
	cp := *s.orgs[id]
	return &cp, nil
}

func (s *MemoryStore) UpdateOrg(ctx context.Context, o Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := o
	s.orgs[o.OrgID] = &cp
	return nil
}

func (s *MemoryStore) InsertTeam(ctx context.Context, t Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := t
	s.teams[t.TeamID] = &cp
	return nil
}

func (s *MemoryStore) GetTeam(ctx context.Context, teamID string) (*Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[teamID]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) ListTeams(ctx context.Context, orgID string) ([]Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Team
	for _, t := range s.teams {
		if t.OrganizationID == orgID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateTeam(ctx context.Context, t Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := t
	s.teams[t.TeamID] = &cp
	return nil
}

func (s *MemoryStore) InsertMember(ctx context.Context, m Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := m
	s.members[m.MemberID] = &cp
	return nil
}

func (s *MemoryStore) GetMember(ctx context.Context, memberID string) (*Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberID]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) ListMembers(ctx context.Context, orgID string) ([]Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Member
	for _, m := range s.members {
		if m.OrganizationID == orgID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateMember(ctx context.Context, m Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := m
	s.members[m.MemberID] = &cp
	return nil
}
