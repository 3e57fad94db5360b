package org

import "context"

// Store persists organizations, teams, and members.
type Store interface {
	InsertOrg(ctx context.Context, o Organization) error
	GetOrg(ctx context.Context, orgID string) (*Organization, error)
	GetOrgBySlug(ctx context.Context, slug string) (*Organization, error)
	UpdateOrg(ctx context.Context, o Organization) error

	InsertTeam(ctx context.Context, t Team) error
	GetTeam(ctx context.Context, teamID string) (*Team, error)
	ListTeams(ctx context.Context, orgID string) ([]Team, error)
	UpdateTeam(ctx context.Context, t Team) error

	InsertMember(ctx context.Context, m Member) error
	GetMember(ctx context.Context, memberID string) (*Member, error)
	ListMembers(ctx context.Context, orgID string) ([]Member, error)
	UpdateMember(ctx context.Context, m Member) error
}
