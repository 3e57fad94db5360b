// Package org implements the multi-tenant organization/team/member model:
// organizations billed by plan tier, hierarchical teams with per-team
// budget limits, and role-scoped memberships, grounded on organizations.py.
package org

import "time"

// Plan is an organization's billing tier.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// MemberRole is a member's permission level within an organization.
type MemberRole string

const (
	RoleOrgAdmin     MemberRole = "org_admin"
	RoleTeamAdmin    MemberRole = "team_admin"
	RolePolicyAdmin  MemberRole = "policy_admin"
	RoleAgentOperator MemberRole = "agent_operator"
	RoleViewer       MemberRole = "viewer"
)

// Organization is the top-level tenant entity.
type Organization struct {
	OrgID              string         `json:"org_id" bson:"_id"`
	Name               string         `json:"name" bson:"name"`
	Slug               string         `json:"slug" bson:"slug"`
	Plan               Plan           `json:"plan" bson:"plan"`
	Settings           map[string]any `json:"settings,omitempty" bson:"settings,omitempty"`
	BillingEmail       string         `json:"billing_email,omitempty" bson:"billing_email,omitempty"`
	StripeCustomerID   string         `json:"stripe_customer_id,omitempty" bson:"stripe_customer_id,omitempty"`
	SubscriptionStatus string         `json:"subscription_status,omitempty" bson:"subscription_status,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt          time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at" bson:"updated_at"`
}

// Team is a sub-unit within an organization, optionally nested under a
// parent team to form a hierarchy.
type Team struct {
	TeamID        string         `json:"team_id" bson:"_id"`
	OrganizationID string        `json:"organization_id" bson:"organization_id"`
	Name          string         `json:"name" bson:"name"`
	ParentTeamID  string         `json:"parent_team_id,omitempty" bson:"parent_team_id,omitempty"`
	BudgetLimitMinor *int64      `json:"budget_limit_minor,omitempty" bson:"budget_limit_minor,omitempty"`
	Description   string         `json:"description,omitempty" bson:"description,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" bson:"updated_at"`
}

// Member is a user's role-scoped membership in an organization, optionally
// assigned to one or more teams.
type Member struct {
	MemberID      string         `json:"member_id" bson:"_id"`
	OrganizationID string        `json:"organization_id" bson:"organization_id"`
	UserID        string         `json:"user_id" bson:"user_id"`
	Role          MemberRole     `json:"role" bson:"role"`
	TeamIDs       []string       `json:"team_ids,omitempty" bson:"team_ids,omitempty"`
	InvitedAt     time.Time      `json:"invited_at" bson:"invited_at"`
	JoinedAt      *time.Time     `json:"joined_at,omitempty" bson:"joined_at,omitempty"`
	InviteAccepted bool          `json:"invite_accepted" bson:"invite_accepted"`
	InvitedBy     string         `json:"invited_by,omitempty" bson:"invited_by,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// SpendRollup is one team's aggregated spend across itself and its
// descendant teams.
type SpendRollup struct {
	TeamID            string
	SettledAmountMinor int64
	AllocatedAmountMinor int64
	DescendantTeamIDs []string
}
