// Package policy implements the declarative rule engine and plugin
// registry that gate a transaction before it is allowed to settle: policy
// plugins vote approve/reject, approval plugins escalate to a human or
// external system, notification plugins fan out events, and audit/webhook
// plugins observe the outcome.
package policy

import (
	"context"
	"time"
)

// PluginType names the extension point a plugin implements.
type PluginType string

const (
	PluginPolicy       PluginType = "policy"
	PluginApproval     PluginType = "approval"
	PluginNotification PluginType = "notification"
	PluginAudit        PluginType = "audit"
	PluginWebhook      PluginType = "webhook"
)

// Metadata describes a plugin for registry listings.
type Metadata struct {
	Name        string
	Version     string
	Author      string
	Description string
	Type        PluginType
}

// Transaction is the minimal shape policy/approval plugins evaluate. It is
// a loosely-typed map mirroring the original JSON-rule configuration
// surface so built-in rules and third-party plugins share one shape.
type Transaction map[string]any

// Decision is the result of one policy plugin's evaluation.
type Decision struct {
	Approved   bool
	Reason     string
	PluginName string
	Metadata   map[string]any
}

// ApprovalResult is the result of one approval plugin's evaluation.
type ApprovalResult struct {
	Approved   bool
	Approver   string
	Reason     string
	PluginName string
	At         time.Time
	Metadata   map[string]any
}

// Plugin is the common lifecycle every registered plugin satisfies.
type Plugin interface {
	Metadata() Metadata
	Initialize(ctx context.Context, config map[string]any) error
	Shutdown(ctx context.Context) error
}

// PolicyPlugin votes on whether a transaction is allowed.
type PolicyPlugin interface {
	Plugin
	Evaluate(ctx context.Context, tx Transaction) Decision
}

// ApprovalPlugin requests an external approval for a transaction.
type ApprovalPlugin interface {
	Plugin
	RequestApproval(ctx context.Context, tx Transaction) ApprovalResult
}

// NotificationPlugin fans out an event; failures are non-fatal.
type NotificationPlugin interface {
	Plugin
	Notify(ctx context.Context, event map[string]any) error
}

// AuditPlugin logs an audit event.
type AuditPlugin interface {
	Plugin
	LogEvent(ctx context.Context, event map[string]any) error
}

// WebhookPlugin handles an inbound webhook payload.
type WebhookPlugin interface {
	Plugin
	HandleWebhook(ctx context.Context, payload map[string]any) (map[string]any, error)
}

// PluginTimeout is the hard per-plugin wall-clock budget; a plugin that
// does not return within this window is treated as a rejection.
const PluginTimeout = 5 * time.Second
