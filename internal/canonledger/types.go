// Package canonledger implements the rail-agnostic canonical ledger: a
// journey state machine that normalizes heterogeneous provider events
// (stablecoin, ACH, virtual card) into one funnel, detects reconciliation
// breaks, and queues items for manual review.
package canonledger

import "time"

// State is a CanonicalJourney's position in the cross-rail DAG.
type State string

const (
	StateCreated    State = "created"
	StateSubmitted  State = "submitted"
	StateProcessing State = "processing"
	StateSettled    State = "settled"
	StateReturned   State = "returned"
	StateFailed     State = "failed"
)

// BreakStatus summarizes whether a journey has an open drift or review item.
type BreakStatus string

const (
	BreakStatusOK          BreakStatus = "ok"
	BreakStatusDriftOpen   BreakStatus = "drift_open"
	BreakStatusReviewOpen  BreakStatus = "review_open"
)

// CanonicalJourney is the natural-keyed, rail-agnostic record of one
// payment attempt as it crosses provider boundaries.
type CanonicalJourney struct {
	JourneyID          string         `json:"journey_id" bson:"_id"`
	OrganizationID     string         `json:"organization_id" bson:"organization_id"`
	Rail               string         `json:"rail" bson:"rail"`
	Provider           string         `json:"provider" bson:"provider"`
	ExternalReference  string         `json:"external_reference" bson:"external_reference"`
	Direction          string         `json:"direction,omitempty" bson:"direction,omitempty"`
	Currency           string         `json:"currency" bson:"currency"`
	CanonicalState     State          `json:"canonical_state" bson:"canonical_state"`
	ExpectedAmountMinor int64         `json:"expected_amount_minor" bson:"expected_amount_minor"`
	SettledAmountMinor int64          `json:"settled_amount_minor" bson:"settled_amount_minor"`
	RetryCount         int            `json:"retry_count" bson:"retry_count"`
	LastReturnCode     string         `json:"last_return_code,omitempty" bson:"last_return_code,omitempty"`
	BreakStatus        BreakStatus    `json:"break_status" bson:"break_status"`
	FirstEventAt       time.Time      `json:"first_event_at" bson:"first_event_at"`
	LastEventAt        time.Time      `json:"last_event_at" bson:"last_event_at"`
	Metadata           map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt          time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at" bson:"updated_at"`
}

// CanonicalEvent is a single normalized provider event applied to a journey.
type CanonicalEvent struct {
	ID                 string         `json:"id" bson:"_id"`
	JourneyID          string         `json:"journey_id" bson:"journey_id"`
	OrganizationID     string         `json:"organization_id" bson:"organization_id"`
	Rail               string         `json:"rail" bson:"rail"`
	Provider           string         `json:"provider" bson:"provider"`
	ProviderEventID    string         `json:"provider_event_id,omitempty" bson:"provider_event_id,omitempty"`
	ExternalReference  string         `json:"external_reference" bson:"external_reference"`
	Direction          string         `json:"direction,omitempty" bson:"direction,omitempty"`
	CanonicalEventType string         `json:"canonical_event_type" bson:"canonical_event_type"`
	CanonicalState     State          `json:"canonical_state" bson:"canonical_state"`
	EventTS            time.Time      `json:"event_ts" bson:"event_ts"`
	AmountMinor        *int64         `json:"amount_minor,omitempty" bson:"amount_minor,omitempty"`
	Currency           string         `json:"currency,omitempty" bson:"currency,omitempty"`
	ReturnCode         string         `json:"return_code,omitempty" bson:"return_code,omitempty"`
	OutOfOrder         bool           `json:"out_of_order" bson:"out_of_order"`
	RawPayload         map[string]any `json:"raw_payload,omitempty" bson:"raw_payload,omitempty"`
	CreatedAt          time.Time      `json:"created_at" bson:"created_at"`
}

// Severity of a ReconciliationBreak.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// BreakStatusValue is an open/resolved/dismissed lifecycle state for a break.
type BreakStatusValue string

const (
	BreakOpen      BreakStatusValue = "open"
	BreakResolved  BreakStatusValue = "resolved"
	BreakDismissed BreakStatusValue = "dismissed"
)

// ReconciliationBreak records a detected mismatch between expected and
// settled amounts, or a high-risk provider return code.
type ReconciliationBreak struct {
	BreakID             string           `json:"break_id" bson:"_id"`
	OrganizationID      string           `json:"organization_id" bson:"organization_id"`
	JourneyID           string           `json:"journey_id" bson:"journey_id"`
	BreakType           string           `json:"break_type" bson:"break_type"`
	Severity            Severity         `json:"severity" bson:"severity"`
	ExpectedAmountMinor int64            `json:"expected_amount_minor" bson:"expected_amount_minor"`
	SettledAmountMinor  int64            `json:"settled_amount_minor" bson:"settled_amount_minor"`
	DeltaMinor          int64            `json:"delta_minor" bson:"delta_minor"`
	Status              BreakStatusValue `json:"status" bson:"status"`
	Metadata            map[string]any   `json:"metadata,omitempty" bson:"metadata,omitempty"`
	DetectedAt          time.Time        `json:"detected_at" bson:"detected_at"`
}

// ReviewStatus is a ManualReviewItem's lifecycle state.
type ReviewStatus string

const (
	ReviewQueued    ReviewStatus = "queued"
	ReviewInReview  ReviewStatus = "in_review"
	ReviewResolved  ReviewStatus = "resolved"
	ReviewDismissed ReviewStatus = "dismissed"
)

// ManualReviewItem is a queued item awaiting human resolution.
type ManualReviewItem struct {
	ReviewID       string         `json:"review_id" bson:"_id"`
	OrganizationID string         `json:"organization_id" bson:"organization_id"`
	JourneyID      string         `json:"journey_id,omitempty" bson:"journey_id,omitempty"`
	ReasonCode     string         `json:"reason_code" bson:"reason_code"`
	Priority       string         `json:"priority" bson:"priority"`
	Status         ReviewStatus   `json:"status" bson:"status"`
	Payload        map[string]any `json:"payload,omitempty" bson:"payload,omitempty"`
	ResolutionNote string         `json:"resolution_notes,omitempty" bson:"resolution_notes,omitempty"`
	CreatedAt      time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" bson:"updated_at"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty" bson:"resolved_at,omitempty"`
}

// IngestEvent is the caller-supplied, not-yet-normalized payment event fed
// to Ledger.Ingest.
type IngestEvent struct {
	OrganizationID     string
	Rail               string
	Provider           string
	ProviderEventID    string
	ExternalReference  string
	Direction          string
	CanonicalEventType string
	CanonicalState     State
	EventTS            time.Time
	AmountMinor        *int64
	Currency           string
	ReturnCode         string
	RawPayload         map[string]any
}

// IngestResult reports what Ingest did with an event.
type IngestResult struct {
	Journey             CanonicalJourney
	Event               *CanonicalEvent
	Duplicate           bool
	OutOfOrder          bool
	BreakDetected       bool
	ManualReviewCreated bool
}
