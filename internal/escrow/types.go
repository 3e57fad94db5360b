// Package escrow implements the agent-to-agent service marketplace: a
// ServiceRequest moving through PENDING→ACCEPTED→IN_PROGRESS→
// COMPLETED|FAILED|CANCELLED|DISPUTED, each backed by an optional Escrow
// holding the requester's funds until the provider's work is accepted.
package escrow

import (
	"time"
)

// Status is an Escrow's lifecycle state.
type Status string

const (
	StatusCreated  Status = "created"
	StatusFunded   Status = "funded"
	StatusReleased Status = "released"
	StatusRefunded Status = "refunded"
	StatusDisputed Status = "disputed"
	StatusExpired  Status = "expired"
)

// RequestStatus is a ServiceRequest's lifecycle state.
type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestAccepted   RequestStatus = "accepted"
	RequestInProgress RequestStatus = "in_progress"
	RequestCompleted  RequestStatus = "completed"
	RequestFailed     RequestStatus = "failed"
	RequestCancelled  RequestStatus = "cancelled"
	RequestDisputed   RequestStatus = "disputed"
)

// PaymentTerms governs how a request's total amount splits between
// upfront and completion payment, and the escrow/dispute windows around
// it. Percentages are in basis points (10000 = 100%), matching the rest
// of the module's integer-minor-unit convention rather than a decimal
// type.
type PaymentTerms struct {
	TotalAmountMinor      int64 `json:"total_amount_minor" bson:"total_amount_minor"`
	Currency              string `json:"currency" bson:"currency"`
	UpfrontBps            int   `json:"upfront_bps" bson:"upfront_bps"`
	CompletionBps         int   `json:"completion_bps" bson:"completion_bps"`
	UseEscrow             bool  `json:"use_escrow" bson:"use_escrow"`
	EscrowTimeoutHours    int   `json:"escrow_timeout_hours" bson:"escrow_timeout_hours"`
	DisputeWindowHours    int   `json:"dispute_window_hours" bson:"dispute_window_hours"`
}

// UpfrontAmountMinor returns the upfront share of TotalAmountMinor.
func (t PaymentTerms) UpfrontAmountMinor() int64 {
	return (t.TotalAmountMinor * int64(t.UpfrontBps)) / 10000
}

// CompletionAmountMinor returns the completion share of TotalAmountMinor.
func (t PaymentTerms) CompletionAmountMinor() int64 {
	return (t.TotalAmountMinor * int64(t.CompletionBps)) / 10000
}

// Escrow holds a requester's funds against a service request until
// release, refund, or dispute resolution.
type Escrow struct {
	EscrowID  string `json:"escrow_id" bson:"_id"`
	RequestID string `json:"request_id" bson:"request_id"`

	PayerAgentID  string `json:"payer_agent_id" bson:"payer_agent_id"`
	PayerWalletID string `json:"payer_wallet_id" bson:"payer_wallet_id"`
	PayeeAgentID  string `json:"payee_agent_id" bson:"payee_agent_id"`
	PayeeWalletID string `json:"payee_wallet_id" bson:"payee_wallet_id"`

	AmountMinor int64  `json:"amount_minor" bson:"amount_minor"`
	Currency    string `json:"currency" bson:"currency"`

	Status Status `json:"status" bson:"status"`

	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	FundedAt   *time.Time `json:"funded_at,omitempty" bson:"funded_at,omitempty"`
	ReleasedAt *time.Time `json:"released_at,omitempty" bson:"released_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" bson:"expires_at,omitempty"`

	FundingTxID string `json:"funding_tx_id,omitempty" bson:"funding_tx_id,omitempty"`
	ReleaseTxID string `json:"release_tx_id,omitempty" bson:"release_tx_id,omitempty"`
	RefundTxID  string `json:"refund_tx_id,omitempty" bson:"refund_tx_id,omitempty"`

	DisputeReason     string `json:"dispute_reason,omitempty" bson:"dispute_reason,omitempty"`
	DisputeResolution string `json:"dispute_resolution,omitempty" bson:"dispute_resolution,omitempty"`
}

func (e *Escrow) fund(txID string, timeoutHours int, now time.Time) {
	e.Status = StatusFunded
	e.FundedAt = &now
	e.FundingTxID = txID
	expires := now.Add(time.Duration(timeoutHours) * time.Hour)
	e.ExpiresAt = &expires
}

func (e *Escrow) release(txID string, now time.Time) {
	e.Status = StatusReleased
	e.ReleasedAt = &now
	e.ReleaseTxID = txID
}

func (e *Escrow) refund(txID string, now time.Time) {
	e.Status = StatusRefunded
	e.ReleasedAt = &now
	e.RefundTxID = txID
}

func (e *Escrow) dispute(reason string) {
	e.Status = StatusDisputed
	e.DisputeReason = reason
}

// IsExpired reports whether a funded escrow's timeout has lapsed.
func (e Escrow) IsExpired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// ServiceRequest is one agent's request for another agent to perform a
// service, with its payment terms and optional escrow.
type ServiceRequest struct {
	RequestID string `json:"request_id" bson:"_id"`

	RequesterAgentID  string `json:"requester_agent_id" bson:"requester_agent_id"`
	RequesterWalletID string `json:"requester_wallet_id" bson:"requester_wallet_id"`
	ProviderAgentID   string `json:"provider_agent_id" bson:"provider_agent_id"`
	ProviderWalletID  string `json:"provider_wallet_id" bson:"provider_wallet_id"`

	ServiceID   string `json:"service_id" bson:"service_id"`
	ServiceName string `json:"service_name" bson:"service_name"`

	InputData  map[string]any `json:"input_data,omitempty" bson:"input_data,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty" bson:"parameters,omitempty"`

	PaymentTerms PaymentTerms `json:"payment_terms" bson:"payment_terms"`
	EscrowID     string       `json:"escrow_id,omitempty" bson:"escrow_id,omitempty"`

	Status RequestStatus `json:"status" bson:"status"`

	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty" bson:"accepted_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty" bson:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`

	Deadline *time.Time `json:"deadline,omitempty" bson:"deadline,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

func (r *ServiceRequest) accept(now time.Time) {
	r.Status = RequestAccepted
	r.AcceptedAt = &now
}

func (r *ServiceRequest) start(now time.Time) {
	r.Status = RequestInProgress
	r.StartedAt = &now
}

func (r *ServiceRequest) complete(now time.Time) {
	r.Status = RequestCompleted
	r.CompletedAt = &now
}

func (r *ServiceRequest) fail(reason string, now time.Time) {
	r.Status = RequestFailed
	r.CompletedAt = &now
	r.setMetadata("failure_reason", reason)
}

func (r *ServiceRequest) cancel(reason string, now time.Time) {
	r.Status = RequestCancelled
	r.CompletedAt = &now
	r.setMetadata("cancel_reason", reason)
}

func (r *ServiceRequest) setMetadata(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
}

// IsPastDeadline reports whether the request has passed its deadline.
func (r ServiceRequest) IsPastDeadline(now time.Time) bool {
	return r.Deadline != nil && now.After(*r.Deadline)
}

// ServiceResponse is a provider's response to a completed or failed
// request.
type ServiceResponse struct {
	ResponseID string `json:"response_id" bson:"_id"`
	RequestID  string `json:"request_id" bson:"request_id"`

	Success      bool           `json:"success" bson:"success"`
	OutputData   map[string]any `json:"output_data,omitempty" bson:"output_data,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty" bson:"error_message,omitempty"`

	ProcessingTimeMS int64 `json:"processing_time_ms" bson:"processing_time_ms"`
	UnitsConsumed    int64 `json:"units_consumed" bson:"units_consumed"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
