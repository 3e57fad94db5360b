package escrow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRequestNotFound  = errors.New("service_request_not_found")
	ErrInvalidState     = errors.New("service_request_invalid_state")
	ErrDisputeWindowShut = errors.New("dispute_window_closed")
)

// Manager is the protocol handler for agent-to-agent service requests:
// it owns the request/escrow/response lifecycle and serializes the
// multi-step mutations (create-with-escrow, complete-with-release,
// fail-with-refund) behind a process-wide mutex so a Store backed by a
// database transaction isn't required for correctness.
type Manager struct {
	mu    sync.Mutex
	store Store
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// CreateRequest opens a new ServiceRequest, creating and attaching a
// funded-pending Escrow when terms.UseEscrow is set.
func (m *Manager) CreateRequest(ctx context.Context, requesterAgentID, requesterWalletID, providerAgentID, providerWalletID, serviceID, serviceName string, terms PaymentTerms, inputData, parameters map[string]any, deadline *time.Time, now time.Time) (*ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	request := ServiceRequest{
		RequestID:         "req_" + uuid.NewString(),
		RequesterAgentID:  requesterAgentID,
		RequesterWalletID: requesterWalletID,
		ProviderAgentID:   providerAgentID,
		ProviderWalletID:  providerWalletID,
		ServiceID:         serviceID,
		ServiceName:       serviceName,
		InputData:         inputData,
		Parameters:        parameters,
		PaymentTerms:      terms,
		Status:            RequestPending,
		CreatedAt:         now,
		Deadline:          deadline,
	}

	if terms.UseEscrow {
		esc := Escrow{
			EscrowID:      "esc_" + uuid.NewString(),
			RequestID:     request.RequestID,
			PayerAgentID:  requesterAgentID,
			PayerWalletID: requesterWalletID,
			PayeeAgentID:  providerAgentID,
			PayeeWalletID: providerWalletID,
			AmountMinor:   terms.TotalAmountMinor,
			Currency:      terms.Currency,
			Status:        StatusCreated,
			CreatedAt:     now,
		}
		if err := m.store.UpsertEscrow(ctx, esc); err != nil {
			return nil, err
		}
		request.EscrowID = esc.EscrowID
	}

	if err := m.store.UpsertRequest(ctx, request); err != nil {
		return nil, err
	}
	return &request, nil
}

func (m *Manager) GetRequest(ctx context.Context, requestID string) (*ServiceRequest, error) {
	return m.store.GetRequest(ctx, requestID)
}

// FundEscrow marks the request's escrow funded, starting its timeout
// window. Callers verify the underlying payment occurred before calling
// this.
func (m *Manager) FundEscrow(ctx context.Context, requestID, txID string, now time.Time) (*Escrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	request, err := m.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil || request.EscrowID == "" {
		return nil, ErrRequestNotFound
	}
	esc, err := m.store.GetEscrow(ctx, request.EscrowID)
	if err != nil {
		return nil, err
	}
	if esc == nil {
		return nil, ErrRequestNotFound
	}
	timeout := request.PaymentTerms.EscrowTimeoutHours
	if timeout == 0 {
		timeout = 72
	}
	esc.fund(txID, timeout, now)
	if err := m.store.UpsertEscrow(ctx, *esc); err != nil {
		return nil, err
	}
	return esc, nil
}

// AcceptRequest moves a PENDING request to ACCEPTED.
func (m *Manager) AcceptRequest(ctx context.Context, requestID string, now time.Time) (*ServiceRequest, error) {
	return m.transition(ctx, requestID, RequestPending, func(r *ServiceRequest) { r.accept(now) })
}

// StartRequest moves an ACCEPTED request to IN_PROGRESS.
func (m *Manager) StartRequest(ctx context.Context, requestID string, now time.Time) (*ServiceRequest, error) {
	return m.transition(ctx, requestID, RequestAccepted, func(r *ServiceRequest) { r.start(now) })
}

func (m *Manager) transition(ctx context.Context, requestID string, want RequestStatus, apply func(*ServiceRequest)) (*ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	request, err := m.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, ErrRequestNotFound
	}
	if request.Status != want {
		return nil, ErrInvalidState
	}
	apply(request)
	if err := m.store.UpsertRequest(ctx, *request); err != nil {
		return nil, err
	}
	return request, nil
}

// CompleteRequest records the provider's successful output, marks the
// request COMPLETED, and releases a funded escrow to the payee.
func (m *Manager) CompleteRequest(ctx context.Context, requestID string, outputData map[string]any, processingTimeMS, unitsConsumed int64, now time.Time) (*ServiceResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	request, err := m.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, ErrRequestNotFound
	}
	if request.Status != RequestInProgress {
		return nil, ErrInvalidState
	}

	response := ServiceResponse{
		ResponseID:       "res_" + uuid.NewString(),
		RequestID:        requestID,
		Success:          true,
		OutputData:       outputData,
		ProcessingTimeMS: processingTimeMS,
		UnitsConsumed:    unitsConsumed,
		CreatedAt:        now,
	}
	if err := m.store.AppendResponse(ctx, response); err != nil {
		return nil, err
	}

	request.complete(now)
	if err := m.store.UpsertRequest(ctx, *request); err != nil {
		return nil, err
	}

	if request.EscrowID != "" {
		if err := m.releaseOrRefundEscrow(ctx, request.EscrowID, true, now); err != nil {
			return nil, err
		}
	}
	return &response, nil
}

// FailRequest records a failure response, marks the request FAILED, and
// refunds a funded escrow back to the payer.
func (m *Manager) FailRequest(ctx context.Context, requestID, errorMessage string, now time.Time) (*ServiceResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	request, err := m.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, ErrRequestNotFound
	}

	response := ServiceResponse{
		ResponseID:   "res_" + uuid.NewString(),
		RequestID:    requestID,
		Success:      false,
		ErrorMessage: errorMessage,
		CreatedAt:    now,
	}
	if err := m.store.AppendResponse(ctx, response); err != nil {
		return nil, err
	}

	request.fail(errorMessage, now)
	if err := m.store.UpsertRequest(ctx, *request); err != nil {
		return nil, err
	}

	if request.EscrowID != "" {
		if err := m.releaseOrRefundEscrow(ctx, request.EscrowID, false, now); err != nil {
			return nil, err
		}
	}
	return &response, nil
}

func (m *Manager) releaseOrRefundEscrow(ctx context.Context, escrowID string, release bool, now time.Time) error {
	esc, err := m.store.GetEscrow(ctx, escrowID)
	if err != nil {
		return err
	}
	if esc == nil || esc.Status != StatusFunded {
		return nil
	}
	if release {
		esc.release("tx_release_"+uuid.NewString(), now)
	} else {
		esc.refund("tx_refund_"+uuid.NewString(), now)
	}
	return m.store.UpsertEscrow(ctx, *esc)
}

// CancelRequest cancels a non-terminal request.
func (m *Manager) CancelRequest(ctx context.Context, requestID, reason string, now time.Time) (*ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	request, err := m.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, ErrRequestNotFound
	}
	if !isCancellable(request.Status) {
		return nil, ErrInvalidState
	}
	request.cancel(reason, now)
	if err := m.store.UpsertRequest(ctx, *request); err != nil {
		return nil, err
	}
	if request.EscrowID != "" {
		if err := m.releaseOrRefundEscrow(ctx, request.EscrowID, false, now); err != nil {
			return nil, err
		}
	}
	return request, nil
}

func isCancellable(s RequestStatus) bool {
	switch s {
	case RequestCompleted, RequestFailed, RequestCancelled, RequestDisputed:
		return false
	default:
		return true
	}
}

// DisputeRequest opens a dispute against a COMPLETED request, provided it
// is still within its payment terms' dispute window.
func (m *Manager) DisputeRequest(ctx context.Context, requestID, reason, disputerAgentID string, now time.Time) (*ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	request, err := m.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, ErrRequestNotFound
	}
	if request.Status != RequestCompleted || request.CompletedAt == nil {
		return nil, ErrInvalidState
	}
	deadline := request.CompletedAt.Add(time.Duration(request.PaymentTerms.DisputeWindowHours) * time.Hour)
	if now.After(deadline) {
		return nil, ErrDisputeWindowShut
	}

	request.Status = RequestDisputed
	request.setMetadata("dispute", map[string]any{
		"reason":      reason,
		"disputer":    disputerAgentID,
		"disputed_at": now,
	})
	if err := m.store.UpsertRequest(ctx, *request); err != nil {
		return nil, err
	}
	if request.EscrowID != "" {
		esc, err := m.store.GetEscrow(ctx, request.EscrowID)
		if err != nil {
			return nil, err
		}
		if esc != nil {
			esc.dispute(reason)
			if err := m.store.UpsertEscrow(ctx, *esc); err != nil {
				return nil, err
			}
		}
	}
	return request, nil
}

// ListFilter narrows ListRequests results.
type ListFilter struct {
	AgentID     string
	AsRequester bool
	AsProvider  bool
	Status      RequestStatus
	Limit       int
}

// ListRequests returns requests matching filter, newest first.
func (m *Manager) ListRequests(ctx context.Context, filter ListFilter) ([]ServiceRequest, error) {
	all, err := m.store.ListRequests(ctx)
	if err != nil {
		return nil, err
	}

	var out []ServiceRequest
	for _, r := range all {
		if filter.AgentID != "" {
			matches := (filter.AsRequester && r.RequesterAgentID == filter.AgentID) ||
				(filter.AsProvider && r.ProviderAgentID == filter.AgentID)
			if !matches {
				continue
			}
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	limit := filter.Limit
	if limit == 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Manager) GetResponses(ctx context.Context, requestID string) ([]ServiceResponse, error) {
	return m.store.ListResponses(ctx, requestID)
}

// ExpireEscrow transitions a funded, past-timeout escrow to EXPIRED.
// Callers typically drive this from a periodic sweep, mirroring
// internal/checkout's background sweeper.
func (m *Manager) ExpireEscrow(ctx context.Context, escrowID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	esc, err := m.store.GetEscrow(ctx, escrowID)
	if err != nil {
		return err
	}
	if esc == nil {
		return fmt.Errorf("escrow %s: %w", escrowID, ErrRequestNotFound)
	}
	if esc.Status != StatusFunded || !esc.IsExpired(now) {
		return nil
	}
	esc.Status = StatusExpired
	return m.store.UpsertEscrow(ctx, *esc)
}
