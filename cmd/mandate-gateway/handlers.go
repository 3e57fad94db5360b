package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/sardis-payments/sardis/internal/ap2"
	"github.com/sardis-payments/sardis/internal/apperrors"
	"github.com/sardis-payments/sardis/internal/checkout"
	"github.com/sardis-payments/sardis/internal/escrow"
	"github.com/sardis-payments/sardis/internal/httpmw"
)

type handlers struct {
	verifier    *ap2.Verifier
	checkoutMgr *checkout.Manager
	escrowMgr   *escrow.Manager
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, r *http.Request, err *apperrors.Error) {
	apperrors.WriteJSON(w, err.WithRequestID(httpmw.GetRequestID(r.Context())))
}

func decodeJSON(r *http.Request, v any) *apperrors.Error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidJSON, "invalid JSON body")
	}
	return nil
}

// POST /v1/mandates/verify — verify a standalone payment mandate.
func (h *handlers) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Payment ap2.PaymentMandate  `json:"payment"`
		Scheme  ap2.Canonicalization `json:"canonicalization"`
	}
	if derr := decodeJSON(r, &req); derr != nil {
		writeErr(w, r, derr)
		return
	}
	if req.Scheme == "" {
		req.Scheme = ap2.CanonPipe
	}
	result := h.verifier.VerifyPayment(r.Context(), req.Payment, req.Scheme)
	writeJSON(w, http.StatusOK, result)
}

// POST /v1/mandates/verify-chain — verify a full intent→cart→payment chain.
func (h *handlers) verifyChain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Intent  ap2.IntentMandate    `json:"intent"`
		Cart    ap2.CartMandate      `json:"cart"`
		Payment ap2.PaymentMandate   `json:"payment"`
		Scheme  ap2.Canonicalization `json:"canonicalization"`
	}
	if derr := decodeJSON(r, &req); derr != nil {
		writeErr(w, r, derr)
		return
	}
	if req.Scheme == "" {
		req.Scheme = ap2.CanonPipe
	}
	result := h.verifier.VerifyChain(r.Context(), req.Intent, req.Cart, req.Payment, req.Scheme)
	writeJSON(w, http.StatusOK, result)
}

// POST /v1/checkout/sessions — open a new checkout session.
func (h *handlers) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject        string  `json:"subject"`
		MerchantDomain string  `json:"merchant_domain"`
		TaxRate        float64 `json:"tax_rate"`
	}
	if derr := decodeJSON(r, &req); derr != nil {
		writeErr(w, r, derr)
		return
	}
	session, err := h.checkoutMgr.Create(r.Context(), req.Subject, req.MerchantDomain, req.TaxRate, time.Now())
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindState, apperrors.CodeInvalidOperation, err.Error()))
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// GET /v1/checkout/sessions/{id}
func (h *handlers) getSession(w http.ResponseWriter, r *http.Request, id string) {
	session, err := h.checkoutMgr.Get(r.Context(), id, time.Now())
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindNotFound, apperrors.CodeNotFound, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// POST /v1/checkout/sessions/{id}/line-items
func (h *handlers) addLineItem(w http.ResponseWriter, r *http.Request, id string) {
	var item ap2.LineItem
	if derr := decodeJSON(r, &item); derr != nil {
		writeErr(w, r, derr)
		return
	}
	session, err := h.checkoutMgr.AddLineItem(r.Context(), id, item, time.Now())
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindState, apperrors.CodeInvalidOperation, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// POST /v1/checkout/sessions/{id}/discounts
func (h *handlers) addDiscount(w http.ResponseWriter, r *http.Request, id string) {
	var discount ap2.Discount
	if derr := decodeJSON(r, &discount); derr != nil {
		writeErr(w, r, derr)
		return
	}
	session, err := h.checkoutMgr.AddDiscount(r.Context(), id, discount, time.Now())
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindState, apperrors.CodeInvalidOperation, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// POST /v1/checkout/sessions/{id}/shipping
func (h *handlers) setShipping(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		ShippingMinor int64 `json:"shipping_minor"`
	}
	if derr := decodeJSON(r, &req); derr != nil {
		writeErr(w, r, derr)
		return
	}
	session, err := h.checkoutMgr.SetShipping(r.Context(), id, req.ShippingMinor, time.Now())
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindState, apperrors.CodeInvalidOperation, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// POST /v1/checkout/sessions/{id}/complete
func (h *handlers) completeSession(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Chain         string    `json:"chain"`
		Token         string    `json:"token"`
		Destination   string    `json:"destination"`
		ExpiresAt     time.Time `json:"expires_at"`
	}
	if derr := decodeJSON(r, &req); derr != nil {
		writeErr(w, r, derr)
		return
	}
	session, checkoutMandate, paymentMandate, err := h.checkoutMgr.Complete(
		r.Context(), id, req.Chain, req.Token, req.Destination, req.ExpiresAt, time.Now())
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindState, apperrors.CodeInvalidOperation, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":          session,
		"checkout_mandate": checkoutMandate,
		"payment_mandate":  paymentMandate,
	})
}

// POST /v1/checkout/sessions/{id}/escalate
func (h *handlers) escalateSession(w http.ResponseWriter, r *http.Request, id string) {
	session, err := h.checkoutMgr.Escalate(r.Context(), id, time.Now())
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindState, apperrors.CodeInvalidOperation, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// POST /v1/checkout/sessions/{id}/cancel
func (h *handlers) cancelSession(w http.ResponseWriter, r *http.Request, id string) {
	session, err := h.checkoutMgr.Cancel(r.Context(), id, time.Now())
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindState, apperrors.CodeInvalidOperation, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// POST /v1/escrow/requests — create a service request (conditionally with escrow).
func (h *handlers) createRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequesterAgentID  string               `json:"requester_agent_id"`
		RequesterWalletID string               `json:"requester_wallet_id"`
		ProviderAgentID   string               `json:"provider_agent_id"`
		ProviderWalletID  string               `json:"provider_wallet_id"`
		ServiceID         string               `json:"service_id"`
		ServiceName       string               `json:"service_name"`
		Terms             escrow.PaymentTerms  `json:"terms"`
		InputData         map[string]any       `json:"input_data"`
		Parameters        map[string]any       `json:"parameters"`
		Deadline          *time.Time           `json:"deadline,omitempty"`
	}
	if derr := decodeJSON(r, &req); derr != nil {
		writeErr(w, r, derr)
		return
	}
	sr, err := h.escrowMgr.CreateRequest(r.Context(), req.RequesterAgentID, req.RequesterWalletID,
		req.ProviderAgentID, req.ProviderWalletID, req.ServiceID, req.ServiceName, req.Terms,
		req.InputData, req.Parameters, req.Deadline, time.Now())
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindState, apperrors.CodeInvalidOperation, err.Error()))
		return
	}
	writeJSON(w, http.StatusCreated, sr)
}

// GET /v1/escrow/requests/{id}
func (h *handlers) getRequest(w http.ResponseWriter, r *http.Request, id string) {
	sr, err := h.escrowMgr.GetRequest(r.Context(), id)
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindNotFound, apperrors.CodeNotFound, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, sr)
}

// POST /v1/escrow/requests/{id}/fund
func (h *handlers) fundEscrow(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		TxID string `json:"tx_id"`
	}
	if derr := decodeJSON(r, &req); derr != nil {
		writeErr(w, r, derr)
		return
	}
	e, err := h.escrowMgr.FundEscrow(r.Context(), id, req.TxID, time.Now())
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindState, apperrors.CodeInvalidOperation, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// POST /v1/escrow/requests/{id}/accept
func (h *handlers) acceptRequest(w http.ResponseWriter, r *http.Request, id string) {
	sr, err := h.escrowMgr.AcceptRequest(r.Context(), id, time.Now())
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindState, apperrors.CodeInvalidOperation, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, sr)
}

// POST /v1/escrow/requests/{id}/start
func (h *handlers) startRequest(w http.ResponseWriter, r *http.Request, id string) {
	sr, err := h.escrowMgr.StartRequest(r.Context(), id, time.Now())
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindState, apperrors.CodeInvalidOperation, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, sr)
}

// POST /v1/escrow/requests/{id}/complete
func (h *handlers) completeRequest(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		OutputData       map[string]any `json:"output_data"`
		ProcessingTimeMS int64          `json:"processing_time_ms"`
		UnitsConsumed    int64          `json:"units_consumed"`
	}
	if derr := decodeJSON(r, &req); derr != nil {
		writeErr(w, r, derr)
		return
	}
	resp, err := h.escrowMgr.CompleteRequest(r.Context(), id, req.OutputData, req.ProcessingTimeMS, req.UnitsConsumed, time.Now())
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindState, apperrors.CodeInvalidOperation, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /v1/escrow/requests/{id}/fail
func (h *handlers) failRequest(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		ErrorMessage string `json:"error_message"`
	}
	if derr := decodeJSON(r, &req); derr != nil {
		writeErr(w, r, derr)
		return
	}
	resp, err := h.escrowMgr.FailRequest(r.Context(), id, req.ErrorMessage, time.Now())
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindState, apperrors.CodeInvalidOperation, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /v1/escrow/requests — filterable listing.
func (h *handlers) listRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := escrow.ListFilter{
		AgentID:     q.Get("agent_id"),
		AsRequester: q.Get("as") != "provider",
		AsProvider:  q.Get("as") != "requester",
		Status:      escrow.RequestStatus(q.Get("status")),
	}
	requests, err := h.escrowMgr.ListRequests(r.Context(), filter)
	if err != nil {
		slog.ErrorContext(r.Context(), "list_requests_failed", "error", err)
		writeErr(w, r, apperrors.Internal("could not list requests"))
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
