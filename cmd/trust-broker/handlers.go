package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sardis-payments/sardis/internal/apperrors"
	"github.com/sardis-payments/sardis/internal/httpmw"
	"github.com/sardis-payments/sardis/internal/identity"
	"github.com/sardis-payments/sardis/internal/policy"
	"github.com/sardis-payments/sardis/internal/ratelimit"
	"github.com/sardis-payments/sardis/internal/trust"
)

type handlers struct {
	identityRegistry *identity.Registry
	policyRegistry   *policy.Registry
	velocityLimiter  *ratelimit.Limiter
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

// POST /v1/identity/bind
func (h *handlers) bindIdentity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID   string `json:"agent_id"`
		Domain    string `json:"domain"`
		Algorithm string `json:"algorithm"`
		PublicKey []byte `json:"public_key"`
	}
	if derr := decodeJSON(r, &req); derr != nil {
		writeErr(w, r, derr)
		return
	}
	if err := h.identityRegistry.Bind(r.Context(), req.AgentID, req.Domain, req.Algorithm, req.PublicKey); err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidOperation, err.Error()))
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// POST /v1/identity/register
func (h *handlers) registerAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Manifest identity.AgentManifest `json:"manifest"`
		Profile  identity.AgentProfile  `json:"profile"`
	}
	if derr := decodeJSON(r, &req); derr != nil {
		writeErr(w, r, derr)
		return
	}
	if err := h.identityRegistry.RegisterAgent(r.Context(), req.Manifest, req.Profile); err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidOperation, err.Error()))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"agent_id": req.Profile.AgentID})
}

// POST /v1/identity/{agentID}/kya-transition
func (h *handlers) transitionKYA(w http.ResponseWriter, r *http.Request, agentID string) {
	var req struct {
		Requested identity.KYALevel      `json:"requested"`
		Evidence  identity.TransitionInput `json:"evidence"`
	}
	if derr := decodeJSON(r, &req); derr != nil {
		writeErr(w, r, derr)
		return
	}
	profile, err := h.identityRegistry.TransitionKYALevel(r.Context(), agentID, req.Requested, req.Evidence)
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindPolicy, apperrors.CodeKYALevelInsufficient, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// POST /v1/identity/{agentID}/attest-capabilities
func (h *handlers) attestCapabilities(w http.ResponseWriter, r *http.Request, agentID string) {
	var req struct {
		CardURL string `json:"card_url"`
	}
	if derr := decodeJSON(r, &req); derr != nil {
		writeErr(w, r, derr)
		return
	}
	profile, err := h.identityRegistry.AttestCapabilities(r.Context(), agentID, req.CardURL)
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidOperation, err.Error()))
		return
	}
	if profile == nil {
		writeErr(w, r, apperrors.New(apperrors.KindNotFound, apperrors.CodeNotFound, "agent profile not found"))
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// POST /v1/trust/evaluate
func (h *handlers) evaluateTrust(w http.ResponseWriter, r *http.Request) {
	var req trust.Input
	if derr := decodeJSON(r, &req); derr != nil {
		writeErr(w, r, derr)
		return
	}
	req.VelocityLimiter = h.velocityLimiter
	eval := trust.EvaluateTrust(r.Context(), req, time.Now())
	writeJSON(w, http.StatusOK, eval)
}

// POST /v1/policy/plugins
func (h *handlers) registerPlugin(w http.ResponseWriter, r *http.Request) {
	writeErr(w, r, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidOperation,
		"plugin registration requires an in-process Plugin implementation and cannot be driven over HTTP"))
}

// GET /v1/policy/plugins?type={type}
func (h *handlers) listPlugins(w http.ResponseWriter, r *http.Request) {
	t := policy.PluginType(r.URL.Query().Get("type"))
	writeJSON(w, http.StatusOK, h.policyRegistry.List(t))
}

// POST /v1/policy/evaluate
func (h *handlers) evaluatePolicy(w http.ResponseWriter, r *http.Request) {
	var tx policy.Transaction
	if derr := decodeJSON(r, &tx); derr != nil {
		writeErr(w, r, derr)
		return
	}
	decisions := h.policyRegistry.ExecutePolicyPlugins(r.Context(), tx)
	writeJSON(w, http.StatusOK, decisions)
}

// POST /v1/policy/approve
func (h *handlers) approvePolicy(w http.ResponseWriter, r *http.Request) {
	var tx policy.Transaction
	if derr := decodeJSON(r, &tx); derr != nil {
		writeErr(w, r, derr)
		return
	}
	result := h.policyRegistry.ExecuteApprovalPlugins(r.Context(), tx)
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
