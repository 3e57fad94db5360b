package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sardis-payments/sardis/internal/apperrors"
	"github.com/sardis-payments/sardis/internal/httpmw"
	"github.com/sardis-payments/sardis/internal/org"
)

type handlers struct {
	mgr    *org.Manager
	lookup org.SpendLookup
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, r *http.Request, err *apperrors.Error) {
	apperrors.WriteJSON(w, err.WithRequestID(httpmw.GetRequestID(r.Context())))
}

// POST /v1/orgs
func (h *handlers) createOrg(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string   `json:"name"`
		Slug         string   `json:"slug"`
		Plan         org.Plan `json:"plan"`
		BillingEmail string   `json:"billing_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidJSON, "invalid JSON body"))
		return
	}
	o, err := h.mgr.CreateOrg(r.Context(), req.Name, req.Slug, req.Plan, req.BillingEmail)
	if err != nil {
		if err == org.ErrSlugExists {
			writeErr(w, r, apperrors.New(apperrors.KindState, apperrors.CodeInvalidOperation, err.Error()))
			return
		}
		writeErr(w, r, apperrors.Internal("could not create organization"))
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// GET /v1/orgs/{id}
func (h *handlers) getOrg(w http.ResponseWriter, r *http.Request, id string) {
	o, err := h.mgr.GetOrg(r.Context(), id)
	if err != nil {
		writeErr(w, r, apperrors.Internal("could not load organization"))
		return
	}
	if o == nil {
		writeErr(w, r, apperrors.New(apperrors.KindNotFound, apperrors.CodeNotFound, "organization not found"))
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// POST /v1/orgs/{orgID}/teams
func (h *handlers) createTeam(w http.ResponseWriter, r *http.Request, orgID string) {
	var req struct {
		Name             string `json:"name"`
		ParentTeamID     string `json:"parent_team_id"`
		BudgetLimitMinor *int64 `json:"budget_limit_minor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidJSON, "invalid JSON body"))
		return
	}
	t, err := h.mgr.CreateTeam(r.Context(), orgID, req.Name, req.ParentTeamID, req.BudgetLimitMinor)
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidOperation, err.Error()))
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// POST /v1/orgs/{orgID}/teams/{teamID}/reparent
func (h *handlers) reparentTeam(w http.ResponseWriter, r *http.Request, orgID, teamID string) {
	var req struct {
		NewParentTeamID string `json:"new_parent_team_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidJSON, "invalid JSON body"))
		return
	}
	if err := h.mgr.ReparentTeam(r.Context(), orgID, teamID, req.NewParentTeamID); err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindState, apperrors.CodeInvalidOperation, err.Error()))
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// GET /v1/orgs/{orgID}/teams/{teamID}/rollup
func (h *handlers) rollUpSpend(w http.ResponseWriter, r *http.Request, orgID, teamID string) {
	rollup, err := h.mgr.RollUpSpend(r.Context(), orgID, teamID, h.lookup)
	if err != nil {
		writeErr(w, r, apperrors.Internal("could not compute spend rollup"))
		return
	}
	writeJSON(w, http.StatusOK, rollup)
}

// POST /v1/orgs/{orgID}/members
func (h *handlers) addMember(w http.ResponseWriter, r *http.Request, orgID string) {
	var req struct {
		UserID    string         `json:"user_id"`
		Role      org.MemberRole `json:"role"`
		InvitedBy string         `json:"invited_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidJSON, "invalid JSON body"))
		return
	}
	m, err := h.mgr.AddMember(r.Context(), orgID, req.UserID, req.Role, req.InvitedBy)
	if err != nil {
		writeErr(w, r, apperrors.Internal("could not add member"))
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// splitPath splits "orgID/rest..." and reports whether a remainder exists.
func splitPath(rest string) (first, remainder string) {
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
