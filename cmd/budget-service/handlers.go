package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sardis-payments/sardis/internal/apperrors"
	"github.com/sardis-payments/sardis/internal/budget"
	"github.com/sardis-payments/sardis/internal/httpmw"
	"github.com/shopspring/decimal"
)

type handlers struct {
	mgr *budget.Manager
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, r *http.Request, err *apperrors.Error) {
	apperrors.WriteJSON(w, err.WithRequestID(httpmw.GetRequestID(r.Context())))
}

// POST /v1/budget/cycles
func (h *handlers) createCycle(w http.ResponseWriter, r *http.Request) {
	var in budget.CreateCycleInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidJSON, "invalid JSON body"))
		return
	}
	cycle, err := h.mgr.CreateCycle(r.Context(), in)
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidOperation, err.Error()))
		return
	}
	writeJSON(w, http.StatusCreated, cycle)
}

// GET /v1/budget/cycles/current?org_id=
func (h *handlers) getCurrentCycle(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("org_id")
	cycle, err := h.mgr.GetCurrentCycle(r.Context(), orgID)
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindNotFound, apperrors.CodeNotFound, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, cycle)
}

// POST /v1/budget/cycles/{id}/close
func (h *handlers) closeCycle(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		SpendByAgent map[string]decimal.Decimal `json:"spend_by_agent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidJSON, "invalid JSON body"))
		return
	}
	cycle, err := h.mgr.CloseCycle(r.Context(), budget.CloseCycleInput{CycleID: id, SpendByAgent: req.SpendByAgent})
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindState, apperrors.CodeInvalidOperation, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, cycle)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func routeCycleID(path string) (id string, action string) {
	rest := strings.TrimPrefix(path, "/v1/budget/cycles/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
