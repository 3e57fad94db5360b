package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sardis-payments/sardis/internal/apperrors"
	"github.com/sardis-payments/sardis/internal/audit"
	"github.com/sardis-payments/sardis/internal/httpmw"
)

type handlers struct {
	ledger *audit.Ledger
	store  audit.Store
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, r *http.Request, err *apperrors.Error) {
	apperrors.WriteJSON(w, err.WithRequestID(httpmw.GetRequestID(r.Context())))
}

// POST /v1/audit/entries
func (h *handlers) appendEntry(w http.ResponseWriter, r *http.Request) {
	var in audit.AppendInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidJSON, "invalid JSON body"))
		return
	}
	entry, err := h.ledger.Append(r.Context(), in)
	if err != nil {
		writeErr(w, r, apperrors.Internal("could not append entry"))
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// GET /v1/audit/anchors?limit=
func (h *handlers) listAnchors(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	anchors, err := h.store.ListAnchors(r.Context(), limit)
	if err != nil {
		writeErr(w, r, apperrors.Internal("could not list anchors"))
		return
	}
	writeJSON(w, http.StatusOK, anchors)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
