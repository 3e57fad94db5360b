package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sardis-payments/sardis/internal/apperrors"
	"github.com/sardis-payments/sardis/internal/canonledger"
	"github.com/sardis-payments/sardis/internal/httpmw"
	"github.com/sardis-payments/sardis/internal/replay"
	"github.com/sardis-payments/sardis/internal/treasury"
)

type handlers struct {
	ledger         *canonledger.Ledger
	ledgerStore    canonledger.Store
	treasurySvc    *treasury.Service
	webhookGuard   *replay.WebhookGuard
	webhookSecret  string
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, r *http.Request, err *apperrors.Error) {
	apperrors.WriteJSON(w, err.WithRequestID(httpmw.GetRequestID(r.Context())))
}

// POST /v1/treasury/webhooks/lithic
//
// Replay protection (7-day TTL) is applied here, the caller
// treasury.Service.ProcessWebhook expects, before the payload is handed to
// the service.
func (h *handlers) lithicWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidJSON, "could not read body"))
		return
	}
	if !treasury.VerifySignature(body, r.Header.Get("X-Lithic-HMAC"), h.webhookSecret) {
		writeErr(w, r, apperrors.New(apperrors.KindAuth, apperrors.CodeUnauthenticated, "invalid webhook signature"))
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidJSON, "invalid JSON payload"))
		return
	}
	eventID := treasury.EventID(payload, body)
	alreadySeen, err := h.webhookGuard.Seen(r.Context(), "lithic", eventID)
	if err != nil {
		slog.ErrorContext(r.Context(), "webhook_guard_failed", "error", err)
		writeErr(w, r, apperrors.Internal("could not check webhook replay state"))
		return
	}
	if alreadySeen {
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate_ignored"})
		return
	}

	defaultOrgID := r.URL.Query().Get("org_id")
	if err := h.treasurySvc.ProcessWebhook(r.Context(), body, defaultOrgID); err != nil {
		slog.ErrorContext(r.Context(), "process_webhook_failed", "error", err)
		writeErr(w, r, apperrors.New(apperrors.KindState, apperrors.CodeInvalidOperation, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

// POST /v1/ledger/ingest — manual ingestion path for rails without a
// webhook integration yet (e.g. direct chain executor callbacks).
func (h *handlers) ingestEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Event               canonledger.IngestEvent `json:"event"`
		DriftToleranceMinor int64                   `json:"drift_tolerance_minor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidJSON, "invalid JSON body"))
		return
	}
	result, err := h.ledger.Ingest(r.Context(), req.Event, req.DriftToleranceMinor)
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindState, apperrors.CodeInvalidOperation, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GET /v1/ledger/journeys?org_id=&rail=&state=&break_status=&limit=
func (h *handlers) listJourneys(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = 100
	}
	journeys, err := h.ledgerStore.ListJourneys(r.Context(), q.Get("org_id"), q.Get("rail"), q.Get("state"), q.Get("break_status"), limit)
	if err != nil {
		writeErr(w, r, apperrors.Internal("could not list journeys"))
		return
	}
	writeJSON(w, http.StatusOK, journeys)
}

// GET /v1/ledger/journeys/{id}
func (h *handlers) getJourney(w http.ResponseWriter, r *http.Request, id string) {
	journey, err := h.ledgerStore.GetJourney(r.Context(), id)
	if err != nil {
		writeErr(w, r, apperrors.Internal("could not load journey"))
		return
	}
	if journey == nil {
		writeErr(w, r, apperrors.New(apperrors.KindNotFound, apperrors.CodeNotFound, "journey not found"))
		return
	}
	writeJSON(w, http.StatusOK, journey)
}

// GET /v1/ledger/breaks?org_id=&status=&limit=
func (h *handlers) listBreaks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = 100
	}
	breaks, err := h.ledgerStore.ListBreaks(r.Context(), q.Get("org_id"), q.Get("status"), limit)
	if err != nil {
		writeErr(w, r, apperrors.Internal("could not list breaks"))
		return
	}
	writeJSON(w, http.StatusOK, breaks)
}

// GET /v1/ledger/reviews?org_id=&status=&limit=
func (h *handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = 100
	}
	reviews, err := h.ledgerStore.ListReviews(r.Context(), q.Get("org_id"), q.Get("status"), limit)
	if err != nil {
		writeErr(w, r, apperrors.Internal("could not list reviews"))
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

// POST /v1/ledger/reviews/{id}/resolve
func (h *handlers) resolveReview(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		OrgID  string                    `json:"org_id"`
		Status canonledger.ReviewStatus  `json:"status"`
		Notes  string                    `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidJSON, "invalid JSON body"))
		return
	}
	item, err := h.ledgerStore.ResolveReview(r.Context(), req.OrgID, id, req.Status, req.Notes)
	if err != nil {
		writeErr(w, r, apperrors.New(apperrors.KindState, apperrors.CodeInvalidOperation, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
