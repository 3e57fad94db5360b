package main

import (
	"net/http"
	"strings"
)

func newRouter(h *handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", h.health)

	mux.HandleFunc("/v1/mandates/verify", h.verifyPayment)
	mux.HandleFunc("/v1/mandates/verify-chain", h.verifyChain)

	mux.HandleFunc("/v1/escrow/requests", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.createRequest(w, r)
		case http.MethodGet:
			h.listRequests(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/v1/escrow/requests/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/v1/escrow/requests/")
		parts := strings.SplitN(rest, "/", 2)
		id := parts[0]
		if len(parts) == 1 {
			h.getRequest(w, r, id)
			return
		}
		switch parts[1] {
		case "fund":
			h.fundEscrow(w, r, id)
		case "accept":
			h.acceptRequest(w, r, id)
		case "start":
			h.startRequest(w, r, id)
		case "complete":
			h.completeRequest(w, r, id)
		case "fail":
			h.failRequest(w, r, id)
		default:
			http.NotFound(w, r)
		}
	})

	mux.HandleFunc("/v1/checkout/sessions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.createSession(w, r)
	})
	mux.HandleFunc("/v1/checkout/sessions/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/v1/checkout/sessions/")
		parts := strings.SplitN(rest, "/", 2)
		id := parts[0]
		if len(parts) == 1 {
			h.getSession(w, r, id)
			return
		}
		switch parts[1] {
		case "line-items":
			h.addLineItem(w, r, id)
		case "discounts":
			h.addDiscount(w, r, id)
		case "shipping":
			h.setShipping(w, r, id)
		case "complete":
			h.completeSession(w, r, id)
		case "escalate":
			h.escalateSession(w, r, id)
		case "cancel":
			h.cancelSession(w, r, id)
		default:
			http.NotFound(w, r)
		}
	})

	return mux
}
