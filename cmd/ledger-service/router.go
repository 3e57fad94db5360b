package main

import (
	"net/http"
	"strings"
)

func newRouter(h *handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", h.health)
	mux.HandleFunc("/v1/treasury/webhooks/lithic", h.lithicWebhook)

	mux.HandleFunc("/v1/ledger/ingest", h.ingestEvent)
	mux.HandleFunc("/v1/ledger/journeys", h.listJourneys)
	mux.HandleFunc("/v1/ledger/journeys/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/v1/ledger/journeys/")
		h.getJourney(w, r, id)
	})
	mux.HandleFunc("/v1/ledger/breaks", h.listBreaks)
	mux.HandleFunc("/v1/ledger/reviews", h.listReviews)
	mux.HandleFunc("/v1/ledger/reviews/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/v1/ledger/reviews/")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 || parts[1] != "resolve" {
			http.NotFound(w, r)
			return
		}
		h.resolveReview(w, r, parts[0])
	})

	return mux
}
