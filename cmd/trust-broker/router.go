package main

import (
	"net/http"
	"strings"
)

func newRouter(h *handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", h.health)
	mux.HandleFunc("/v1/identity/bind", h.bindIdentity)
	mux.HandleFunc("/v1/identity/register", h.registerAgent)
	mux.HandleFunc("/v1/identity/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/v1/identity/")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 {
			http.NotFound(w, r)
			return
		}
		switch parts[1] {
		case "kya-transition":
			h.transitionKYA(w, r, parts[0])
		case "attest-capabilities":
			h.attestCapabilities(w, r, parts[0])
		default:
			http.NotFound(w, r)
		}
	})

	mux.HandleFunc("/v1/trust/evaluate", h.evaluateTrust)

	mux.HandleFunc("/v1/policy/plugins", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.registerPlugin(w, r)
		case http.MethodGet:
			h.listPlugins(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/v1/policy/evaluate", h.evaluatePolicy)
	mux.HandleFunc("/v1/policy/approve", h.approvePolicy)

	return mux
}
