package main

import "net/http"

func newRouter(h *handlers) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.health)
	mux.HandleFunc("/v1/audit/entries", h.appendEntry)
	mux.HandleFunc("/v1/audit/anchors", h.listAnchors)
	return mux
}
