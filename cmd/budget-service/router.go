package main

import "net/http"

func newRouter(h *handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", h.health)
	mux.HandleFunc("/v1/budget/cycles", h.createCycle)
	mux.HandleFunc("/v1/budget/cycles/current", h.getCurrentCycle)
	mux.HandleFunc("/v1/budget/cycles/", func(w http.ResponseWriter, r *http.Request) {
		id, action := routeCycleID(r.URL.Path)
		if action != "close" {
			http.NotFound(w, r)
			return
		}
		h.closeCycle(w, r, id)
	})

	return mux
}
