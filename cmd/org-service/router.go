package main

import (
	"net/http"
	"strings"
)

func newRouter(h *handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", h.health)
	mux.HandleFunc("/v1/orgs", h.createOrg)
	mux.HandleFunc("/v1/orgs/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/v1/orgs/")
		orgID, remainder := splitPath(rest)
		if remainder == "" {
			h.getOrg(w, r, orgID)
			return
		}
		if remainder == "teams" {
			h.createTeam(w, r, orgID)
			return
		}
		if remainder == "members" {
			h.addMember(w, r, orgID)
			return
		}
		if strings.HasPrefix(remainder, "teams/") {
			teamRest := strings.TrimPrefix(remainder, "teams/")
			teamID, action := splitPath(teamRest)
			switch action {
			case "reparent":
				h.reparentTeam(w, r, orgID, teamID)
			case "rollup":
				h.rollUpSpend(w, r, orgID, teamID)
			default:
				http.NotFound(w, r)
			}
			return
		}
		http.NotFound(w, r)
	})

	return mux
}
