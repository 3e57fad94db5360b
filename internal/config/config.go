// Package config loads per-service settings from the environment, the way
// every aex-* service in the teacher pack does it.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings holds the fields every service binary needs; each cmd/ main
// embeds this and adds service-specific fields on top.
type Settings struct {
	Port string

	MongoURI      string
	MongoDatabase string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// AllowedDomains gates payment.domain in the mandate verifier (spec.md
	// §4.1 check 8). Empty means "allow-list not enforced" for local dev.
	AllowedDomains []string

	// DefaultCanonicalization picks the mandate signature-base scheme when
	// a request does not explicitly choose one (spec.md §9 Open Question).
	DefaultCanonicalization string // "pipe" | "jcs"
}

// Load reads Settings from the environment with sane local-dev defaults.
func Load() Settings {
	return Settings{
		Port:                    getenv("PORT", "8080"),
		MongoURI:                strings.TrimSpace(os.Getenv("MONGO_URI")),
		MongoDatabase:           getenv("MONGO_DB", "sardis"),
		ReadTimeout:             10 * time.Second,
		WriteTimeout:            20 * time.Second,
		IdleTimeout:             60 * time.Second,
		AllowedDomains:          getenvList("ALLOWED_DOMAINS"),
		DefaultCanonicalization: getenv("DEFAULT_CANONICALIZATION", "pipe"),
	}
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getenvList(k string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GetenvInt reads an integer env var with a default, for service-specific
// config structs built on top of Settings.
func GetenvInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// GetenvDuration reads a duration env var (Go duration syntax) with a default.
func GetenvDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
