package agentcard

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sardis-payments/sardis/internal/httpclient"
)

const (
	// WellKnownPath is the standard A2A agent card path.
	WellKnownPath = "/.well-known/agent-card.json"
	// DefaultCacheTTL is how long a resolved card is trusted before refetch.
	DefaultCacheTTL = 5 * time.Minute
	// DefaultTimeout bounds a single agent-card fetch.
	DefaultTimeout = 10 * time.Second
)

// Resolver fetches and caches counterparty Agent Cards over httpclient.Client
// so fetches get the shared retry/backoff behavior other outbound calls do.
type Resolver struct {
	client   *httpclient.Client
	cache    map[string]*cacheEntry
	cacheMu  sync.RWMutex
	cacheTTL time.Duration
}

type cacheEntry struct {
	card      *ResolvedAgentCard
	expiresAt time.Time
}

// ResolverOption configures the Resolver.
type ResolverOption func(*Resolver)

// WithCacheTTL overrides DefaultCacheTTL.
func WithCacheTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.cacheTTL = ttl
	}
}

// WithClient overrides the default httpclient.Client (e.g. to tune retries).
func WithClient(client *httpclient.Client) ResolverOption {
	return func(r *Resolver) {
		r.client = client
	}
}

// NewResolver creates a Resolver backed by a retrying httpclient.Client.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client:   httpclient.NewClient("agentcard-resolver", DefaultTimeout),
		cache:    make(map[string]*cacheEntry),
		cacheTTL: DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches (or returns the cached copy of) the agent card published
// at baseURL's well-known path.
func (r *Resolver) Resolve(ctx context.Context, baseURL string) (*ResolvedAgentCard, error) {
	agentCardURL, err := r.buildAgentCardURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	if cached := r.getCached(agentCardURL); cached != nil {
		slog.DebugContext(ctx, "agent card cache hit", "url", agentCardURL)
		return cached, nil
	}

	slog.InfoContext(ctx, "fetching agent card", "url", agentCardURL)
	card, err := r.fetch(ctx, agentCardURL)
	if err != nil {
		return nil, err
	}

	r.setCache(agentCardURL, card)
	return card, nil
}

// Validate checks that a fetched card carries the fields a capability
// attestation needs to be meaningful.
func (r *Resolver) Validate(card *AgentCard) error {
	if card.Name == "" {
		return fmt.Errorf("agent card missing required field: name")
	}
	if card.URL == "" {
		return fmt.Errorf("agent card missing required field: url")
	}
	if len(card.Skills) == 0 {
		return fmt.Errorf("agent card must declare at least one skill")
	}
	for i, skill := range card.Skills {
		if skill.ID == "" {
			return fmt.Errorf("skill %d missing required field: id", i)
		}
		if skill.Name == "" {
			return fmt.Errorf("skill %d missing required field: name", i)
		}
	}
	return nil
}

// InvalidateCache drops one cached card, forcing the next Resolve to refetch.
func (r *Resolver) InvalidateCache(baseURL string) {
	agentCardURL, err := r.buildAgentCardURL(baseURL)
	if err != nil {
		return
	}
	r.cacheMu.Lock()
	delete(r.cache, agentCardURL)
	r.cacheMu.Unlock()
}

func (r *Resolver) buildAgentCardURL(baseURL string) (string, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return "", fmt.Errorf("empty base url")
	}
	if strings.HasSuffix(baseURL, "/agent-card.json") {
		return baseURL, nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + WellKnownPath
	return u.String(), nil
}

func (r *Resolver) fetch(ctx context.Context, agentCardURL string) (*ResolvedAgentCard, error) {
	var card AgentCard
	err := httpclient.NewRequest(http.MethodGet, agentCardURL).
		Header("Accept", "application/json").
		Header("User-Agent", "sardis-agentcard-resolver/1.0").
		Context(ctx).
		ExecuteJSON(r.client, &card)
	if err != nil {
		return nil, fmt.Errorf("fetch agent card: %w", err)
	}

	if err := r.Validate(&card); err != nil {
		return nil, fmt.Errorf("invalid agent card: %w", err)
	}

	now := time.Now().UTC()
	return &ResolvedAgentCard{
		AgentCard:  card,
		SourceURL:  agentCardURL,
		ResolvedAt: now,
		ValidUntil: now.Add(r.cacheTTL),
	}, nil
}

func (r *Resolver) getCached(url string) *ResolvedAgentCard {
	r.cacheMu.RLock()
	entry, ok := r.cache[url]
	r.cacheMu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil
	}
	return entry.card
}

func (r *Resolver) setCache(url string, card *ResolvedAgentCard) {
	r.cacheMu.Lock()
	r.cache[url] = &cacheEntry{card: card, expiresAt: time.Now().Add(r.cacheTTL)}
	r.cacheMu.Unlock()
}
