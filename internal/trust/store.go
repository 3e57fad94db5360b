package trust

import "context"

// Store persists cached trust scores keyed by agent id, per spec.md §4.2's
// "scores are cached with a 5-minute TTL, invalidated on any state change".
type Store interface {
	Get(ctx context.Context, agentID string) (*CacheEntry, error)
	Put(ctx context.Context, entry CacheEntry) error
	Invalidate(ctx context.Context, agentID string) error
}
