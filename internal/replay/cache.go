package replay

import (
	"context"
	"log/slog"
	"time"
)

// Cache wraps a Store with the cleanup sweep cadence ReplayCache uses
// (periodic cleanup on a timer rather than on every call, to keep
// check_and_store cheap on the hot path).
type Cache struct {
	store           Store
	cleanupInterval time.Duration
}

func NewCache(store Store) *Cache {
	return &Cache{store: store, cleanupInterval: 5 * time.Minute}
}

// CheckAndStore satisfies ap2.ReplayChecker.
func (c *Cache) CheckAndStore(ctx context.Context, mandateID string, expiresAt time.Time) (bool, error) {
	return c.store.CheckAndStore(ctx, mandateID, expiresAt)
}

// Release satisfies ap2.ReplayChecker's compensating-rollback hook.
func (c *Cache) Release(ctx context.Context, mandateID string) error {
	return c.store.Release(ctx, mandateID)
}

// RunCleanupLoop sweeps expired entries every cleanupInterval until ctx is
// done; callers start this once per process as a background goroutine.
func (c *Cache) RunCleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := c.store.Cleanup(ctx, time.Now())
			if err != nil {
				slog.ErrorContext(ctx, "replay_cache_cleanup_failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.DebugContext(ctx, "replay_cache_cleanup", "removed", removed)
			}
		}
	}
}

// WebhookGuard wraps a Store for the §4.8 webhook replay-protection
// contract, keyed on "(provider):(event_id)" rather than a mandate id.
type WebhookGuard struct {
	cache *Cache
}

func NewWebhookGuard(store Store) *WebhookGuard {
	return &WebhookGuard{cache: NewCache(store)}
}

// Seen reports whether (provider, eventID) has already been processed; if
// not, it is recorded with a 7-day TTL per spec.md §4.8.
func (g *WebhookGuard) Seen(ctx context.Context, provider, eventID string) (alreadySeen bool, err error) {
	key := provider + ":" + eventID
	storedNow, err := g.cache.CheckAndStore(ctx, key, time.Now().Add(7*24*time.Hour))
	if err != nil {
		return false, err
	}
	return !storedNow, nil
}
