package trust

import (
	"context"
	"time"
)

// GetOrCompute returns the cached score for agentID if still fresh,
// otherwise computes a fresh one via compute and stores it with a new
// ScoreCacheTTL.
func GetOrCompute(ctx context.Context, store Store, agentID string, now time.Time, compute func() Score) (Score, error) {
	entry, err := store.Get(ctx, agentID)
	if err != nil {
		return Score{}, err
	}
	if entry != nil && !entry.Stale(now) {
		return entry.Score, nil
	}
	score := compute()
	if err := store.Put(ctx, CacheEntry{AgentID: agentID, Score: score, ExpiresAt: now.Add(ScoreCacheTTL)}); err != nil {
		return score, err
	}
	return score, nil
}
