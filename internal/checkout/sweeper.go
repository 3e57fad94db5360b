package checkout

import (
	"context"
	"log/slog"
	"time"
)

// SweepInterval is the background expiry sweep cadence named in §4.4
// ("plus a background sweeper every 60 s").
const SweepInterval = 60 * time.Second

// RunExpirySweeper periodically transitions non-terminal sessions whose
// TTL has lapsed to EXPIRED, catching sessions that see no further
// operations to trigger lazy expiration. Callers start this once per
// process as a background goroutine.
func (m *Manager) RunExpirySweeper(ctx context.Context) {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepOnce(ctx, time.Now())
		}
	}
}

func (m *Manager) sweepOnce(ctx context.Context, now time.Time) {
	expirable, err := m.store.ListExpirable(ctx, now)
	if err != nil {
		slog.ErrorContext(ctx, "checkout_sweep_list_failed", "error", err)
		return
	}
	for _, session := range expirable {
		session.Status = StatusExpired
		session.UpdatedAt = now
		if err := m.store.Upsert(ctx, session); err != nil {
			slog.ErrorContext(ctx, "checkout_sweep_expire_failed", "session_id", session.ID, "error", err)
		}
	}
	if len(expirable) > 0 {
		slog.DebugContext(ctx, "checkout_sweep_expired", "count", len(expirable))
	}
}
