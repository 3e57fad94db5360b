package checkout

import (
	"context"
	"time"
)

// Store persists checkout sessions.
type Store interface {
	Upsert(ctx context.Context, session Session) error
	Get(ctx context.Context, id string) (*Session, error)
	// ListExpirable returns non-terminal sessions whose expires_at is at or
	// before asOf, for the background sweeper.
	ListExpirable(ctx context.Context, asOf time.Time) ([]Session, error)
}
