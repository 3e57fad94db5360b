// Package replay implements the atomic check-and-store mandate/webhook
// replay guard described in spec.md §4.1 check 9 and §4.8's webhook
// protection, grounded on storage.py's ReplayCache (INSERT ... ON CONFLICT
// semantics, adapted to Mongo as a conditional UpdateOne renewal followed by
// an InsertOne guarded by the unique _id).
package replay

import (
	"context"
	"time"
)

// Entry is one stored replay-cache row, keyed on Key.
type Entry struct {
	Key       string    `bson:"_id"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// Store is the persistence seam for the replay cache; Cache (cache.go)
// is the thing callers depend on, built on top of a Store.
type Store interface {
	// CheckAndStore atomically inserts key with expiresAt unless an
	// unexpired entry for key already exists, in which case it reports
	// storedNow=false without modifying the existing entry. An expiresAt at
	// or before now is replaced by now plus 24 hours. Mirrors the
	// INSERT ... ON CONFLICT DO UPDATE ... RETURNING (xmax = 0) pattern
	// in PostgresReplayCache.check_and_store_async.
	CheckAndStore(ctx context.Context, key string, expiresAt time.Time) (storedNow bool, err error)

	// Cleanup removes all entries with ExpiresAt <= now, returning the
	// count removed.
	Cleanup(ctx context.Context, now time.Time) (removed int, err error)

	// Release deletes key's entry unconditionally. Used to compensate a
	// CheckAndStore insert when a later step in the same transaction (e.g.
	// archiving the chain that insert was guarding) fails, so a transient
	// downstream error doesn't permanently brand the key as replayed.
	Release(ctx context.Context, key string) error
}
