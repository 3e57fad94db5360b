package canonledger

import "context"

// JourneyKey is the natural key a journey is upserted and looked up by.
type JourneyKey struct {
	OrganizationID    string
	Rail              string
	ExternalReference string
}

// Store persists journeys, events, breaks, and manual-review items. All
// writes touching a single journey_id are expected to be applied by the
// caller (Ledger) under a per-journey lock so they present as one atomic
// step, per spec.md §4.6's "single transaction keyed by journey_id".
type Store interface {
	GetJourneyByKey(ctx context.Context, key JourneyKey) (*CanonicalJourney, error)
	GetJourney(ctx context.Context, journeyID string) (*CanonicalJourney, error)
	UpsertJourney(ctx context.Context, journey CanonicalJourney) error
	ListJourneys(ctx context.Context, orgID string, rail, state, breakStatus string, limit int) ([]CanonicalJourney, error)

	// HasProviderEvent reports whether (provider, provider_event_id) was
	// already ingested, for the dedupe short-circuit in step 1.
	HasProviderEvent(ctx context.Context, provider, providerEventID string) (bool, error)
	InsertEvent(ctx context.Context, event CanonicalEvent) error

	// InsertBreakIfAbsent inserts a break unless one of the same
	// (break_type, journey_id) is already open; returns true if inserted.
	InsertBreakIfAbsent(ctx context.Context, b ReconciliationBreak) (bool, error)
	ListBreaks(ctx context.Context, orgID, status string, limit int) ([]ReconciliationBreak, error)

	// EnqueueReviewIfAbsent inserts a manual-review item unless one with the
	// same (journey_id, reason_code) is already queued/in_review; returns
	// true if inserted.
	EnqueueReviewIfAbsent(ctx context.Context, item ManualReviewItem) (bool, error)
	ListReviews(ctx context.Context, orgID, status string, limit int) ([]ManualReviewItem, error)
	ResolveReview(ctx context.Context, orgID, reviewID string, status ReviewStatus, notes string) (*ManualReviewItem, error)
}
