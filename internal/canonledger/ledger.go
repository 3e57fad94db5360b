package canonledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/sardis-payments/sardis/internal/events"
)

// Ledger is the entry point for §4.6: ingest_event, drift detection, and
// retry/return-code handling, serialized per journey_id so the
// journey-upsert + event-insert + break/review-insert sequence presents as
// one atomic step under concurrent webhooks (spec.md §5).
type Ledger struct {
	store Store

	// locks holds one mutex per journey_id, created on first use, so all
	// writes touching one journey are serialized. (internal/escrow.Manager
	// and internal/policy.Registry instead use a single process-wide mutex.)
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	publisher *events.Publisher
}

func New(store Store) *Ledger {
	return &Ledger{store: store, locks: make(map[string]*sync.Mutex)}
}

// WithPublisher attaches an events.Publisher so break detection and review
// enqueuing also emit reconciliation.break_detected / review.enqueued events.
func (l *Ledger) WithPublisher(publisher *events.Publisher) *Ledger {
	l.publisher = publisher
	return l
}

func (l *Ledger) publishBreak(ctx context.Context, b ReconciliationBreak) {
	if l.publisher == nil {
		return
	}
	_ = l.publisher.Publish(ctx, events.EventReconciliationBreakDetected, b.OrganizationID, b.BreakID, map[string]any{
		"break_id":              b.BreakID,
		"journey_id":            b.JourneyID,
		"break_type":            b.BreakType,
		"severity":              string(b.Severity),
		"expected_amount_minor": b.ExpectedAmountMinor,
		"settled_amount_minor":  b.SettledAmountMinor,
		"delta_minor":           b.DeltaMinor,
	})
}

func (l *Ledger) publishReview(ctx context.Context, r ManualReviewItem) {
	if l.publisher == nil {
		return
	}
	_ = l.publisher.Publish(ctx, events.EventManualReviewEnqueued, r.OrganizationID, r.ReviewID, map[string]any{
		"review_id":   r.ReviewID,
		"journey_id":  r.JourneyID,
		"reason_code": r.ReasonCode,
		"priority":    r.Priority,
	})
}

func (l *Ledger) lockFor(journeyID string) *sync.Mutex {
	l.locksMu.Lock()
	defer l.locksMu.Unlock()
	m, ok := l.locks[journeyID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[journeyID] = m
	}
	return m
}

// JourneyID derives the deterministic journey_id per spec.md §3:
// "jrny_" + first 24 hex of SHA-256("org_id:rail:external_reference").
func JourneyID(orgID, rail, externalRef string) string {
	sum := sha256.Sum256([]byte(orgID + ":" + rail + ":" + externalRef))
	return "jrny_" + hex.EncodeToString(sum[:])[:24]
}

const defaultMaxRetry = 2

// Ingest applies one provider event to the canonical ledger, per the
// six-step procedure of spec.md §4.6.
func (l *Ledger) Ingest(ctx context.Context, e IngestEvent, driftToleranceMinor int64) (*IngestResult, error) {
	journeyID := JourneyID(e.OrganizationID, e.Rail, e.ExternalReference)

	// Step 1: dedupe on (provider, provider_event_id) before taking the
	// journey lock — a duplicate short-circuits without mutating state.
	if e.ProviderEventID != "" {
		dup, err := l.store.HasProviderEvent(ctx, e.Provider, e.ProviderEventID)
		if err != nil {
			return nil, err
		}
		if dup {
			journey, err := l.store.GetJourney(ctx, journeyID)
			if err != nil {
				return nil, err
			}
			if journey == nil {
				journey = &CanonicalJourney{JourneyID: journeyID}
			}
			return &IngestResult{Journey: *journey, Duplicate: true}, nil
		}
	}

	mu := l.lockFor(journeyID)
	mu.Lock()
	defer mu.Unlock()

	key := JourneyKey{OrganizationID: e.OrganizationID, Rail: e.Rail, ExternalReference: e.ExternalReference}
	journey, err := l.store.GetJourneyByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	eventTS := e.EventTS
	if eventTS.IsZero() {
		eventTS = now
	}
	if journey == nil {
		journey = &CanonicalJourney{
			JourneyID:          journeyID,
			OrganizationID:     e.OrganizationID,
			Rail:               e.Rail,
			Provider:           e.Provider,
			ExternalReference:  e.ExternalReference,
			Direction:          e.Direction,
			Currency:           nonEmpty(e.Currency, "USD"),
			CanonicalState:     StateCreated,
			BreakStatus:        BreakStatusOK,
			FirstEventAt:       eventTS,
			LastEventAt:        eventTS,
			CreatedAt:          now,
		}
	}

	// Step 2 done (journey upserted by natural key above).
	// Step 3: state transition over the DAG.
	next, outOfOrder := applyTransition(journey.CanonicalState, e.CanonicalState)
	if journey.LastEventAt.After(eventTS) {
		outOfOrder = true
	} else {
		journey.LastEventAt = eventTS
	}
	journey.CanonicalState = next
	journey.Provider = e.Provider
	if e.Direction != "" {
		journey.Direction = e.Direction
	}
	if e.Currency != "" {
		journey.Currency = e.Currency
	}

	// Step 4: expected/settled amount bookkeeping.
	if e.AmountMinor != nil && journey.ExpectedAmountMinor <= 0 {
		journey.ExpectedAmountMinor = *e.AmountMinor
	}
	if e.CanonicalState == StateSettled && e.AmountMinor != nil {
		journey.SettledAmountMinor = *e.AmountMinor
	}
	if e.CanonicalState == StateReturned || e.CanonicalState == StateFailed {
		journey.SettledAmountMinor = 0
	}

	breakDetected := false
	reviewCreated := false

	// Step 5: drift detection on settlement.
	if next == StateSettled && journey.ExpectedAmountMinor > 0 {
		delta := journey.ExpectedAmountMinor - journey.SettledAmountMinor
		if delta < 0 {
			delta = -delta
		}
		tolerance := driftToleranceMinor
		if tolerance < 0 {
			tolerance = 0
		}
		if delta > tolerance {
			severity := SeverityMedium
			if delta > max64(1000, tolerance*5) {
				severity = SeverityHigh
			}
			driftBreak := ReconciliationBreak{
				BreakID:             "break_" + journeyID + "_" + e.CanonicalEventType,
				OrganizationID:      e.OrganizationID,
				JourneyID:           journeyID,
				BreakType:           "expected_settled_mismatch",
				Severity:            severity,
				ExpectedAmountMinor: journey.ExpectedAmountMinor,
				SettledAmountMinor:  journey.SettledAmountMinor,
				DeltaMinor:          delta,
				Status:              BreakOpen,
				Metadata:            map[string]any{"rail": e.Rail, "provider": e.Provider},
				DetectedAt:          now,
			}
			inserted, err := l.store.InsertBreakIfAbsent(ctx, driftBreak)
			if err != nil {
				return nil, err
			}
			breakDetected = inserted
			if inserted {
				l.publishBreak(ctx, driftBreak)
				driftReview := ManualReviewItem{
					ReviewID:       "review_" + journeyID + "_drift",
					OrganizationID: e.OrganizationID,
					JourneyID:      journeyID,
					ReasonCode:     "drift_mismatch",
					Priority:       "high",
					Status:         ReviewQueued,
					Payload: map[string]any{
						"expected_amount_minor": journey.ExpectedAmountMinor,
						"settled_amount_minor":  journey.SettledAmountMinor,
						"delta_minor":            delta,
					},
					CreatedAt: now,
					UpdatedAt: now,
				}
				created, err := l.store.EnqueueReviewIfAbsent(ctx, driftReview)
				if err != nil {
					return nil, err
				}
				reviewCreated = created
				if created {
					l.publishReview(ctx, driftReview)
				}
			}
		}
	}

	// Step 6: return-code handling. R29 opens a critical break + review
	// regardless of settlement drift; R01/R09 bump the retry counter
	// (handled by BumpRetryCount, called by the caller after ingest so the
	// retry-exhausted review enqueues under the same journey lock).
	if e.ReturnCode == "R29" {
		r29Break := ReconciliationBreak{
			BreakID:        "break_" + journeyID + "_r29",
			OrganizationID: e.OrganizationID,
			JourneyID:      journeyID,
			BreakType:      "provider_return_high_risk",
			Severity:       SeverityCritical,
			Status:         BreakOpen,
			Metadata:       map[string]any{"return_code": e.ReturnCode},
			DetectedAt:     now,
		}
		inserted, err := l.store.InsertBreakIfAbsent(ctx, r29Break)
		if err != nil {
			return nil, err
		}
		if inserted {
			l.publishBreak(ctx, r29Break)
		}
		breakDetected = breakDetected || inserted
		r29Review := ManualReviewItem{
			ReviewID:       "review_" + journeyID + "_r29",
			OrganizationID: e.OrganizationID,
			JourneyID:      journeyID,
			ReasonCode:     "R29",
			Priority:       "critical",
			Status:         ReviewQueued,
			Payload:        map[string]any{"return_code": e.ReturnCode},
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		created, err := l.store.EnqueueReviewIfAbsent(ctx, r29Review)
		if err != nil {
			return nil, err
		}
		if created {
			l.publishReview(ctx, r29Review)
		}
		reviewCreated = reviewCreated || created
	}
	if e.ReturnCode != "" {
		journey.LastReturnCode = e.ReturnCode
	}

	switch {
	case reviewCreated:
		journey.BreakStatus = BreakStatusReviewOpen
	case breakDetected:
		journey.BreakStatus = BreakStatusDriftOpen
	}
	journey.UpdatedAt = now

	if err := l.store.UpsertJourney(ctx, *journey); err != nil {
		return nil, err
	}

	eventRecord := CanonicalEvent{
		ID:                 journeyID + "_" + eventTS.Format(time.RFC3339Nano),
		JourneyID:          journeyID,
		OrganizationID:     e.OrganizationID,
		Rail:               e.Rail,
		Provider:           e.Provider,
		ProviderEventID:    e.ProviderEventID,
		ExternalReference:  e.ExternalReference,
		Direction:          e.Direction,
		CanonicalEventType: e.CanonicalEventType,
		CanonicalState:     e.CanonicalState,
		EventTS:            eventTS,
		AmountMinor:        e.AmountMinor,
		Currency:           e.Currency,
		ReturnCode:         e.ReturnCode,
		OutOfOrder:         outOfOrder,
		RawPayload:         e.RawPayload,
		CreatedAt:          now,
	}
	if err := l.store.InsertEvent(ctx, eventRecord); err != nil {
		return nil, err
	}

	return &IngestResult{
		Journey:             *journey,
		Event:               &eventRecord,
		OutOfOrder:          outOfOrder,
		BreakDetected:       breakDetected,
		ManualReviewCreated: reviewCreated,
	}, nil
}

// BumpRetryCount increments a journey's retry_count (driven by R01/R09
// provider returns, spec.md §4.6 step 6 / §4.8) and enqueues a
// retry_exhausted review once retry_count reaches maxRetry.
func (l *Ledger) BumpRetryCount(ctx context.Context, orgID, rail, externalRef string, maxRetry int) (*CanonicalJourney, error) {
	if maxRetry <= 0 {
		maxRetry = defaultMaxRetry
	}
	journeyID := JourneyID(orgID, rail, externalRef)
	mu := l.lockFor(journeyID)
	mu.Lock()
	defer mu.Unlock()

	journey, err := l.store.GetJourneyByKey(ctx, JourneyKey{OrganizationID: orgID, Rail: rail, ExternalReference: externalRef})
	if err != nil || journey == nil {
		return nil, err
	}
	journey.RetryCount++
	journey.UpdatedAt = time.Now().UTC()
	if journey.RetryCount >= maxRetry {
		retryReview := ManualReviewItem{
			ReviewID:       "review_" + journeyID + "_retry_exhausted",
			OrganizationID: orgID,
			JourneyID:      journeyID,
			ReasonCode:     "retry_exhausted",
			Priority:       "high",
			Status:         ReviewQueued,
			Payload:        map[string]any{"retry_count": journey.RetryCount},
			CreatedAt:      journey.UpdatedAt,
			UpdatedAt:      journey.UpdatedAt,
		}
		created, err := l.store.EnqueueReviewIfAbsent(ctx, retryReview)
		if err != nil {
			return nil, err
		}
		if created {
			l.publishReview(ctx, retryReview)
		}
	}
	if err := l.store.UpsertJourney(ctx, *journey); err != nil {
		return nil, err
	}
	return journey, nil
}

func nonEmpty(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
