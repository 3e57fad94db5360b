package canonledger

import (
	"context"
	"testing"
	"time"
)

func amt(v int64) *int64 { return &v }

func TestIngest_HappyPathTransitionsToSettled(t *testing.T) {
	l := New(NewMemoryStore())
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	states := []State{StateCreated, StateSubmitted, StateProcessing, StateSettled}
	var last *IngestResult
	for i, st := range states {
		res, err := l.Ingest(ctx, IngestEvent{
			OrganizationID: "org_1", Rail: "stablecoin", Provider: "base",
			ExternalReference: "tx_1", CanonicalEventType: "transfer",
			CanonicalState: st, EventTS: base.Add(time.Duration(i) * time.Minute),
			AmountMinor: amt(5000),
		}, 0)
		if err != nil {
			t.Fatalf("ingest %s: %v", st, err)
		}
		last = res
	}
	if last.Journey.CanonicalState != StateSettled {
		t.Fatalf("state = %s, want settled", last.Journey.CanonicalState)
	}
	if last.Journey.SettledAmountMinor != 5000 {
		t.Fatalf("settled amount = %d, want 5000", last.Journey.SettledAmountMinor)
	}
	if last.BreakDetected {
		t.Fatal("no drift expected when expected == settled")
	}
}

func TestIngest_DriftOpensOneBreakAndReview(t *testing.T) {
	l := New(NewMemoryStore())
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := l.Ingest(ctx, IngestEvent{
		OrganizationID: "org_1", Rail: "ach", Provider: "lithic",
		ExternalReference: "tx_5", CanonicalEventType: "origination",
		CanonicalState: StateCreated, EventTS: base, AmountMinor: amt(1000),
	}, 0)
	if err != nil {
		t.Fatalf("ingest created: %v", err)
	}

	res, err := l.Ingest(ctx, IngestEvent{
		OrganizationID: "org_1", Rail: "ach", Provider: "lithic",
		ExternalReference: "tx_5", CanonicalEventType: "settlement",
		CanonicalState: StateSettled, EventTS: base.Add(time.Minute), AmountMinor: amt(1250),
	}, 0)
	if err != nil {
		t.Fatalf("ingest settled: %v", err)
	}
	if !res.BreakDetected || !res.ManualReviewCreated {
		t.Fatalf("expected break+review, got %+v", res)
	}

	store := l.store.(*MemoryStore)
	breaks, _ := store.ListBreaks(ctx, "org_1", "", 0)
	if len(breaks) != 1 {
		t.Fatalf("breaks = %d, want 1", len(breaks))
	}
	if breaks[0].Severity != SeverityMedium {
		t.Fatalf("severity = %s, want medium", breaks[0].Severity)
	}

	// Re-ingesting the identical settled event again must not duplicate the
	// open break or review (spec.md §4.6 dedup rule).
	res2, err := l.Ingest(ctx, IngestEvent{
		OrganizationID: "org_1", Rail: "ach", Provider: "lithic",
		ExternalReference: "tx_5", CanonicalEventType: "settlement",
		CanonicalState: StateSettled, EventTS: base.Add(2 * time.Minute), AmountMinor: amt(1250),
	}, 0)
	if err != nil {
		t.Fatalf("re-ingest: %v", err)
	}
	if res2.BreakDetected || res2.ManualReviewCreated {
		t.Fatal("duplicate break/review should not be created")
	}
	breaks, _ = store.ListBreaks(ctx, "org_1", "", 0)
	if len(breaks) != 1 {
		t.Fatalf("breaks after re-ingest = %d, want 1", len(breaks))
	}
}

func TestIngest_ProviderEventDedupeIsShortCircuited(t *testing.T) {
	l := New(NewMemoryStore())
	ctx := context.Background()
	event := IngestEvent{
		OrganizationID: "org_1", Rail: "stablecoin", Provider: "base",
		ExternalReference: "tx_9", ProviderEventID: "evt_1",
		CanonicalEventType: "transfer", CanonicalState: StateSubmitted,
		EventTS: time.Now(), AmountMinor: amt(100),
	}
	if _, err := l.Ingest(ctx, event, 0); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	res, err := l.Ingest(ctx, event, 0)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if !res.Duplicate {
		t.Fatal("expected duplicate=true on repeated provider_event_id")
	}
}

func TestIngest_BackwardTransitionFlaggedOutOfOrder(t *testing.T) {
	l := New(NewMemoryStore())
	ctx := context.Background()
	base := time.Now()

	_, err := l.Ingest(ctx, IngestEvent{
		OrganizationID: "org_1", Rail: "stablecoin", Provider: "base",
		ExternalReference: "tx_7", CanonicalState: StateProcessing, EventTS: base,
	}, 0)
	if err != nil {
		t.Fatal(err)
	}
	res, err := l.Ingest(ctx, IngestEvent{
		OrganizationID: "org_1", Rail: "stablecoin", Provider: "base",
		ExternalReference: "tx_7", CanonicalState: StateSubmitted, EventTS: base.Add(time.Second),
	}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !res.OutOfOrder {
		t.Fatal("expected out_of_order=true for backward transition")
	}
	if res.Journey.CanonicalState != StateProcessing {
		t.Fatalf("journey regressed to %s, want processing retained", res.Journey.CanonicalState)
	}
}

func TestBumpRetryCount_EnqueuesRetryExhaustedReview(t *testing.T) {
	l := New(NewMemoryStore())
	ctx := context.Background()
	_, err := l.Ingest(ctx, IngestEvent{
		OrganizationID: "org_1", Rail: "ach", Provider: "lithic",
		ExternalReference: "tx_3", CanonicalState: StateCreated, EventTS: time.Now(),
	}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.BumpRetryCount(ctx, "org_1", "ach", "tx_3", 2); err != nil {
		t.Fatal(err)
	}
	j, err := l.BumpRetryCount(ctx, "org_1", "ach", "tx_3", 2)
	if err != nil {
		t.Fatal(err)
	}
	if j.RetryCount != 2 {
		t.Fatalf("retry_count = %d, want 2", j.RetryCount)
	}
	store := l.store.(*MemoryStore)
	reviews, _ := store.ListReviews(ctx, "org_1", "", 0)
	found := false
	for _, r := range reviews {
		if r.ReasonCode == "retry_exhausted" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected retry_exhausted manual review")
	}
}

func TestJourneyID_IsDeterministic(t *testing.T) {
	a := JourneyID("org_1", "ach", "tx_1")
	b := JourneyID("org_1", "ach", "tx_1")
	if a != b {
		t.Fatal("journey id must be deterministic")
	}
	if len(a) != len("jrny_")+24 {
		t.Fatalf("journey id length = %d, want %d", len(a), len("jrny_")+24)
	}
}
