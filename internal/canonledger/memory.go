package canonledger

import (
	"context"
	"sort"
	"sync"
)

type MemoryStore struct {
	mu          sync.RWMutex
	journeys    map[JourneyKey]CanonicalJourney
	byID        map[string]JourneyKey
	events      map[string]CanonicalEvent // key: provider|provider_event_id
	eventLog    []CanonicalEvent
	breaks      []ReconciliationBreak
	reviews     []ManualReviewItem
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		journeys: make(map[JourneyKey]CanonicalJourney),
		byID:     make(map[string]JourneyKey),
		events:   make(map[string]CanonicalEvent),
	}
}

func eventKey(provider, providerEventID string) string { return provider + "|" + providerEventID }

func (s *MemoryStore) GetJourneyByKey(ctx context.Context, key JourneyKey) (*CanonicalJourney, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.journeys[key]
	if !ok {
		return nil, nil
	}
	out := j
	return &out, nil
}

func (s *MemoryStore) GetJourney(ctx context.Context, journeyID string) (*CanonicalJourney, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.byID[journeyID]
	if !ok {
		return nil, nil
	}
	j := s.journeys[key]
	return &j, nil
}

func (s *MemoryStore) UpsertJourney(ctx context.Context, journey CanonicalJourney) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	key := JourneyKey{OrganizationID: journey.OrganizationID, Rail: journey.Rail, ExternalReference: journey.ExternalReference}
	s.journeys[key] = journey
	s.byID[journey.JourneyID] = key
	return nil
}

func (s *MemoryStore) ListJourneys(ctx context.Context, orgID string, rail, state, breakStatus string, limit int) ([]CanonicalJourney, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []CanonicalJourney
	for _, j := range s.journeys {
		if j.OrganizationID != orgID {
			continue
		}
		if rail != "" && string(j.Rail) != rail {
			continue
		}
		if state != "" && string(j.CanonicalState) != state {
			continue
		}
		if breakStatus != "" && string(j.BreakStatus) != breakStatus {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].UpdatedAt.After(out[k].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) HasProviderEvent(ctx context.Context, provider, providerEventID string) (bool, error) {
	_ = ctx
	if providerEventID == "" {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.events[eventKey(provider, providerEventID)]
	return ok, nil
}

func (s *MemoryStore) InsertEvent(ctx context.Context, event CanonicalEvent) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ProviderEventID != "" {
		s.events[eventKey(event.Provider, event.ProviderEventID)] = event
	}
	s.eventLog = append(s.eventLog, event)
	return nil
}

func (s *MemoryStore) InsertBreakIfAbsent(ctx context.Context, b ReconciliationBreak) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.breaks {
		if existing.JourneyID == b.JourneyID && existing.BreakType == b.BreakType && existing.Status == BreakOpen {
			return false, nil
		}
	}
	s.breaks = append(s.breaks, b)
	return true, nil
}

func (s *MemoryStore) ListBreaks(ctx context.Context, orgID, status string, limit int) ([]ReconciliationBreak, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ReconciliationBreak
	for _, b := range s.breaks {
		if b.OrganizationID != orgID {
			continue
		}
		if status != "" && string(b.Status) != status {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].DetectedAt.After(out[k].DetectedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) EnqueueReviewIfAbsent(ctx context.Context, item ManualReviewItem) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.reviews {
		if existing.JourneyID == item.JourneyID && existing.ReasonCode == item.ReasonCode &&
			(existing.Status == ReviewQueued || existing.Status == ReviewInReview) {
			return false, nil
		}
	}
	s.reviews = append(s.reviews, item)
	return true, nil
}

func (s *MemoryStore) ListReviews(ctx context.Context, orgID, status string, limit int) ([]ManualReviewItem, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ManualReviewItem
	for _, r := range s.reviews {
		if r.OrganizationID != orgID {
			continue
		}
		if status != "" && string(r.Status) != status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ResolveReview(ctx context.Context, orgID, reviewID string, status ReviewStatus, notes string) (*ManualReviewItem, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.reviews {
		r := &s.reviews[i]
		if r.OrganizationID != orgID || r.ReviewID != reviewID {
			continue
		}
		r.Status = status
		if notes != "" {
			r.ResolutionNote = notes
		}
		out := *r
		return &out, nil
	}
	return nil, nil
}
