package main

import "context"

// zeroSpendLookup satisfies org.SpendLookup until canonledger journeys and
// budget cycles carry a team_id to join against; today both are scoped by
// organization only, so a real per-team join isn't possible yet.
type zeroSpendLookup struct{}

func (zeroSpendLookup) SettledAmountMinor(ctx context.Context, teamID string) (int64, error) {
	return 0, nil
}

func (zeroSpendLookup) AllocatedAmountMinor(ctx context.Context, teamID string) (int64, error) {
	return 0, nil
}
