package audit

import "context"

// Store persists append-only ledger entries and the anchors committed over
// them. Entries are never updated or deleted once inserted.
type Store interface {
	AppendEntry(ctx context.Context, entry LedgerEntry) error
	GetLastEntry(ctx context.Context) (*LedgerEntry, error)
	ListUnanchoredEntries(ctx context.Context, limit int) ([]LedgerEntry, error)
	MarkEntriesAnchored(ctx context.Context, entryIDs []string, anchorID string) error

	InsertAnchor(ctx context.Context, anchor Anchor) error
	UpdateAnchorStatus(ctx context.Context, anchorID string, status AnchorStatus, txHash string, blockNumber *int64) error
	GetAnchor(ctx context.Context, anchorID string) (*Anchor, error)
	ListAnchors(ctx context.Context, limit int) ([]Anchor, error)
}
