// Package audit implements the tamper-evident audit ledger: append-only,
// hash-chained entries periodically committed to a blockchain via Merkle
// root anchoring, with offline-verifiable inclusion proofs.
package audit

import "time"

// LedgerEntry is one append-only audit record, hash-chained to its
// predecessor via PrevHash.
type LedgerEntry struct {
	EntryID   string         `json:"entry_id" bson:"_id"`
	Type      string         `json:"type" bson:"type"`
	Actor     string         `json:"actor" bson:"actor"`
	Subject   string         `json:"subject" bson:"subject"`
	AmountMinor *int64       `json:"amount_minor,omitempty" bson:"amount_minor,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
	PrevHash  string         `json:"prev_hash" bson:"prev_hash"`
	EntryHash string         `json:"entry_hash" bson:"entry_hash"`
}

// AnchorStatus is an Anchor's lifecycle state.
type AnchorStatus string

const (
	AnchorPending  AnchorStatus = "pending"
	AnchorAnchored AnchorStatus = "anchored"
	AnchorFailed   AnchorStatus = "failed"
)

// Anchor is a Merkle-root commitment of a contiguous entry range, submitted
// to a blockchain via the injected ChainExecutor.
type Anchor struct {
	AnchorID     string       `json:"anchor_id" bson:"_id"`
	MerkleRoot   string       `json:"merkle_root" bson:"merkle_root"`
	EntryCount   int          `json:"entry_count" bson:"entry_count"`
	FirstEntryID string       `json:"first_entry_id" bson:"first_entry_id"`
	LastEntryID  string       `json:"last_entry_id" bson:"last_entry_id"`
	Chain        string       `json:"chain" bson:"chain"`
	Status       AnchorStatus `json:"status" bson:"status"`
	TxHash       string       `json:"tx_hash,omitempty" bson:"tx_hash,omitempty"`
	BlockNumber  *int64       `json:"block_number,omitempty" bson:"block_number,omitempty"`
	CreatedAt    time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" bson:"updated_at"`
}

