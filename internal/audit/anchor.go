package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sardis-payments/sardis/internal/events"
	"github.com/sardis-payments/sardis/internal/providers"
)

// AnchorConfig controls the anchoring cadence and batch sizing.
type AnchorConfig struct {
	Chain                string
	AnchorInterval        time.Duration
	MinEntriesPerAnchor   int
	MaxEntriesPerAnchor   int
	EnableAutoAnchor      bool
}

func DefaultAnchorConfig() AnchorConfig {
	return AnchorConfig{
		Chain:               "base",
		AnchorInterval:      time.Hour,
		MinEntriesPerAnchor: 10,
		MaxEntriesPerAnchor: 10000,
		EnableAutoAnchor:    true,
	}
}

// AnchorScheduler periodically builds a Merkle tree over unanchored
// entries and submits the root via an injected providers.ChainExecutor.
// It never stops the loop on a single failed anchor; it marks that anchor
// failed and tries again next tick (spec.md §5).
type AnchorScheduler struct {
	store     Store
	chain     providers.ChainExecutor
	cfg       AnchorConfig
	logger    *slog.Logger
	publisher *events.Publisher
}

func NewAnchorScheduler(store Store, chain providers.ChainExecutor, cfg AnchorConfig, logger *slog.Logger) *AnchorScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnchorScheduler{store: store, chain: chain, cfg: cfg, logger: logger}
}

// WithPublisher attaches an events.Publisher so every anchor attempt also
// emits an audit.anchor_created or audit.anchor_failed event.
func (s *AnchorScheduler) WithPublisher(publisher *events.Publisher) *AnchorScheduler {
	s.publisher = publisher
	return s
}

// Run blocks, anchoring on cfg.AnchorInterval until ctx is cancelled.
func (s *AnchorScheduler) Run(ctx context.Context) {
	if !s.cfg.EnableAutoAnchor {
		s.logger.Info("audit anchor scheduler disabled")
		return
	}
	ticker := time.NewTicker(s.cfg.AnchorInterval)
	defer ticker.Stop()
	s.logger.Info("audit anchor scheduler started", "interval", s.cfg.AnchorInterval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("audit anchor scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.logger.Error("audit anchor tick failed", "error", err)
			}
		}
	}
}

// Tick runs one anchoring attempt immediately, independent of the ticker,
// returning nil if there weren't enough unanchored entries to act on.
func (s *AnchorScheduler) Tick(ctx context.Context) (*Anchor, error) {
	limit := s.cfg.MaxEntriesPerAnchor
	if limit <= 0 {
		limit = 10000
	}
	entries, err := s.store.ListUnanchoredEntries(ctx, limit)
	if err != nil {
		return nil, err
	}
	minEntries := s.cfg.MinEntriesPerAnchor
	if minEntries <= 0 {
		minEntries = 1
	}
	if len(entries) < minEntries {
		s.logger.Debug("skipping anchor", "unanchored", len(entries), "min", minEntries)
		return nil, nil
	}

	leafData := make([][]byte, len(entries))
	ids := make([]string, len(entries))
	for i, e := range entries {
		canon, err := canonicalJSON(map[string]any{"entry_id": e.EntryID, "entry_hash": e.EntryHash})
		if err != nil {
			return nil, err
		}
		leafData[i] = canon
		ids[i] = e.EntryID
	}
	tree, err := BuildMerkleTree(leafData)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	anchor := Anchor{
		AnchorID:     "anchor_" + uuid.NewString(),
		MerkleRoot:   tree.GetRoot(),
		EntryCount:   len(entries),
		FirstEntryID: ids[0],
		LastEntryID:  ids[len(ids)-1],
		Chain:        s.cfg.Chain,
		Status:       AnchorPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.InsertAnchor(ctx, anchor); err != nil {
		return nil, err
	}

	sub, err := s.chain.Submit(ctx, anchor.AnchorID, []byte(anchor.MerkleRoot), anchor.Chain)
	if err != nil {
		if uerr := s.store.UpdateAnchorStatus(ctx, anchor.AnchorID, AnchorFailed, "", nil); uerr != nil {
			s.logger.Error("failed to record anchor failure", "anchor_id", anchor.AnchorID, "error", uerr)
		}
		if s.publisher != nil {
			_ = s.publisher.Publish(ctx, events.EventAuditAnchorFailed, "", anchor.AnchorID, map[string]any{
				"anchor_id": anchor.AnchorID,
				"chain":     anchor.Chain,
				"reason":    err.Error(),
			})
		}
		return nil, err
	}

	if err := s.store.UpdateAnchorStatus(ctx, anchor.AnchorID, AnchorAnchored, sub.TxHash, sub.BlockNumber); err != nil {
		return nil, err
	}
	if err := s.store.MarkEntriesAnchored(ctx, ids, anchor.AnchorID); err != nil {
		return nil, err
	}

	anchor.Status = AnchorAnchored
	anchor.TxHash = sub.TxHash
	anchor.BlockNumber = sub.BlockNumber
	s.logger.Info("anchored audit entries", "anchor_id", anchor.AnchorID, "entry_count", anchor.EntryCount, "tx_hash", sub.TxHash)

	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, events.EventAuditAnchorCreated, "", anchor.AnchorID, map[string]any{
			"anchor_id":      anchor.AnchorID,
			"merkle_root":    anchor.MerkleRoot,
			"entry_count":    anchor.EntryCount,
			"first_entry_id": anchor.FirstEntryID,
			"last_entry_id":  anchor.LastEntryID,
			"chain":          anchor.Chain,
			"tx_hash":        anchor.TxHash,
		})
	}
	return &anchor, nil
}
