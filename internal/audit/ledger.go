package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sardis-payments/sardis/internal/events"
)

// Ledger appends hash-chained entries: each entry's hash covers its own
// canonical fields plus the previous entry's hash, so altering or
// reordering any historical entry breaks every hash after it.
type Ledger struct {
	store     Store
	mu        sync.Mutex // serializes chain-linking across concurrent Append calls
	publisher *events.Publisher
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// WithPublisher attaches an events.Publisher so every successful Append
// also emits an audit.entry_appended event.
func (l *Ledger) WithPublisher(publisher *events.Publisher) *Ledger {
	l.publisher = publisher
	return l
}

// AppendInput is the caller-supplied content of a new entry; PrevHash and
// EntryHash are computed by Append.
type AppendInput struct {
	Type        string
	Actor       string
	Subject     string
	AmountMinor *int64
	Metadata    map[string]any
}

func (l *Ledger) Append(ctx context.Context, in AppendInput) (*LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev, err := l.store.GetLastEntry(ctx)
	if err != nil {
		return nil, err
	}
	prevHash := ""
	if prev != nil {
		prevHash = prev.EntryHash
	}

	entry := LedgerEntry{
		EntryID:     "audit_" + uuid.NewString(),
		Type:        in.Type,
		Actor:       in.Actor,
		Subject:     in.Subject,
		AmountMinor: in.AmountMinor,
		Metadata:    in.Metadata,
		CreatedAt:   time.Now().UTC(),
		PrevHash:    prevHash,
	}
	hash, err := entryHash(entry)
	if err != nil {
		return nil, err
	}
	entry.EntryHash = hash

	if err := l.store.AppendEntry(ctx, entry); err != nil {
		return nil, err
	}

	if l.publisher != nil {
		_ = l.publisher.Publish(ctx, events.EventAuditEntryAppended, "", entry.EntryID, map[string]any{
			"entry_id":     entry.EntryID,
			"type":         entry.Type,
			"actor":        entry.Actor,
			"subject":      entry.Subject,
			"amount_minor": entry.AmountMinor,
			"prev_hash":    entry.PrevHash,
			"entry_hash":   entry.EntryHash,
		})
	}
	return &entry, nil
}

// entryHash computes SHA-256 over the canonical JSON of every field except
// EntryHash itself.
func entryHash(e LedgerEntry) (string, error) {
	obj := map[string]any{
		"entry_id":   e.EntryID,
		"type":       e.Type,
		"actor":      e.Actor,
		"subject":    e.Subject,
		"metadata":   e.Metadata,
		"created_at": e.CreatedAt.UTC().Format(time.RFC3339Nano),
		"prev_hash":  e.PrevHash,
	}
	if e.AmountMinor != nil {
		obj["amount_minor"] = *e.AmountMinor
	}
	canon, err := canonicalJSON(obj)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyChain walks entries in order and confirms each PrevHash/EntryHash
// link, returning the index of the first broken link or -1 if the chain is
// intact.
func VerifyChain(entries []LedgerEntry) int {
	prevHash := ""
	for i, e := range entries {
		if e.PrevHash != prevHash {
			return i
		}
		want, err := entryHash(e)
		if err != nil || want != e.EntryHash {
			return i
		}
		prevHash = e.EntryHash
	}
	return -1
}

func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	var buf strings.Builder
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

func writeCanonical(buf *strings.Builder, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}
