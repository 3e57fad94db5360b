package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// ManifestHash computes the spec.md §3 invariant: SHA-256 of the
// canonical (sorted-key) JSON of the manifest, excluding the hash field
// itself (the manifest has no hash field of its own, so this hashes the
// whole structure).
func ManifestHash(m AgentManifest) string {
	obj := map[string]any{
		"agent_id":               m.AgentID,
		"owner_id":               m.OwnerID,
		"capabilities":           toAnySlice(m.Capabilities),
		"max_budget_per_tx_minor": m.MaxBudgetPerTxMinor,
		"daily_budget_minor":     m.DailyBudgetMinor,
		"allowed_domains":        toAnySlice(m.AllowedDomains),
		"blocked_domains":        toAnySlice(m.BlockedDomains),
	}
	raw, _ := json.Marshal(obj)
	var generic any
	_ = json.Unmarshal(raw, &generic)
	var buf strings.Builder
	_ = writeCanonical(&buf, generic)
	sum := sha256.Sum256([]byte(buf.String()))
	return hex.EncodeToString(sum[:])
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
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
