package ap2

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Canonicalization selects the signature-base scheme for a payment mandate,
// per spec.md §4.1/§9.
type Canonicalization string

const (
	CanonPipe Canonicalization = "pipe"
	CanonJCS  Canonicalization = "jcs"
)

// CanonicalPaymentPayload returns the bytes a payment mandate's signature is
// computed over. The pipe form is the default, grounded directly on
// verifier.py's _canonical_payment_payload; the JCS form is offered as the
// per-request alternative named in spec.md §9.
func CanonicalPaymentPayload(m PaymentMandate, scheme Canonicalization) ([]byte, error) {
	if scheme == CanonJCS {
		return jcsPaymentPayload(m)
	}
	fields := []string{
		m.MandateID,
		m.Subject,
		strconv.FormatInt(m.AmountMinor, 10),
		m.Token,
		m.Chain,
		m.Destination,
		m.AuditHash,
	}
	return []byte(strings.Join(fields, "|")), nil
}

func jcsPaymentPayload(m PaymentMandate) ([]byte, error) {
	obj := map[string]any{
		"mandate_id":   m.MandateID,
		"subject":      m.Subject,
		"amount_minor": m.AmountMinor,
		"token":        m.Token,
		"chain":        m.Chain,
		"destination":  m.Destination,
		"audit_hash":   m.AuditHash,
	}
	return canonicalJSON(obj)
}

// AuditHash computes the §3 invariant:
// audit_hash = SHA-256("{cart_id}:{checkout_id}:{amount_minor}:{chain}:{token}:{destination}")
func AuditHash(cartID, checkoutID string, amountMinor int64, chain, token, destination string) string {
	s := fmt.Sprintf("%s:%s:%d:%s:%s:%s", cartID, checkoutID, amountMinor, chain, token, destination)
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// canonicalJSON re-marshals v with sorted object keys and no extra
// whitespace, the compact-separator canonical form used both here and by
// the manifest-hash invariant in internal/identity.
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

// GenerateMandateID returns an opaque, prefixed mandate identifier.
func GenerateMandateID() string {
	return "mandate_" + randomHex(16)
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
