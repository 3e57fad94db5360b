package tap

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"
	"time"
)

func validInput(now time.Time) SignatureInput {
	return SignatureInput{
		Label:      "sig2",
		Components: []string{"@authority", "@path"},
		Created:    now.Add(-1 * time.Minute).Unix(),
		Expires:    now.Add(1 * time.Minute).Unix(),
		KeyID:      "key1",
		Alg:        "ed25519",
		Nonce:      "nonce-abc",
		Tag:        "agent-payer-auth",
	}
}

func headerFor(in SignatureInput) string {
	return in.signatureParams()
}

func TestParseSignatureInput_RoundTrip(t *testing.T) {
	now := time.Now()
	in := validInput(now)
	header := headerFor(in)
	parsed, err := ParseSignatureInput(header)
	if err != nil {
		t.Fatalf("ParseSignatureInput() error: %v", err)
	}
	if parsed.Label != "sig2" || parsed.Tag != "agent-payer-auth" || parsed.Alg != "ed25519" {
		t.Fatalf("parsed mismatch: %+v", parsed)
	}
	if len(parsed.Components) != 2 {
		t.Fatalf("expected 2 components, got %d", len(parsed.Components))
	}
}

func TestParseSignatureInput_MissingComponents(t *testing.T) {
	_, err := ParseSignatureInput(`sig2=();created=1;expires=2;keyid="k";alg="ed25519";nonce="n";tag="agent-payer-auth"`)
	if err == nil {
		t.Fatal("expected error for missing components")
	}
}

func TestParseSignatureHeader(t *testing.T) {
	label, sig, err := ParseSignatureHeader("sig2=:YWJj:")
	if err != nil {
		t.Fatalf("ParseSignatureHeader() error: %v", err)
	}
	if label != "sig2" || sig != "YWJj" {
		t.Fatalf("got label=%s sig=%s", label, sig)
	}
}

func TestValidateHeaders_AcceptsValidEd25519Signature(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	now := time.Now()
	in := validInput(now)
	sigInputHeader := headerFor(in)
	base := BuildSignatureBase("merchant.example", "/checkout", in)
	sig := ed25519.Sign(priv, []byte(base))
	sigHeader := "sig2=:" + base64.StdEncoding.EncodeToString(sig) + ":"

	result := ValidateHeaders(HeaderValidationInput{
		SignatureInputHeader: sigInputHeader,
		SignatureHeader:      sigHeader,
		Authority:            "merchant.example",
		Path:                 "/checkout",
		Now:                  now,
		Verify: func(base []byte, sigB64, keyID, alg string) bool {
			s, _ := base64.StdEncoding.DecodeString(sigB64)
			return ed25519.Verify(pub, base, s)
		},
	})
	if !result.Accepted {
		t.Fatalf("expected accept, got reason=%s", result.Reason)
	}
}

func TestValidateHeaders_RejectsExpired(t *testing.T) {
	now := time.Now()
	in := validInput(now)
	in.Expires = now.Add(-1 * time.Minute).Unix()
	result := ValidateHeaders(HeaderValidationInput{
		SignatureInputHeader: headerFor(in),
		SignatureHeader:      "sig2=:YWJj:",
		Authority:            "merchant.example",
		Path:                 "/checkout",
		Now:                  now,
	})
	if result.Accepted || result.Reason != "tap_expired" {
		t.Fatalf("expected tap_expired, got %+v", result)
	}
}

func TestValidateHeaders_RejectsReplayedNonce(t *testing.T) {
	now := time.Now()
	in := validInput(now)
	seen := map[string]bool{in.Nonce: true}
	result := ValidateHeaders(HeaderValidationInput{
		SignatureInputHeader: headerFor(in),
		SignatureHeader:      "sig2=:YWJj:",
		Authority:            "merchant.example",
		Path:                 "/checkout",
		Now:                  now,
		NonceSeen:            func(n string) bool { return seen[n] },
	})
	if result.Accepted || result.Reason != "tap_nonce_replayed" {
		t.Fatalf("expected tap_nonce_replayed, got %+v", result)
	}
}

func TestValidateHeaders_RejectsWindowTooLarge(t *testing.T) {
	now := time.Now()
	in := validInput(now)
	in.Created = now.Add(-20 * time.Minute).Unix()
	result := ValidateHeaders(HeaderValidationInput{
		SignatureInputHeader: headerFor(in),
		SignatureHeader:      "sig2=:YWJj:",
		Authority:            "merchant.example",
		Path:                 "/checkout",
		Now:                  now,
	})
	if result.Accepted || result.Reason != "tap_window_too_large" {
		t.Fatalf("expected tap_window_too_large, got %+v", result)
	}
}

func TestValidateAgenticPaymentContainer_RequiresFields(t *testing.T) {
	obj := map[string]any{"nonce": "n1", "kid": "k1", "alg": "ed25519"}
	result := ValidateAgenticPaymentContainer(obj, []string{"nonce", "kid", "alg"}, "", false, nil, nil)
	if result.Accepted {
		t.Fatal("expected rejection for missing signature field")
	}
	if result.Reason != "agentic_payment_missing_signature" {
		t.Fatalf("got reason %s", result.Reason)
	}
}

func TestValidateAgenticPaymentContainer_NonceMismatch(t *testing.T) {
	obj := map[string]any{"nonce": "n1", "kid": "k1", "alg": "ed25519", "signature": "sig"}
	result := ValidateAgenticPaymentContainer(obj, []string{"nonce", "kid", "alg", "signature"}, "n2", true, nil, nil)
	if result.Accepted || result.Reason != "agentic_payment_nonce_mismatch" {
		t.Fatalf("expected nonce mismatch, got %+v", result)
	}
}

func TestJWKS_SelectByKid(t *testing.T) {
	set := JWKS{Keys: []JWK{{Kid: "a"}, {Kid: "b"}}}
	if set.SelectByKid("b") == nil {
		t.Fatal("expected to find key b")
	}
	if set.SelectByKid("c") != nil {
		t.Fatal("expected nil for unknown kid")
	}
}

func TestVerifyWithJWK_Ed25519(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	base := []byte("signature-base")
	sig := ed25519.Sign(priv, base)
	jwk := JWK{Kty: "OKP", Crv: "Ed25519", X: base64urlNoPad(pub)}
	if !VerifyWithJWK(base, base64.StdEncoding.EncodeToString(sig), jwk, "ed25519") {
		t.Fatal("expected signature to verify")
	}
}

func base64urlNoPad(b []byte) string {
	s := base64.URLEncoding.EncodeToString(b)
	for len(s) > 0 && s[len(s)-1] == '=' {
		s = s[:len(s)-1]
	}
	return s
}
