package tap

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"math/big"
	"strings"
)

// JWK is the minimal subset of RFC 7517 fields TAP key material uses.
type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

// JWKS is a JSON Web Key Set.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// SelectByKid returns the key with the given kid, or nil if absent.
func (s JWKS) SelectByKid(kid string) *JWK {
	for i := range s.Keys {
		if s.Keys[i].Kid == kid {
			return &s.Keys[i]
		}
	}
	return nil
}

func b64urlDecode(s string) ([]byte, error) {
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	return base64.URLEncoding.DecodeString(s)
}

// VerifyWithJWK verifies a signature against a signature base using a JWK,
// supporting Ed25519 (kty=OKP, crv=Ed25519) and PS256 (kty=RSA).
func VerifyWithJWK(signatureBase []byte, signatureB64 string, jwk JWK, alg string) bool {
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false
	}

	switch strings.ToUpper(alg) {
	case "ED25519":
		if strings.ToUpper(jwk.Kty) != "OKP" || jwk.Crv != "Ed25519" || jwk.X == "" {
			return false
		}
		pub, err := b64urlDecode(jwk.X)
		if err != nil || len(pub) != ed25519.PublicKeySize {
			return false
		}
		return ed25519.Verify(ed25519.PublicKey(pub), signatureBase, sig)

	case "PS256":
		if strings.ToUpper(jwk.Kty) != "RSA" || jwk.N == "" || jwk.E == "" {
			return false
		}
		nBytes, err := b64urlDecode(jwk.N)
		if err != nil {
			return false
		}
		eBytes, err := b64urlDecode(jwk.E)
		if err != nil {
			return false
		}
		pub := &rsa.PublicKey{
			N: new(big.Int).SetBytes(nBytes),
			E: int(new(big.Int).SetBytes(eBytes).Int64()),
		}
		digest := sha256.Sum256(signatureBase)
		err = rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
		return err == nil

	default:
		return false
	}
}
