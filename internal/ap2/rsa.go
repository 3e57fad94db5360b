package ap2

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
)

// verifyRSASignature checks a PKCS1v15 SHA-256 signature, the RS256 form
// permitted for linked objects per spec.md §4.1.
func verifyRSASignature(pub *rsa.PublicKey, payload, sig []byte) bool {
	digest := sha256.Sum256(payload)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig) == nil
}

// verifyRSAFromPKIX handles a PKIX-wrapped RSA public key (PS256/RS256).
func verifyRSAFromPKIX(publicKey, payload, sig []byte) bool {
	parsed, err := x509.ParsePKIXPublicKey(publicKey)
	if err != nil {
		return false
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return false
	}
	digest := sha256.Sum256(payload)
	if rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, nil) == nil {
		return true
	}
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig) == nil
}
