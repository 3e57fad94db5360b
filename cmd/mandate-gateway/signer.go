package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"

	"github.com/sardis-payments/sardis/internal/ap2"
)

// devSigner signs checkout/payment mandate payloads with a process-local
// Ed25519 key, standing in for the KMS-backed signer a production
// deployment would inject instead.
type devSigner struct {
	priv   ed25519.PrivateKey
	pub    ed25519.PublicKey
	method string
}

func newDevSigner(agentID string) *devSigner {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	return &devSigner{priv: priv, pub: pub, method: agentID + "#key-1"}
}

func (s *devSigner) Sign(payload []byte) ap2.Proof {
	sig := ed25519.Sign(s.priv, payload)
	return ap2.Proof{
		VerificationMethod: s.method,
		ProofValue:         base64.StdEncoding.EncodeToString(sig),
	}
}
