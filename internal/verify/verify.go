// Package verify implements the SHA-256 + Ed25519 detached signature
// verification described in spec.md §4.2. The signature is over the
// hash of the canonical payload, not the raw message — implementations
// that sign the message directly will never verify against this.
package verify

import (
	"crypto/ed25519"
	"crypto/sha256"

	"witnessgate/internal/canon"
)

// StepData reports whether signature is a valid Ed25519 signature,
// under publicKey, of SHA-256(canon.Canonicalize(payload)). It never
// panics: a malformed public key or signature length yields false.
func StepData(payload canon.StepDataPayload, signature, publicKey []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	if len(signature) != ed25519.SignatureSize {
		return false
	}

	message := canon.Canonicalize(payload)
	hash := sha256.Sum256(message)

	return ed25519.Verify(ed25519.PublicKey(publicKey), hash[:], signature)
}
