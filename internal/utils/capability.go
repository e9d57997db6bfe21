package utils

import "time"

// CapabilityToken is a document access token handed to a signer in an
// e-mail link. The raw value is an unguessable 32-byte secret (64 hex
// chars); treat it as a capability, not an identifier. Storage keeps
// only the SHA-256 hash.
type CapabilityToken struct {
	Raw  string    // raw token string, embedded in the link
	Hash string    // SHA-256 hex digest stored in access_tokens
	Exp  time.Time // UTC expiration time
}

// NewCapabilityToken mints a fresh document access token valid for
// the given duration.
func NewCapabilityToken(ttl time.Duration) (CapabilityToken, error) {
	raw, err := RandomHex(32) // 32 bytes -> 64 hex chars
	if err != nil {
		return CapabilityToken{}, err
	}
	return CapabilityToken{
		Raw:  raw,
		Hash: HashToken(raw),
		Exp:  time.Now().UTC().Add(ttl),
	}, nil
}
