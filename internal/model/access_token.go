package model

import (
	"encoding/json"
	"time"
)

// TokenScope is the capability class granted by an access token.
// VIEW is read-only and reusable until expiry. EDIT, REVIEW and
// SIGN change document state and are strictly single-use.
type TokenScope string

const (
	ScopeView   TokenScope = "VIEW"
	ScopeEdit   TokenScope = "EDIT"
	ScopeReview TokenScope = "REVIEW"
	ScopeSign   TokenScope = "SIGN"
)

// SingleUse reports whether a token with this scope must be rejected
// after its first successful use.
func (s TokenScope) SingleUse() bool {
	return s == ScopeEdit || s == ScopeReview || s == ScopeSign
}

// AccessToken is a capability grant tied to one signer, as stored in
// the `access_tokens` table. The raw token string is a capability
// secret handed out exactly once (in an e-mail link); only its
// SHA-256 hash is persisted, mirroring how refresh tokens are kept.
//
// Tokens are never mutated after issue except for ConsumedAt. A scope
// is never upgraded in place; the workflow mints a fresh token with a
// new scope instead.
//
// Fields:
//  ID         – primary key identifier.
//  SignerID   – signer this capability is bound to.
//  TokenHash  – SHA-256 hex digest of the raw token string.
//  Scope      – capability class (VIEW | EDIT | REVIEW | SIGN).
//  Payload    – optional structured data carried for deferred use
//               (e.g. suggestions awaiting owner review).
//  ExpiresAt  – hard expiry; the token is dead afterwards even if unconsumed.
//  ConsumedAt – when the token authorized a completed action (nullable).
//  CreatedAt  – timestamp of issue.
type AccessToken struct {
	ID         uint64          // access_tokens.id
	SignerID   uint64          // access_tokens.signer_id
	TokenHash  string          // access_tokens.token_hash
	Scope      TokenScope      // access_tokens.scope
	Payload    json.RawMessage // access_tokens.payload (nullable JSON)
	ExpiresAt  time.Time       // access_tokens.expires_at
	ConsumedAt *time.Time      // access_tokens.consumed_at (nullable)
	CreatedAt  time.Time       // access_tokens.created_at
}

// Expired reports whether the token is past its expiry at the given
// instant.
func (t *AccessToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Consumed reports whether the token already authorized an action.
func (t *AccessToken) Consumed() bool {
	return t.ConsumedAt != nil
}
