package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/draftpact/nda-negotiation/internal/model"
	"github.com/draftpact/nda-negotiation/internal/workflow"
)

// AccessTokenRepo is the store for document capability tokens: the
// scoped, time-boxed grants that let a counterparty act on a document
// without an account. Lookups key on the SHA-256 hash of the raw
// token string; the raw value is never persisted.
type AccessTokenRepo struct{ DB *sql.DB }

func NewAccessTokenRepo(db *sql.DB) *AccessTokenRepo { return &AccessTokenRepo{DB: db} }

// IssueTx inserts a token row inside the caller's transaction.
// Issuing a token never mutates the document itself.
func (r *AccessTokenRepo) IssueTx(ctx context.Context, tx *sql.Tx, t *model.AccessToken) error {
	var payload any
	if len(t.Payload) > 0 {
		payload = string(t.Payload)
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO access_tokens (signer_id, token_hash, scope, payload, expires_at) VALUES (?,?,?,?,?)",
		t.SignerID, t.TokenHash, t.Scope, payload, t.ExpiresAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// Resolved is what a token string resolves to: the grant itself, the
// signer it is bound to, and the document that signer belongs to.
type Resolved struct {
	Token  model.AccessToken
	Signer model.Signer
}

// Resolve looks up a token by the hash of its raw string and runs the
// validity checks. forUse marks a state-changing call: single-use
// tokens that were already consumed are then rejected with
// ErrTokenConsumed. Read-only resolution (forUse=false) stays
// idempotent and leaves the row untouched.
//
// allowed restricts the scopes acceptable to the caller; an empty
// list accepts any scope (used by the view endpoint, where every
// valid token may at least read the document it is bound to).
func (r *AccessTokenRepo) Resolve(ctx context.Context, tokenHash string, forUse bool, allowed ...model.TokenScope) (*Resolved, error) {
	var (
		out        Resolved
		payload    sql.NullString
		consumedAt sql.NullTime
		userID     sql.NullInt64
		signedAt   sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, `
SELECT t.id, t.signer_id, t.token_hash, t.scope, t.payload, t.expires_at, t.consumed_at, t.created_at,
       s.id, s.document_id, s.user_id, s.email, s.display_name, s.role, s.status, s.signed_at, s.created_at
FROM access_tokens t
JOIN signers s ON s.id = t.signer_id
WHERE t.token_hash=? LIMIT 1`, tokenHash).Scan(
		&out.Token.ID, &out.Token.SignerID, &out.Token.TokenHash, &out.Token.Scope,
		&payload, &out.Token.ExpiresAt, &consumedAt, &out.Token.CreatedAt,
		&out.Signer.ID, &out.Signer.DocumentID, &userID, &out.Signer.Email,
		&out.Signer.DisplayName, &out.Signer.Role, &out.Signer.Status, &signedAt, &out.Signer.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, workflow.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	if payload.Valid {
		out.Token.Payload = json.RawMessage(payload.String)
	}
	if consumedAt.Valid {
		t := consumedAt.Time
		out.Token.ConsumedAt = &t
	}
	if userID.Valid {
		u := uint64(userID.Int64)
		out.Signer.UserID = &u
	}
	if signedAt.Valid {
		t := signedAt.Time
		out.Signer.SignedAt = &t
	}
	if err := Check(&out.Token, time.Now().UTC(), forUse, allowed...); err != nil {
		return nil, err
	}
	return &out, nil
}

// Check applies the token validity rules without touching storage.
// Order matters: existence is the caller's concern, then expiry, then
// consumption, then scope — an expired token stays expired even if it
// was never consumed.
func Check(t *model.AccessToken, now time.Time, forUse bool, allowed ...model.TokenScope) error {
	if t.Expired(now) {
		return workflow.ErrTokenExpired
	}
	if forUse && t.Scope.SingleUse() && t.Consumed() {
		return workflow.ErrTokenConsumed
	}
	if len(allowed) > 0 {
		ok := false
		for _, s := range allowed {
			if t.Scope == s {
				ok = true
				break
			}
		}
		if !ok {
			return workflow.ErrTokenScope
		}
	}
	return nil
}

// ConsumeTx atomically spends a token inside the caller's
// transaction. The guarded UPDATE makes "check not consumed, then
// mark consumed" a single operation: under two racing uses exactly
// one caller sees rows=1 and the loser gets ErrTokenConsumed.
func (r *AccessTokenRepo) ConsumeTx(ctx context.Context, tx *sql.Tx, tokenID uint64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE access_tokens SET consumed_at=NOW() WHERE id=? AND consumed_at IS NULL",
		tokenID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return workflow.ErrTokenConsumed
	}
	return nil
}
