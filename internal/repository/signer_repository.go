package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/draftpact/nda-negotiation/internal/model"
)

// SignerRepo manages the parties attached to a document.
type SignerRepo struct{ DB *sql.DB }

func NewSignerRepo(db *sql.DB) *SignerRepo { return &SignerRepo{DB: db} }

// UpsertTx finds or creates the signer for (document, email) inside
// the caller's transaction. Re-issuing a token for an email that is
// already attached resets the existing row to PENDING instead of
// inserting a duplicate party.
func (r *SignerRepo) UpsertTx(ctx context.Context, tx *sql.Tx, s *model.Signer) error {
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
	var existingID uint64
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM signers WHERE document_id=? AND email=? LIMIT 1",
		s.DocumentID, s.Email).Scan(&existingID)
	switch {
	case err == nil:
		s.ID = existingID
		_, err = tx.ExecContext(ctx,
			"UPDATE signers SET display_name=?, role=?, status=?, signed_at=NULL WHERE id=?",
			s.DisplayName, s.Role, model.SignerPending, existingID)
		s.Status = model.SignerPending
		s.SignedAt = nil
		return err
	case err == sql.ErrNoRows:
		var userID any
		if s.UserID != nil {
			userID = *s.UserID
		}
		res, err := tx.ExecContext(ctx,
			"INSERT INTO signers (document_id, user_id, email, display_name, role, status) VALUES (?,?,?,?,?,?)",
			s.DocumentID, userID, s.Email, s.DisplayName, s.Role, model.SignerPending)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		s.ID = uint64(id)
		s.Status = model.SignerPending
		return nil
	default:
		return err
	}
}

// ListByDocument returns all parties on a document in creation order.
func (r *SignerRepo) ListByDocument(ctx context.Context, documentID uint64) ([]model.Signer, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, document_id, user_id, email, display_name, role, status, signed_at, created_at FROM signers WHERE document_id=? ORDER BY id", documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Signer
	for rows.Next() {
		var (
			s        model.Signer
			userID   sql.NullInt64
			signedAt sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.DocumentID, &userID, &s.Email, &s.DisplayName, &s.Role, &s.Status, &signedAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		if userID.Valid {
			u := uint64(userID.Int64)
			s.UserID = &u
		}
		if signedAt.Valid {
			t := signedAt.Time
			s.SignedAt = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MarkViewed bumps a PENDING signer to VIEWED the first time their
// token resolves. Later statuses are left alone.
func (r *SignerRepo) MarkViewed(ctx context.Context, signerID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE signers SET status=? WHERE id=? AND status=?",
		model.SignerViewed, signerID, model.SignerPending)
	return err
}

// FinalizeTx marks every party on the document SIGNED inside the
// caller's transaction. A recipient who provisionally signed keeps
// that earlier timestamp; everyone else gets signedAt=now.
func (r *SignerRepo) FinalizeTx(ctx context.Context, tx *sql.Tx, documentID uint64, recipientSignedAt *time.Time) error {
	now := time.Now().UTC()
	_, err := tx.ExecContext(ctx,
		"UPDATE signers SET status=?, signed_at=? WHERE document_id=? AND role=?",
		model.SignerSigned, now, documentID, model.SignerRoleOwner)
	if err != nil {
		return err
	}
	recipientAt := now
	if recipientSignedAt != nil {
		recipientAt = *recipientSignedAt
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE signers SET status=?, signed_at=? WHERE document_id=? AND role=?",
		model.SignerSigned, recipientAt, documentID, model.SignerRoleRecipient)
	return err
}
