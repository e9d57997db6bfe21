package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/draftpact/nda-negotiation/internal/model"
)

// AuditRepo is the append-only audit trail. Events are written in the
// same transaction as the status change they record and are never
// mutated or deleted afterwards. Nothing in the workflow reads them
// back to make decisions; the list endpoint exists purely for
// external review.
type AuditRepo struct{ DB *sql.DB }

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{DB: db} }

// CreateTx appends one event inside the caller's transaction.
func (r *AuditRepo) CreateTx(ctx context.Context, tx *sql.Tx, e *model.AuditEvent) error {
	var meta any
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		meta = string(b)
	}
	var actor any
	if e.ActorUserID != nil {
		actor = *e.ActorUserID
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO audit_events (organization_id, document_id, actor_user_id, type, metadata) VALUES (?,?,?,?,?)",
		e.OrganizationID, e.DocumentID, actor, e.Type, meta)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// ListByDocument returns the trail for one document, oldest first.
func (r *AuditRepo) ListByDocument(ctx context.Context, documentID uint64) ([]model.AuditEvent, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, organization_id, document_id, actor_user_id, type, metadata, created_at FROM audit_events WHERE document_id=? ORDER BY id", documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AuditEvent
	for rows.Next() {
		var (
			e     model.AuditEvent
			actor sql.NullInt64
			meta  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.DocumentID, &actor, &e.Type, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		if actor.Valid {
			u := uint64(actor.Int64)
			e.ActorUserID = &u
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &e.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
