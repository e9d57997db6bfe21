package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/draftpact/nda-negotiation/internal/model"
	"github.com/draftpact/nda-negotiation/internal/workflow"
)

// DocumentRepo provides CRUD operations for negotiated documents.
// Workflow transitions go through ApplyTransitionTx, which carries
// the optimistic status guard that serializes concurrent actions.
type DocumentRepo struct{ DB *sql.DB }

func NewDocumentRepo(db *sql.DB) *DocumentRepo { return &DocumentRepo{DB: db} }

const documentColumns = "id, organization_id, created_by_user_id, title, template_id, content, status, last_actor, provisional_signed_at, created_at, updated_at"

// Create inserts a fresh draft and populates the generated ID.
func (r *DocumentRepo) Create(ctx context.Context, d *model.Document) error {
	content := d.Content
	if len(content) == 0 {
		content = json.RawMessage(`{}`)
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO documents (organization_id, created_by_user_id, title, template_id, content, status, last_actor) VALUES (?,?,?,?,?,?,?)",
		d.OrganizationID, d.CreatedByUserID, d.Title, d.TemplateID, string(content), model.StatusDraft, model.ActorOwner)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = uint64(id)
	d.Status = model.StatusDraft
	d.LastActor = model.ActorOwner
	return nil
}

func scanDocument(row *sql.Row) (model.Document, error) {
	var (
		d           model.Document
		content     []byte
		provisional sql.NullTime
	)
	err := row.Scan(&d.ID, &d.OrganizationID, &d.CreatedByUserID, &d.Title, &d.TemplateID,
		&content, &d.Status, &d.LastActor, &provisional, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return model.Document{}, err
	}
	d.Content = json.RawMessage(content)
	if provisional.Valid {
		t := provisional.Time
		d.ProvisionalSignedAt = &t
	}
	return d, nil
}

// GetByID fetches a document by id.
func (r *DocumentRepo) GetByID(ctx context.Context, id uint64) (model.Document, error) {
	return scanDocument(r.DB.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id=? LIMIT 1", id))
}

// GetByIDForOwner fetches a document and enforces that it belongs to
// the given owner. Returns sql.ErrNoRows when the document does not
// exist and ErrForbidden when it exists under a different owner.
func (r *DocumentRepo) GetByIDForOwner(ctx context.Context, id, ownerID uint64) (model.Document, error) {
	d, err := r.GetByID(ctx, id)
	if err != nil {
		return model.Document{}, err
	}
	if d.CreatedByUserID != ownerID {
		return model.Document{}, ErrForbidden
	}
	return d, nil
}

// ListByOwner returns the owner's documents, newest first.
func (r *DocumentRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Document, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE created_by_user_id=? ORDER BY updated_at DESC", ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Document
	for rows.Next() {
		var (
			d           model.Document
			content     []byte
			provisional sql.NullTime
		)
		if err := rows.Scan(&d.ID, &d.OrganizationID, &d.CreatedByUserID, &d.Title, &d.TemplateID,
			&content, &d.Status, &d.LastActor, &provisional, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.Content = json.RawMessage(content)
		if provisional.Valid {
			t := provisional.Time
			d.ProvisionalSignedAt = &t
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateDraftTx replaces title and content of a document still in
// DRAFT, inside the caller's transaction. The status guard keeps an
// owner from editing under an in-flight negotiation; anything past
// DRAFT must go through the workflow actions.
func (r *DocumentRepo) UpdateDraftTx(ctx context.Context, tx *sql.Tx, id uint64, title string, content json.RawMessage) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE documents SET title=?, content=?, updated_at=NOW() WHERE id=? AND status=?",
		title, string(content), id, model.StatusDraft)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// Transition is the document-row portion of a workflow outcome.
type Transition struct {
	// FromStatus is the status the caller read before deciding; the
	// write fails with ErrConcurrentModification if it changed since.
	FromStatus model.DocumentStatus
	ToStatus   model.DocumentStatus
	LastActor  model.ActorRole
	// NewContent replaces the snapshot when non-nil.
	NewContent json.RawMessage
	// SetProvisionalSigned stamps provisional_signed_at with the given
	// time; ClearProvisionalSigned nulls it.
	SetProvisionalSigned   *time.Time
	ClearProvisionalSigned bool
}

// ApplyTransitionTx performs the compare-and-swap status write inside
// the caller's transaction. Two legal transitions can race on the
// same document; the guarded WHERE clause makes the loser fail with
// ErrConcurrentModification before any of its ledger writes commit.
func (r *DocumentRepo) ApplyTransitionTx(ctx context.Context, tx *sql.Tx, id uint64, t Transition) error {
	query := "UPDATE documents SET status=?, last_actor=?, updated_at=NOW()"
	args := []any{t.ToStatus, t.LastActor}
	if t.NewContent != nil {
		query += ", content=?"
		args = append(args, string(t.NewContent))
	}
	if t.SetProvisionalSigned != nil {
		query += ", provisional_signed_at=?"
		args = append(args, *t.SetProvisionalSigned)
	} else if t.ClearProvisionalSigned {
		query += ", provisional_signed_at=NULL"
	}
	query += " WHERE id=? AND status=?"
	args = append(args, id, t.FromStatus)

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return workflow.ErrConcurrentModification
	}
	return nil
}
