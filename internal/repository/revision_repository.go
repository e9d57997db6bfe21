package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/draftpact/nda-negotiation/internal/model"
)

// RevisionRepo is the append-only revision ledger. Rows are never
// updated or deleted (comments append into their own JSON column);
// per-document numbering is assigned inside the action transaction so
// concurrent writers cannot claim the same number.
type RevisionRepo struct{ DB *sql.DB }

func NewRevisionRepo(db *sql.DB) *RevisionRepo { return &RevisionRepo{DB: db} }

// NextNumberTx computes max(number)+1 for the document with the rows
// locked. The FOR UPDATE on the document's revisions holds until the
// caller's transaction commits, which is what keeps sequences
// contiguous with no duplicates under concurrent submissions.
func (r *RevisionRepo) NextNumberTx(ctx context.Context, tx *sql.Tx, documentID uint64) (uint32, error) {
	var maxNum sql.NullInt64
	err := tx.QueryRowContext(ctx,
		"SELECT MAX(number) FROM revisions WHERE document_id=? FOR UPDATE", documentID).Scan(&maxNum)
	if err != nil {
		return 0, err
	}
	if !maxNum.Valid {
		return 1, nil
	}
	return uint32(maxNum.Int64) + 1, nil
}

// CreateTx appends a revision inside the caller's transaction. Number
// must come from NextNumberTx in the same transaction.
func (r *RevisionRepo) CreateTx(ctx context.Context, tx *sql.Tx, rev *model.Revision) error {
	var comments any
	if rev.Comments != nil {
		b, err := json.Marshal(rev.Comments)
		if err != nil {
			return err
		}
		comments = string(b)
	}
	var message any
	if rev.Message != nil {
		message = *rev.Message
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO revisions (document_id, number, actor_role, base_form, new_form, diff, message, comments, signed) VALUES (?,?,?,?,?,?,?,?,?)",
		rev.DocumentID, rev.Number, rev.ActorRole, string(rev.BaseForm), string(rev.NewForm),
		string(rev.Diff), message, comments, rev.Signed)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rev.ID = uint64(id)
	return nil
}

// ListByDocument returns the full edit history, oldest first.
func (r *RevisionRepo) ListByDocument(ctx context.Context, documentID uint64) ([]model.Revision, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, document_id, number, actor_role, base_form, new_form, diff, message, comments, signed, created_at FROM revisions WHERE document_id=? ORDER BY number", documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Revision
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

// GetByID fetches one revision.
func (r *RevisionRepo) GetByID(ctx context.Context, id uint64) (model.Revision, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, document_id, number, actor_role, base_form, new_form, diff, message, comments, signed, created_at FROM revisions WHERE id=? LIMIT 1", id)
	if err != nil {
		return model.Revision{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return model.Revision{}, err
		}
		return model.Revision{}, sql.ErrNoRows
	}
	return scanRevision(rows)
}

// AddComment appends a remark to the comment thread of one field
// path. Comments live beside the immutable snapshot columns; the
// revision's recorded history never changes.
func (r *RevisionRepo) AddComment(ctx context.Context, revisionID uint64, path string, comment model.RevisionComment) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var raw sql.NullString
	err = tx.QueryRowContext(ctx,
		"SELECT comments FROM revisions WHERE id=? FOR UPDATE", revisionID).Scan(&raw)
	if err != nil {
		return err
	}
	comments := map[string][]model.RevisionComment{}
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &comments); err != nil {
			return err
		}
	}
	comments[path] = append(comments[path], comment)
	b, err := json.Marshal(comments)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE revisions SET comments=? WHERE id=?", string(b), revisionID); err != nil {
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRevision(row rowScanner) (model.Revision, error) {
	var (
		rev      model.Revision
		base     []byte
		newForm  []byte
		diffCol  []byte
		message  sql.NullString
		comments sql.NullString
	)
	err := row.Scan(&rev.ID, &rev.DocumentID, &rev.Number, &rev.ActorRole,
		&base, &newForm, &diffCol, &message, &comments, &rev.Signed, &rev.CreatedAt)
	if err != nil {
		return model.Revision{}, err
	}
	rev.BaseForm = json.RawMessage(base)
	rev.NewForm = json.RawMessage(newForm)
	rev.Diff = json.RawMessage(diffCol)
	if message.Valid {
		m := message.String
		rev.Message = &m
	}
	if comments.Valid && comments.String != "" {
		if err := json.Unmarshal([]byte(comments.String), &rev.Comments); err != nil {
			return model.Revision{}, err
		}
	}
	return rev, nil
}
