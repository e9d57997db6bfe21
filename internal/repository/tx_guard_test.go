package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftpact/nda-negotiation/internal/model"
	"github.com/draftpact/nda-negotiation/internal/workflow"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func beginTx(t *testing.T, db *sql.DB) *sql.Tx {
	t.Helper()
	tx, err := db.Begin()
	require.NoError(t, err)
	return tx
}

// Two racing uses of the same single-use token: the guarded UPDATE lets
// exactly one caller through, the loser gets ErrTokenConsumed.
func TestConsumeTxExactlyOneWinner(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccessTokenRepo(db)
	consume := regexp.QuoteMeta("UPDATE access_tokens SET consumed_at=NOW() WHERE id=? AND consumed_at IS NULL")

	mock.ExpectBegin()
	mock.ExpectExec(consume).WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(consume).WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx := beginTx(t, db)
	require.NoError(t, repo.ConsumeTx(context.Background(), tx, 7))
	assert.ErrorIs(t, repo.ConsumeTx(context.Background(), tx, 7), workflow.ErrTokenConsumed)
	_ = tx.Rollback()

	require.NoError(t, mock.ExpectationsWereMet())
}

// The compare-and-swap transition write fails with
// ErrConcurrentModification when the status moved since it was read.
func TestApplyTransitionTxDetectsConcurrentWriter(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDocumentRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE documents SET status=?, last_actor=?, updated_at=NOW() WHERE id=? AND status=?")).
		WithArgs("PENDING_OWNER_REVIEW", "RECIPIENT", int64(11), "SENT").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx := beginTx(t, db)
	err := repo.ApplyTransitionTx(context.Background(), tx, 11, Transition{
		FromStatus: model.StatusSent,
		ToStatus:   model.StatusPendingOwnerReview,
		LastActor:  model.ActorRecipient,
	})
	assert.ErrorIs(t, err, workflow.ErrConcurrentModification)
	_ = tx.Rollback()

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTransitionTxWritesContentAndProvisionalStamp(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDocumentRepo(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE documents SET status=?, last_actor=?, updated_at=NOW(), content=?, provisional_signed_at=? WHERE id=? AND status=?")).
		WithArgs("PENDING_OWNER_REVIEW", "RECIPIENT", `{"term":24}`, now, int64(11), "SENT").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx := beginTx(t, db)
	err := repo.ApplyTransitionTx(context.Background(), tx, 11, Transition{
		FromStatus:           model.StatusSent,
		ToStatus:             model.StatusPendingOwnerReview,
		LastActor:            model.ActorRecipient,
		NewContent:           json.RawMessage(`{"term":24}`),
		SetProvisionalSigned: &now,
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	require.NoError(t, mock.ExpectationsWereMet())
}

// Revision numbers come from max(number)+1 with the document's rows
// locked, so sequences stay contiguous under concurrent submissions.
func TestNextNumberTxLocksAndIncrements(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRevisionRepo(db)
	query := regexp.QuoteMeta("SELECT MAX(number) FROM revisions WHERE document_id=? FOR UPDATE")

	mock.ExpectBegin()
	mock.ExpectQuery(query).WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
	mock.ExpectQuery(query).WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(4))
	mock.ExpectRollback()

	tx := beginTx(t, db)
	num, err := repo.NextNumberTx(context.Background(), tx, 11)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), num, "empty ledger starts at 1")

	num, err = repo.NextNumberTx(context.Background(), tx, 11)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), num)
	_ = tx.Rollback()

	require.NoError(t, mock.ExpectationsWereMet())
}

// Draft edits are guarded on status: once the document left DRAFT the
// write affects zero rows and surfaces as a conflict.
func TestUpdateDraftTxRejectsNonDraft(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDocumentRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE documents SET title=?, content=?, updated_at=NOW() WHERE id=? AND status=?")).
		WithArgs("Mutual NDA", `{}`, int64(11), "DRAFT").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx := beginTx(t, db)
	err := repo.UpdateDraftTx(context.Background(), tx, 11, "Mutual NDA", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrConflict)
	_ = tx.Rollback()

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueTxPersistsPayload(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccessTokenRepo(db)
	exp := time.Now().UTC().Add(7 * 24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO access_tokens (signer_id, token_hash, scope, payload, expires_at) VALUES (?,?,?,?,?)")).
		WithArgs(int64(3), "deadbeef", "REVIEW", `{"message":"see clause 4"}`, exp).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit()

	tx := beginTx(t, db)
	tok := model.AccessToken{
		SignerID:  3,
		TokenHash: "deadbeef",
		Scope:     model.ScopeReview,
		Payload:   json.RawMessage(`{"message":"see clause 4"}`),
		ExpiresAt: exp,
	}
	require.NoError(t, repo.IssueTx(context.Background(), tx, &tok))
	assert.Equal(t, uint64(42), tok.ID)
	require.NoError(t, tx.Commit())

	require.NoError(t, mock.ExpectationsWereMet())
}
