package service

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftpact/nda-negotiation/internal/config"
	"github.com/draftpact/nda-negotiation/internal/model"
	"github.com/draftpact/nda-negotiation/internal/repository"
	"github.com/draftpact/nda-negotiation/internal/utils"
	"github.com/draftpact/nda-negotiation/internal/workflow"
)

const (
	resolveQuery    = "FROM access_tokens t"
	documentQuery   = "FROM documents WHERE id=? LIMIT 1"
	signersQuery    = "FROM signers WHERE document_id=? ORDER BY id"
	consumeQuery    = "UPDATE access_tokens SET consumed_at=NOW() WHERE id=? AND consumed_at IS NULL"
	nextNumberQuery = "SELECT MAX(number) FROM revisions WHERE document_id=? FOR UPDATE"
)

func newServiceWithMock(t *testing.T) (*WorkflowService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	svc := NewWorkflowService(db,
		repository.NewDocumentRepo(db),
		repository.NewSignerRepo(db),
		repository.NewAccessTokenRepo(db),
		repository.NewRevisionRepo(db),
		repository.NewAuditRepo(db),
		nil, config.Config{})
	return svc, mock
}

var tokenRowColumns = []string{
	"id", "signer_id", "token_hash", "scope", "payload", "expires_at", "consumed_at", "created_at",
	"s_id", "s_document_id", "s_user_id", "s_email", "s_display_name", "s_role", "s_status", "s_signed_at", "s_created_at",
}

// recipientTokenRows is a token (id 7) bound to the recipient signer
// (id 3) of document 11.
func recipientTokenRows(hash, scope string, payload, consumedAt any) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(tokenRowColumns).AddRow(
		7, 3, hash, scope, payload, now.Add(time.Hour), consumedAt, now,
		3, 11, nil, "bob@globex.test", "Bob Vance", "RECIPIENT", "VIEWED", nil, now)
}

func documentRows(status string, content string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "organization_id", "created_by_user_id", "title", "template_id",
		"content", "status", "last_actor", "provisional_signed_at", "created_at", "updated_at",
	}).AddRow(11, 1, 5, "Mutual NDA", "default", []byte(content), status, "OWNER", nil, now, now)
}

func emptySignerRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "document_id", "user_id", "email", "display_name", "role", "status", "signed_at", "created_at",
	})
}

// The full sign flow runs as one transaction: spend the token, CAS the
// status, append the signed revision, finalize the signers, append the
// audit event, commit.
func TestSignCommitsEverythingInOneTransaction(t *testing.T) {
	svc, mock := newServiceWithMock(t)
	raw := "rawtokenstring"
	hash := utils.HashToken(raw)
	content := `{"party_a":"Acme"}`

	mock.ExpectQuery(regexp.QuoteMeta(resolveQuery)).WithArgs(hash).
		WillReturnRows(recipientTokenRows(hash, "SIGN", nil, nil))
	mock.ExpectQuery(regexp.QuoteMeta(documentQuery)).WithArgs(int64(11)).
		WillReturnRows(documentRows("READY_TO_SIGN", content))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(consumeQuery)).WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE documents SET status=?, last_actor=?, updated_at=NOW() WHERE id=? AND status=?")).
		WithArgs("SIGNED", "RECIPIENT", int64(11), "READY_TO_SIGN").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(nextNumberQuery)).WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO revisions")).
		WithArgs(int64(11), int64(3), "RECIPIENT", content, content, "[]", nil, nil, true).
		WillReturnResult(sqlmock.NewResult(21, 1))
	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE signers SET status=?, signed_at=? WHERE document_id=? AND role=?")).
		WithArgs("SIGNED", sqlmock.AnyArg(), int64(11), "OWNER").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE signers SET status=?, signed_at=? WHERE document_id=? AND role=?")).
		WithArgs("SIGNED", sqlmock.AnyArg(), int64(11), "RECIPIENT").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_events")).
		WithArgs(int64(1), int64(11), nil, "SIGNED", `{"date":"2026-08-29","signatory_name":"Jane Doe"}`).
		WillReturnResult(sqlmock.NewResult(31, 1))
	mock.ExpectCommit()

	mock.ExpectQuery(regexp.QuoteMeta(signersQuery)).WithArgs(int64(11)).
		WillReturnRows(emptySignerRows())

	res, err := svc.Sign(context.Background(), SignRequest{
		RawToken:      raw,
		SignatoryName: "Jane Doe",
		SignedDate:    "2026-08-29",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSigned, res.Document.Status)
	assert.Equal(t, model.ActorRecipient, res.Document.LastActor)

	require.NoError(t, mock.ExpectationsWereMet())
}

// Reusing a spent sign link fails before any transaction begins; the
// already-signed document is untouched.
func TestSignTwiceSecondUseRejected(t *testing.T) {
	svc, mock := newServiceWithMock(t)
	raw := "rawtokenstring"
	hash := utils.HashToken(raw)
	spentAt := time.Now().UTC().Add(-time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta(resolveQuery)).WithArgs(hash).
		WillReturnRows(recipientTokenRows(hash, "SIGN", nil, spentAt))

	_, err := svc.Sign(context.Background(), SignRequest{RawToken: raw, SignatoryName: "Jane Doe"})
	assert.ErrorIs(t, err, workflow.ErrTokenConsumed)

	// No begin, no writes: the mock saw only the resolve query.
	require.NoError(t, mock.ExpectationsWereMet())
}

// A status that moved between read and write rolls the whole action
// back: no revision, no audit event, no minted token survives.
func TestSubmitRollsBackAllWritesOnStatusConflict(t *testing.T) {
	svc, mock := newServiceWithMock(t)
	raw := "rawtokenstring"
	hash := utils.HashToken(raw)
	newContent := `{"party_a":"Acme","term":24}`

	mock.ExpectQuery(regexp.QuoteMeta(resolveQuery)).WithArgs(hash).
		WillReturnRows(recipientTokenRows(hash, "EDIT", nil, nil))
	mock.ExpectQuery(regexp.QuoteMeta(documentQuery)).WithArgs(int64(11)).
		WillReturnRows(documentRows("SENT", `{"party_a":"Acme"}`))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(consumeQuery)).WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE documents SET status=?, last_actor=?, updated_at=NOW(), content=? WHERE id=? AND status=?")).
		WithArgs("PENDING_OWNER_REVIEW", "RECIPIENT", newContent, int64(11), "SENT").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := svc.SubmitRecipientChanges(context.Background(), SubmitRequest{
		RawToken:   raw,
		NewContent: json.RawMessage(newContent),
	})
	assert.ErrorIs(t, err, workflow.ErrConcurrentModification)

	require.NoError(t, mock.ExpectationsWereMet())
}

// When two submissions race on one token, the consume loser rolls back
// before touching the ledger.
func TestSubmitConsumeLoserWritesNothing(t *testing.T) {
	svc, mock := newServiceWithMock(t)
	raw := "rawtokenstring"
	hash := utils.HashToken(raw)

	mock.ExpectQuery(regexp.QuoteMeta(resolveQuery)).WithArgs(hash).
		WillReturnRows(recipientTokenRows(hash, "EDIT", nil, nil))
	mock.ExpectQuery(regexp.QuoteMeta(documentQuery)).WithArgs(int64(11)).
		WillReturnRows(documentRows("SENT", `{"party_a":"Acme"}`))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(consumeQuery)).WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := svc.SubmitRecipientChanges(context.Background(), SubmitRequest{
		RawToken:   raw,
		NewContent: json.RawMessage(`{"party_a":"Initech"}`),
	})
	assert.ErrorIs(t, err, workflow.ErrTokenConsumed)

	require.NoError(t, mock.ExpectationsWereMet())
}

// View resolution hands back the payload stored at mint time and works
// on spent single-use tokens.
func TestResolveViewExposesPendingPayload(t *testing.T) {
	svc, mock := newServiceWithMock(t)
	raw := "rawtokenstring"
	hash := utils.HashToken(raw)
	payload := `{"message":"see clause 4","revision":2}`
	spentAt := time.Now().UTC().Add(-time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta(resolveQuery)).WithArgs(hash).
		WillReturnRows(recipientTokenRows(hash, "REVIEW", payload, spentAt))
	mock.ExpectQuery(regexp.QuoteMeta(documentQuery)).WithArgs(int64(11)).
		WillReturnRows(documentRows("PENDING_OWNER_REVIEW", `{"party_a":"Acme"}`))
	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE signers SET status=? WHERE id=? AND status=?")).
		WithArgs("VIEWED", int64(3), "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 0))

	res, err := svc.ResolveView(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, model.ScopeReview, res.Scope)
	assert.True(t, res.Consumed)
	assert.JSONEq(t, payload, string(res.Pending))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenPayloadComposition(t *testing.T) {
	assert.Nil(t, tokenPayload(0, ""))
	assert.JSONEq(t, `{"revision":3,"message":"tighten clause 4"}`,
		string(tokenPayload(3, "tighten clause 4")))
	assert.JSONEq(t, `{"message":"please revisit"}`, string(tokenPayload(0, "please revisit")))
}
