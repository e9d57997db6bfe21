// Package service orchestrates workflow transitions. The engine in
// internal/workflow decides what a transition does; this layer resolves
// tokens, runs every write of the outcome in one database transaction,
// and hands committed transitions to the notification dispatcher.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/draftpact/nda-negotiation/internal/config"
	"github.com/draftpact/nda-negotiation/internal/diff"
	"github.com/draftpact/nda-negotiation/internal/model"
	"github.com/draftpact/nda-negotiation/internal/repository"
	"github.com/draftpact/nda-negotiation/internal/utils"
	"github.com/draftpact/nda-negotiation/internal/workflow"
)

// WorkflowService executes workflow actions against documents. Every
// state-changing method follows the same shape: resolve authorization,
// call workflow.Decide, commit the full outcome in one transaction,
// then dispatch notifications. A failed dispatch never unwinds a
// committed transition.
type WorkflowService struct {
	DB         *sql.DB
	Documents  *repository.DocumentRepo
	Signers    *repository.SignerRepo
	Tokens     *repository.AccessTokenRepo
	Revisions  *repository.RevisionRepo
	Audit      *repository.AuditRepo
	Dispatcher *Dispatcher
	Cfg        config.Config
}

func NewWorkflowService(db *sql.DB, docs *repository.DocumentRepo, signers *repository.SignerRepo,
	tokens *repository.AccessTokenRepo, revs *repository.RevisionRepo, audit *repository.AuditRepo,
	dispatcher *Dispatcher, cfg config.Config) *WorkflowService {
	return &WorkflowService{
		DB: db, Documents: docs, Signers: signers, Tokens: tokens,
		Revisions: revs, Audit: audit, Dispatcher: dispatcher, Cfg: cfg,
	}
}

// TransitionResult is what a successful action returns to the handler:
// the document as written, plus any capability links minted for the
// calling side. Links for the counterparty travel only by e-mail.
type TransitionResult struct {
	Document model.Document
	Links    map[model.TokenScope]string
}

// SendRequest carries the owner's send-for-review call.
type SendRequest struct {
	OwnerID        uint64
	OrganizationID uint64
	DocumentID     uint64
	OwnerEmail     string
	OwnerName      string
	RecipientEmail string
	RecipientName  string
	Message        string
}

// SendForReview moves a draft to SENT, attaches both parties as
// signers, and e-mails the recipient a review link. Re-sending after a
// failed negotiation round is not possible: SENT is only reachable
// from DRAFT.
func (s *WorkflowService) SendForReview(ctx context.Context, req SendRequest) (*TransitionResult, error) {
	if strings.TrimSpace(req.RecipientEmail) == "" {
		return nil, workflow.Validation("recipient_email", "is required")
	}

	doc, err := s.Documents.GetByIDForOwner(ctx, req.DocumentID, req.OwnerID)
	if err != nil {
		return nil, err
	}
	out, err := workflow.Decide(workflow.Input{Status: doc.Status}, workflow.ActionSend)
	if err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.Documents.ApplyTransitionTx(ctx, tx, doc.ID, repository.Transition{
		FromStatus: doc.Status,
		ToStatus:   out.NewStatus,
		LastActor:  out.LastActor,
	}); err != nil {
		return nil, err
	}

	owner := model.Signer{
		DocumentID:  doc.ID,
		UserID:      &req.OwnerID,
		Email:       req.OwnerEmail,
		DisplayName: req.OwnerName,
		Role:        model.SignerRoleOwner,
	}
	if err := s.Signers.UpsertTx(ctx, tx, &owner); err != nil {
		return nil, err
	}
	recipient := model.Signer{
		DocumentID:  doc.ID,
		Email:       req.RecipientEmail,
		DisplayName: req.RecipientName,
		Role:        model.SignerRoleRecipient,
	}
	if err := s.Signers.UpsertTx(ctx, tx, &recipient); err != nil {
		return nil, err
	}

	signers := map[model.ActorRole]*model.Signer{
		model.ActorOwner:     &owner,
		model.ActorRecipient: &recipient,
	}
	links, err := s.mintTx(ctx, tx, out.Mint, signers, tokenPayload(0, req.Message))
	if err != nil {
		return nil, err
	}

	meta := map[string]any{"recipient_email": recipient.Email}
	if req.Message != "" {
		meta["message"] = req.Message
	}
	if err := s.Audit.CreateTx(ctx, tx, &model.AuditEvent{
		OrganizationID: req.OrganizationID,
		DocumentID:     doc.ID,
		ActorUserID:    &req.OwnerID,
		Type:           out.Audit,
		Metadata:       meta,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	doc.Status = out.NewStatus
	doc.LastActor = out.LastActor

	s.dispatch(ctx, Notification{
		Kind:          out.Audit,
		Document:      doc,
		RecipientName: recipient.DisplayName,
		To:            recipient.Email,
		Link:          links.raw[model.ActorRecipient],
		Message:       req.Message,
	})
	return &TransitionResult{Document: doc, Links: links.byScope(model.ActorOwner)}, nil
}

// UpdateDraft edits a document the owner has not sent yet. Draft
// edits are audited (as UPDATED) but produce no revision: the ledger
// starts when the first counterparty change arrives.
func (s *WorkflowService) UpdateDraft(ctx context.Context, ownerID, orgID, documentID uint64, title string, content json.RawMessage) (model.Document, error) {
	if strings.TrimSpace(title) == "" {
		return model.Document{}, workflow.Validation("title", "is required")
	}
	doc, err := s.Documents.GetByIDForOwner(ctx, documentID, ownerID)
	if err != nil {
		return model.Document{}, err
	}
	delta, err := diff.Diff(doc.Content, content)
	if err != nil {
		return model.Document{}, workflow.Validation("content", "must be a JSON object")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Document{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.Documents.UpdateDraftTx(ctx, tx, doc.ID, title, content); err != nil {
		return model.Document{}, err
	}
	if err := s.Audit.CreateTx(ctx, tx, &model.AuditEvent{
		OrganizationID: orgID,
		DocumentID:     doc.ID,
		ActorUserID:    &ownerID,
		Type:           model.AuditUpdated,
		Metadata:       map[string]any{"changed_fields": len(delta.Changes())},
	}); err != nil {
		return model.Document{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Document{}, err
	}

	doc.Title = title
	doc.Content = content
	return doc, nil
}

// SubmitRequest carries a recipient's counter-proposal.
type SubmitRequest struct {
	RawToken   string
	NewContent json.RawMessage
	Message    string
	// AlsoSign provisionally signs the submitted content: if the owner
	// approves it unchanged, the document completes without another
	// round trip.
	AlsoSign bool
}

// SubmitRecipientChanges records the recipient's edited snapshot as a
// new revision and hands the document to the owner for review. The
// authorizing token is spent in the same transaction as the status
// change, so a double-submitted form cannot write two revisions.
func (s *WorkflowService) SubmitRecipientChanges(ctx context.Context, req SubmitRequest) (*TransitionResult, error) {
	res, err := s.Tokens.Resolve(ctx, utils.HashToken(req.RawToken), true, model.ScopeEdit, model.ScopeReview)
	if err != nil {
		return nil, err
	}
	doc, err := s.Documents.GetByID(ctx, res.Signer.DocumentID)
	if err != nil {
		return nil, err
	}
	out, err := workflow.Decide(workflow.Input{
		Status:              doc.Status,
		ProvisionallySigned: doc.ProvisionalSignedAt != nil,
		TokenScope:          res.Token.Scope,
		AlsoSign:            req.AlsoSign,
	}, workflow.ActionSubmitChanges)
	if err != nil {
		return nil, err
	}

	delta, err := diff.Diff(doc.Content, req.NewContent)
	if err != nil {
		return nil, workflow.Validation("content", "must be a JSON object")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.Tokens.ConsumeTx(ctx, tx, res.Token.ID); err != nil {
		return nil, err
	}
	t := repository.Transition{
		FromStatus: doc.Status,
		ToStatus:   out.NewStatus,
		LastActor:  out.LastActor,
		NewContent: req.NewContent,
	}
	var provisionalAt *time.Time
	if out.SetProvisionalSigned {
		now := time.Now().UTC()
		provisionalAt = &now
		t.SetProvisionalSigned = &now
	}
	if err := s.Documents.ApplyTransitionTx(ctx, tx, doc.ID, t); err != nil {
		return nil, err
	}

	rev, err := s.writeRevisionTx(ctx, tx, doc, req.NewContent, delta, out, req.Message)
	if err != nil {
		return nil, err
	}

	signers, err := s.signersByRole(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	// The owner's review link carries the submission context, so the
	// review page can show what it is about without a second lookup.
	links, err := s.mintTx(ctx, tx, out.Mint, signers, tokenPayload(rev.Number, req.Message))
	if err != nil {
		return nil, err
	}

	meta := map[string]any{"revision": rev.Number, "changed_fields": len(delta.Changes())}
	if req.AlsoSign {
		meta["provisionally_signed"] = true
	}
	if err := s.Audit.CreateTx(ctx, tx, &model.AuditEvent{
		OrganizationID: doc.OrganizationID,
		DocumentID:     doc.ID,
		ActorUserID:    res.Signer.UserID,
		Type:           out.Audit,
		Metadata:       meta,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	doc.Status = out.NewStatus
	doc.LastActor = out.LastActor
	doc.Content = req.NewContent
	doc.ProvisionalSignedAt = provisionalAt

	if owner := signers[model.ActorOwner]; owner != nil {
		s.dispatch(ctx, Notification{
			Kind:          out.Audit,
			Document:      doc,
			RecipientName: owner.DisplayName,
			To:            owner.Email,
			Link:          links.raw[model.ActorOwner],
			Message:       req.Message,
			Changes:       delta.Changes(),
		})
	}
	return &TransitionResult{Document: doc}, nil
}

// ApproveChanges accepts the recipient's pending revision. When the
// recipient provisionally signed it, approval completes the document;
// otherwise a sign link goes back out.
func (s *WorkflowService) ApproveChanges(ctx context.Context, rawToken string) (*TransitionResult, error) {
	return s.ownerReviewAction(ctx, rawToken, workflow.ActionApprove, "")
}

// RequestMoreChanges bounces the pending revision back to the
// recipient with a fresh edit link. Any provisional signature on the
// rejected content is discarded.
func (s *WorkflowService) RequestMoreChanges(ctx context.Context, rawToken, message string) (*TransitionResult, error) {
	return s.ownerReviewAction(ctx, rawToken, workflow.ActionRequestChanges, message)
}

func (s *WorkflowService) ownerReviewAction(ctx context.Context, rawToken string, action workflow.Action, message string) (*TransitionResult, error) {
	res, err := s.Tokens.Resolve(ctx, utils.HashToken(rawToken), true, model.ScopeReview)
	if err != nil {
		return nil, err
	}
	doc, err := s.Documents.GetByID(ctx, res.Signer.DocumentID)
	if err != nil {
		return nil, err
	}
	out, err := workflow.Decide(workflow.Input{
		Status:              doc.Status,
		ProvisionallySigned: doc.ProvisionalSignedAt != nil,
		TokenScope:          res.Token.Scope,
	}, action)
	if err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.Tokens.ConsumeTx(ctx, tx, res.Token.ID); err != nil {
		return nil, err
	}
	t := repository.Transition{
		FromStatus:             doc.Status,
		ToStatus:               out.NewStatus,
		LastActor:              out.LastActor,
		ClearProvisionalSigned: out.ClearProvisionalSigned,
	}
	if err := s.Documents.ApplyTransitionTx(ctx, tx, doc.ID, t); err != nil {
		return nil, err
	}
	if out.FinalizeSignatures {
		if err := s.Signers.FinalizeTx(ctx, tx, doc.ID, doc.ProvisionalSignedAt); err != nil {
			return nil, err
		}
	}

	signers, err := s.signersByRole(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	links, err := s.mintTx(ctx, tx, out.Mint, signers, tokenPayload(0, message))
	if err != nil {
		return nil, err
	}

	meta := map[string]any{}
	if message != "" {
		meta["message"] = message
	}
	if err := s.Audit.CreateTx(ctx, tx, &model.AuditEvent{
		OrganizationID: doc.OrganizationID,
		DocumentID:     doc.ID,
		ActorUserID:    res.Signer.UserID,
		Type:           out.Audit,
		Metadata:       meta,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	doc.Status = out.NewStatus
	doc.LastActor = out.LastActor
	if out.ClearProvisionalSigned {
		doc.ProvisionalSignedAt = nil
	}

	if recipient := signers[model.ActorRecipient]; recipient != nil {
		s.dispatch(ctx, Notification{
			Kind:          out.Audit,
			Document:      doc,
			RecipientName: recipient.DisplayName,
			To:            recipient.Email,
			Link:          links.raw[model.ActorRecipient],
			Message:       message,
		})
	}
	return &TransitionResult{Document: doc}, nil
}

// SignRequest carries the recipient's final signature.
type SignRequest struct {
	RawToken      string
	SignatoryName string
	// SignedDate is the date the signatory declares, free-form as
	// typed into the signature block.
	SignedDate string
}

// Sign affixes the recipient's final signature. Allowed with a SIGN
// token after owner approval, or with the original REVIEW token when
// the recipient signs the document exactly as it was sent.
func (s *WorkflowService) Sign(ctx context.Context, req SignRequest) (*TransitionResult, error) {
	if strings.TrimSpace(req.SignatoryName) == "" {
		return nil, workflow.Validation("signatory_name", "is required")
	}
	res, err := s.Tokens.Resolve(ctx, utils.HashToken(req.RawToken), true, model.ScopeSign, model.ScopeReview)
	if err != nil {
		return nil, err
	}
	doc, err := s.Documents.GetByID(ctx, res.Signer.DocumentID)
	if err != nil {
		return nil, err
	}
	out, err := workflow.Decide(workflow.Input{
		Status:     doc.Status,
		TokenScope: res.Token.Scope,
	}, workflow.ActionSign)
	if err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.Tokens.ConsumeTx(ctx, tx, res.Token.ID); err != nil {
		return nil, err
	}
	if err := s.Documents.ApplyTransitionTx(ctx, tx, doc.ID, repository.Transition{
		FromStatus: doc.Status,
		ToStatus:   out.NewStatus,
		LastActor:  out.LastActor,
	}); err != nil {
		return nil, err
	}

	// Signed revision with an unchanged snapshot: the ledger records
	// that this exact content is what was executed.
	empty, err := diff.Diff(doc.Content, doc.Content)
	if err != nil {
		return nil, err
	}
	if _, err := s.writeRevisionTx(ctx, tx, doc, doc.Content, empty, out, ""); err != nil {
		return nil, err
	}
	if err := s.Signers.FinalizeTx(ctx, tx, doc.ID, nil); err != nil {
		return nil, err
	}

	meta := map[string]any{"signatory_name": strings.TrimSpace(req.SignatoryName)}
	if d := strings.TrimSpace(req.SignedDate); d != "" {
		meta["date"] = d
	}
	if err := s.Audit.CreateTx(ctx, tx, &model.AuditEvent{
		OrganizationID: doc.OrganizationID,
		DocumentID:     doc.ID,
		ActorUserID:    res.Signer.UserID,
		Type:           out.Audit,
		Metadata:       meta,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	doc.Status = out.NewStatus
	doc.LastActor = out.LastActor

	signers, err := s.signersByRole(ctx, doc.ID)
	if err == nil {
		if owner := signers[model.ActorOwner]; owner != nil {
			s.dispatch(ctx, Notification{
				Kind:           out.Audit,
				Document:       doc,
				RecipientName:  owner.DisplayName,
				To:             owner.Email,
				AttachArtifact: true,
			})
		}
	}
	return &TransitionResult{Document: doc}, nil
}

// Cancel terminates a negotiation from any non-terminal state.
// Outstanding capability links keep resolving for viewing but every
// workflow action on them fails against the CANCELLED status.
func (s *WorkflowService) Cancel(ctx context.Context, ownerID, orgID, documentID uint64) (*TransitionResult, error) {
	doc, err := s.Documents.GetByIDForOwner(ctx, documentID, ownerID)
	if err != nil {
		return nil, err
	}
	out, err := workflow.Decide(workflow.Input{Status: doc.Status}, workflow.ActionCancel)
	if err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.Documents.ApplyTransitionTx(ctx, tx, doc.ID, repository.Transition{
		FromStatus: doc.Status,
		ToStatus:   out.NewStatus,
		LastActor:  out.LastActor,
	}); err != nil {
		return nil, err
	}
	if err := s.Audit.CreateTx(ctx, tx, &model.AuditEvent{
		OrganizationID: orgID,
		DocumentID:     doc.ID,
		ActorUserID:    &ownerID,
		Type:           out.Audit,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	doc.Status = out.NewStatus
	doc.LastActor = out.LastActor

	signers, err := s.signersByRole(ctx, doc.ID)
	if err == nil {
		if recipient := signers[model.ActorRecipient]; recipient != nil {
			s.dispatch(ctx, Notification{
				Kind:          out.Audit,
				Document:      doc,
				RecipientName: recipient.DisplayName,
				To:            recipient.Email,
			})
		}
	}
	return &TransitionResult{Document: doc}, nil
}

// ViewResult is the read-only token resolution for the counterparty UI.
type ViewResult struct {
	Document model.Document
	Signer   model.Signer
	Scope    model.TokenScope
	// Pending is the context stored with the token at mint time (the
	// sender's message, the revision a review link points at).
	Pending json.RawMessage
	// Consumed reports whether a single-use token was already spent;
	// the page can then say "already submitted" instead of re-offering
	// the action.
	Consumed bool
}

// ResolveView resolves any valid token for reading. Viewing never
// consumes anything and works for spent single-use tokens too.
func (s *WorkflowService) ResolveView(ctx context.Context, rawToken string) (*ViewResult, error) {
	res, err := s.Tokens.Resolve(ctx, utils.HashToken(rawToken), false)
	if err != nil {
		return nil, err
	}
	doc, err := s.Documents.GetByID(ctx, res.Signer.DocumentID)
	if err != nil {
		return nil, err
	}
	if err := s.Signers.MarkViewed(ctx, res.Signer.ID); err != nil {
		log.Printf("workflow: mark viewed signer %d: %v", res.Signer.ID, err)
	}
	return &ViewResult{
		Document: doc,
		Signer:   res.Signer,
		Scope:    res.Token.Scope,
		Pending:  res.Token.Payload,
		Consumed: res.Token.Consumed(),
	}, nil
}

// mintedLinks pairs the raw capability links of freshly minted tokens
// with the party each is bound to. Raw values exist only in memory on
// the minting request.
type mintedLinks struct {
	raw    map[model.ActorRole]string
	scopes map[model.ActorRole]model.TokenScope
}

func (l mintedLinks) byScope(role model.ActorRole) map[model.TokenScope]string {
	out := map[model.TokenScope]string{}
	if link, ok := l.raw[role]; ok {
		out[l.scopes[role]] = link
	}
	return out
}

// tokenPayload packs the context a capability link carries to the page
// that opens it. Empty context mints a payload-free token.
func tokenPayload(revision uint32, message string) json.RawMessage {
	p := map[string]any{}
	if revision > 0 {
		p["revision"] = revision
	}
	if message != "" {
		p["message"] = message
	}
	if len(p) == 0 {
		return nil
	}
	b, _ := json.Marshal(p)
	return b
}

// mintTx issues every token the outcome asks for inside the caller's
// transaction and returns the e-mailable links. The payload is stored
// with each minted token and travels back out on view resolution.
func (s *WorkflowService) mintTx(ctx context.Context, tx *sql.Tx, mints []workflow.Mint, signers map[model.ActorRole]*model.Signer, payload json.RawMessage) (mintedLinks, error) {
	links := mintedLinks{
		raw:    map[model.ActorRole]string{},
		scopes: map[model.ActorRole]model.TokenScope{},
	}
	for _, m := range mints {
		signer := signers[m.For]
		if signer == nil {
			return links, workflow.ErrInvalidTransition
		}
		grant, err := utils.NewCapabilityToken(s.ttlFor(m.Scope))
		if err != nil {
			return links, err
		}
		tok := model.AccessToken{
			SignerID:  signer.ID,
			TokenHash: grant.Hash,
			Scope:     m.Scope,
			Payload:   payload,
			ExpiresAt: grant.Exp,
		}
		if err := s.Tokens.IssueTx(ctx, tx, &tok); err != nil {
			return links, err
		}
		links.raw[m.For] = s.Dispatcher.LinkFor(m.Scope, grant.Raw)
		links.scopes[m.For] = m.Scope
	}
	return links, nil
}

func (s *WorkflowService) ttlFor(scope model.TokenScope) time.Duration {
	switch scope {
	case model.ScopeReview:
		return s.Cfg.ReviewTokenTTL
	case model.ScopeEdit:
		return s.Cfg.EditTokenTTL
	case model.ScopeSign:
		return s.Cfg.SignTokenTTL
	default:
		return s.Cfg.ViewTokenTTL
	}
}

func (s *WorkflowService) writeRevisionTx(ctx context.Context, tx *sql.Tx, doc model.Document,
	newForm json.RawMessage, delta *diff.Delta, out workflow.Outcome, message string) (*model.Revision, error) {
	num, err := s.Revisions.NextNumberTx(ctx, tx, doc.ID)
	if err != nil {
		return nil, err
	}
	diffJSON, err := json.Marshal(delta)
	if err != nil {
		return nil, err
	}
	rev := model.Revision{
		DocumentID: doc.ID,
		Number:     num,
		ActorRole:  out.RevisionActor,
		BaseForm:   doc.Content,
		NewForm:    newForm,
		Diff:       diffJSON,
		Signed:     out.RevisionSigned,
	}
	if message != "" {
		rev.Message = &message
	}
	if err := s.Revisions.CreateTx(ctx, tx, &rev); err != nil {
		return nil, err
	}
	return &rev, nil
}

func (s *WorkflowService) signersByRole(ctx context.Context, documentID uint64) (map[model.ActorRole]*model.Signer, error) {
	list, err := s.Signers.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	out := map[model.ActorRole]*model.Signer{}
	for i := range list {
		switch list[i].Role {
		case model.SignerRoleOwner:
			out[model.ActorOwner] = &list[i]
		case model.SignerRoleRecipient:
			out[model.ActorRecipient] = &list[i]
		}
	}
	return out, nil
}

// dispatch hands a committed transition to the notification pipeline.
// Failures are logged and swallowed.
func (s *WorkflowService) dispatch(ctx context.Context, n Notification) {
	if s.Dispatcher == nil {
		return
	}
	if err := s.Dispatcher.Notify(ctx, n); err != nil {
		log.Printf("workflow: dispatch %s notification for document %d: %v", n.Kind, n.Document.ID, err)
	}
}
