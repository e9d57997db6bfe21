package workflow

import (
	"github.com/draftpact/nda-negotiation/internal/model"
)

// Action is a workflow request against one document.
type Action string

const (
	// ActionSend is the owner sending the draft out for review and
	// signature. Owner-authenticated; no token involved.
	ActionSend Action = "SEND"
	// ActionSubmitChanges is the recipient replacing the content
	// snapshot (optionally provisionally signing at the same time).
	ActionSubmitChanges Action = "SUBMIT_CHANGES"
	// ActionApprove is the owner accepting the recipient's changes.
	ActionApprove Action = "APPROVE"
	// ActionRequestChanges is the owner bouncing the document back to
	// the recipient for another round.
	ActionRequestChanges Action = "REQUEST_CHANGES"
	// ActionSign is the recipient affixing the final signature.
	ActionSign Action = "SIGN"
	// ActionCancel is the owner terminating the negotiation.
	ActionCancel Action = "CANCEL"
)

// tokenScopes lists which scopes authorize each token-bearing action.
// Owner-authenticated actions (SEND, CANCEL) are absent: they carry no
// token at all.
var tokenScopes = map[Action][]model.TokenScope{
	ActionSubmitChanges:  {model.ScopeEdit, model.ScopeReview},
	ActionApprove:        {model.ScopeReview},
	ActionRequestChanges: {model.ScopeReview},
	ActionSign:           {model.ScopeSign, model.ScopeReview},
}

// Input is everything Decide needs to know about the document and the
// request. It is assembled by the service layer after token
// resolution; the engine itself never touches storage.
type Input struct {
	Status model.DocumentStatus
	// ProvisionallySigned mirrors Document.ProvisionalSignedAt != nil.
	ProvisionallySigned bool
	// TokenScope is the scope of the resolved token, empty for
	// owner-authenticated actions.
	TokenScope model.TokenScope
	// AlsoSign marks a SUBMIT_CHANGES that provisionally signs.
	AlsoSign bool
}

// Mint instructs the service layer to issue a fresh access token.
type Mint struct {
	Scope model.TokenScope
	// For names the party the token is bound to.
	For model.ActorRole
}

// Outcome is the full effect set of one legal transition. The service
// layer commits everything here in a single transaction; on any
// engine error nothing at all is written.
type Outcome struct {
	NewStatus model.DocumentStatus
	LastActor model.ActorRole

	// Provisional recipient signature bookkeeping.
	SetProvisionalSigned   bool
	ClearProvisionalSigned bool

	// Tokens to issue after the status write.
	Mint []Mint

	// Exactly one audit event per transition.
	Audit model.AuditEventType

	// Revision bookkeeping: content-mutating transitions write exactly
	// one revision with the before/after snapshot pair.
	WriteRevision  bool
	RevisionActor  model.ActorRole
	RevisionSigned bool

	// ConsumeToken is set when the authorizing token is single-use and
	// must be spent atomically with this transition.
	ConsumeToken bool

	// FinalizeSignatures marks all signers SIGNED (document reached
	// its fully-executed state).
	FinalizeSignatures bool
}

// Decide computes the outcome of applying action to a document in the
// given state. It is a pure function: same input, same outcome, no
// side effects. Scope is checked before status so a bad capability
// never learns anything about the document's current state.
func Decide(in Input, action Action) (Outcome, error) {
	if scopes, tokenBased := tokenScopes[action]; tokenBased {
		if !scopeAllowed(in.TokenScope, scopes) {
			return Outcome{}, ErrTokenScope
		}
	}

	switch action {
	case ActionSend:
		if in.Status != model.StatusDraft {
			return Outcome{}, ErrInvalidTransition
		}
		return Outcome{
			NewStatus: model.StatusSent,
			LastActor: model.ActorOwner,
			Mint:      []Mint{{Scope: model.ScopeReview, For: model.ActorRecipient}},
			Audit:     model.AuditSent,
		}, nil

	case ActionSubmitChanges:
		if in.Status != model.StatusSent && in.Status != model.StatusNeedsRecipientChanges {
			return Outcome{}, ErrInvalidTransition
		}
		out := Outcome{
			NewStatus:     model.StatusPendingOwnerReview,
			LastActor:     model.ActorRecipient,
			Mint:          []Mint{{Scope: model.ScopeReview, For: model.ActorOwner}},
			Audit:         model.AuditRecipientSubmittedChanges,
			WriteRevision: true,
			RevisionActor: model.ActorRecipient,
			ConsumeToken:  true,
		}
		if in.AlsoSign {
			out.SetProvisionalSigned = true
		}
		return out, nil

	case ActionApprove:
		if in.Status != model.StatusPendingOwnerReview {
			return Outcome{}, ErrInvalidTransition
		}
		if in.ProvisionallySigned {
			// Recipient already signed the content being approved:
			// approval finalizes both parties at once.
			return Outcome{
				NewStatus:          model.StatusSigned,
				LastActor:          model.ActorOwner,
				Audit:              model.AuditOwnerApprovedAndSigned,
				ConsumeToken:       true,
				FinalizeSignatures: true,
			}, nil
		}
		return Outcome{
			NewStatus:    model.StatusReadyToSign,
			LastActor:    model.ActorOwner,
			Mint:         []Mint{{Scope: model.ScopeSign, For: model.ActorRecipient}},
			Audit:        model.AuditOwnerApproved,
			ConsumeToken: true,
		}, nil

	case ActionRequestChanges:
		if in.Status != model.StatusPendingOwnerReview {
			return Outcome{}, ErrInvalidTransition
		}
		return Outcome{
			NewStatus:              model.StatusNeedsRecipientChanges,
			LastActor:              model.ActorOwner,
			ClearProvisionalSigned: true,
			Mint:                   []Mint{{Scope: model.ScopeEdit, For: model.ActorRecipient}},
			Audit:                  model.AuditOwnerRequestedChanges,
			ConsumeToken:           true,
		}, nil

	case ActionSign:
		// READY_TO_SIGN is the review path; SENT covers the direct
		// sign-as-sent flow where the recipient signs without edits.
		if in.Status != model.StatusReadyToSign && in.Status != model.StatusSent {
			return Outcome{}, ErrInvalidTransition
		}
		return Outcome{
			NewStatus:          model.StatusSigned,
			LastActor:          model.ActorRecipient,
			Audit:              model.AuditSigned,
			WriteRevision:      true,
			RevisionActor:      model.ActorRecipient,
			RevisionSigned:     true,
			ConsumeToken:       true,
			FinalizeSignatures: true,
		}, nil

	case ActionCancel:
		if in.Status.Terminal() {
			return Outcome{}, ErrInvalidTransition
		}
		return Outcome{
			NewStatus: model.StatusCancelled,
			LastActor: model.ActorOwner,
			Audit:     model.AuditCancelled,
		}, nil
	}
	return Outcome{}, ErrInvalidTransition
}

func scopeAllowed(have model.TokenScope, allowed []model.TokenScope) bool {
	for _, s := range allowed {
		if have == s {
			return true
		}
	}
	return false
}
