package model

import (
	"encoding/json"
	"time"
)

// DocumentStatus enumerates the lifecycle states of a negotiated
// document. A document starts in DRAFT and only ever moves along
// the transitions implemented by the workflow engine. SIGNED and
// CANCELLED are terminal: no action is legal once either is set.
type DocumentStatus string

const (
	StatusDraft                 DocumentStatus = "DRAFT"
	StatusSent                  DocumentStatus = "SENT"
	StatusPendingOwnerReview    DocumentStatus = "PENDING_OWNER_REVIEW"
	StatusNeedsRecipientChanges DocumentStatus = "NEEDS_RECIPIENT_CHANGES"
	StatusReadyToSign           DocumentStatus = "READY_TO_SIGN"
	StatusSigned                DocumentStatus = "SIGNED"
	StatusCancelled             DocumentStatus = "CANCELLED"
)

// Terminal reports whether no further workflow action may touch a
// document in this status.
func (s DocumentStatus) Terminal() bool {
	return s == StatusSigned || s == StatusCancelled
}

// Valid reports whether s is one of the known statuses. Used when
// scanning rows so that a bad migration surfaces loudly instead of
// silently producing an unreachable document.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPendingOwnerReview,
		StatusNeedsRecipientChanges, StatusReadyToSign, StatusSigned, StatusCancelled:
		return true
	}
	return false
}

// ActorRole identifies which side of the negotiation performed an
// action. The owner is the account that created the document; the
// recipient is the counterparty acting through an access token.
type ActorRole string

const (
	ActorOwner     ActorRole = "OWNER"
	ActorRecipient ActorRole = "RECIPIENT"
)

// Document is the negotiable artifact as stored in the
// `documents` table. Content is always a complete snapshot of the
// form fields (never a partial patch); every revision stores full
// before/after copies so diffs are reproducible from stored data
// alone.
//
// Fields:
//  ID                  – primary key identifier.
//  OrganizationID      – owning organization.
//  CreatedByUserID     – owner account that created the draft.
//  Title               – display title used in notifications.
//  TemplateID          – rendering template reference.
//  Content             – current full field snapshot (JSON object).
//  Status              – lifecycle state, see DocumentStatus.
//  LastActor           – which party acted last (OWNER | RECIPIENT).
//  ProvisionalSignedAt – set when the recipient signed while submitting
//                        changes that still await owner approval;
//                        cleared when the owner requests more changes.
//  CreatedAt/UpdatedAt – row timestamps.
type Document struct {
	ID                  uint64          // documents.id
	OrganizationID      uint64          // documents.organization_id
	CreatedByUserID     uint64          // documents.created_by_user_id
	Title               string          // documents.title
	TemplateID          string          // documents.template_id
	Content             json.RawMessage // documents.content (JSON)
	Status              DocumentStatus  // documents.status
	LastActor           ActorRole       // documents.last_actor
	ProvisionalSignedAt *time.Time      // documents.provisional_signed_at (nullable)
	CreatedAt           time.Time       // documents.created_at
	UpdatedAt           time.Time       // documents.updated_at
}
