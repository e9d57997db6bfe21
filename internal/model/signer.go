package model

import "time"

// SignerStatus tracks how far a party has progressed on a document.
type SignerStatus string

const (
	SignerPending SignerStatus = "PENDING"
	SignerViewed  SignerStatus = "VIEWED"
	SignerSigned  SignerStatus = "SIGNED"
)

// SignerRole distinguishes the document owner from the counterparty.
type SignerRole string

const (
	SignerRoleOwner     SignerRole = "OWNER"
	SignerRoleRecipient SignerRole = "RECIPIENT"
)

// Signer is a named party attached to a document, as stored in the
// `signers` table. A signer does not have to map to a registered
// account: recipients act purely through access tokens. Re-issuing a
// token for an email that already has a signer on the document resets
// that row to PENDING instead of inserting a duplicate.
//
// Fields:
//  ID          – primary key identifier.
//  DocumentID  – document the party is attached to.
//  UserID      – registered account, when the party is the owner (nullable).
//  Email       – delivery address for token links.
//  DisplayName – name shown in notifications and signature blocks.
//  Role        – OWNER or RECIPIENT.
//  Status      – PENDING, VIEWED or SIGNED.
//  SignedAt    – when the party's signature became final (nullable).
//  CreatedAt   – timestamp of creation.
type Signer struct {
	ID          uint64       // signers.id
	DocumentID  uint64       // signers.document_id
	UserID      *uint64      // signers.user_id (nullable)
	Email       string       // signers.email
	DisplayName string       // signers.display_name
	Role        SignerRole   // signers.role
	Status      SignerStatus // signers.status
	SignedAt    *time.Time   // signers.signed_at (nullable)
	CreatedAt   time.Time    // signers.created_at
}
