package model

import "time"

// AuditEventType enumerates the state-changing actions recorded in
// the audit trail. Exactly one event is written per successful
// workflow action, in the same transaction as the status change it
// records.
type AuditEventType string

const (
	AuditSent                      AuditEventType = "SENT"
	AuditUpdated                   AuditEventType = "UPDATED"
	AuditRecipientSubmittedChanges AuditEventType = "RECIPIENT_SUBMITTED_CHANGES"
	AuditOwnerApproved             AuditEventType = "OWNER_APPROVED"
	AuditOwnerApprovedAndSigned    AuditEventType = "OWNER_APPROVED_AND_SIGNED"
	AuditOwnerRequestedChanges     AuditEventType = "OWNER_REQUESTED_CHANGES"
	AuditSigned                    AuditEventType = "SIGNED"
	AuditCancelled                 AuditEventType = "CANCELLED"
)

// AuditEvent is an append-only ledger entry in the `audit_events`
// table. Events are never mutated or deleted, and they are never read
// back to drive workflow decisions: the trail exists purely so the
// negotiation can be reconstructed and disputed after the fact.
//
// Fields:
//  ID             – primary key identifier.
//  OrganizationID – organization owning the document.
//  DocumentID     – document the action touched.
//  ActorUserID    – registered account behind the action; nil for
//                   token-bearing recipient actions.
//  Type           – which action happened.
//  Metadata       – structured context (recipient email, message, ...).
//  CreatedAt      – timestamp of the append.
type AuditEvent struct {
	ID             uint64         // audit_events.id
	OrganizationID uint64         // audit_events.organization_id
	DocumentID     uint64         // audit_events.document_id
	ActorUserID    *uint64        // audit_events.actor_user_id (nullable)
	Type           AuditEventType // audit_events.type
	Metadata       map[string]any // audit_events.metadata (JSON)
	CreatedAt      time.Time      // audit_events.created_at
}
