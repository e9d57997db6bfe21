package model

import (
	"encoding/json"
	"time"
)

// RevisionComment is one remark attached to a field path of a
// revision. Comments are stored as an ordered list per path.
type RevisionComment struct {
	Author string    `json:"author"`
	Text   string    `json:"text"`
	Ts     time.Time `json:"ts"`
}

// Revision is an immutable historical record in the `revisions`
// table: a full before/after snapshot pair plus the computed field
// diff. Rows are append-only and strictly ordered per document by
// Number, which is assigned transactionally as max+1 and never
// reused.
//
// Fields:
//  ID         – primary key identifier.
//  DocumentID – document this revision belongs to.
//  Number     – per-document sequence number, starting at 1.
//  ActorRole  – which party produced the new snapshot.
//  BaseForm   – complete snapshot before the change.
//  NewForm    – complete snapshot after the change.
//  Diff       – flattened field change list (see internal/diff).
//  Message    – optional free-text note from the actor.
//  Comments   – per-field-path comment threads (nullable JSON).
//  Signed     – true when this revision carried the recipient's signature.
//  CreatedAt  – timestamp of the append.
type Revision struct {
	ID         uint64                       // revisions.id
	DocumentID uint64                       // revisions.document_id
	Number     uint32                       // revisions.number
	ActorRole  ActorRole                    // revisions.actor_role
	BaseForm   json.RawMessage              // revisions.base_form (JSON)
	NewForm    json.RawMessage              // revisions.new_form (JSON)
	Diff       json.RawMessage              // revisions.diff (JSON)
	Message    *string                      // revisions.message (nullable)
	Comments   map[string][]RevisionComment // revisions.comments (nullable JSON)
	Signed     bool                         // revisions.signed
	CreatedAt  time.Time                    // revisions.created_at
}
