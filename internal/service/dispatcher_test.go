package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/draftpact/nda-negotiation/internal/diff"
	"github.com/draftpact/nda-negotiation/internal/model"
)

func TestLinkForRoutesByScope(t *testing.T) {
	d := &Dispatcher{AppURL: "https://app.example.com/"}
	assert.Equal(t, "https://app.example.com/d/review/abc", d.LinkFor(model.ScopeReview, "abc"))
	assert.Equal(t, "https://app.example.com/d/edit/abc", d.LinkFor(model.ScopeEdit, "abc"))
	assert.Equal(t, "https://app.example.com/d/sign/abc", d.LinkFor(model.ScopeSign, "abc"))
	assert.Equal(t, "https://app.example.com/d/view/abc", d.LinkFor(model.ScopeView, "abc"))
}

func TestSubjectForCoversEveryKind(t *testing.T) {
	kinds := []model.AuditEventType{
		model.AuditSent, model.AuditRecipientSubmittedChanges, model.AuditOwnerApproved,
		model.AuditOwnerApprovedAndSigned, model.AuditOwnerRequestedChanges,
		model.AuditSigned, model.AuditCancelled,
	}
	for _, k := range kinds {
		assert.Contains(t, subjectFor(k, "Mutual NDA"), "Mutual NDA", "kind %s", k)
	}
}

func TestBodyForEscapesAndListsChanges(t *testing.T) {
	body := bodyFor(Notification{
		Kind:          model.AuditRecipientSubmittedChanges,
		Document:      model.Document{Title: "NDA", Content: json.RawMessage(`{}`)},
		RecipientName: "<Alice>",
		Message:       "see §2 <b>",
		Link:          "https://app.example.com/d/review/tok",
		Changes: []diff.FieldChange{
			{Path: "/party_b/address", Kind: diff.Modified},
		},
	}, "")
	assert.Contains(t, body, "&lt;Alice&gt;")
	assert.NotContains(t, body, "<Alice>")
	assert.Contains(t, body, "Party B / Address")
	assert.Contains(t, body, "https://app.example.com/d/review/tok")
	assert.NotContains(t, body, "<b>see")
}

func TestBodyForFallsBackWithoutName(t *testing.T) {
	body := bodyFor(Notification{
		Kind:     model.AuditCancelled,
		Document: model.Document{Title: "NDA"},
	}, "")
	assert.Contains(t, body, "Hi there,")
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "Mutual-NDA-acme_v2", sanitizeFilename("Mutual NDA §acme_v2"))
	assert.Equal(t, "document", sanitizeFilename("§§§"))
}
