package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftpact/nda-negotiation/internal/model"
)

func TestDecideSendFromDraft(t *testing.T) {
	out, err := Decide(Input{Status: model.StatusDraft}, ActionSend)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSent, out.NewStatus)
	assert.Equal(t, model.ActorOwner, out.LastActor)
	require.Len(t, out.Mint, 1)
	assert.Equal(t, model.ScopeReview, out.Mint[0].Scope)
	assert.Equal(t, model.ActorRecipient, out.Mint[0].For)
	assert.Equal(t, model.AuditSent, out.Audit)
	assert.False(t, out.WriteRevision)
	assert.False(t, out.ConsumeToken)
}

func TestDecideSendRejectsNonDraft(t *testing.T) {
	for _, status := range []model.DocumentStatus{
		model.StatusSent, model.StatusPendingOwnerReview, model.StatusNeedsRecipientChanges,
		model.StatusReadyToSign, model.StatusSigned, model.StatusCancelled,
	} {
		_, err := Decide(Input{Status: status}, ActionSend)
		assert.ErrorIs(t, err, ErrInvalidTransition, "status %s", status)
	}
}

func TestDecideSubmitChanges(t *testing.T) {
	for _, from := range []model.DocumentStatus{model.StatusSent, model.StatusNeedsRecipientChanges} {
		for _, scope := range []model.TokenScope{model.ScopeEdit, model.ScopeReview} {
			out, err := Decide(Input{Status: from, TokenScope: scope}, ActionSubmitChanges)
			require.NoError(t, err)
			assert.Equal(t, model.StatusPendingOwnerReview, out.NewStatus)
			assert.Equal(t, model.ActorRecipient, out.LastActor)
			assert.True(t, out.WriteRevision)
			assert.Equal(t, model.ActorRecipient, out.RevisionActor)
			assert.True(t, out.ConsumeToken)
			assert.False(t, out.SetProvisionalSigned)
			require.Len(t, out.Mint, 1)
			assert.Equal(t, model.ScopeReview, out.Mint[0].Scope)
			assert.Equal(t, model.ActorOwner, out.Mint[0].For)
			assert.Equal(t, model.AuditRecipientSubmittedChanges, out.Audit)
		}
	}
}

func TestDecideSubmitChangesWithProvisionalSign(t *testing.T) {
	out, err := Decide(Input{
		Status:     model.StatusSent,
		TokenScope: model.ScopeReview,
		AlsoSign:   true,
	}, ActionSubmitChanges)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingOwnerReview, out.NewStatus)
	assert.True(t, out.SetProvisionalSigned)
	assert.True(t, out.WriteRevision)
}

func TestDecideSubmitChangesScopeMismatch(t *testing.T) {
	for _, scope := range []model.TokenScope{model.ScopeView, model.ScopeSign, ""} {
		_, err := Decide(Input{Status: model.StatusSent, TokenScope: scope}, ActionSubmitChanges)
		assert.ErrorIs(t, err, ErrTokenScope, "scope %q", scope)
	}
}

// A bad capability must never learn the document's state: scope is
// rejected even when the status would also have been illegal.
func TestDecideScopeCheckedBeforeStatus(t *testing.T) {
	_, err := Decide(Input{Status: model.StatusSigned, TokenScope: model.ScopeView}, ActionSubmitChanges)
	assert.ErrorIs(t, err, ErrTokenScope)
}

func TestDecideApproveWithProvisionalSignatureFinalizes(t *testing.T) {
	out, err := Decide(Input{
		Status:              model.StatusPendingOwnerReview,
		ProvisionallySigned: true,
		TokenScope:          model.ScopeReview,
	}, ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSigned, out.NewStatus)
	assert.Empty(t, out.Mint)
	assert.Equal(t, model.AuditOwnerApprovedAndSigned, out.Audit)
	assert.True(t, out.ConsumeToken)
	assert.True(t, out.FinalizeSignatures)
}

func TestDecideApproveWithoutSignatureMintsSignToken(t *testing.T) {
	out, err := Decide(Input{
		Status:     model.StatusPendingOwnerReview,
		TokenScope: model.ScopeReview,
	}, ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReadyToSign, out.NewStatus)
	require.Len(t, out.Mint, 1)
	assert.Equal(t, model.ScopeSign, out.Mint[0].Scope)
	assert.Equal(t, model.ActorRecipient, out.Mint[0].For)
	assert.Equal(t, model.AuditOwnerApproved, out.Audit)
	assert.False(t, out.FinalizeSignatures)
}

func TestDecideRequestChangesClearsProvisionalSignature(t *testing.T) {
	out, err := Decide(Input{
		Status:              model.StatusPendingOwnerReview,
		ProvisionallySigned: true,
		TokenScope:          model.ScopeReview,
	}, ActionRequestChanges)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNeedsRecipientChanges, out.NewStatus)
	assert.True(t, out.ClearProvisionalSigned)
	require.Len(t, out.Mint, 1)
	assert.Equal(t, model.ScopeEdit, out.Mint[0].Scope)
	assert.Equal(t, model.ActorRecipient, out.Mint[0].For)
	assert.Equal(t, model.AuditOwnerRequestedChanges, out.Audit)
	assert.True(t, out.ConsumeToken)
}

func TestDecideSign(t *testing.T) {
	// Review path and direct-sign path both end at SIGNED.
	cases := []struct {
		from  model.DocumentStatus
		scope model.TokenScope
	}{
		{model.StatusReadyToSign, model.ScopeSign},
		{model.StatusSent, model.ScopeSign},
		{model.StatusSent, model.ScopeReview},
	}
	for _, tc := range cases {
		out, err := Decide(Input{Status: tc.from, TokenScope: tc.scope}, ActionSign)
		require.NoError(t, err, "from %s scope %s", tc.from, tc.scope)
		assert.Equal(t, model.StatusSigned, out.NewStatus)
		assert.True(t, out.WriteRevision)
		assert.True(t, out.RevisionSigned)
		assert.True(t, out.ConsumeToken)
		assert.True(t, out.FinalizeSignatures)
		assert.Empty(t, out.Mint)
		assert.Equal(t, model.AuditSigned, out.Audit)
	}
}

func TestDecideCancelFromAnyNonTerminal(t *testing.T) {
	for _, status := range []model.DocumentStatus{
		model.StatusDraft, model.StatusSent, model.StatusPendingOwnerReview,
		model.StatusNeedsRecipientChanges, model.StatusReadyToSign,
	} {
		out, err := Decide(Input{Status: status}, ActionCancel)
		require.NoError(t, err, "status %s", status)
		assert.Equal(t, model.StatusCancelled, out.NewStatus)
		assert.Equal(t, model.AuditCancelled, out.Audit)
		assert.Empty(t, out.Mint)
		assert.False(t, out.WriteRevision)
	}
}

// A signed or cancelled document can never re-enter the workflow, no
// matter which path got it there.
func TestDecideTerminalStatesRejectEverything(t *testing.T) {
	actions := []struct {
		action Action
		scope  model.TokenScope
	}{
		{ActionSend, ""},
		{ActionSubmitChanges, model.ScopeEdit},
		{ActionApprove, model.ScopeReview},
		{ActionRequestChanges, model.ScopeReview},
		{ActionSign, model.ScopeSign},
		{ActionCancel, ""},
	}
	for _, status := range []model.DocumentStatus{model.StatusSigned, model.StatusCancelled} {
		for _, a := range actions {
			_, err := Decide(Input{Status: status, TokenScope: a.scope}, a.action)
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s in %s", a.action, status)
		}
	}
}

func TestDecideUnknownAction(t *testing.T) {
	_, err := Decide(Input{Status: model.StatusDraft}, Action("EXPLODE"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestValidationError(t *testing.T) {
	err := Validation("recipient_email", "required")
	assert.Equal(t, "validation failed: recipient_email", err.Error())

	multi := &ValidationError{Fields: map[string]string{"b": "bad", "a": "missing"}}
	assert.Equal(t, "validation failed: a, b", multi.Error())
}
