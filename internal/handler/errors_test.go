package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftpact/nda-negotiation/internal/workflow"
)

func writeErr(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, writeWorkflowError(e.NewContext(req, rec), err))
	return rec
}

// Every token failure reads the same to the person clicking the link.
// Only the status code distinguishes unknown, expired, spent and
// out-of-scope tokens.
func TestTokenFailuresShareOneUserMessage(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{workflow.ErrTokenNotFound, http.StatusNotFound},
		{workflow.ErrTokenExpired, http.StatusGone},
		{workflow.ErrTokenConsumed, http.StatusConflict},
		{workflow.ErrTokenScope, http.StatusForbidden},
	}
	for _, tc := range cases {
		rec := writeErr(t, tc.err)
		assert.Equal(t, tc.status, rec.Code)
		assert.JSONEq(t, `{"error":"this link is no longer valid"}`, rec.Body.String(), "error %v", tc.err)
	}
}

func TestWorkflowErrorMapping(t *testing.T) {
	rec := writeErr(t, workflow.ErrInvalidTransition)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = writeErr(t, workflow.ErrConcurrentModification)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = writeErr(t, workflow.Validation("title", "is required"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "is required", body.Fields["title"])
}
