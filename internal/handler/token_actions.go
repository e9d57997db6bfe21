package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/draftpact/nda-negotiation/internal/model"
	"github.com/draftpact/nda-negotiation/internal/repository"
	"github.com/draftpact/nda-negotiation/internal/service"
)

// TokenHandler serves the public capability-link endpoints. The raw
// token in the path is the entire authorization: no session, no
// account. Handlers never echo the token back in response bodies.
type TokenHandler struct {
	Svc       *service.WorkflowService
	Revisions *repository.RevisionRepo
}

func NewTokenHandler(svc *service.WorkflowService, revs *repository.RevisionRepo) *TokenHandler {
	return &TokenHandler{Svc: svc, Revisions: revs}
}

type submitReq struct {
	Content  json.RawMessage `json:"content"`
	Message  string          `json:"message"`
	AlsoSign bool            `json:"also_sign"`
}

type messageReq struct {
	Message string `json:"message"`
}

// View resolves any valid token read-only and returns the document as
// the counterparty may see it. Works for spent single-use links too,
// so "already submitted" pages can still show the content.
func (h *TokenHandler) View(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Svc.ResolveView(ctx, c.Param("token"))
	if err != nil {
		return writeWorkflowError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"document": toDocumentResp(res.Document),
		"scope":    res.Scope,
		"consumed": res.Consumed,
		"pending":  res.Pending,
		"signer": signerResp{
			Email:       res.Signer.Email,
			DisplayName: res.Signer.DisplayName,
			Role:        string(res.Signer.Role),
			Status:      string(res.Signer.Status),
			SignedAt:    res.Signer.SignedAt,
		},
	})
}

// Submit records the recipient's counter-proposal.
func (h *TokenHandler) Submit(c echo.Context) error {
	var req submitReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Svc.SubmitRecipientChanges(ctx, service.SubmitRequest{
		RawToken:   c.Param("token"),
		NewContent: req.Content,
		Message:    strings.TrimSpace(req.Message),
		AlsoSign:   req.AlsoSign,
	})
	if err != nil {
		return writeWorkflowError(c, err)
	}
	return c.JSON(http.StatusOK, toDocumentResp(res.Document))
}

// Approve accepts the pending revision (owner, via review link).
func (h *TokenHandler) Approve(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Svc.ApproveChanges(ctx, c.Param("token"))
	if err != nil {
		return writeWorkflowError(c, err)
	}
	return c.JSON(http.StatusOK, toDocumentResp(res.Document))
}

// RequestChanges bounces the pending revision back to the recipient.
func (h *TokenHandler) RequestChanges(c echo.Context) error {
	var req messageReq
	_ = c.Bind(&req)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Svc.RequestMoreChanges(ctx, c.Param("token"), strings.TrimSpace(req.Message))
	if err != nil {
		return writeWorkflowError(c, err)
	}
	return c.JSON(http.StatusOK, toDocumentResp(res.Document))
}

type signReq struct {
	SignatoryName string `json:"signatory_name"`
	Date          string `json:"date"`
}

// Sign affixes the recipient's final signature.
func (h *TokenHandler) Sign(c echo.Context) error {
	var req signReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Svc.Sign(ctx, service.SignRequest{
		RawToken:      c.Param("token"),
		SignatoryName: req.SignatoryName,
		SignedDate:    req.Date,
	})
	if err != nil {
		return writeWorkflowError(c, err)
	}
	return c.JSON(http.StatusOK, toDocumentResp(res.Document))
}

type commentReq struct {
	Path string `json:"path"`
	Text string `json:"text"`
}

// Comment lets the counterparty attach a remark to a field of a
// revision on their document. Any valid token may comment; commenting
// consumes nothing.
func (h *TokenHandler) Comment(c echo.Context) error {
	revID, err := pathID(c, "revision_id")
	if err != nil {
		return err
	}
	var req commentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Path == "" || req.Text == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "path and text required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Svc.ResolveView(ctx, c.Param("token"))
	if err != nil {
		return writeWorkflowError(c, err)
	}
	rev, err := h.Revisions.GetByID(ctx, revID)
	if err != nil {
		return writeWorkflowError(c, err)
	}
	if rev.DocumentID != res.Document.ID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	comment := model.RevisionComment{
		Author: res.Signer.DisplayName,
		Text:   req.Text,
		Ts:     time.Now().UTC(),
	}
	if err := h.Revisions.AddComment(ctx, revID, req.Path, comment); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save comment failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"revision_id": revID, "path": req.Path})
}
