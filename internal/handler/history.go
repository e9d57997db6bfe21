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
)

// HistoryHandler serves the owner-facing revision ledger and audit
// trail. Both are read-only except for revision comments.
type HistoryHandler struct {
	Docs      *repository.DocumentRepo
	Revisions *repository.RevisionRepo
	Audit     *repository.AuditRepo
	Users     *repository.UserRepo
}

func NewHistoryHandler(docs *repository.DocumentRepo, revs *repository.RevisionRepo,
	audit *repository.AuditRepo, users *repository.UserRepo) *HistoryHandler {
	return &HistoryHandler{Docs: docs, Revisions: revs, Audit: audit, Users: users}
}

type revisionResp struct {
	ID        uint64                             `json:"id"`
	Number    uint32                             `json:"number"`
	ActorRole string                             `json:"actor_role"`
	BaseForm  json.RawMessage                    `json:"base_form"`
	NewForm   json.RawMessage                    `json:"new_form"`
	Diff      json.RawMessage                    `json:"diff"`
	Message   *string                            `json:"message,omitempty"`
	Comments  map[string][]model.RevisionComment `json:"comments,omitempty"`
	Signed    bool                               `json:"signed"`
	CreatedAt time.Time                          `json:"created_at"`
}

type auditResp struct {
	ID          uint64         `json:"id"`
	ActorUserID *uint64        `json:"actor_user_id,omitempty"`
	Type        string         `json:"type"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ListRevisions returns a document's full edit history, oldest first.
func (h *HistoryHandler) ListRevisions(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Docs.GetByIDForOwner(ctx, id, uid); err != nil {
		return writeWorkflowError(c, err)
	}
	revs, err := h.Revisions.ListByDocument(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list revisions failed"})
	}
	out := make([]revisionResp, 0, len(revs))
	for _, r := range revs {
		out = append(out, revisionResp{
			ID:        r.ID,
			Number:    r.Number,
			ActorRole: string(r.ActorRole),
			BaseForm:  r.BaseForm,
			NewForm:   r.NewForm,
			Diff:      r.Diff,
			Message:   r.Message,
			Comments:  r.Comments,
			Signed:    r.Signed,
			CreatedAt: r.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"revisions": out})
}

// ListAudit returns the append-only audit trail, oldest first.
func (h *HistoryHandler) ListAudit(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Docs.GetByIDForOwner(ctx, id, uid); err != nil {
		return writeWorkflowError(c, err)
	}
	events, err := h.Audit.ListByDocument(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list audit failed"})
	}
	out := make([]auditResp, 0, len(events))
	for _, e := range events {
		out = append(out, auditResp{
			ID:          e.ID,
			ActorUserID: e.ActorUserID,
			Type:        string(e.Type),
			Metadata:    e.Metadata,
			CreatedAt:   e.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"audit": out})
}

// AddComment attaches an owner remark to a field of one revision.
func (h *HistoryHandler) AddComment(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
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

	if _, err := h.Docs.GetByIDForOwner(ctx, id, uid); err != nil {
		return writeWorkflowError(c, err)
	}
	rev, err := h.Revisions.GetByID(ctx, revID)
	if err != nil {
		return writeWorkflowError(c, err)
	}
	if rev.DocumentID != id {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	user, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	comment := model.RevisionComment{
		Author: user.Email,
		Text:   req.Text,
		Ts:     time.Now().UTC(),
	}
	if err := h.Revisions.AddComment(ctx, revID, req.Path, comment); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save comment failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"revision_id": revID, "path": req.Path})
}
