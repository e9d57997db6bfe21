package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/draftpact/nda-negotiation/internal/model"
	"github.com/draftpact/nda-negotiation/internal/repository"
	"github.com/draftpact/nda-negotiation/internal/service"
)

// DocumentHandler serves the owner-facing document endpoints. Reads go
// straight to the repositories; every state change goes through the
// workflow service.
type DocumentHandler struct {
	Svc     *service.WorkflowService
	Docs    *repository.DocumentRepo
	Signers *repository.SignerRepo
	Users   *repository.UserRepo
}

func NewDocumentHandler(svc *service.WorkflowService, docs *repository.DocumentRepo,
	signers *repository.SignerRepo, users *repository.UserRepo) *DocumentHandler {
	return &DocumentHandler{Svc: svc, Docs: docs, Signers: signers, Users: users}
}

// ----- DTOs -----

type documentResp struct {
	ID                  uint64          `json:"id"`
	Title               string          `json:"title"`
	TemplateID          string          `json:"template_id"`
	Content             json.RawMessage `json:"content"`
	Status              string          `json:"status"`
	LastActor           string          `json:"last_actor"`
	ProvisionallySigned bool            `json:"provisionally_signed"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func toDocumentResp(d model.Document) documentResp {
	return documentResp{
		ID:                  d.ID,
		Title:               d.Title,
		TemplateID:          d.TemplateID,
		Content:             d.Content,
		Status:              string(d.Status),
		LastActor:           string(d.LastActor),
		ProvisionallySigned: d.ProvisionalSignedAt != nil,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

type signerResp struct {
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	SignedAt    *time.Time `json:"signed_at,omitempty"`
}

func toSignerResps(signers []model.Signer) []signerResp {
	out := make([]signerResp, 0, len(signers))
	for _, s := range signers {
		out = append(out, signerResp{
			Email:       s.Email,
			DisplayName: s.DisplayName,
			Role:        string(s.Role),
			Status:      string(s.Status),
			SignedAt:    s.SignedAt,
		})
	}
	return out
}

type createDocumentReq struct {
	Title      string          `json:"title"`
	TemplateID string          `json:"template_id"`
	Content    json.RawMessage `json:"content"`
}

type updateDocumentReq struct {
	Title   string          `json:"title"`
	Content json.RawMessage `json:"content"`
}

type sendReq struct {
	RecipientEmail string `json:"recipient_email"`
	RecipientName  string `json:"recipient_name"`
	Message        string `json:"message"`
}

// Create starts a new draft.
func (h *DocumentHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	orgID, err := getOrgID(c)
	if err != nil {
		return err
	}
	var req createDocumentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title required"})
	}
	if req.TemplateID == "" {
		req.TemplateID = "default"
	}
	if len(req.Content) > 0 && !json.Valid(req.Content) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "content must be valid JSON"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	doc := model.Document{
		OrganizationID:  orgID,
		CreatedByUserID: uid,
		Title:           req.Title,
		TemplateID:      req.TemplateID,
		Content:         req.Content,
	}
	if err := h.Docs.Create(ctx, &doc); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create document failed"})
	}
	return c.JSON(http.StatusCreated, toDocumentResp(doc))
}

// List returns the caller's documents, newest first.
func (h *DocumentHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	docs, err := h.Docs.ListByOwner(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	out := make([]documentResp, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentResp(d))
	}
	return c.JSON(http.StatusOK, echo.Map{"documents": out})
}

// Get returns one document with its parties.
func (h *DocumentHandler) Get(c echo.Context) error {
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

	doc, err := h.Docs.GetByIDForOwner(ctx, id, uid)
	if err != nil {
		return writeWorkflowError(c, err)
	}
	signers, err := h.Signers.ListByDocument(ctx, doc.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load signers failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"document": toDocumentResp(doc),
		"signers":  toSignerResps(signers),
	})
}

// Update edits a draft's title and content.
func (h *DocumentHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	orgID, err := getOrgID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req updateDocumentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	doc, err := h.Svc.UpdateDraft(ctx, uid, orgID, id, strings.TrimSpace(req.Title), req.Content)
	if err != nil {
		return writeWorkflowError(c, err)
	}
	return c.JSON(http.StatusOK, toDocumentResp(doc))
}

// Send moves a draft to SENT and e-mails the counterparty a review
// link. The response carries any links minted for the owner's side;
// the recipient's link travels only by e-mail.
func (h *DocumentHandler) Send(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	orgID, err := getOrgID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req sendReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	user, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	res, err := h.Svc.SendForReview(ctx, service.SendRequest{
		OwnerID:        uid,
		OrganizationID: orgID,
		DocumentID:     id,
		OwnerEmail:     user.Email,
		OwnerName:      user.Email,
		RecipientEmail: req.RecipientEmail,
		RecipientName:  req.RecipientName,
		Message:        req.Message,
	})
	if err != nil {
		return writeWorkflowError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"document": toDocumentResp(res.Document),
		"links":    res.Links,
	})
}

// Cancel terminates a negotiation.
func (h *DocumentHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return err
	}
	orgID, err := getOrgID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Svc.Cancel(ctx, uid, orgID, id)
	if err != nil {
		return writeWorkflowError(c, err)
	}
	return c.JSON(http.StatusOK, toDocumentResp(res.Document))
}

func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}
