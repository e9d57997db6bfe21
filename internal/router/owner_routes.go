package router

import (
	"github.com/labstack/echo/v4"

	"github.com/draftpact/nda-negotiation/internal/handler"
	"github.com/draftpact/nda-negotiation/internal/middleware"
)

// RegisterOwner registers the owner-scoped document endpoints under
// /v1. All routes require a valid JWT.
func RegisterOwner(e *echo.Echo, d *handler.DocumentHandler, hist *handler.HistoryHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("OWNER", "MEMBER"),
	)

	// ---- Documents ----
	g.POST("/documents", d.Create)
	g.GET("/documents", d.List)
	g.GET("/documents/:id", d.Get)
	g.PATCH("/documents/:id", d.Update) // draft-only edits
	g.POST("/documents/:id/send", d.Send)
	g.POST("/documents/:id/cancel", d.Cancel)

	// ---- History ----
	g.GET("/documents/:id/revisions", hist.ListRevisions)
	g.GET("/documents/:id/audit", hist.ListAudit)
	g.POST("/documents/:id/revisions/:revision_id/comments", hist.AddComment)
}
