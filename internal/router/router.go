// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/draftpact/nda-negotiation/internal/handler"
	"github.com/draftpact/nda-negotiation/internal/middleware"
)

// RegisterRoutes registers routes that require no authentication at
// all. Currently that is only the health check used by load balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the owner-account session endpoints.
// Unauthenticated operations live under /v1/auth; protected ones
// under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotating refresh: exchanges the refresh token for a new pair.
	g.POST("/refresh", a.Refresh)
	// Non-rotating variant: fresh access token, same refresh token.
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout accepts either a bearer token (revoke all sessions) or a
	// refresh_token body (revoke one); it needs no JWT middleware.
	g.POST("/logout", a.Logout)
	e.POST("/v1/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole("OWNER", "MEMBER"))
	auth.GET("/me", a.Me)
}
