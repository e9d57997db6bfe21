package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/draftpact/nda-negotiation/internal/config"
	"github.com/draftpact/nda-negotiation/internal/handler"
	"github.com/draftpact/nda-negotiation/internal/middleware"
)

// RegisterTokenRoutes registers the public capability-link endpoints
// under /d. There is no session here; the token in the path is the
// whole authorization, so the group is rate limited per (ip, token)
// to keep token guessing slow.
func RegisterTokenRoutes(e *echo.Echo, t *handler.TokenHandler, rdb *redis.Client) {
	rl := config.LoadRateLimitConfig()
	rl.KeyStrategy = "ip_token_route"

	g := e.Group("/d", middleware.NewTokenBucket(rl, rdb))

	// The read-only view is cached briefly per token; every
	// state-changing route below invalidates nothing and relies on the
	// short TTL instead.
	cacheCfg := config.LoadCacheConfig()
	cacheCfg.KeyStrategy = "token_route"
	g.GET("/:token", t.View, middleware.NewRedisCache(cacheCfg, rdb))

	g.POST("/:token/submit", t.Submit)
	g.POST("/:token/approve", t.Approve)
	g.POST("/:token/request-changes", t.RequestChanges)
	g.POST("/:token/sign", t.Sign)
	g.POST("/:token/revisions/:revision_id/comments", t.Comment)
}
