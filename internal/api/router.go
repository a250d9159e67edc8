package api

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/flare-sync/config"
	"github.com/d60-Lab/flare-sync/internal/api/handler"
	"github.com/d60-Lab/flare-sync/internal/api/middleware"
)

// NewRouter 组装 gin 路由
func NewRouter(cfg *config.Config, h *handler.Handler) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("flare-sync"))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(cfg.Auth.JWTSecret))
	{
		v1.POST("/accounts", h.AddAccount)
		v1.GET("/accounts", h.ListAccounts)
		v1.DELETE("/accounts/:key", h.RemoveAccount)

		v1.POST("/timelines", h.OpenTimeline)
		v1.GET("/timelines/:id", h.TimelineSnapshot)
		v1.GET("/timelines/:id/items", h.TimelineItems)
		v1.POST("/timelines/:id/refresh", h.RefreshTimeline)
		v1.POST("/timelines/:id/retry", h.RetryTimeline)
		v1.DELETE("/timelines/:id", h.CloseTimeline)

		v1.GET("/statuses", h.SearchStatuses)
		v1.GET("/statuses/:key", h.GetStatus)
		v1.POST("/statuses", h.Compose)
		v1.POST("/statuses/delete", h.DeleteStatus)
		v1.GET("/emojis/:host", h.GetEmojis)

		v1.GET("/relations", h.GetRelation)
		v1.POST("/relations/follow", h.Follow)
		v1.POST("/relations/unfollow", h.Unfollow)
		v1.POST("/relations/block", h.Block)
		v1.POST("/relations/unblock", h.Unblock)
		v1.POST("/relations/mute", h.Mute)
		v1.POST("/relations/unmute", h.Unmute)

		v1.POST("/cache/clear", h.ClearCache)
	}
	return r
}
