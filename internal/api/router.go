package api

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/feedline/config"
	_ "github.com/d60-Lab/feedline/docs"
	"github.com/d60-Lab/feedline/internal/api/handler"
	"github.com/d60-Lab/feedline/internal/api/middleware"
	"github.com/d60-Lab/feedline/pkg/metrics"
)

// RouterDeps 路由需要的依赖
type RouterDeps struct {
	Handler *handler.Handler
	Auth    middleware.TokenParser
	Health  map[string]handler.Pinger
}

func NewRouter(cfg *config.Config, deps RouterDeps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.Recovery())
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/v1/realtime", "/metrics"})))
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Auth(deps.Auth))

	r.GET("/healthz", handler.Health(deps.Health))
	r.GET("/metrics", metrics.Handler)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	h := deps.Handler
	v1 := r.Group("/v1", middleware.RateLimit(cfg.RateLimit))
	authed := middleware.RequireAuth()

	v1.POST("/users", h.Register)
	v1.POST("/session", h.Login)
	v1.GET("/users/me", authed, h.Me)
	v1.PUT("/users/me", authed, h.UpdateMe)
	v1.GET("/users/:username", h.GetUser)
	v1.POST("/users/:username/subscribe", authed, h.Subscribe)
	v1.POST("/users/:username/unsubscribe", authed, h.Unsubscribe)
	v1.POST("/users/:username/ban", authed, h.Ban)
	v1.POST("/users/:username/unban", authed, h.Unban)
	v1.GET("/users/:username/subscriptions", h.ListSubscriptions)
	v1.GET("/users/:username/subscribers", h.ListSubscribers)
	v1.GET("/users/:username/stats", h.Stats)
	v1.GET("/stats/:category", h.TopFeeds)

	v1.POST("/groups", authed, h.CreateGroup)
	v1.GET("/groups/:groupName/admins", h.GroupAdmins)
	v1.POST("/groups/:groupName/admins/:username", authed, h.AddGroupAdmin)
	v1.DELETE("/groups/:groupName/admins/:username", authed, h.RemoveGroupAdmin)

	v1.POST("/posts", authed, h.CreatePost)
	v1.GET("/posts/:postId", h.GetPost)
	v1.PUT("/posts/:postId", authed, h.UpdatePost)
	v1.DELETE("/posts/:postId", authed, h.DestroyPost)
	v1.POST("/posts/:postId/like", authed, h.LikePost)
	v1.POST("/posts/:postId/unlike", authed, h.UnlikePost)
	v1.POST("/posts/:postId/hide", authed, h.HidePost)
	v1.POST("/posts/:postId/unhide", authed, h.UnhidePost)

	v1.POST("/comments", authed, h.CreateComment)
	v1.PUT("/comments/:commentId", authed, h.UpdateComment)
	v1.DELETE("/comments/:commentId", authed, h.DestroyComment)

	v1.GET("/timelines/home", authed, h.Home)
	v1.GET("/timelines/everyone", h.Everyone)
	v1.GET("/timelines/filter/discussions", authed, h.MyDiscussions)
	v1.GET("/timelines/filter/directs", authed, h.Directs)
	v1.GET("/timelines/:username", h.UserPosts)
	v1.GET("/timelines/:username/likes", h.UserLikes)
	v1.GET("/timelines/:username/comments", h.UserComments)

	v1.GET("/realtime", h.Realtime)
	return r
}
