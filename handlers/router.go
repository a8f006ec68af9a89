package handlers

import (
	"time"

	"clinic-records/middleware"
	"clinic-records/models"
	"clinic-records/monitoring"
	"clinic-records/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Services are the dependencies of the HTTP surface. Redis, Events and
// Search are optional.
type Services struct {
	Repo     models.Repository
	Redis    utils.RedisClient
	Events   *EventPublisher
	Search   utils.ElasticsearchClient
	Sessions middleware.SessionVerifier
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// NewRouter builds the gin engine: health and metrics endpoints plus the
// session-protected procedure routes under /api/trpc.
func NewRouter(s Services) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestLogger(s.Logger),
		middleware.SentryMiddleware(),
		middleware.PrometheusMetrics(),
		middleware.ErrorHandler(s.Logger),
	)

	health := NewHealthHandler(s.Repo, s.Redis)
	api := router.Group("/api/v1")
	{
		api.GET("/health", health.Health)
	}
	router.GET("/metrics", gin.WrapH(monitoring.Handler()))

	var cache *ResponseCache
	if s.Redis != nil {
		cache = NewResponseCache(s.Redis, s.CacheTTL, s.Logger)
	}
	rpc := NewRPC(cache, s.Logger)
	NewRecordHandler(s.Repo, s.Events, s.Search, s.Logger).Register(rpc)
	NewTransactionHandler(s.Repo).Register(rpc)

	trpc := router.Group("/api/trpc", middleware.RequireSession(s.Sessions, s.Logger))
	rpc.Register(trpc)

	return router
}
