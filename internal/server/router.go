package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/streem-backend/internal/handlers"
	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/middleware"
	"github.com/yungbote/streem-backend/internal/platform/envutil"
)

type RouterConfig struct {
	Log             *logger.Logger
	AuthMiddleware  *middleware.AuthMiddleware
	AuthHandler     *handlers.AuthHandler
	UploadHandler   *handlers.UploadHandler
	VideoHandler    *handlers.VideoHandler
	HistoryHandler  *handlers.HistoryHandler
	HomefeedHandler *handlers.HomefeedHandler
	SearchHandler   *handlers.SearchHandler
	EventsHandler   *handlers.EventsHandler
	HealthHandler   *handlers.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if envutil.String("ENV", "local") != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(cfg.Log))
	if envutil.Bool("OTEL_ENABLED", false) {
		router.Use(otelgin.Middleware("streem-api"))
	}
	router.Use(cors.New(corsConfig()))

	router.GET("/healthz", cfg.HealthHandler.Healthz)
	router.GET("/readyz", cfg.HealthHandler.Readyz)

	api := router.Group("/api/v1")

	auth := api.Group("/auth")
	{
		auth.POST("/register", cfg.AuthHandler.Register)
		auth.POST("/login", cfg.AuthHandler.Login)
		auth.POST("/refresh", cfg.AuthHandler.Refresh)
	}

	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	{
		protected.POST("/uploads/presign", cfg.UploadHandler.Presign)
		protected.POST("/uploads/:video_id/finalize", cfg.UploadHandler.Finalize)

		protected.GET("/videos/my", cfg.VideoHandler.ListMine)
		protected.GET("/videos/:id", cfg.VideoHandler.Detail)
		protected.DELETE("/videos/:id", cfg.VideoHandler.Delete)
		protected.GET("/videos/:id/events", cfg.EventsHandler.VideoStream)

		protected.POST("/history/:video_id/heartbeat", cfg.HistoryHandler.Heartbeat)
		protected.GET("/history", cfg.HistoryHandler.List)

		protected.GET("/homefeed", cfg.HomefeedHandler.Feed)
		protected.GET("/search", cfg.SearchHandler.Search)
		protected.GET("/events", cfg.EventsHandler.Stream)
	}

	return router
}

func corsConfig() cors.Config {
	origins := strings.Split(envutil.String("CORS_ALLOWED_ORIGINS", "http://localhost:3000"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
	}
}
