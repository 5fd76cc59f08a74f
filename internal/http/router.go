package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/docquery/docquery-backend/internal/http/handlers"
	httpMW "github.com/docquery/docquery-backend/internal/http/middleware"
	"github.com/docquery/docquery-backend/internal/platform/logger"
	"github.com/docquery/docquery-backend/internal/tenant"
)

type RouterConfig struct {
	Log           *logger.Logger
	TenantService *tenant.Service

	HealthHandler   *httpH.HealthHandler
	DocumentHandler *httpH.DocumentHandler
	ChatHandler     *httpH.ChatHandler
	LLMHandler      *httpH.LLMHandler
	TenantHandler   *httpH.TenantHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.CORS())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "Doc Query API", "docs": "/api/health"})
	})

	api := r.Group("/api")
	{
		// Health (no tenant resolution)
		if cfg.HealthHandler != nil {
			api.GET("/health", cfg.HealthHandler.HealthCheck)
			api.GET("/health/detailed", cfg.HealthHandler.DetailedHealthCheck)
		}
	}

	scoped := api.Group("/")
	if cfg.TenantService != nil {
		scoped.Use(httpMW.ResolveTenant(cfg.Log, cfg.TenantService))
	}
	{
		if cfg.DocumentHandler != nil {
			docs := scoped.Group("/documents")
			docs.POST("/upload", cfg.DocumentHandler.Upload)
			docs.GET("", cfg.DocumentHandler.List)
			docs.GET("/stats", cfg.DocumentHandler.VectorStats)
			docs.GET("/:id", cfg.DocumentHandler.Get)
			docs.DELETE("/:id", cfg.DocumentHandler.Delete)
			docs.POST("/:id/process", cfg.DocumentHandler.Process)
			docs.GET("/:id/chunks", cfg.DocumentHandler.Chunks)
		}

		if cfg.ChatHandler != nil {
			chat := scoped.Group("/chat")
			chat.POST("/send", cfg.ChatHandler.Send)
			chat.POST("/send/stream", cfg.ChatHandler.SendStream)
			chat.GET("/sessions", cfg.ChatHandler.Sessions)
			chat.GET("/sessions/:session_id/messages", cfg.ChatHandler.SessionMessages)
			chat.POST("/messages/:message_id/feedback", cfg.ChatHandler.SubmitFeedback)
			chat.GET("/feedback/stats", cfg.ChatHandler.FeedbackStats)
			chat.GET("/feedback/trends", cfg.ChatHandler.FeedbackTrends)
		}

		if cfg.LLMHandler != nil {
			llm := scoped.Group("/llm")
			llm.POST("/query", cfg.LLMHandler.Query)
			llm.POST("/query/stream", cfg.LLMHandler.QueryStream)
			llm.POST("/analyze", cfg.LLMHandler.Analyze)
			llm.GET("/status", cfg.LLMHandler.Status)
			llm.POST("/chat/simple", cfg.LLMHandler.SimpleChat)
		}

		if cfg.TenantHandler != nil {
			tenants := scoped.Group("/tenants")
			tenants.POST("", cfg.TenantHandler.Create)
			tenants.GET("", cfg.TenantHandler.List)
			tenants.GET("/current/usage", cfg.TenantHandler.CurrentUsage)
			tenants.GET("/:tenant_id", cfg.TenantHandler.Get)
			tenants.PUT("/:tenant_id", cfg.TenantHandler.Update)
			tenants.DELETE("/:tenant_id", cfg.TenantHandler.Delete)
			tenants.POST("/:tenant_id/regenerate-api-key", cfg.TenantHandler.RegenerateAPIKey)
			tenants.GET("/:tenant_id/usage", cfg.TenantHandler.Usage)
		}
	}

	return r
}
