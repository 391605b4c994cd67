package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/soonlist/soonlist-backend/config"
	"github.com/soonlist/soonlist-backend/internal/auditlog"
	"github.com/soonlist/soonlist-backend/internal/event"
	"github.com/soonlist/soonlist-backend/internal/pipeline"
	"github.com/soonlist/soonlist-backend/middleware"
)

// Handlers are the HTTP handlers mounted by Setup. Ping, when set, backs the
// readiness check.
type Handlers struct {
	Pipeline  *pipeline.Handler
	Events    *event.Handler
	AuditLogs *auditlog.Handler
	Ping      func(ctx context.Context) error
}

func Setup(r *gin.Engine, cfg *config.Config, h Handlers) error {
	r.Use(middleware.ClientIP())
	r.Use(middleware.RequestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Content-Length", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if h.Ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := h.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	// ========== AI capture procedures ==========
	limit, err := middleware.RateLimiter(cfg.AIRateLimit)
	if err != nil {
		return err
	}
	aiRoutes := api.Group("/ai")
	aiRoutes.Use(limit)
	{
		aiRoutes.POST("/eventFromRawText", h.Pipeline.EventFromRawText)
		aiRoutes.POST("/eventFromUrl", h.Pipeline.EventFromURL)
		aiRoutes.POST("/eventFromImage", h.Pipeline.EventFromImage)
	}

	// ========== Events ==========
	eventRoutes := api.Group("/events")
	{
		eventRoutes.GET("", h.Events.ListMyEvents)
		eventRoutes.GET("/:id", h.Events.GetEvent)
		eventRoutes.PUT("/:id", h.Events.UpdateEvent)
		eventRoutes.DELETE("/:id", h.Events.DeleteEvent)
	}

	// ========== Audit logs (admin) ==========
	auditRoutes := api.Group("/auditlogs")
	auditRoutes.Use(middleware.RequireRole(event.RoleAdmin))
	{
		auditRoutes.GET("", h.AuditLogs.GetAuditLogs)
		auditRoutes.GET("/:id", h.AuditLogs.GetAuditLogByID)
	}
	return nil
}
