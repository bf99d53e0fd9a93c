// internal/app/router.go
package app

import (
	"net/http"

	"adminauth-service/internal/domain/auth"
	auditHandler "adminauth-service/internal/handlers/audit"
	authHandler "adminauth-service/internal/handlers/auth"
	wsHandler "adminauth-service/internal/handlers/websocket"
	"adminauth-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handlers struct {
	AuthHandler    *authHandler.AuthHandler
	AuditHandler   *auditHandler.AuditHandler
	WSHandler      *wsHandler.WebSocketHandler
	AuthMiddleware *middleware.AuthMiddleware
	Metrics        *middleware.HTTPMetrics
	Gatherer       prometheus.Gatherer
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	r.Use(
		middleware.RequestID(),
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		h.Metrics.Handler(),
	)

	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== Metrics ====================
	if h.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})))
	}

	// ==================== WebSocket ====================
	// The upgrade handler authenticates itself so browsers can pass ?token=
	r.GET("/ws/audit", h.WSHandler.HandleConnection)
	r.GET("/ws/stats", append(h.AuthMiddleware.WithPermission(auth.ViewAuditLog), h.WSHandler.GetStats)...)

	// ==================== Public Auth Routes ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/login", h.AuthHandler.Login)
		authPublic.POST("/refresh", h.AuthHandler.Refresh)
		authPublic.POST("/status", h.AuthHandler.AccountStatus)
		authPublic.POST("/forgot-password", h.AuthHandler.ForgotPassword)
		authPublic.POST("/reset-password", h.AuthHandler.ResetPassword)
	}

	// ==================== Authenticated Auth Routes ====================
	authProtected := api.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.POST("/logout", h.AuthHandler.Logout)
		authProtected.PUT("/change-secret", h.AuthHandler.ChangeSecret)
		authProtected.GET("/me", h.AuthHandler.GetMe)
	}

	// ==================== Admin ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.Auth())
	{
		admin.GET("/users", h.AuthMiddleware.RequirePermission(auth.PreviewUserList), h.AuthHandler.PreviewUsers)
		admin.POST("/users/:id/unlock", h.AuthMiddleware.RequirePermission(auth.UnlockUser), h.AuthHandler.UnlockUser)
		admin.GET("/audit-log", h.AuthMiddleware.RequirePermission(auth.ViewAuditLog), h.AuditHandler.ListEvents)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "route not found"})
	})

	logger.Info("routes registered", zap.Int("count", len(r.Routes())))
}
