// internal/handlers/websocket/websocket.go
package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"adminauth-service/internal/domain/auth"
	wstypes "adminauth-service/internal/domain/websocket"
	"adminauth-service/internal/pkg/response"
	ws "adminauth-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler builds the audit stream handler. With no allowed
// origins only same-origin browsers may connect.
func NewWebSocketHandler(hub *ws.Hub, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if len(allowedOrigins) > 0 {
		h.upgrader.CheckOrigin = originChecker(allowedOrigins)
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}

// HandleConnection upgrades an authenticated audit viewer to a websocket
// subscribed to the audit channel.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	// Extract token from query parameter or header
	token := h.extractToken(c)
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "missing authentication token", nil)
		return
	}

	identity, err := h.hub.AuthenticateClient(token)
	if err != nil {
		h.logger.Warn("WebSocket authentication failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		response.Error(c, http.StatusUnauthorized, "authentication failed", nil)
		return
	}
	if !identity.Permissions.Has(auth.ViewAuditLog) {
		response.Error(c, http.StatusForbidden, "insufficient permissions", nil)
		return
	}

	// Upgrade to WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		return
	}

	client := ws.NewClient(h.hub, conn, identity)
	client.Subscribe(wstypes.ChannelAudit)

	// Register client with hub
	h.hub.Register <- client

	h.logger.Info("WebSocket client connected",
		zap.Int64("user_id", identity.UserID),
		zap.String("ip", c.ClientIP()),
	)

	// Start client goroutines
	go client.WritePump()
	go client.ReadPump()
}

// extractToken extracts token from query param or Authorization header
func (h *WebSocketHandler) extractToken(c *gin.Context) string {
	// Try query parameter first (common for WebSocket)
	if token := c.Query("token"); token != "" {
		return token
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	return ""
}

// GetStats returns WebSocket connection statistics
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	stats := map[string]any{
		"total_connections": h.hub.TotalClients(),
		"timestamp":         time.Now().UTC(),
	}

	response.Success(c, http.StatusOK, "WebSocket stats", stats)
}
