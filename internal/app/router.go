// internal/app/router.go
package app

import (
	authHandler "soulchat-agent/internal/handlers/auth"
	notifyHandler "soulchat-agent/internal/handlers/notification"
	wsHandler "soulchat-agent/internal/handlers/websocket"
	"soulchat-agent/internal/middleware"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	AuthHandler    *authHandler.AuthHandler
	NotifHandler   *notifyHandler.NotificationHandler
	WSHandler      *wsHandler.WebSocketHandler
	AuthMiddleware *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)

	// ==================== Auth ====================
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/signin", h.AuthHandler.SignIn)
		authRoutes.POST("/signup", h.AuthHandler.SignUp)
		authRoutes.POST("/federated", h.AuthHandler.Federated)
		authRoutes.POST("/signout", h.AuthHandler.SignOut)
		authRoutes.GET("/session", h.AuthHandler.Session)
		authRoutes.GET("/verify-email", h.AuthHandler.VerifyEmail)
	}

	// ==================== Notifications ====================
	notifications := api.Group("/notifications")
	notifications.Use(h.AuthMiddleware.Auth())
	{
		notifications.GET("", h.NotifHandler.GetNotifications)
		notifications.GET("/unread", h.NotifHandler.GetUnreadCounts)
		notifications.POST("/refresh", h.NotifHandler.RefreshCounts)
		notifications.POST("/:id/read", h.NotifHandler.MarkAsRead)
	}

	threads := api.Group("/threads")
	threads.Use(h.AuthMiddleware.Auth())
	{
		threads.POST("/:kind/:id/read", h.NotifHandler.MarkThreadRead)
	}

	api.GET("/ws/stats", h.WSHandler.GetStats)
}
