package notifications

import "github.com/gin-gonic/gin"

func RegisterNotificationRoutes(r *gin.RouterGroup, h *Handler) {
	r.POST("/subscriptions", h.Subscribe)
	r.POST("/subscriptions/unsubscribe", h.Unsubscribe)
	r.POST("/send_notification", h.Broadcast)
	r.GET("/notifications/:reference", h.GetNotification)
}
