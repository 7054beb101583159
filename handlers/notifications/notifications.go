package notifications

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/villebiz/marketplace-server/models"
	"github.com/villebiz/marketplace-server/notify"
	"github.com/villebiz/marketplace-server/store"
)

type Handler struct {
	subscriptions store.SubscriptionStore
	broadcaster   *notify.Broadcaster
	log           store.NotificationLog
}

func NewHandler(subscriptions store.SubscriptionStore, broadcaster *notify.Broadcaster, notificationLog store.NotificationLog) *Handler {
	return &Handler{
		subscriptions: subscriptions,
		broadcaster:   broadcaster,
		log:           notificationLog,
	}
}

type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
	Role  string `json:"role"`
	Email string `json:"email"`
}

// Subscribe registers a browser push subscription. Subscribing the same
// endpoint twice refreshes the role and email instead of erroring.
func (h *Handler) Subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint and keys are required"})
		return
	}
	if req.Role == "" {
		req.Role = "buyer"
	}

	err := h.subscriptions.Upsert(c.Request.Context(), &models.PushSubscription{
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
		Role:     req.Role,
		Email:    req.Email,
	})
	if err != nil {
		log.WithError(err).Error("could not store push subscription")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save subscription"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Subscription saved"})
}

func (h *Handler) Unsubscribe(c *gin.Context) {
	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}

	err := h.subscriptions.Remove(c.Request.Context(), req.Endpoint)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No subscription found for the given endpoint"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Subscription removed"})
}

type broadcastRequest struct {
	Title      string `json:"title"`
	Body       string `json:"body"`
	Link       string `json:"link"`
	Icon       string `json:"icon"`
	From       string `json:"from"`
	To         string `json:"to"`
	ForSellers bool   `json:"for_sellers"`
	ForAdmins  bool   `json:"for_admins"`
}

// Broadcast pushes a manual notification and records it. A delivery count of
// zero means nobody matched the audience, which callers treat as not found.
func (h *Handler) Broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	if req.Title == "" || req.Body == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and body are required"})
		return
	}

	audience := store.Audience{
		ForSellers: req.ForSellers,
		ForAdmins:  req.ForAdmins,
		Email:      req.To,
	}
	sent, err := h.broadcaster.Broadcast(c.Request.Context(), req.Title, req.Body, req.Link, req.Icon, audience)
	if err != nil {
		log.WithError(err).Error("broadcast failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send notification"})
		return
	}
	if sent == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No subscriptions found for the specified criteria."})
		return
	}

	reference := uuid.NewString()
	record := &models.Notification{
		NotificationReference: reference,
		Title:                 req.Title,
		Body:                  req.Body,
		To:                    req.To,
		From:                  req.From,
		Icon:                  req.Icon,
		Link:                  req.Link,
		SentOn:                time.Now().UTC(),
	}
	if err := h.log.Append(c.Request.Context(), record); err != nil {
		log.WithError(err).WithField("notification_reference", reference).Warn("could not record notification")
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Notification sent",
		"reference": reference,
		"delivered": sent,
	})
}

func (h *Handler) GetNotification(c *gin.Context) {
	reference := c.Param("reference")
	n, err := h.log.Get(c.Request.Context(), reference)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No notification found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notification"})
		return
	}
	c.JSON(http.StatusOK, n)
}
