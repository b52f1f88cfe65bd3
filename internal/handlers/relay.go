package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chat-sync-service/internal/config"
	"chat-sync-service/internal/faults"
	"chat-sync-service/internal/observability"
	"chat-sync-service/internal/relay"
	"chat-sync-service/internal/repositories"
)

// RelayHandler serves the notification-relay API. No authentication is
// enforced here; the trust boundary is the caller.
type RelayHandler struct {
	dispatcher *relay.Dispatcher
	users      repositories.UserRepository
	appCfg     config.Config
}

// NewRelayHandler builds a RelayHandler.
func NewRelayHandler(dispatcher *relay.Dispatcher, users repositories.UserRepository, appCfg config.Config) *RelayHandler {
	return &RelayHandler{dispatcher: dispatcher, users: users, appCfg: appCfg}
}

// SendNotification looks up the receiver's push token and delivers the
// payload through the push gateway.
func (h *RelayHandler) SendNotification(c *gin.Context) {
	var req struct {
		ReceiverID string `json:"receiverId" binding:"required"`
		SenderID   string `json:"senderId" binding:"required"`
		SenderName string `json:"senderName" binding:"required"`
		Message    string `json:"message" binding:"required"`
		ChatRoomID string `json:"chatRoomId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	dispatchID, err := h.dispatcher.Dispatch(c.Request.Context(),
		req.ReceiverID, req.SenderID, req.SenderName, req.Message, req.ChatRoomID)
	if err != nil {
		status := http.StatusInternalServerError
		if faults.Is(err, faults.NotFound) {
			status = http.StatusNotFound
		}
		observability.IncPushDispatch("http", "error")
		c.JSON(status, gin.H{"success": false, "message": faults.Message(err)})
		return
	}

	observability.IncPushDispatch("http", "ok")
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"messageId": dispatchID,
		"message":   "Notification sent successfully",
	})
}

// GetToken returns the stored push token for a user, null when unset.
func (h *RelayHandler) GetToken(c *gin.Context) {
	userID := c.Param("user_id")

	token, err := h.users.GetToken(c.Request.Context(), userID)
	if err != nil {
		status := http.StatusInternalServerError
		if err == repositories.ErrUserNotFound {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"success": false, "message": "user not found"})
		return
	}

	var fcmToken any
	if token != "" {
		fcmToken = token
	}
	c.JSON(http.StatusOK, gin.H{"userId": userID, "fcmToken": fcmToken})
}

// SetToken overwrites the user's push token, last writer wins.
func (h *RelayHandler) SetToken(c *gin.Context) {
	userID := c.Param("user_id")

	var req struct {
		FCMToken string `json:"fcmToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	if err := h.users.SetToken(c.Request.Context(), userID, req.FCMToken); err != nil {
		status := http.StatusInternalServerError
		if err == repositories.ErrUserNotFound {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"success": false, "message": "could not store token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Token updated successfully"})
}

// AppVersion reports the advertised client release.
func (h *RelayHandler) AppVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"currentVersion": h.appCfg.App.CurrentVersion,
		"latestVersion":  h.appCfg.App.Latest,
	})
}

// Liveness is the root health probe.
func (h *RelayHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "chat-sync-service is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
