package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-sync-service/internal/chatsync"
	"chat-sync-service/internal/faults"
)

// ChatHandler serves the authenticated chat API on top of the sync service.
type ChatHandler struct {
	service *chatsync.Service
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(service *chatsync.Service) *ChatHandler {
	return &ChatHandler{service: service}
}

// ListChatRooms returns the caller's rooms, most recent message first.
func (h *ChatHandler) ListChatRooms(c *gin.Context) {
	userID := c.GetString("userID")

	rooms, err := h.service.GetChatRoomsForUser(c.Request.Context(), userID)
	if err != nil {
		abortWithFault(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_rooms": rooms})
}

// SendMessage persists a message to the receiver, resolving or creating the
// shared room.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req struct {
		ReceiverID     string `json:"receiver_id" binding:"required"`
		Content        string `json:"content" binding:"required"`
		ReplyTo        string `json:"reply_to"`
		AttachmentURL  string `json:"attachment_url"`
		AttachmentType string `json:"attachment_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	msg, err := h.service.SendMessage(c.Request.Context(), userID, req.ReceiverID, req.Content, chatsync.SendOptions{
		ReplyTo:        req.ReplyTo,
		AttachmentURL:  req.AttachmentURL,
		AttachmentType: req.AttachmentType,
	})
	if err != nil {
		abortWithFault(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// GetMessages returns the room's messages in timestamp order. Only
// participants may read a room.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	roomID := c.Param("chat_id")
	userID := c.GetString("userID")

	rooms, err := h.service.GetChatRoomsForUser(c.Request.Context(), userID)
	if err != nil {
		abortWithFault(c, err)
		return
	}
	member := false
	for _, room := range rooms {
		if room.ID == roomID {
			member = true
			break
		}
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room participant"})
		return
	}

	msgs, err := h.service.GetMessagesForRoom(c.Request.Context(), roomID)
	if err != nil {
		abortWithFault(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// MarkAllRead flags every unread message addressed to the caller.
func (h *ChatHandler) MarkAllRead(c *gin.Context) {
	roomID := c.Param("chat_id")
	userID := c.GetString("userID")

	if err := h.service.MarkAllMessagesAsRead(c.Request.Context(), roomID, userID); err != nil {
		abortWithFault(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkMessageRead flags one message as read.
func (h *ChatHandler) MarkMessageRead(c *gin.Context) {
	if err := h.service.MarkMessageAsRead(c.Request.Context(), c.Param("message_id")); err != nil {
		abortWithFault(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteMessage soft-deletes a message sent by the caller.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	userID := c.GetString("userID")
	if err := h.service.DeleteMessage(c.Request.Context(), c.Param("message_id"), userID); err != nil {
		abortWithFault(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteChatRoom removes a room the caller participates in.
func (h *ChatHandler) DeleteChatRoom(c *gin.Context) {
	userID := c.GetString("userID")
	if err := h.service.DeleteChatRoom(c.Request.Context(), c.Param("chat_id"), userID); err != nil {
		abortWithFault(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdatePresence records the caller's online flag.
func (h *ChatHandler) UpdatePresence(c *gin.Context) {
	var req struct {
		Online *bool `json:"online" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	if err := h.service.UpdatePresence(c.Request.Context(), userID, *req.Online); err != nil {
		abortWithFault(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SendFriendRequest creates a pending request to another user.
func (h *ChatHandler) SendFriendRequest(c *gin.Context) {
	var req struct {
		ReceiverID string `json:"receiver_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	request, err := h.service.SendFriendRequest(c.Request.Context(), userID, req.ReceiverID)
	if err != nil {
		abortWithFault(c, err)
		return
	}
	c.JSON(http.StatusCreated, request)
}

// ListFriendRequests returns pending requests addressed to the caller.
func (h *ChatHandler) ListFriendRequests(c *gin.Context) {
	userID := c.GetString("userID")
	requests, err := h.service.ListPendingRequests(c.Request.Context(), userID)
	if err != nil {
		abortWithFault(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friend_requests": requests})
}

// AcceptFriendRequest accepts a pending request and creates the room.
func (h *ChatHandler) AcceptFriendRequest(c *gin.Context) {
	if err := h.service.AcceptFriendRequest(c.Request.Context(), c.Param("request_id")); err != nil {
		abortWithFault(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeclineFriendRequest declines a pending request.
func (h *ChatHandler) DeclineFriendRequest(c *gin.Context) {
	if err := h.service.DeclineFriendRequest(c.Request.Context(), c.Param("request_id")); err != nil {
		abortWithFault(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func abortWithFault(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch faults.KindOf(err) {
	case faults.NotAuthenticated:
		status = http.StatusUnauthorized
	case faults.NotFound:
		status = http.StatusNotFound
	case faults.ValidationFailure:
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": faults.Message(err)})
}
