package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"chat-sync-service/internal/chatsync"
	"chat-sync-service/internal/middleware"
	"chat-sync-service/internal/models"
	"chat-sync-service/internal/observability"
	"chat-sync-service/internal/rabbitmq"
)

// Handler upgrades live-subscription requests to WebSocket connections. Each
// connection holds one subscription; the full fresh snapshot is re-sent on
// every change and the subscription is cancelled when the peer goes away.
type Handler struct {
	service   *chatsync.Service
	publisher rabbitmq.Publisher
	jwtSecret []byte
	logger    *logrus.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *chatsync.Service, publisher rabbitmq.Publisher, jwtSecret []byte, logger *logrus.Logger) *Handler {
	return &Handler{service: service, publisher: publisher, jwtSecret: jwtSecret, logger: logger}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleRooms streams the caller's room list.
func (h *Handler) HandleRooms(c *gin.Context) {
	ctx, span := otel.Tracer("chat-sync-service/ws").Start(c.Request.Context(), "ws.rooms.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := h.authenticate(c)
	if !ok {
		return
	}

	conn, info, ok := h.upgrade(c, userID, span.SpanContext().TraceID().String())
	if !ok {
		return
	}

	writer := newConnWriter(conn, h.logger)
	initial, err := h.service.GetChatRoomsForUser(ctx, userID)
	if err == nil {
		writer.writeJSON(models.RoomEvent{Type: "rooms", Rooms: initial})
	}

	cancel := h.service.SubscribeRooms(userID, func(rooms []models.ChatRoom) {
		writer.writeJSON(models.RoomEvent{Type: "rooms", Rooms: rooms})
	})

	h.publishLifecycle(ctx, "ws_connect", "rooms", userID, info, "")
	go h.readLoop(ctx, conn, info, "rooms", userID, cancel)
}

// HandleMessages streams one room's message list. Participants only.
func (h *Handler) HandleMessages(c *gin.Context) {
	roomID := c.Param("chat_id")

	ctx, span := otel.Tracer("chat-sync-service/ws").Start(c.Request.Context(), "ws.messages.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := h.authenticate(c)
	if !ok {
		return
	}

	rooms, err := h.service.GetChatRoomsForUser(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
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
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for room"})
		return
	}

	conn, info, ok := h.upgrade(c, userID, span.SpanContext().TraceID().String())
	if !ok {
		return
	}

	writer := newConnWriter(conn, h.logger)
	initial, err := h.service.GetMessagesForRoom(ctx, roomID)
	if err == nil {
		writer.writeJSON(models.MessageEvent{Type: "messages", Messages: initial})
	}

	cancel := h.service.SubscribeMessages(roomID, func(msgs []models.Message) {
		writer.writeJSON(models.MessageEvent{Type: "messages", Messages: msgs})
	})

	h.publishLifecycle(ctx, "ws_connect", "messages", userID, info, "")
	go h.readLoop(ctx, conn, info, "messages", userID, cancel)
}

func (h *Handler) authenticate(c *gin.Context) (string, bool) {
	token := c.GetHeader("Authorization")
	if token == "" {
		if q := c.Query("token"); q != "" {
			token = "Bearer " + q
		}
	}

	parts := strings.SplitN(token, " ", 2)
	if len(parts) != 2 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return "", false
	}
	userID, err := middleware.ParseToken(parts[1], h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return "", false
	}
	return userID, true
}

func (h *Handler) upgrade(c *gin.Context, userID, traceID string) (*websocket.Conn, ConnInfo, bool) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return nil, ConnInfo{}, false
	}
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	return conn, info, true
}

// readLoop drains the connection until the peer closes, then cancels the
// subscription. No callbacks reach the conn after cancel returns.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, info ConnInfo, kind, userID string, cancel func()) {
	var closeReason string
	defer func() {
		cancel()
		conn.Close()
		h.publishLifecycle(ctx, "ws_disconnect", kind, userID, info, closeReason)
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			closeReason = err.Error()
			return
		}
	}
}

func (h *Handler) publishLifecycle(ctx context.Context, event, kind, userID string, info ConnInfo, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        kind,
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   userID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
	err := h.publisher.Publish(ctx, "ws_events."+kind, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
	if err != nil {
		h.logger.WithError(err).Debug("ws lifecycle publish failed")
	}
}

// connWriter serializes writes; snapshot fan-out and the initial write can
// race on the same conn otherwise.
type connWriter struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	logger *logrus.Logger
}

func newConnWriter(conn *websocket.Conn, logger *logrus.Logger) *connWriter {
	return &connWriter{conn: conn, logger: logger}
}

func (w *connWriter) writeJSON(event any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteJSON(event); err != nil {
		w.logger.WithError(err).Debug("websocket write error")
	}
}
