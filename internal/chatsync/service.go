// Package chatsync implements the message/chat-room synchronization flow:
// find-or-create pairwise rooms, append messages, keep room summaries
// consistent with the latest message, and maintain read state.
package chatsync

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"chat-sync-service/internal/events"
	"chat-sync-service/internal/faults"
	"chat-sync-service/internal/live"
	"chat-sync-service/internal/models"
	"chat-sync-service/internal/observability"
	"chat-sync-service/internal/rabbitmq"
	"chat-sync-service/internal/repositories"
)

// SendOptions carries the optional message attributes.
type SendOptions struct {
	ReplyTo        string
	AttachmentURL  string
	AttachmentType string
}

// Service coordinates room resolution, message persistence, summary updates
// and live fan-out. All state lives in the injected repositories; the
// service itself is safe for concurrent use.
type Service struct {
	rooms     repositories.ChatRoomRepository
	messages  repositories.MessageRepository
	users     repositories.UserRepository
	requests  repositories.FriendRequestRepository
	hub       *live.Hub
	publisher rabbitmq.Publisher
	logger    *logrus.Logger
}

// NewService builds a Service.
func NewService(
	rooms repositories.ChatRoomRepository,
	messages repositories.MessageRepository,
	users repositories.UserRepository,
	requests repositories.FriendRequestRepository,
	hub *live.Hub,
	publisher rabbitmq.Publisher,
	logger *logrus.Logger,
) *Service {
	return &Service{
		rooms:     rooms,
		messages:  messages,
		users:     users,
		requests:  requests,
		hub:       hub,
		publisher: publisher,
		logger:    logger,
	}
}

// SendMessage resolves (or lazily creates) the room shared by sender and
// receiver, persists the message with a server timestamp, then updates the
// room summary as a separate, non-atomic write. The summary update failing
// does not fail the send; the persisted message is returned regardless.
func (s *Service) SendMessage(ctx context.Context, senderID, receiverID, content string, opts SendOptions) (models.Message, error) {
	if senderID == "" {
		return models.Message{}, faults.New(faults.NotAuthenticated, "no authenticated sender")
	}
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return models.Message{}, faults.New(faults.ValidationFailure, "message content is empty")
	}
	if senderID == receiverID {
		return models.Message{}, faults.New(faults.ValidationFailure, "cannot message yourself")
	}

	room, err := s.rooms.FindOrCreateRoom(ctx, senderID, receiverID)
	if err != nil {
		return models.Message{}, faults.Wrap(faults.RemoteFailure, "resolve chat room", err)
	}

	msg := models.Message{
		ChatRoomID: room.ID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    trimmed,
	}
	if opts.ReplyTo != "" {
		msg.ReplyTo = sql.NullString{String: opts.ReplyTo, Valid: true}
	}
	if opts.AttachmentURL != "" {
		msg.AttachmentURL = sql.NullString{String: opts.AttachmentURL, Valid: true}
		msg.AttachmentType = sql.NullString{String: opts.AttachmentType, Valid: true}
	}

	stored, err := s.messages.CreateMessage(ctx, msg)
	if err != nil {
		return models.Message{}, faults.Wrap(faults.RemoteFailure, "persist message", err)
	}
	observability.IncMessagesSent()

	if err := s.rooms.UpdateSummary(ctx, room.ID, stored); err != nil {
		// Message is already persisted; the summary catches up on the
		// next send. Spelled out as an accepted limitation.
		s.logger.WithError(err).WithField("room_id", room.ID).Warn("room summary update failed")
	}

	s.publishMessageCreated(ctx, stored)
	s.notifyRoom(ctx, room.ID, senderID, receiverID)

	return stored, nil
}

// MarkMessageAsRead sets the read flag on one message.
func (s *Service) MarkMessageAsRead(ctx context.Context, messageID string) error {
	err := s.messages.MarkRead(ctx, messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return faults.Wrap(faults.NotFound, "message not found", err)
	}
	return faults.Wrap(faults.RemoteFailure, "mark message read", err)
}

// MarkAllMessagesAsRead flags every unread message in the room addressed to
// the viewer and resets the viewer's unread counter. Not transactional
// across messages; partial completion on failure is possible.
func (s *Service) MarkAllMessagesAsRead(ctx context.Context, roomID, viewerID string) error {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			return faults.Wrap(faults.NotFound, "chat room not found", err)
		}
		return faults.Wrap(faults.RemoteFailure, "load chat room", err)
	}
	if !room.HasParticipant(viewerID) {
		return faults.New(faults.ValidationFailure, "viewer is not a participant")
	}

	count, err := s.messages.MarkAllRead(ctx, roomID, viewerID)
	if err != nil {
		return faults.Wrap(faults.RemoteFailure, "mark messages read", err)
	}
	if err := s.rooms.ResetUnread(ctx, roomID, viewerID); err != nil {
		s.logger.WithError(err).WithField("room_id", roomID).Warn("unread counter reset failed")
	}
	if count > 0 {
		s.notifyRoom(ctx, roomID, room.User1ID, room.User2ID)
	}
	return nil
}

// GetChatRoomsForUser returns the user's rooms ordered by last message
// timestamp descending, rooms without messages last.
func (s *Service) GetChatRoomsForUser(ctx context.Context, userID string) ([]models.ChatRoom, error) {
	rooms, err := s.rooms.ListRoomsForUser(ctx, userID)
	return rooms, faults.Wrap(faults.RemoteFailure, "list chat rooms", err)
}

// GetMessagesForRoom returns the room's non-deleted messages ordered by
// timestamp ascending.
func (s *Service) GetMessagesForRoom(ctx context.Context, roomID string) ([]models.Message, error) {
	msgs, err := s.messages.ListMessagesForRoom(ctx, roomID)
	return msgs, faults.Wrap(faults.RemoteFailure, "list messages", err)
}

// DeleteMessage soft-deletes a message; only the sender may do this.
func (s *Service) DeleteMessage(ctx context.Context, messageID, requesterID string) error {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return faults.Wrap(faults.NotFound, "message not found", err)
		}
		return faults.Wrap(faults.RemoteFailure, "load message", err)
	}
	if msg.SenderID != requesterID {
		return faults.New(faults.ValidationFailure, "only the sender can delete a message")
	}
	if err := s.messages.SoftDelete(ctx, messageID); err != nil {
		return faults.Wrap(faults.RemoteFailure, "delete message", err)
	}
	s.notifyRoom(ctx, msg.ChatRoomID, msg.SenderID, msg.ReceiverID)
	return nil
}

// DeleteChatRoom removes a room and its messages; participant only.
func (s *Service) DeleteChatRoom(ctx context.Context, roomID, requesterID string) error {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			return faults.Wrap(faults.NotFound, "chat room not found", err)
		}
		return faults.Wrap(faults.RemoteFailure, "load chat room", err)
	}
	if !room.HasParticipant(requesterID) {
		return faults.New(faults.ValidationFailure, "requester is not a participant")
	}
	if err := s.rooms.DeleteRoom(ctx, roomID); err != nil {
		return faults.Wrap(faults.RemoteFailure, "delete chat room", err)
	}
	s.notifyParticipants(ctx, room.User1ID, room.User2ID)
	return nil
}

// UpdatePresence records the online flag and refreshes last seen.
func (s *Service) UpdatePresence(ctx context.Context, userID string, online bool) error {
	err := s.users.UpdatePresence(ctx, userID, online)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return faults.Wrap(faults.NotFound, "user not found", err)
	}
	return faults.Wrap(faults.RemoteFailure, "update presence", err)
}

// SubscribeRooms registers a live room-list subscription for the user.
func (s *Service) SubscribeRooms(userID string, fn live.RoomListFunc) func() {
	return s.hub.SubscribeRooms(userID, fn)
}

// SubscribeMessages registers a live message-list subscription for a room.
func (s *Service) SubscribeMessages(roomID string, fn live.MessageListFunc) func() {
	return s.hub.SubscribeMessages(roomID, fn)
}

func (s *Service) publishMessageCreated(ctx context.Context, msg models.Message) {
	event := events.MessageCreated{
		MessageID:  msg.ID,
		ChatRoomID: msg.ChatRoomID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, events.MessageCreatedKey, event, nil); err != nil {
		s.logger.WithError(err).WithField("message_id", msg.ID).Warn("message.created publish failed")
	}
}

// notifyRoom re-emits fresh snapshots to live subscribers of the room and of
// both participants' room lists.
func (s *Service) notifyRoom(ctx context.Context, roomID string, participants ...string) {
	if s.hub.HasMessageSubscribers(roomID) {
		if msgs, err := s.messages.ListMessagesForRoom(ctx, roomID); err == nil {
			s.hub.PublishMessages(roomID, msgs)
		} else {
			s.logger.WithError(err).WithField("room_id", roomID).Warn("message snapshot for subscribers failed")
		}
	}
	s.notifyParticipants(ctx, participants...)
}

func (s *Service) notifyParticipants(ctx context.Context, participants ...string) {
	for _, userID := range participants {
		if !s.hub.HasRoomSubscribers(userID) {
			continue
		}
		if rooms, err := s.rooms.ListRoomsForUser(ctx, userID); err == nil {
			s.hub.PublishRooms(userID, rooms)
		} else {
			s.logger.WithError(err).WithField("user_id", userID).Warn("room snapshot for subscribers failed")
		}
	}
}
