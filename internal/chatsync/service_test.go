package chatsync

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-sync-service/internal/faults"
	"chat-sync-service/internal/live"
	"chat-sync-service/internal/mocks"
	"chat-sync-service/internal/models"
)

type serviceMocks struct {
	rooms     *mocks.ChatRoomRepositoryMock
	messages  *mocks.MessageRepositoryMock
	users     *mocks.UserRepositoryMock
	requests  *mocks.FriendRequestRepositoryMock
	publisher *mocks.PublisherMock
}

func newTestService() (*Service, serviceMocks) {
	m := serviceMocks{
		rooms:     new(mocks.ChatRoomRepositoryMock),
		messages:  new(mocks.MessageRepositoryMock),
		users:     new(mocks.UserRepositoryMock),
		requests:  new(mocks.FriendRequestRepositoryMock),
		publisher: new(mocks.PublisherMock),
	}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	svc := NewService(m.rooms, m.messages, m.users, m.requests, live.NewHub(), m.publisher, logger)
	return svc, m
}

func TestSendMessageCreatesRoomAndUpdatesSummary(t *testing.T) {
	svc, m := newTestService()
	room := models.ChatRoom{ID: "room1", User1ID: "alice", User2ID: "bob"}
	stored := models.Message{
		ID: "msg1", ChatRoomID: "room1", SenderID: "alice", ReceiverID: "bob",
		Content: "hi", CreatedAt: time.Now(),
	}

	m.rooms.On("FindOrCreateRoom", mock.Anything, "alice", "bob").Return(room, nil).Once()
	m.messages.On("CreateMessage", mock.Anything, mock.MatchedBy(func(msg models.Message) bool {
		return msg.ChatRoomID == "room1" && msg.SenderID == "alice" && msg.ReceiverID == "bob" && msg.Content == "hi"
	})).Return(stored, nil).Once()
	m.rooms.On("UpdateSummary", mock.Anything, "room1", stored).Return(nil).Once()
	m.publisher.On("Publish", mock.Anything, "chat.message.created", mock.Anything, mock.Anything).Return(nil).Once()

	msg, err := svc.SendMessage(context.Background(), "alice", "bob", "hi", SendOptions{})

	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Content)
	assert.Equal(t, "room1", msg.ChatRoomID)
	assert.True(t, room.HasParticipant(msg.SenderID))
	assert.True(t, room.HasParticipant(msg.ReceiverID))
	m.rooms.AssertExpectations(t)
	m.messages.AssertExpectations(t)
	m.publisher.AssertExpectations(t)
}

func TestSendMessageTrimsContent(t *testing.T) {
	svc, m := newTestService()
	room := models.ChatRoom{ID: "room1", User1ID: "alice", User2ID: "bob"}

	m.rooms.On("FindOrCreateRoom", mock.Anything, "alice", "bob").Return(room, nil).Once()
	m.messages.On("CreateMessage", mock.Anything, mock.MatchedBy(func(msg models.Message) bool {
		return msg.Content == "hi"
	})).Return(models.Message{ID: "msg1", Content: "hi"}, nil).Once()
	m.rooms.On("UpdateSummary", mock.Anything, "room1", mock.Anything).Return(nil).Once()
	m.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	_, err := svc.SendMessage(context.Background(), "alice", "bob", "  hi  ", SendOptions{})
	require.NoError(t, err)
	m.messages.AssertExpectations(t)
}

func TestSendMessageRejectsEmptyContentBeforeAnyWrite(t *testing.T) {
	svc, m := newTestService()

	_, err := svc.SendMessage(context.Background(), "alice", "bob", "   \t ", SendOptions{})

	require.Error(t, err)
	assert.Equal(t, faults.ValidationFailure, faults.KindOf(err))
	m.rooms.AssertNotCalled(t, "FindOrCreateRoom", mock.Anything, mock.Anything, mock.Anything)
	m.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestSendMessageRejectsSelfMessaging(t *testing.T) {
	svc, m := newTestService()

	_, err := svc.SendMessage(context.Background(), "alice", "alice", "hi", SendOptions{})

	require.Error(t, err)
	assert.Equal(t, faults.ValidationFailure, faults.KindOf(err))
	m.rooms.AssertNotCalled(t, "FindOrCreateRoom", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageRequiresSender(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.SendMessage(context.Background(), "", "bob", "hi", SendOptions{})

	require.Error(t, err)
	assert.Equal(t, faults.NotAuthenticated, faults.KindOf(err))
}

func TestSendMessageSurvivesSummaryFailure(t *testing.T) {
	svc, m := newTestService()
	room := models.ChatRoom{ID: "room1", User1ID: "alice", User2ID: "bob"}
	stored := models.Message{ID: "msg1", ChatRoomID: "room1", SenderID: "alice", ReceiverID: "bob", Content: "hi"}

	m.rooms.On("FindOrCreateRoom", mock.Anything, "alice", "bob").Return(room, nil).Once()
	m.messages.On("CreateMessage", mock.Anything, mock.Anything).Return(stored, nil).Once()
	m.rooms.On("UpdateSummary", mock.Anything, "room1", stored).Return(assert.AnError).Once()
	m.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	msg, err := svc.SendMessage(context.Background(), "alice", "bob", "hi", SendOptions{})

	require.NoError(t, err)
	assert.Equal(t, "msg1", msg.ID)
	m.rooms.AssertExpectations(t)
}

func TestSendMessageRoomResolutionFailure(t *testing.T) {
	svc, m := newTestService()

	m.rooms.On("FindOrCreateRoom", mock.Anything, "alice", "bob").
		Return(models.ChatRoom{}, assert.AnError).Once()

	_, err := svc.SendMessage(context.Background(), "alice", "bob", "hi", SendOptions{})

	require.Error(t, err)
	assert.Equal(t, faults.RemoteFailure, faults.KindOf(err))
	m.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestMarkAllMessagesAsRead(t *testing.T) {
	svc, m := newTestService()
	room := models.ChatRoom{ID: "room1", User1ID: "alice", User2ID: "bob"}

	m.rooms.On("GetRoom", mock.Anything, "room1").Return(room, nil).Once()
	m.messages.On("MarkAllRead", mock.Anything, "room1", "bob").Return(3, nil).Once()
	m.rooms.On("ResetUnread", mock.Anything, "room1", "bob").Return(nil).Once()

	err := svc.MarkAllMessagesAsRead(context.Background(), "room1", "bob")

	require.NoError(t, err)
	m.rooms.AssertExpectations(t)
	m.messages.AssertExpectations(t)
}

func TestMarkAllMessagesAsReadRejectsNonParticipant(t *testing.T) {
	svc, m := newTestService()
	room := models.ChatRoom{ID: "room1", User1ID: "alice", User2ID: "bob"}

	m.rooms.On("GetRoom", mock.Anything, "room1").Return(room, nil).Once()

	err := svc.MarkAllMessagesAsRead(context.Background(), "room1", "mallory")

	require.Error(t, err)
	assert.Equal(t, faults.ValidationFailure, faults.KindOf(err))
	m.messages.AssertNotCalled(t, "MarkAllRead", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetMessagesForRoomIsStableAcrossCalls(t *testing.T) {
	svc, m := newTestService()
	now := time.Now()
	msgs := []models.Message{
		{ID: "m1", CreatedAt: now.Add(-2 * time.Minute)},
		{ID: "m2", CreatedAt: now.Add(-time.Minute)},
		{ID: "m3", CreatedAt: now},
	}
	m.messages.On("ListMessagesForRoom", mock.Anything, "room1").Return(msgs, nil).Twice()

	first, err := svc.GetMessagesForRoom(context.Background(), "room1")
	require.NoError(t, err)
	second, err := svc.GetMessagesForRoom(context.Background(), "room1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	for i := 1; i < len(first); i++ {
		assert.False(t, first[i].CreatedAt.Before(first[i-1].CreatedAt))
	}
}

func TestDeleteMessageSenderOnly(t *testing.T) {
	svc, m := newTestService()
	msg := models.Message{ID: "m1", ChatRoomID: "room1", SenderID: "alice", ReceiverID: "bob"}

	m.messages.On("GetMessage", mock.Anything, "m1").Return(msg, nil).Once()

	err := svc.DeleteMessage(context.Background(), "m1", "bob")

	require.Error(t, err)
	assert.Equal(t, faults.ValidationFailure, faults.KindOf(err))
	m.messages.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything)
}

func TestSubscribeRoomsDeliversSnapshotsUntilCancel(t *testing.T) {
	svc, m := newTestService()
	room := models.ChatRoom{ID: "room1", User1ID: "alice", User2ID: "bob"}
	stored := models.Message{ID: "msg1", ChatRoomID: "room1", SenderID: "alice", ReceiverID: "bob", Content: "hi"}

	m.rooms.On("FindOrCreateRoom", mock.Anything, "alice", "bob").Return(room, nil)
	m.messages.On("CreateMessage", mock.Anything, mock.Anything).Return(stored, nil)
	m.rooms.On("UpdateSummary", mock.Anything, "room1", stored).Return(nil)
	m.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.rooms.On("ListRoomsForUser", mock.Anything, "bob").Return([]models.ChatRoom{room}, nil)

	var delivered int
	cancel := svc.SubscribeRooms("bob", func(rooms []models.ChatRoom) {
		delivered++
		assert.Len(t, rooms, 1)
	})

	_, err := svc.SendMessage(context.Background(), "alice", "bob", "hi", SendOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)

	cancel()
	_, err = svc.SendMessage(context.Background(), "alice", "bob", "hi", SendOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
}
