package relay

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-sync-service/internal/faults"
	"chat-sync-service/internal/mocks"
	"chat-sync-service/internal/push"
	"chat-sync-service/internal/repositories"
)

func newTestDispatcher() (*Dispatcher, *mocks.UserRepositoryMock, *mocks.GatewayMock) {
	users := new(mocks.UserRepositoryMock)
	gateway := new(mocks.GatewayMock)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewDispatcher(users, gateway, logger), users, gateway
}

func TestDispatchSuccess(t *testing.T) {
	dispatcher, users, gateway := newTestDispatcher()

	users.On("GetToken", mock.Anything, "bob").Return("token-bob", nil).Once()
	gateway.On("Send", mock.Anything, "token-bob", push.Notification{
		Title: "Alice",
		Body:  "hi",
		Data:  map[string]string{"chatRoomId": "room1", "senderId": "alice"},
	}).Return("dispatch-1", nil).Once()

	dispatchID, err := dispatcher.Dispatch(context.Background(), "bob", "alice", "Alice", "hi", "room1")

	require.NoError(t, err)
	assert.Equal(t, "dispatch-1", dispatchID)
	users.AssertExpectations(t)
	gateway.AssertExpectations(t)
}

func TestDispatchNoTokenSkipsGateway(t *testing.T) {
	dispatcher, users, gateway := newTestDispatcher()

	users.On("GetToken", mock.Anything, "bob").Return("", nil).Once()

	_, err := dispatcher.Dispatch(context.Background(), "bob", "alice", "Alice", "hi", "room1")

	require.Error(t, err)
	assert.Equal(t, faults.NotFound, faults.KindOf(err))
	gateway.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatchUnknownReceiver(t *testing.T) {
	dispatcher, users, gateway := newTestDispatcher()

	users.On("GetToken", mock.Anything, "ghost").Return("", repositories.ErrUserNotFound).Once()

	_, err := dispatcher.Dispatch(context.Background(), "ghost", "alice", "Alice", "hi", "room1")

	require.Error(t, err)
	assert.Equal(t, faults.NotFound, faults.KindOf(err))
	gateway.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatchGatewayFailure(t *testing.T) {
	dispatcher, users, gateway := newTestDispatcher()

	users.On("GetToken", mock.Anything, "bob").Return("token-bob", nil).Once()
	gateway.On("Send", mock.Anything, "token-bob", mock.Anything).Return("", assert.AnError).Once()

	_, err := dispatcher.Dispatch(context.Background(), "bob", "alice", "Alice", "hi", "room1")

	require.Error(t, err)
	assert.Equal(t, faults.RemoteFailure, faults.KindOf(err))
}
