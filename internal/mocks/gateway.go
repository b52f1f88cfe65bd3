package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-sync-service/internal/push"
)

type GatewayMock struct {
	mock.Mock
}

func (m *GatewayMock) Send(ctx context.Context, token string, notification push.Notification) (string, error) {
	args := m.Called(ctx, token, notification)
	return args.String(0), args.Error(1)
}

var _ push.Gateway = (*GatewayMock)(nil)
