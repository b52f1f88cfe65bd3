// Package relay translates "a message was sent" into "a push is delivered
// to the receiver's registered device". It is stateless; both the HTTP
// endpoint and the trigger listener funnel through Dispatch.
package relay

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"chat-sync-service/internal/faults"
	"chat-sync-service/internal/push"
	"chat-sync-service/internal/repositories"
)

// Dispatcher resolves the receiver's push token and submits the payload to
// the push gateway.
type Dispatcher struct {
	users   repositories.UserRepository
	gateway push.Gateway
	logger  *logrus.Logger
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(users repositories.UserRepository, gateway push.Gateway, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{users: users, gateway: gateway, logger: logger}
}

// Dispatch delivers one notification. Duplicate invocations for the same
// message are safe; the device may simply show the notification twice.
func (d *Dispatcher) Dispatch(ctx context.Context, receiverID, senderID, senderName, content, chatRoomID string) (string, error) {
	ctx, span := otel.Tracer("chat-sync-service/relay").Start(ctx, "relay.dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("chat.receiver_id", receiverID),
		attribute.String("chat.room_id", chatRoomID),
	)

	token, err := d.users.GetToken(ctx, receiverID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return "", faults.Wrap(faults.NotFound, "receiver not found", err)
		}
		return "", faults.Wrap(faults.RemoteFailure, "load push token", err)
	}
	if token == "" {
		return "", faults.New(faults.NotFound, "receiver has no registered push token")
	}

	notification := push.Notification{
		Title: senderName,
		Body:  content,
		Data: map[string]string{
			"chatRoomId": chatRoomID,
			"senderId":   senderID,
		},
	}

	dispatchID, err := d.gateway.Send(ctx, token, notification)
	if err != nil {
		return "", faults.Wrap(faults.RemoteFailure, "push gateway delivery failed", err)
	}

	d.logger.WithFields(logrus.Fields{
		"receiver_id": receiverID,
		"dispatch_id": dispatchID,
	}).Debug("push dispatched")
	return dispatchID, nil
}
