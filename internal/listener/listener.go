// Package listener implements the trigger-shaped notification path: a
// broker consumer that fires on every message.created event and dispatches
// the same push the client-invoked relay endpoint would. Both paths may fire
// for one message; duplicate delivery to the device is accepted.
package listener

import (
	"context"
	"encoding/json"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"chat-sync-service/internal/events"
	"chat-sync-service/internal/faults"
	"chat-sync-service/internal/observability"
	"chat-sync-service/internal/relay"
	"chat-sync-service/internal/repositories"
)

// Listener consumes message.created events and dispatches notifications.
type Listener struct {
	url        string
	exchange   string
	queue      string
	users      repositories.UserRepository
	dispatcher *relay.Dispatcher
	logger     *logrus.Logger
}

// New builds a Listener. It owns its broker connection; Run dials lazily.
func New(url, exchange, queue string, users repositories.UserRepository, dispatcher *relay.Dispatcher, logger *logrus.Logger) *Listener {
	return &Listener{
		url:        url,
		exchange:   exchange,
		queue:      queue,
		users:      users,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Run consumes until ctx is cancelled. Returns nil on clean shutdown.
func (l *Listener) Run(ctx context.Context) error {
	if l.url == "" {
		l.logger.Info("trigger listener disabled: empty amqp url")
		<-ctx.Done()
		return nil
	}

	conn, err := amqp.Dial(l.url)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(l.exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	queue, err := ch.QueueDeclare(l.queue, true, false, false, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(queue.Name, events.MessageCreatedKey, l.exchange, false, nil); err != nil {
		return err
	}

	deliveries, err := ch.Consume(queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	l.logger.WithFields(logrus.Fields{
		"queue":    queue.Name,
		"exchange": l.exchange,
	}).Info("trigger listener consuming")

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("amqp delivery channel closed")
			}
			l.handle(ctx, delivery)
		}
	}
}

// handle processes one delivery. Failures are acked anyway: there is no
// retry or dead-letter path, a lost notification is an accepted outcome.
func (l *Listener) handle(ctx context.Context, delivery amqp.Delivery) {
	defer func() {
		if err := delivery.Ack(false); err != nil {
			l.logger.WithError(err).Warn("ack failed")
		}
	}()

	var event events.MessageCreated
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		l.logger.WithError(err).Warn("malformed message.created event")
		observability.IncListenerEvent("malformed")
		return
	}
	if event.MessageID == "" || event.ReceiverID == "" {
		observability.IncListenerEvent("malformed")
		return
	}

	// Secondary lookup: the event carries ids only, the notification title
	// needs the sender's display name.
	senderName := event.SenderID
	if sender, err := l.users.GetUser(ctx, event.SenderID); err == nil {
		senderName = sender.DisplayName
	}

	_, err := l.dispatcher.Dispatch(ctx, event.ReceiverID, event.SenderID, senderName, event.Content, event.ChatRoomID)
	if err != nil {
		outcome := "error"
		if faults.Is(err, faults.NotFound) {
			outcome = "no_token"
		}
		observability.IncListenerEvent(outcome)
		observability.IncPushDispatch("listener", "error")
		l.logger.WithError(err).WithField("message_id", event.MessageID).Warn("trigger dispatch failed")
		return
	}

	observability.IncListenerEvent("ok")
	observability.IncPushDispatch("listener", "ok")
}
