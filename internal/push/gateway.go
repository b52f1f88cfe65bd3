// Package push talks to the managed push-notification gateway. Notifications
// are addressed by per-device token; delivery failures surface to the caller
// with the gateway's error text, no retry.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Notification is the payload delivered to a device.
type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Gateway submits a notification to a registered device token and returns
// the gateway-assigned dispatch id.
type Gateway interface {
	Send(ctx context.Context, token string, notification Notification) (string, error)
}

// FCMGateway is an HTTP client for the FCM send endpoint.
type FCMGateway struct {
	endpoint  string
	serverKey string
	client    *http.Client
	logger    *logrus.Logger
}

// NewFCMGateway builds the FCM client, or a logging noop gateway when no
// server key is configured (local development).
func NewFCMGateway(endpoint, serverKey string, logger *logrus.Logger) Gateway {
	if serverKey == "" {
		logger.Warn("push gateway disabled, using noop: empty server key")
		return noopGateway{logger: logger}
	}
	return &FCMGateway{
		endpoint:  endpoint,
		serverKey: serverKey,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
	}
}

type fcmRequest struct {
	To           string            `json:"to"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Success   int    `json:"success"`
	Failure   int    `json:"failure"`
	MessageID int64  `json:"message_id"`
	Results   []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

// Send posts the notification to the gateway.
func (g *FCMGateway) Send(ctx context.Context, token string, notification Notification) (string, error) {
	payload := fcmRequest{
		To: token,
		Notification: fcmNotification{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Data: notification.Data,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+g.serverKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(raw))
	}

	var parsed fcmResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode gateway response: %w", err)
	}
	if len(parsed.Results) > 0 {
		if parsed.Results[0].Error != "" {
			return "", fmt.Errorf("gateway delivery failed: %s", parsed.Results[0].Error)
		}
		return parsed.Results[0].MessageID, nil
	}
	return fmt.Sprintf("%d", parsed.MessageID), nil
}

type noopGateway struct {
	logger *logrus.Logger
}

func (g noopGateway) Send(ctx context.Context, token string, notification Notification) (string, error) {
	g.logger.WithFields(logrus.Fields{
		"token": token,
		"title": notification.Title,
	}).Info("push gateway noop send")
	return "noop", nil
}
