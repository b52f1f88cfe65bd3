package ws

import (
	"time"

	"github.com/google/uuid"
)

// ConnInfo captures per-connection identity and correlation data for the
// lifecycle events published to the broker.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func newConnID() string {
	return uuid.NewString()
}
