package observability

import (
	"net"
	"net/http"
	"strings"
)

// Correlation headers set by the mobile client and the edge proxy.
const (
	headerDeviceID  = "X-Device-Id"
	headerRequestID = "X-Request-Id"
)

// DeviceIDFromRequest returns the caller's device id, empty when absent.
func DeviceIDFromRequest(r *http.Request) string {
	return r.Header.Get(headerDeviceID)
}

// RequestIDFromRequest returns the edge-assigned request id, empty when absent.
func RequestIDFromRequest(r *http.Request) string {
	return r.Header.Get(headerRequestID)
}

// IPFromRequest resolves the client address, preferring the first hop in
// X-Forwarded-For over the socket peer.
func IPFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
