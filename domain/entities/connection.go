package entities

import "time"

// ConnectionState enumerates the command-channel lifecycle. Only the
// connection manager may drive transitions.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
	ConnectionStateReconnecting ConnectionState = "reconnecting"
	// ConnectionStateFailed is terminal: the handshake was rejected by the
	// server (bad or expired credentials). No automatic retry.
	ConnectionStateFailed ConnectionState = "failed"
)

// ConnectionSnapshot is the observable connection status at a point in time.
type ConnectionSnapshot struct {
	State       ConnectionState `json:"state"`
	Attempt     int             `json:"attempt,omitempty"`
	NextRetryAt time.Time       `json:"next_retry_at,omitempty"`
	LatencyMs   int64           `json:"latency_ms,omitempty"`
	Reason      string          `json:"reason,omitempty"`
}

// CanSend reports whether a send is permitted in this state.
func (s ConnectionSnapshot) CanSend() bool {
	return s.State == ConnectionStateConnected
}
