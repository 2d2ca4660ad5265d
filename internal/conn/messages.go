package conn

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/relaypoint/console/domain/entities"
)

// FrameKind defines the type of a command-channel frame
type FrameKind string

// Supported frame kinds
const (
	FrameKindMessage  FrameKind = "message"
	FrameKindSystem   FrameKind = "system"
	FrameKindError    FrameKind = "error"
	FrameKindAck      FrameKind = "ack"
	FrameKindPresence FrameKind = "presence"
	FrameKindAuth     FrameKind = "auth"
)

// BaseFrame defines the common structure for all command-channel frames
type BaseFrame struct {
	Kind      FrameKind `json:"type"`
	Timestamp string    `json:"timestamp,omitempty"`
	// ServerID is assigned by the orchestration service, when present.
	ServerID string `json:"id,omitempty"`
	// CorrelationID echoes the client-supplied id, used to match an inbound
	// frame against an optimistic local entry.
	CorrelationID string `json:"correlation_id,omitempty"`
}

// InboundFrame is a decoded frame received from the wire.
type InboundFrame struct {
	BaseFrame
	Role        entities.MessageRole   `json:"role,omitempty"`
	Content     string                 `json:"content,omitempty"`
	Attachments []entities.Attachment  `json:"attachments,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	// Error frame fields
	Code    string `json:"error_code,omitempty"`
	Message string `json:"message,omitempty"`
	// Presence frame fields
	Actor  string `json:"actor,omitempty"`
	Status string `json:"status,omitempty"`
}

// OutboundFrame is a frame composed locally for transmission.
type OutboundFrame struct {
	BaseFrame
	Content     string                `json:"content,omitempty"`
	Attachments []entities.Attachment `json:"attachments,omitempty"`
	Token       string                `json:"token,omitempty"`
}

// DedupKey returns the identifier used to collapse this frame against a
// prior optimistic or historical entry: server id first, correlation id as
// fallback, empty when neither is present (the frame is unconditionally new).
func (f *InboundFrame) DedupKey() string {
	if f.ServerID != "" {
		return "sid:" + f.ServerID
	}
	if f.CorrelationID != "" {
		return "cid:" + f.CorrelationID
	}
	return ""
}

// DecodeFrame parses and validates a raw inbound frame
func DecodeFrame(raw []byte) (*InboundFrame, error) {
	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch frame.Kind {
	case FrameKindMessage, FrameKindSystem, FrameKindError, FrameKindAck, FrameKindPresence:
	default:
		return nil, fmt.Errorf("unsupported frame type: %s", frame.Kind)
	}

	if frame.Timestamp == "" {
		frame.Timestamp = time.Now().Format(time.RFC3339)
	}

	return &frame, nil
}

// CreateMessageFrame creates an outbound message frame carrying composed text
// and resolved attachments.
func CreateMessageFrame(correlationID, content string, attachments []entities.Attachment) *OutboundFrame {
	return &OutboundFrame{
		BaseFrame: BaseFrame{
			Kind:          FrameKindMessage,
			Timestamp:     time.Now().Format(time.RFC3339),
			CorrelationID: correlationID,
		},
		Content:     content,
		Attachments: attachments,
	}
}

// CreateAuthFrame creates the handshake frame sent immediately after dialing.
func CreateAuthFrame(token string) *OutboundFrame {
	return &OutboundFrame{
		BaseFrame: BaseFrame{
			Kind:      FrameKindAuth,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Token: token,
	}
}

// IsAuthRejection reports whether an error frame signals a terminal
// authentication failure, as opposed to a recoverable transport error.
func (f *InboundFrame) IsAuthRejection() bool {
	if f.Kind != FrameKindError {
		return false
	}
	switch f.Code {
	case "authentication_failed", "invalid_token", "token_expired", "forbidden":
		return true
	}
	return false
}
