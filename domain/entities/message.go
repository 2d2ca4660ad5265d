package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies who produced a message.
type MessageRole string

const (
	MessageRoleOperator  MessageRole = "operator"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// MessageStatus tracks delivery confirmation for a message. Transitions are
// monotonic: pending may become confirmed or failed, nothing moves back.
type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusConfirmed MessageStatus = "confirmed"
	MessageStatusFailed    MessageStatus = "failed"
)

// Message is a single entry in the conversation log. Immutable after
// creation except for Status.
type Message struct {
	ID            string                 `json:"id"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Role          MessageRole            `json:"role"`
	Content       string                 `json:"content"`
	CreatedAt     time.Time              `json:"created_at"`
	Status        MessageStatus          `json:"status"`
	Attachments   []Attachment           `json:"attachments,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// NewOperatorMessage creates a locally-authored message awaiting server
// confirmation. The correlation id ties the eventual server echo back to
// this entry.
func NewOperatorMessage(content string, attachments []Attachment) *Message {
	return &Message{
		ID:            uuid.NewString(),
		CorrelationID: uuid.NewString(),
		Role:          MessageRoleOperator,
		Content:       content,
		CreatedAt:     time.Now(),
		Status:        MessageStatusPending,
		Attachments:   attachments,
	}
}

// Confirm upgrades a pending message. Confirming a failed message is a no-op;
// the failure already surfaced to the operator.
func (m *Message) Confirm() {
	if m.Status == MessageStatusPending {
		m.Status = MessageStatusConfirmed
	}
}

// Fail marks a pending message as undeliverable.
func (m *Message) Fail() {
	if m.Status == MessageStatusPending {
		m.Status = MessageStatusFailed
	}
}

// Validate validates the message data.
func (m *Message) Validate() error {
	if m.ID == "" {
		return errors.New("id is required")
	}

	switch m.Role {
	case MessageRoleOperator, MessageRoleAssistant, MessageRoleSystem:
	default:
		return errors.New("invalid message role")
	}

	switch m.Status {
	case MessageStatusPending, MessageStatusConfirmed, MessageStatusFailed:
	default:
		return errors.New("invalid message status")
	}

	return nil
}
