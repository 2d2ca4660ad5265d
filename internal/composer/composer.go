package composer

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/relaypoint/console/domain/entities"
	"github.com/relaypoint/console/internal/conn"
	"github.com/relaypoint/console/internal/stream"
)

// Sender is the send primitive the orchestrator needs from the connection
// manager.
type Sender interface {
	Send(frame *conn.OutboundFrame) bool
}

// Attachments is the resolved-attachment view the orchestrator needs from
// the upload coordinator.
type Attachments interface {
	Uploaded() []entities.Attachment
	ClearBatch()
}

// Orchestrator assembles one outgoing unit of work from composed text, the
// resolved attachment subset, and voice-transcribed segments, guarding
// against sending while disconnected.
type Orchestrator struct {
	sender      Sender
	attachments Attachments
	stream      *stream.Stream
	logger      *zap.Logger

	mu   sync.Mutex
	text strings.Builder
}

// New creates a composer orchestrator.
func New(sender Sender, attachments Attachments, s *stream.Stream, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		sender:      sender,
		attachments: attachments,
		stream:      s,
		logger:      logger,
	}
}

// SetText replaces the text buffer, mirroring direct keyboard input.
func (o *Orchestrator) SetText(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.text.Reset()
	o.text.WriteString(text)
}

// AppendText appends a transcribed segment to the text buffer, separated by
// a single space unless the buffer already ends in whitespace. Used by the
// voice engine for final transcript segments.
func (o *Orchestrator) AppendText(segment string) {
	if segment == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	current := o.text.String()
	if current != "" && !strings.HasSuffix(current, " ") &&
		!strings.HasSuffix(current, "\t") && !strings.HasSuffix(current, "\n") {
		o.text.WriteString(" ")
	}
	o.text.WriteString(segment)
}

// Text returns the current buffer contents.
func (o *Orchestrator) Text() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.text.String()
}

// Submit composes and sends one message. A submit with empty text and zero
// uploaded attachments is silently ignored. The optimistic echo is appended
// to the stream immediately, before any network result; when the send fails
// the echo is marked failed on the spot rather than left pending. The text
// buffer and attachment batch are cleared only after the payload is
// constructed, so a failure before construction leaves input intact.
func (o *Orchestrator) Submit() *entities.Message {
	o.mu.Lock()
	text := strings.TrimSpace(o.text.String())
	o.mu.Unlock()

	uploaded := o.attachments.Uploaded()
	if text == "" && len(uploaded) == 0 {
		return nil
	}

	msg := entities.NewOperatorMessage(text, uploaded)
	frame := conn.CreateMessageFrame(msg.CorrelationID, text, uploaded)

	// Payload constructed; it is now safe to clear user input.
	o.mu.Lock()
	o.text.Reset()
	o.mu.Unlock()
	o.attachments.ClearBatch()

	sent := o.sender.Send(frame)
	if !sent {
		msg.Fail()
		o.logger.Warn("Send refused while disconnected, message marked failed")
	}
	o.stream.AppendOptimistic(msg)

	return msg
}
