package stt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/relaypoint/console/domain/repositories"
)

// MockTranscriber is a placeholder cloud transcriber for local development.
type MockTranscriber struct {
	logger *zap.Logger
}

// NewMockTranscriber creates a new mock cloud transcriber
func NewMockTranscriber(logger *zap.Logger) repositories.Transcriber {
	return &MockTranscriber{logger: logger}
}

func (m *MockTranscriber) Available(ctx context.Context) bool {
	return true
}

// Transcribe returns a canned transcript keyed on audio size.
func (m *MockTranscriber) Transcribe(ctx context.Context, audio []byte, config repositories.AudioConfig) (string, error) {
	m.logger.Info("Processing mock transcription",
		zap.Int("audioSize", len(audio)),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding))

	if len(audio) == 0 {
		return "", fmt.Errorf("no audio data received")
	}

	switch {
	case len(audio) > 10000:
		return "Create a task to review the deployment checklist before Friday.", nil
	case len(audio) > 5000:
		return "Show me the open tasks for this channel.", nil
	case len(audio) > 1000:
		return "Create a task.", nil
	default:
		return "Hello.", nil
	}
}

// MockRecognizer is a placeholder on-device recognizer. It treats each audio
// chunk as one spoken segment, emitting an interim event while "listening"
// and a final event once the audio ends.
type MockRecognizer struct {
	logger *zap.Logger
}

// NewMockRecognizer creates a new mock local recognizer
func NewMockRecognizer(logger *zap.Logger) repositories.LocalRecognizer {
	return &MockRecognizer{logger: logger}
}

func (m *MockRecognizer) Recognize(ctx context.Context, audio <-chan []byte, config repositories.AudioConfig) (<-chan repositories.TranscriptEvent, error) {
	events := make(chan repositories.TranscriptEvent, 32)

	go func() {
		defer close(events)

		var total int
		for chunk := range audio {
			total += len(chunk)
			events <- repositories.TranscriptEvent{
				Text:  fmt.Sprintf("(listening, %d bytes...)", total),
				Final: false,
			}
		}

		m.logger.Info("Mock recognition complete", zap.Int("totalBytes", total))

		if total == 0 {
			return
		}

		var text string
		switch {
		case total > 10000:
			text = "Create a task to review the deployment checklist before Friday."
		case total > 5000:
			text = "Show me the open tasks for this channel."
		case total > 1000:
			text = "Create a task."
		default:
			text = "Hello."
		}
		events <- repositories.TranscriptEvent{Text: text, Final: true}
	}()

	return events, nil
}
