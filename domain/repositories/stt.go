package repositories

import (
	"context"
	"errors"
)

// ErrUnauthorized marks a provider authorization or capability failure.
// Terminal: retrying locally cannot fix a missing license server-side, so
// callers surface it instead of falling back.
var ErrUnauthorized = errors.New("transcription provider unauthorized")

// Transcriber abstracts a cloud speech recognition provider. The whole
// recording is buffered and transcribed in one round trip on stop.
type Transcriber interface {
	// Available reports whether the provider is configured and licensed.
	// Checked before capture starts, not discovered on failure.
	Available(ctx context.Context) bool
	// Transcribe converts a buffered audio recording to text.
	Transcribe(ctx context.Context, audio []byte, config AudioConfig) (string, error)
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// TranscriptEvent is one incremental result from a local recognizer.
type TranscriptEvent struct {
	Text  string
	Final bool
}

// LocalRecognizer abstracts an on-device incremental recognizer. It consumes
// audio chunks until the audio channel closes, emitting interim and final
// transcript events, then closes the event channel. No network call.
type LocalRecognizer interface {
	Recognize(ctx context.Context, audio <-chan []byte, config AudioConfig) (<-chan TranscriptEvent, error)
}
