package repositories

import "context"

// AudioCapture abstracts the microphone. The device is exclusive: Acquire
// fails while another capture holds it. Release must always be called, even
// when a downstream transcription request is abandoned.
type AudioCapture interface {
	// Acquire opens the device and begins delivering audio chunks. The
	// channel is closed by Release.
	Acquire(ctx context.Context, config AudioConfig) (<-chan []byte, error)
	Release() error
}
