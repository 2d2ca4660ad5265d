package entities

import (
	"errors"
	"time"
)

// RecordingEngine identifies which transcription backend a session uses.
type RecordingEngine string

const (
	RecordingEngineCloud RecordingEngine = "cloud"
	RecordingEngineLocal RecordingEngine = "local"
)

// RecordingState is the voice capture state machine.
type RecordingState string

const (
	RecordingStateIdle         RecordingState = "idle"
	RecordingStateRecording    RecordingState = "recording"
	RecordingStateTranscribing RecordingState = "transcribing"
	RecordingStateError        RecordingState = "error"
)

// RecordingSession represents one microphone capture. At most one session is
// active at a time; the engine enforces that, not the entity.
type RecordingSession struct {
	Engine      RecordingEngine `json:"engine"`
	State       RecordingState  `json:"state"`
	StartedAt   time.Time       `json:"started_at"`
	InterimText string          `json:"interim_text,omitempty"`
	FinalText   string          `json:"final_text,omitempty"`
	FailReason  string          `json:"fail_reason,omitempty"`
}

// NewRecordingSession starts a session on the chosen engine.
func NewRecordingSession(engine RecordingEngine) *RecordingSession {
	return &RecordingSession{
		Engine:    engine,
		State:     RecordingStateRecording,
		StartedAt: time.Now(),
	}
}

// Active reports whether the session still holds the microphone or is
// waiting on a transcription result.
func (r *RecordingSession) Active() bool {
	return r.State == RecordingStateRecording || r.State == RecordingStateTranscribing
}

// ElapsedSeconds returns whole seconds since capture began.
func (r *RecordingSession) ElapsedSeconds() int {
	return int(time.Since(r.StartedAt).Seconds())
}

// AppendFinal commits a final transcript segment. Segments are joined with a
// single space unless the buffer already ends in whitespace.
func (r *RecordingSession) AppendFinal(segment string) {
	if segment == "" {
		return
	}
	if r.FinalText != "" && !endsInWhitespace(r.FinalText) {
		r.FinalText += " "
	}
	r.FinalText += segment
	r.InterimText = ""
}

func endsInWhitespace(s string) bool {
	last := s[len(s)-1]
	return last == ' ' || last == '\t' || last == '\n'
}

// Validate validates the session data.
func (r *RecordingSession) Validate() error {
	switch r.Engine {
	case RecordingEngineCloud, RecordingEngineLocal:
	default:
		return errors.New("invalid recording engine")
	}

	switch r.State {
	case RecordingStateIdle, RecordingStateRecording, RecordingStateTranscribing, RecordingStateError:
	default:
		return errors.New("invalid recording state")
	}

	return nil
}
