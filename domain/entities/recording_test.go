package entities

import "testing"

func TestNewRecordingSession(t *testing.T) {
	session := NewRecordingSession(RecordingEngineCloud)

	if session.State != RecordingStateRecording {
		t.Errorf("Expected state %s, got %s", RecordingStateRecording, session.State)
	}

	if !session.Active() {
		t.Error("Fresh session should be active")
	}
}

func TestRecordingSessionActive(t *testing.T) {
	session := NewRecordingSession(RecordingEngineLocal)

	session.State = RecordingStateTranscribing
	if !session.Active() {
		t.Error("Transcribing session should be active")
	}

	session.State = RecordingStateIdle
	if session.Active() {
		t.Error("Idle session should not be active")
	}

	session.State = RecordingStateError
	if session.Active() {
		t.Error("Errored session should not be active")
	}
}

func TestAppendFinal(t *testing.T) {
	session := NewRecordingSession(RecordingEngineLocal)

	session.AppendFinal("hello")
	if session.FinalText != "hello" {
		t.Errorf("Expected 'hello', got %q", session.FinalText)
	}

	session.AppendFinal("world")
	if session.FinalText != "hello world" {
		t.Errorf("Expected 'hello world', got %q", session.FinalText)
	}

	// No double space when the buffer already ends in whitespace
	session.FinalText = "hello "
	session.AppendFinal("again")
	if session.FinalText != "hello again" {
		t.Errorf("Expected 'hello again', got %q", session.FinalText)
	}

	// Empty segments are ignored
	before := session.FinalText
	session.AppendFinal("")
	if session.FinalText != before {
		t.Error("Empty segment should not change the buffer")
	}
}

func TestAppendFinalClearsInterim(t *testing.T) {
	session := NewRecordingSession(RecordingEngineLocal)
	session.InterimText = "hel..."

	session.AppendFinal("hello")
	if session.InterimText != "" {
		t.Error("Final segment should clear interim text")
	}
}
