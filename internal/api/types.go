package api

import "github.com/relaypoint/console/domain/entities"

// ErrorResponse is the JSON error shape for the status surface.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ConnectionResponse reports the command-channel status.
type ConnectionResponse struct {
	entities.ConnectionSnapshot
}

// MessagesResponse is the current visible conversation log.
type MessagesResponse struct {
	Messages []*entities.Message `json:"messages"`
}

// AttachmentsResponse is the current pending attachment batch.
type AttachmentsResponse struct {
	Attachments []entities.Attachment `json:"attachments"`
}

// RecordingResponse reports the voice capture session.
type RecordingResponse struct {
	entities.RecordingSession
	ElapsedSeconds int `json:"elapsed_seconds,omitempty"`
}
