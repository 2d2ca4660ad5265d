package entities

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// UploadStatus tracks a file's progress through the upload endpoint.
type UploadStatus string

const (
	UploadStatusUploading UploadStatus = "uploading"
	UploadStatusUploaded  UploadStatus = "uploaded"
	UploadStatusFailed    UploadStatus = "failed"
)

// AttachmentCategory is the server-side classification of an uploaded file.
type AttachmentCategory string

const (
	AttachmentCategoryImage    AttachmentCategory = "image"
	AttachmentCategoryVideo    AttachmentCategory = "video"
	AttachmentCategoryAudio    AttachmentCategory = "audio"
	AttachmentCategoryDocument AttachmentCategory = "document"
	AttachmentCategoryOther    AttachmentCategory = "other"
)

// Attachment describes one locally-selected file and its remote counterpart.
// The coordinator owns it until the upload resolves; afterwards the descriptor
// travels with the message that references it.
type Attachment struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	MimeType     string             `json:"mime_type"`
	SizeBytes    int64              `json:"size_bytes"`
	RemoteURL    string             `json:"remote_url,omitempty"`
	Category     AttachmentCategory `json:"category,omitempty"`
	LocalPreview string             `json:"local_preview,omitempty"`
	Status       UploadStatus       `json:"status"`
	FailReason   string             `json:"fail_reason,omitempty"`
}

// NewAttachment registers a freshly selected file, pre-network.
func NewAttachment(name, mimeType string, sizeBytes int64) *Attachment {
	return &Attachment{
		ID:        uuid.NewString(),
		Name:      name,
		MimeType:  mimeType,
		SizeBytes: sizeBytes,
		Status:    UploadStatusUploading,
	}
}

// MarkUploaded records the remote descriptor returned by the upload endpoint.
func (a *Attachment) MarkUploaded(remoteURL string, category AttachmentCategory, sizeBytes int64) {
	a.RemoteURL = remoteURL
	a.Category = category
	if sizeBytes > 0 {
		a.SizeBytes = sizeBytes
	}
	a.Status = UploadStatusUploaded
}

// MarkFailed records a per-file failure. The attachment stays visible with
// its reason; it is simply excluded from outgoing payloads.
func (a *Attachment) MarkFailed(reason string) {
	a.Status = UploadStatusFailed
	a.FailReason = reason
}

// IsImage reports whether the local mime type classifies the file as an
// image, independent of the server's category.
func (a *Attachment) IsImage() bool {
	return strings.HasPrefix(a.MimeType, "image/")
}

// CategoryForMime maps a mime type to the coarse category used when the
// server response omits one.
func CategoryForMime(mimeType string) AttachmentCategory {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return AttachmentCategoryImage
	case strings.HasPrefix(mimeType, "video/"):
		return AttachmentCategoryVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return AttachmentCategoryAudio
	case mimeType == "application/pdf" || strings.HasPrefix(mimeType, "text/"):
		return AttachmentCategoryDocument
	default:
		return AttachmentCategoryOther
	}
}

// Validate validates the attachment data.
func (a *Attachment) Validate() error {
	if a.ID == "" {
		return errors.New("id is required")
	}
	if a.Name == "" {
		return errors.New("name is required")
	}

	switch a.Status {
	case UploadStatusUploading, UploadStatusUploaded, UploadStatusFailed:
	default:
		return errors.New("invalid upload status")
	}

	if a.Status == UploadStatusUploaded && a.RemoteURL == "" {
		return errors.New("uploaded attachment requires a remote url")
	}

	return nil
}
