package repositories

import (
	"context"
	"io"

	"github.com/relaypoint/console/domain/entities"
)

// UploadResult is the per-file descriptor returned by the upload endpoint.
type UploadResult struct {
	ID        string                      `json:"id"`
	URL       string                      `json:"url"`
	Category  entities.AttachmentCategory `json:"category"`
	SizeBytes int64                       `json:"size"`
}

// Uploader abstracts the remote upload endpoint. One call uploads one file;
// the coordinator parallelizes across the batch.
type Uploader interface {
	Upload(ctx context.Context, name, mimeType string, content io.Reader) (*UploadResult, error)
}

// PreviewDeriver produces a local preview handle for an image, independent of
// the remote round trip.
type PreviewDeriver interface {
	Derive(ctx context.Context, name, mimeType string, content []byte) (string, error)
}
