package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// DiskPreviewDeriver materializes image bytes into a cache directory and
// returns the path as the preview handle. Runs entirely off the network, so
// previews render while the remote upload is still in flight.
type DiskPreviewDeriver struct {
	dir string
}

// NewDiskPreviewDeriver creates a deriver writing under dir, created if
// needed.
func NewDiskPreviewDeriver(dir string) (*DiskPreviewDeriver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create preview dir: %w", err)
	}
	return &DiskPreviewDeriver{dir: dir}, nil
}

func (d *DiskPreviewDeriver) Derive(ctx context.Context, name, mimeType string, content []byte) (string, error) {
	path := filepath.Join(d.dir, uuid.NewString()+filepath.Ext(name))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write preview: %w", err)
	}
	return path, nil
}
