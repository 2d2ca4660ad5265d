package upload

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/relaypoint/console/domain/entities"
	"github.com/relaypoint/console/domain/repositories"
)

// scriptedUploader fails files whose name contains "bad" and blocks files
// whose name contains "slow" until released.
type scriptedUploader struct {
	mu      sync.Mutex
	release chan struct{}
	calls   int
}

func newScriptedUploader() *scriptedUploader {
	return &scriptedUploader{release: make(chan struct{})}
}

func (u *scriptedUploader) Upload(ctx context.Context, name, mimeType string, content io.Reader) (*repositories.UploadResult, error) {
	u.mu.Lock()
	u.calls++
	u.mu.Unlock()

	if strings.Contains(name, "slow") {
		select {
		case <-u.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if strings.Contains(name, "bad") {
		return nil, errors.New("server rejected file")
	}

	data, _ := io.ReadAll(content)
	return &repositories.UploadResult{
		ID:        "remote-" + name,
		URL:       "https://files.example.com/" + name,
		Category:  entities.CategoryForMime(mimeType),
		SizeBytes: int64(len(data)),
	}, nil
}

func waitForSettled(t testing.TB, c *Coordinator, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		settled := 0
		for _, att := range c.Snapshot() {
			if att.Status != entities.UploadStatusUploading {
				settled++
			}
		}
		if settled >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Timed out waiting for uploads to settle")
}

func TestSubmitRegistersPlaceholdersImmediately(t *testing.T) {
	u := newScriptedUploader()
	c := NewCoordinator(u, nil, time.Second, zap.NewNop())

	c.Submit(context.Background(), []File{
		{Name: "slow.pdf", MimeType: "application/pdf", Content: []byte("pdf")},
	})

	// Upload is still blocked; the placeholder must already be visible.
	snap := c.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("Expected 1 placeholder, got %d", len(snap))
	}
	if snap[0].Status != entities.UploadStatusUploading {
		t.Errorf("Expected uploading, got %s", snap[0].Status)
	}

	close(u.release)
	waitForSettled(t, c, 1)
}

func TestMixedOutcomeBatch(t *testing.T) {
	u := newScriptedUploader()
	c := NewCoordinator(u, nil, time.Second, zap.NewNop())

	c.Submit(context.Background(), []File{
		{Name: "good.txt", MimeType: "text/plain", Content: []byte("ok")},
		{Name: "bad.txt", MimeType: "text/plain", Content: []byte("no")},
	})
	waitForSettled(t, c, 2)

	var uploaded, failed int
	for _, att := range c.Snapshot() {
		switch att.Status {
		case entities.UploadStatusUploaded:
			uploaded++
			if att.RemoteURL == "" {
				t.Error("Uploaded attachment missing remote URL")
			}
		case entities.UploadStatusFailed:
			failed++
			if att.FailReason == "" {
				t.Error("Failed attachment missing reason")
			}
		}
	}

	if uploaded != 1 || failed != 1 {
		t.Errorf("Expected exactly one uploaded and one failed, got %d/%d", uploaded, failed)
	}

	// Only the successful file is eligible for composition.
	eligible := c.Uploaded()
	if len(eligible) != 1 || eligible[0].Name != "good.txt" {
		t.Errorf("Uploaded() should contain only good.txt, got %v", eligible)
	}
}

func TestRemoveDiscardsInFlightResult(t *testing.T) {
	u := newScriptedUploader()
	c := NewCoordinator(u, nil, time.Second, zap.NewNop())

	ids := c.Submit(context.Background(), []File{
		{Name: "slow.txt", MimeType: "text/plain", Content: []byte("x")},
	})

	c.Remove(ids[0])
	close(u.release)

	// Give the in-flight completion a chance to land.
	time.Sleep(50 * time.Millisecond)

	if len(c.Snapshot()) != 0 {
		t.Error("Removed file must not reappear when its upload completes")
	}
	if len(c.Uploaded()) != 0 {
		t.Error("Removed file must not be eligible for composition")
	}
}

func TestUploadTimeout(t *testing.T) {
	u := newScriptedUploader()
	c := NewCoordinator(u, nil, 30*time.Millisecond, zap.NewNop())

	c.Submit(context.Background(), []File{
		{Name: "slow.txt", MimeType: "text/plain", Content: []byte("x")},
	})
	waitForSettled(t, c, 1)

	snap := c.Snapshot()
	if snap[0].Status != entities.UploadStatusFailed {
		t.Errorf("Hung upload must fail by timeout, got %s", snap[0].Status)
	}
}

type fakePreviews struct{}

func (fakePreviews) Derive(ctx context.Context, name, mimeType string, content []byte) (string, error) {
	return "preview://" + name, nil
}

func TestImagePreviewDerivedIndependently(t *testing.T) {
	u := newScriptedUploader()
	c := NewCoordinator(u, fakePreviews{}, time.Second, zap.NewNop())

	c.Submit(context.Background(), []File{
		{Name: "slow-photo.png", MimeType: "image/png", Content: []byte("png")},
	})

	// The upload is blocked, but the preview must arrive anyway.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		snap := c.Snapshot()
		if len(snap) == 1 && snap[0].LocalPreview != "" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	snap := c.Snapshot()
	if snap[0].LocalPreview != "preview://slow-photo.png" {
		t.Errorf("Preview not derived while upload pending, got %q", snap[0].LocalPreview)
	}
	if snap[0].Status != entities.UploadStatusUploading {
		t.Errorf("Upload should still be pending, got %s", snap[0].Status)
	}

	close(u.release)
	waitForSettled(t, c, 1)
}

func TestClearBatch(t *testing.T) {
	u := newScriptedUploader()
	c := NewCoordinator(u, nil, time.Second, zap.NewNop())

	c.Submit(context.Background(), []File{
		{Name: "good.txt", MimeType: "text/plain", Content: []byte("ok")},
	})
	waitForSettled(t, c, 1)

	c.ClearBatch()
	if len(c.Snapshot()) != 0 {
		t.Error("ClearBatch should empty the pending set")
	}
}
