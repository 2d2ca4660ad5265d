package upload

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/relaypoint/console/domain/entities"
)

func TestUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()

		if header.Filename != "photo.png" {
			t.Errorf("Unexpected filename %s", header.Filename)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"f-1","url":"https://files.example.com/photo.png","category":"image","size":3}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok", time.Second, zap.NewNop())

	result, err := client.Upload(context.Background(), "photo.png", "image/png", bytes.NewReader([]byte("png")))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if result.URL != "https://files.example.com/photo.png" {
		t.Errorf("Unexpected url %s", result.URL)
	}
	if result.Category != entities.AttachmentCategoryImage {
		t.Errorf("Unexpected category %s", result.Category)
	}
	if result.SizeBytes != 3 {
		t.Errorf("Unexpected size %d", result.SizeBytes)
	}
}

func TestUploadRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok", time.Second, zap.NewNop())

	_, err := client.Upload(context.Background(), "big.zip", "application/zip", bytes.NewReader(make([]byte, 10)))
	if err == nil {
		t.Fatal("Expected error for rejected upload")
	}
}

func TestDiskPreviewDeriver(t *testing.T) {
	deriver, err := NewDiskPreviewDeriver(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskPreviewDeriver failed: %v", err)
	}

	handle, err := deriver.Derive(context.Background(), "photo.png", "image/png", []byte("png"))
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	if handle == "" {
		t.Error("Expected a preview handle")
	}
}
