package entities

import "testing"

func TestNewAttachment(t *testing.T) {
	att := NewAttachment("report.pdf", "application/pdf", 2048)

	if att.ID == "" {
		t.Error("Expected attachment ID to be set")
	}

	if att.Status != UploadStatusUploading {
		t.Errorf("Expected status %s, got %s", UploadStatusUploading, att.Status)
	}

	if att.SizeBytes != 2048 {
		t.Errorf("Expected size 2048, got %d", att.SizeBytes)
	}
}

func TestAttachmentMarkUploaded(t *testing.T) {
	att := NewAttachment("photo.jpg", "image/jpeg", 1000)
	att.MarkUploaded("https://files.example.com/photo.jpg", AttachmentCategoryImage, 1024)

	if att.Status != UploadStatusUploaded {
		t.Errorf("Expected status %s, got %s", UploadStatusUploaded, att.Status)
	}

	if att.RemoteURL != "https://files.example.com/photo.jpg" {
		t.Errorf("Unexpected remote URL %s", att.RemoteURL)
	}

	if att.SizeBytes != 1024 {
		t.Errorf("Expected server-reported size 1024, got %d", att.SizeBytes)
	}
}

func TestAttachmentMarkFailed(t *testing.T) {
	att := NewAttachment("big.zip", "application/zip", 1<<30)
	att.MarkFailed("file too large")

	if att.Status != UploadStatusFailed {
		t.Errorf("Expected status %s, got %s", UploadStatusFailed, att.Status)
	}

	if att.FailReason != "file too large" {
		t.Errorf("Unexpected fail reason %s", att.FailReason)
	}
}

func TestCategoryForMime(t *testing.T) {
	cases := map[string]AttachmentCategory{
		"image/png":       AttachmentCategoryImage,
		"video/mp4":       AttachmentCategoryVideo,
		"audio/ogg":       AttachmentCategoryAudio,
		"application/pdf": AttachmentCategoryDocument,
		"text/plain":      AttachmentCategoryDocument,
		"application/zip": AttachmentCategoryOther,
	}

	for mime, want := range cases {
		if got := CategoryForMime(mime); got != want {
			t.Errorf("CategoryForMime(%s) = %s, want %s", mime, got, want)
		}
	}
}

func TestAttachmentValidation(t *testing.T) {
	att := NewAttachment("a.txt", "text/plain", 10)
	if err := att.Validate(); err != nil {
		t.Errorf("Valid attachment should not have validation errors, got: %v", err)
	}

	att.Status = UploadStatusUploaded
	if err := att.Validate(); err == nil {
		t.Error("Uploaded attachment without remote URL should have validation error")
	}
}
