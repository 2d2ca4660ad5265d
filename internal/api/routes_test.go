package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/relaypoint/console/domain/repositories"
	"github.com/relaypoint/console/internal/conn"
	"github.com/relaypoint/console/internal/stream"
	"github.com/relaypoint/console/internal/upload"
	"github.com/relaypoint/console/internal/voice"
)

type nopUploader struct{}

func (nopUploader) Upload(ctx context.Context, name, mimeType string, content io.Reader) (*repositories.UploadResult, error) {
	return &repositories.UploadResult{URL: "https://files.example.com/" + name}, nil
}

type nopRecognizer struct{}

func (nopRecognizer) Recognize(ctx context.Context, audio <-chan []byte, config repositories.AudioConfig) (<-chan repositories.TranscriptEvent, error) {
	events := make(chan repositories.TranscriptEvent)
	close(events)
	return events, nil
}

type nopCapture struct{}

func (nopCapture) Acquire(ctx context.Context, config repositories.AudioConfig) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}
func (nopCapture) Release() error { return nil }

func setupStatusAPI(t testing.TB) (*echo.Echo, *stream.Stream) {
	logger := zap.NewNop()

	manager := conn.NewManager(conn.Config{
		URL:           "ws://localhost:0",
		TokenProvider: func() (string, error) { return "tok", nil },
	}, logger)
	t.Cleanup(manager.Close)

	messages := stream.New(logger)
	uploads := upload.NewCoordinator(nopUploader{}, nil, time.Second, logger)
	recorder := voice.NewEngine(nil, nopRecognizer{}, nopCapture{},
		repositories.AudioConfig{}, time.Second, func(string) {}, logger)

	e := echo.New()
	InitRoutes(e, manager, messages, uploads, recorder, logger)
	return e, messages
}

func request(e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	e, _ := setupStatusAPI(t)

	rec := request(e, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "relaypoint-console") {
		t.Errorf("Unexpected body %s", rec.Body.String())
	}
}

func TestConnectionStatus(t *testing.T) {
	e, _ := setupStatusAPI(t)

	rec := request(e, http.MethodGet, "/api/v1/connection")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "disconnected") {
		t.Errorf("Expected disconnected state, got %s", rec.Body.String())
	}
}

func TestMessagesAndClear(t *testing.T) {
	e, messages := setupStatusAPI(t)

	messages.Ingest(&conn.InboundFrame{
		BaseFrame: conn.BaseFrame{Kind: conn.FrameKindMessage, ServerID: "m1"},
		Content:   "hello",
	})

	rec := request(e, http.MethodGet, "/api/v1/messages")
	if !strings.Contains(rec.Body.String(), "hello") {
		t.Errorf("Expected message in response, got %s", rec.Body.String())
	}

	rec = request(e, http.MethodDelete, "/api/v1/messages")
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	if messages.Len() != 0 {
		t.Error("History should be empty after clear")
	}
}

func TestUnknownRouteReturnsErrorShape(t *testing.T) {
	e, _ := setupStatusAPI(t)

	rec := request(e, http.MethodGet, "/api/v1/nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error"`) {
		t.Errorf("Expected error shape, got %s", rec.Body.String())
	}
}

func TestRecordingStatus(t *testing.T) {
	e, _ := setupStatusAPI(t)

	rec := request(e, http.MethodGet, "/api/v1/recording")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "idle") {
		t.Errorf("Expected idle session, got %s", rec.Body.String())
	}
}
