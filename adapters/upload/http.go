package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/relaypoint/console/domain/entities"
	"github.com/relaypoint/console/domain/repositories"
)

const defaultTimeout = 60 * time.Second

// Client implements the Uploader port against the orchestration service's
// upload endpoint.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an upload client. The timeout bounds the whole request
// so a hung upload cannot pin a file in uploading forever.
func NewClient(endpoint, token string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type uploadResponse struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Category string `json:"category"`
	Size     int64  `json:"size"`
}

// Upload sends one file as a multipart form and returns its remote
// descriptor.
func (c *Client) Upload(ctx context.Context, name, mimeType string, content io.Reader) (*repositories.UploadResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(name)))
	if mimeType != "" {
		header.Set("Content-Type", mimeType)
	}

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("failed to write file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("upload rejected with status %d: %s", resp.StatusCode, string(detail))
	}

	var decoded uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}

	c.logger.Debug("File uploaded",
		zap.String("name", name),
		zap.String("url", decoded.URL))

	return &repositories.UploadResult{
		ID:        decoded.ID,
		URL:       decoded.URL,
		Category:  entities.AttachmentCategory(decoded.Category),
		SizeBytes: decoded.Size,
	}, nil
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
