package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/relaypoint/console/domain/entities"
)

const defaultTimeout = 30 * time.Second

// Client fetches the ordered batch of prior messages from the history
// endpoint. Called once at startup to seed the message stream.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a history client.
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

type historyResponse struct {
	Messages []*entities.Message `json:"messages"`
}

// Fetch returns prior messages in server order.
func (c *Client) Fetch(ctx context.Context) ([]*entities.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("history request rejected with status %d: %s", resp.StatusCode, string(detail))
	}

	var decoded historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode history response: %w", err)
	}

	// Entries arrive confirmed by definition; normalize anything the server
	// left unset.
	for _, msg := range decoded.Messages {
		if msg.Status == "" {
			msg.Status = entities.MessageStatusConfirmed
		}
	}

	c.logger.Info("History fetched", zap.Int("messages", len(decoded.Messages)))
	return decoded.Messages, nil
}
