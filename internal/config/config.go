package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full client configuration, loaded from the environment with
// optional .env support.
type Config struct {
	// Command channel
	ServerURL string `env:"CONSOLE_SERVER_URL" envDefault:"ws://localhost:8080/ws"`
	Token     string `env:"CONSOLE_TOKEN"`

	// REST endpoints
	HistoryURL string `env:"CONSOLE_HISTORY_URL" envDefault:"http://localhost:8080/api/v1/messages/history"`
	UploadURL  string `env:"CONSOLE_UPLOAD_URL" envDefault:"http://localhost:8080/api/v1/uploads"`

	// Reconnect policy: exponential, capped, jittered
	BackoffBase time.Duration `env:"CONSOLE_BACKOFF_BASE" envDefault:"1s"`
	BackoffCap  time.Duration `env:"CONSOLE_BACKOFF_CAP" envDefault:"30s"`

	// Heartbeat
	PingInterval time.Duration `env:"CONSOLE_PING_INTERVAL" envDefault:"15s"`
	PongTimeout  time.Duration `env:"CONSOLE_PONG_TIMEOUT" envDefault:"45s"`

	HandshakeTimeout time.Duration `env:"CONSOLE_HANDSHAKE_TIMEOUT" envDefault:"10s"`
	RequestTimeout   time.Duration `env:"CONSOLE_REQUEST_TIMEOUT" envDefault:"60s"`

	// Voice
	AudioSource string `env:"CONSOLE_AUDIO_SOURCE" envDefault:"/tmp/console-audio"`
	SampleRate  int    `env:"CONSOLE_SAMPLE_RATE" envDefault:"16000"`
	Encoding    string `env:"CONSOLE_AUDIO_ENCODING" envDefault:"LINEAR16"`
	Language    string `env:"CONSOLE_LANGUAGE" envDefault:"en-US"`
	UseMockSTT  bool   `env:"CONSOLE_USE_MOCK_STT" envDefault:"false"`

	// Local status surface
	StatusAddr string `env:"CONSOLE_STATUS_ADDR" envDefault:"127.0.0.1:7171"`
	PreviewDir string `env:"CONSOLE_PREVIEW_DIR" envDefault:"/tmp/console-previews"`
}

// Load reads the .env file when present, then the environment.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments configure the environment
	// directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.Token == "" {
		return nil, fmt.Errorf("CONSOLE_TOKEN must be set")
	}
	if cfg.PongTimeout <= cfg.PingInterval {
		return nil, fmt.Errorf("CONSOLE_PONG_TIMEOUT must exceed CONSOLE_PING_INTERVAL")
	}

	return cfg, nil
}
