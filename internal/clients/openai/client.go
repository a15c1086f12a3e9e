package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"reservation-bridge/internal/observability"

	"github.com/gorilla/websocket"
)

const defaultRealtimeURL = "wss://api.openai.com/v1/realtime"

// RealtimeConfig holds configuration for the speech leg.
type RealtimeConfig struct {
	APIKey string
	URL    string // defaults to the public realtime endpoint
	Model  string // e.g. "gpt-realtime"
	Voice  string // e.g. "alloy"
}

// RealtimeClient opens realtime conversation sessions.
type RealtimeClient struct {
	cfg    RealtimeConfig
	dialer *websocket.Dialer
	logger *observability.Logger
}

func NewRealtimeClient(cfg RealtimeConfig, logger *observability.Logger) (*RealtimeClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if cfg.URL == "" {
		cfg.URL = defaultRealtimeURL
	}
	return &RealtimeClient{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		logger: logger,
	}, nil
}

// Voice returns the configured assistant voice.
func (c *RealtimeClient) Voice() string {
	return c.cfg.Voice
}

// Dial opens a new realtime websocket. The caller owns the returned connection.
func (c *RealtimeClient) Dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint, err := c.endpoint()
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.cfg.APIKey)

	conn, resp, err := c.dialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to OpenAI realtime endpoint (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to OpenAI realtime endpoint: %w", err)
	}

	c.logger.Info(ctx, "Connected to OpenAI realtime endpoint", observability.Field{Key: "model", Value: c.cfg.Model})
	return conn, nil
}

func (c *RealtimeClient) endpoint() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid realtime URL %q: %w", c.cfg.URL, err)
	}
	if c.cfg.Model != "" {
		q := u.Query()
		q.Set("model", c.cfg.Model)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
