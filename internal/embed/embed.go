// Package embed attaches image feature vectors to products by calling an
// external embedding service over HTTP. The service is a trusted collaborator
// except for one thing: vector length is always verified against the
// configured dimension before a vector is allowed anywhere near the store.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/wardrobe-ai/catalog-sync/internal/catalog"
)

// DefaultDimension is the expected vector length when none is configured.
const DefaultDimension = 768

// Config points at the embedding service.
type Config struct {
	Endpoint  string
	Dimension int
	Timeout   time.Duration
	APIKey    string
}

// Client is the HTTP catalog.Embedder.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient builds an embedding service client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("embedding endpoint is required")
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

// Dimension returns the vector length this client accepts.
func (c *Client) Dimension() int { return c.cfg.Dimension }

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed posts the raw image bytes and returns the feature vector. A vector
// whose length differs from the configured dimension yields
// catalog.ErrDimensionMismatch and is never returned to the caller.
func (c *Client) Embed(ctx context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(parsed.Embedding) != c.cfg.Dimension {
		c.logger.Warn("embedding dimension mismatch, discarding vector",
			zap.Int("got", len(parsed.Embedding)),
			zap.Int("want", c.cfg.Dimension),
		)
		return nil, fmt.Errorf("got %d values, want %d: %w",
			len(parsed.Embedding), c.cfg.Dimension, catalog.ErrDimensionMismatch)
	}
	return parsed.Embedding, nil
}
