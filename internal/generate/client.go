// Package generate is the boundary to the external image-generation service.
// The editor always sends exactly one reference image (the edited edge-map)
// and requests a single result.
package generate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultEndpoint is the image-generation API endpoint used when none is
// configured.
const DefaultEndpoint = "https://api.example-imagen.dev/v1/images/generations"

// Request describes one generation call.
type Request struct {
	Prompt          string
	APIKey          string
	ReferenceImages [][]byte // PNG-encoded structural references
	AspectRatio     string
	Model           string
	Count           int
}

// Response carries the generated image URLs.
type Response struct {
	URLs []string `json:"urls"`
}

// Client issues generation calls. Implementations must be safe to call from
// a single goroutine at a time; the editor's busy flag prevents re-entrancy.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// HTTPClient talks JSON over HTTP to the generation service.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient creates a client for the given endpoint. An empty endpoint
// selects DefaultEndpoint. logger may be nil.
func NewHTTPClient(endpoint string, logger *slog.Logger) *HTTPClient {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &HTTPClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}
}

type wireRequest struct {
	Prompt          string   `json:"prompt"`
	AspectRatio     string   `json:"aspect_ratio,omitempty"`
	Model           string   `json:"model,omitempty"`
	Count           int      `json:"count"`
	ReferenceImages []string `json:"reference_images,omitempty"`
}

// Generate implements Client.
func (c *HTTPClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("generate: prompt must not be empty")
	}
	count := req.Count
	if count <= 0 {
		count = 1
	}

	wire := wireRequest{
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		Model:       req.Model,
		Count:       count,
	}
	for _, img := range req.ReferenceImages {
		wire.ReferenceImages = append(wire.ReferenceImages, base64.StdEncoding.EncodeToString(img))
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("generate: failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("generate: failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generate: request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("generate: service returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("generate: failed to decode response: %w", err)
	}
	if len(out.URLs) == 0 {
		return nil, fmt.Errorf("generate: service returned no images")
	}

	c.log().Info("generation completed", "model", req.Model, "images", len(out.URLs), "ms", time.Since(start).Milliseconds())
	return &out, nil
}

func (c *HTTPClient) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}
