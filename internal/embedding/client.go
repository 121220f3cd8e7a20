package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client implements the primary tier against an OpenAI-compatible
// /v1/embeddings API. This covers vLLM, Ollama, ONNX Runtime Server and
// OpenAI itself. Output dimensionality is whatever the model provides and
// is treated as opaque.
type Client struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

// NewClient creates an embeddings API client.
func NewClient(endpoint, model, apiKey string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Name() string { return "openai" }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed requests a vector for one text. Empty input short-circuits to an
// empty vector without a network call.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Model: c.model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, snippet)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrUnavailable)
	}

	return parsed.Data[0].Embedding, nil
}

// Tiered applies the primary tier when configured and degrades to the hash
// tier on any failure. Its Embed never returns an error.
type Tiered struct {
	primary  Provider // nil when no endpoint is configured
	fallback HashProvider
}

// NewTiered builds the two-tier provider. primary may be nil.
func NewTiered(primary Provider) *Tiered {
	return &Tiered{primary: primary}
}

func (t *Tiered) Name() string {
	if t.primary != nil {
		return t.primary.Name()
	}
	return t.fallback.Name()
}

func (t *Tiered) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	if t.primary != nil {
		vec, err := t.primary.Embed(ctx, text)
		if err == nil && len(vec) > 0 {
			return vec, nil
		}
		if err != nil {
			slog.Debug("primary embedding tier declined, using hash fallback", "error", err)
		}
	}

	return t.fallback.Embed(ctx, text)
}
