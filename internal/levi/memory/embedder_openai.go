package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultEmbeddingBase    = "https://api.openai.com/v1"
	defaultEmbeddingModel   = "text-embedding-3-small"
	defaultEmbeddingTimeout = 30 * time.Second
)

// OpenAIEmbedderConfig configures the OpenAI embedding provider.
type OpenAIEmbedderConfig struct {
	// APIKey is the bearer token for authentication.
	APIKey string

	// BaseURL overrides the API endpoint. Defaults to https://api.openai.com/v1
	// when empty. Useful for Azure OpenAI, local proxies, or compatible endpoints.
	BaseURL string

	// Model is the embedding model to use.
	// Defaults to text-embedding-3-small when empty.
	Model string

	// Timeout is the HTTP request timeout. Defaults to 30 s.
	Timeout time.Duration
}

// OpenAIEmbedder implements Embedder using an OpenAI-compatible embeddings
// API. This is the preferred embedding source: unlike CompletionEmbedder it
// returns vectors of a stable dimensionality.
type OpenAIEmbedder struct {
	cfg    OpenAIEmbedderConfig
	client *http.Client
}

// NewOpenAIEmbedder creates an Embedder backed by the OpenAI (or compatible)
// embeddings API. The returned embedder is safe for concurrent use.
func NewOpenAIEmbedder(cfg OpenAIEmbedderConfig) *OpenAIEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultEmbeddingBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultEmbeddingModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultEmbeddingTimeout
	}
	return &OpenAIEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- minimal OpenAI embeddings wire types ---

type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// Embed produces a vector embedding for the given text by calling the
// embeddings API. Returns the embedding vector or an error when the call fails.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, nil
	}

	body := embeddingRequest{
		Input: text,
		Model: e.cfg.Model,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("embedder openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.cfg.BaseURL+"/embeddings",
		bytes.NewReader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("embedder openai: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedder openai: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedder openai: read response body: %w", err)
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("embedder openai: decode response: %w", err)
	}

	if embResp.Error != nil {
		return nil, fmt.Errorf("embedder openai: API error (%s): %s", embResp.Error.Type, embResp.Error.Message)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("embedder openai: unexpected HTTP status %d", resp.StatusCode)
	}

	if len(embResp.Data) == 0 {
		return nil, fmt.Errorf("embedder openai: no embedding data returned")
	}

	return embResp.Data[0].Embedding, nil
}

// Compile-time interface satisfaction check.
var _ Embedder = (*OpenAIEmbedder)(nil)
