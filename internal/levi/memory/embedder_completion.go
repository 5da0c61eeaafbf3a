package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CompletionEmbedder implements Embedder by asking a chat-completion endpoint
// to emit a comma-separated list of numbers and parsing that text into a
// vector. This is a fragile technique — the model is free to pad, truncate,
// or refuse — and it produces vectors of unstable dimensionality, so two
// embeddings of different length score 0 against each other. It exists for
// deployments without access to a real embeddings API; prefer OpenAIEmbedder.
type CompletionEmbedder struct {
	cfg    CompletionEmbedderConfig
	client *http.Client
}

// CompletionEmbedderConfig configures the completion-call embedder.
type CompletionEmbedderConfig struct {
	// APIKey is the bearer token for authentication.
	APIKey string

	// URL is the full chat-completions endpoint URL.
	URL string

	// Model is the chat model asked to produce the numeric list.
	Model string

	// Timeout is the HTTP request timeout. Defaults to 30 s.
	Timeout time.Duration
}

// NewCompletionEmbedder creates an Embedder that derives vectors from a
// chat-completion call. The returned embedder is safe for concurrent use.
func NewCompletionEmbedder(cfg CompletionEmbedderConfig) *CompletionEmbedder {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultEmbeddingTimeout
	}
	return &CompletionEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type completionEmbedRequest struct {
	Model     string                  `json:"model"`
	Messages  []completionEmbedPrompt `json:"messages"`
	MaxTokens int                     `json:"max_tokens"`
}

type completionEmbedPrompt struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionEmbedResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed asks the completion endpoint for a comma-separated numeric list and
// parses it. Any non-numeric tokens in the reply are skipped; a reply with no
// numeric tokens at all is an error.
func (e *CompletionEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, nil
	}

	body := completionEmbedRequest{
		Model: e.cfg.Model,
		Messages: []completionEmbedPrompt{
			{Role: "system", Content: "Generate a semantic embedding for the following text as a comma-separated list of numbers. Output only the numbers."},
			{Role: "user", Content: text},
		},
		MaxTokens: 50,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("embedder completion: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("embedder completion: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedder completion: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedder completion: read response body: %w", err)
	}

	var ceResp completionEmbedResponse
	if err := json.Unmarshal(respBody, &ceResp); err != nil {
		return nil, fmt.Errorf("embedder completion: decode response: %w", err)
	}

	if ceResp.Error != nil {
		return nil, fmt.Errorf("embedder completion: API error: %s", ceResp.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("embedder completion: unexpected HTTP status %d", resp.StatusCode)
	}
	if len(ceResp.Choices) == 0 {
		return nil, fmt.Errorf("embedder completion: no choices returned")
	}

	vec := parseVector(ceResp.Choices[0].Message.Content)
	if len(vec) == 0 {
		return nil, fmt.Errorf("embedder completion: no numeric values in reply %.80q", ceResp.Choices[0].Message.Content)
	}
	return vec, nil
}

// parseVector converts a comma-separated numeric list into a float32 slice,
// skipping tokens that do not parse as numbers.
func parseVector(s string) []float32 {
	parts := strings.Split(s, ",")
	vec := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			continue
		}
		vec = append(vec, float32(f))
	}
	if len(vec) == 0 {
		return nil
	}
	return vec
}

// Compile-time interface satisfaction check.
var _ Embedder = (*CompletionEmbedder)(nil)
