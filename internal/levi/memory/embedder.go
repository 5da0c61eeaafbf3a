package memory

import "context"

// Embedder produces vector embeddings for text. Implementations range from
// a no-op stub (similarity search disabled) to a chat-completion hack that
// parses a comma-separated list, to a real embeddings API for production use.
type Embedder interface {
	// Embed produces a vector embedding for the given text.
	// Returns nil with no error when embedding is not available (noop).
	Embed(ctx context.Context, text string) ([]float32, error)
}
