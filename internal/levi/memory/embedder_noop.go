package memory

import "context"

// NoopEmbedder is a stub Embedder that returns nil vectors. When wired as
// the active embedder, records are stored without embeddings and similarity
// search always comes back empty.
type NoopEmbedder struct{}

// Embed returns nil with no error, signalling that embedding is unavailable.
func (NoopEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, nil
}

// Compile-time interface satisfaction check.
var _ Embedder = NoopEmbedder{}
