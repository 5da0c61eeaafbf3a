// Package llm provides the chat-completion provider used to generate Levi's
// replies. The provider receives an already-assembled sequence of role-tagged
// messages and returns the completion text; prompt assembly lives upstream in
// the respond package, never here.
package llm

import (
	"context"
	"errors"
)

// ErrRateLimit is returned by a Provider when the upstream API reports a
// rate-limiting condition (e.g. HTTP 429 Too Many Requests). Callers treat it
// like any other transient failure but may log it distinctly.
var ErrRateLimit = errors.New("llm: upstream rate limit exceeded")

// Message is a single role-tagged block in the completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider generates completion text for a composed message sequence.
//
// Implementations must be safe for concurrent use. Failures are returned as
// errors; retry policy, if any, belongs to the caller's collaborator, not to
// the provider itself.
type Provider interface {
	// Complete sends the messages to the underlying model and returns the
	// generated text verbatim (untrimmed).
	Complete(ctx context.Context, messages []Message) (string, error)
}
