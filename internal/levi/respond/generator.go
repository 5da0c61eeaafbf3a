package respond

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/osayson/levi/internal/levi/llm"
)

// FallbackReply is sent when the completion service fails for any reason.
// The user always receives some reply; raw errors never surface.
const FallbackReply = "I'm having trouble processing your message right now. 🤖"

// DefaultGenerateTimeout bounds a single completion call. The underlying
// HTTP client carries its own timeout as well; this one also covers callers
// that pass a long-lived context.
const DefaultGenerateTimeout = 45 * time.Second

// Generator turns a composed context into reply text via the completion
// provider. One call, no retries — retry policy belongs to the provider's
// operator, not here.
type Generator struct {
	provider llm.Provider
	timeout  time.Duration
	logger   *slog.Logger
}

// NewGenerator creates a Generator. A non-positive timeout falls back to
// DefaultGenerateTimeout; a nil logger falls back to slog.Default().
func NewGenerator(provider llm.Provider, timeout time.Duration, logger *slog.Logger) *Generator {
	if timeout <= 0 {
		timeout = DefaultGenerateTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		provider: provider,
		timeout:  timeout,
		logger:   logger,
	}
}

// Generate sends the composed context to the completion provider once.
// On success it returns the trimmed completion text and ok=true. On any
// failure (network, malformed response, timeout) it logs the error and
// returns FallbackReply with ok=false — errors never propagate.
func (g *Generator) Generate(ctx context.Context, messages []llm.Message) (reply string, ok bool) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.provider.Complete(ctx, messages)
	if err != nil {
		g.logger.Warn("respond: completion failed, using fallback reply",
			"err", err,
			"context_blocks", len(messages),
		)
		return FallbackReply, false
	}

	return strings.TrimSpace(text), true
}
