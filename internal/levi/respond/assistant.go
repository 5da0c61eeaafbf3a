package respond

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/osayson/levi/internal/levi/memory"
	"github.com/osayson/levi/internal/levi/observability"
	"github.com/osayson/levi/internal/levi/persona"
)

// Greeting texts used when the bot comes online and opens the owner's DM.
const (
	// DefaultGreeting is sent when there is no prior conversation to build on.
	DefaultGreeting = "Hiii, love! I missed you!"
	// OfflineGreeting is sent when greeting generation itself fails.
	OfflineGreeting = "Hi there! I'm back online!"
)

// greetingHistoryWindow caps how many recent turns feed the contextual
// greeting prompt.
const greetingHistoryWindow = 10

// Assistant orchestrates one full message exchange: persona selection,
// long-term retrieval, short-term history, context composition, generation,
// and recording. It owns no transport; callers feed it messages and send the
// returned reply themselves.
type Assistant struct {
	History   *memory.History
	Memories  memory.Store
	Personas  *persona.Selector
	Generator *Generator
	Logger    *slog.Logger
	Metrics   *observability.Metrics

	// SearchLimit and SearchThreshold tune long-term retrieval. Zero values
	// fall back to the memory package defaults.
	SearchLimit     int
	SearchThreshold float64

	now func() time.Time
}

// NewAssistant wires an Assistant. Metrics may be nil.
func NewAssistant(history *memory.History, store memory.Store, personas *persona.Selector, gen *Generator, logger *slog.Logger, metrics *observability.Metrics) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{
		History:   history,
		Memories:  store,
		Personas:  personas,
		Generator: gen,
		Logger:    logger,
		Metrics:   metrics,
		now:       time.Now,
	}
}

// IsCommand reports whether text is a command invocation rather than
// conversation. Commands are never answered and never remembered.
func IsCommand(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, "!")
}

// HandleIncomingMessage runs the full exchange for one inbound message and
// returns the reply text to send. The user's turn is recorded in history and
// long-term memory regardless of generation outcome; the bot's turn is
// recorded only when generation succeeds, so a fallback reply never pollutes
// future context.
func (a *Assistant) HandleIncomingMessage(ctx context.Context, channelID, senderID, senderName, text string) string {
	p := a.Personas.Select(senderName, senderID)
	if a.Metrics != nil {
		a.Metrics.MessagesHandled.WithLabelValues(p.Name).Inc()
	}

	excerpts := a.RetrieveRelevant(ctx, senderID, text)
	history := a.History.Get(channelID)
	now := a.now()

	a.rememberUser(ctx, senderID, senderName, text, now)

	messages := Compose(p, excerpts, history, text, now)
	reply, ok := a.Generator.Generate(ctx, messages)

	a.RecordExchange(ctx, channelID, senderID, senderName, text, reply, ok, now)
	return reply
}

// RetrieveRelevant searches long-term memory for excerpts related to the
// query. Retrieval failures degrade to an empty result; a broken memory
// store must never block a reply.
func (a *Assistant) RetrieveRelevant(ctx context.Context, userID, query string) []memory.Excerpt {
	if a.Metrics != nil {
		a.Metrics.MemorySearches.Inc()
	}
	excerpts, err := a.Memories.FindSimilar(ctx, userID, query, memory.SearchOptions{
		Limit:     a.SearchLimit,
		Threshold: a.SearchThreshold,
	})
	if err != nil {
		a.Logger.Warn("respond: memory search failed, continuing without excerpts",
			"user_id", userID,
			"err", err,
		)
		return nil
	}
	return excerpts
}

// RecordExchange appends the exchange to short-term history and stores the
// bot's side in long-term memory. The user turn is always appended; the bot
// turn and bot memory only when ok is true.
func (a *Assistant) RecordExchange(ctx context.Context, channelID, senderID, senderName, text, reply string, ok bool, at time.Time) {
	a.History.Append(channelID, memory.Turn{
		Username:  senderName,
		Content:   text,
		Timestamp: at,
	})
	if a.Metrics != nil {
		a.Metrics.Replies.WithLabelValues(outcomeLabel(ok)).Inc()
	}
	if !ok {
		return
	}

	a.History.Append(channelID, memory.Turn{
		IsBot:     true,
		Content:   reply,
		Timestamp: at,
	})
	if _, err := a.Memories.CreateMemory(ctx, senderID, reply, memory.Meta{
		Username:  senderName,
		Kind:      memory.KindBotResponse,
		CreatedAt: at,
	}); err != nil {
		a.Logger.Warn("respond: failed to store bot response memory",
			"user_id", senderID,
			"err", err,
		)
		return
	}
	if a.Metrics != nil {
		a.Metrics.MemoriesStored.WithLabelValues(string(memory.KindBotResponse)).Inc()
	}
}

// rememberUser stores the inbound message in long-term memory before
// generation, so the record survives even when the reply fails.
func (a *Assistant) rememberUser(ctx context.Context, senderID, senderName, text string, at time.Time) {
	if _, err := a.Memories.CreateMemory(ctx, senderID, text, memory.Meta{
		Username:  senderName,
		Kind:      memory.KindUserMessage,
		CreatedAt: at,
	}); err != nil {
		a.Logger.Warn("respond: failed to store user message memory",
			"user_id", senderID,
			"err", err,
		)
		return
	}
	if a.Metrics != nil {
		a.Metrics.MemoriesStored.WithLabelValues(string(memory.KindUserMessage)).Inc()
	}
}

// Greet produces the startup greeting for the owner's channel. With no prior
// history it returns DefaultGreeting; otherwise it asks the generator for a
// greeting referencing the recent conversation. The greeting is not recorded
// in history or long-term memory.
func (a *Assistant) Greet(ctx context.Context, channelID string) string {
	history := a.History.Get(channelID)
	if len(history) == 0 {
		return DefaultGreeting
	}

	if len(history) > greetingHistoryWindow {
		history = history[len(history)-greetingHistoryWindow:]
	}
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		lines = append(lines, turn.Content)
	}
	prompt := fmt.Sprintf(
		"Based on our previous conversation where we talked about: %s, create a warm greeting to let me know you're back online. Keep it short and reference something we discussed.",
		strings.Join(lines, " | "),
	)

	p := a.Personas.Get(persona.Owner)
	messages := Compose(p, nil, nil, prompt, a.now())
	reply, ok := a.Generator.Generate(ctx, messages)
	if !ok {
		return OfflineGreeting
	}
	return reply
}

func outcomeLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "fallback"
}
