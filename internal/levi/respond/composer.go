// Package respond assembles the prompt context for an incoming message and
// turns it into a reply. The composer builds the exact message sequence the
// generator sends — persona directives, temporal instruction, long-term
// excerpts, short-term history, then the new message — with no hidden state
// added downstream.
package respond

import (
	"fmt"
	"time"

	"github.com/osayson/levi/internal/levi/llm"
	"github.com/osayson/levi/internal/levi/memory"
	"github.com/osayson/levi/internal/levi/persona"
)

// timestampLayout renders the bracketed timestamps embedded in prompt text.
// It mirrors a locale-style date ("03/01/2026, 9:05:07 AM") rather than
// RFC 3339 so the model reads it as prose, not as a machine format.
const timestampLayout = "01/02/2006, 3:04:05 PM"

// temporalInstruction is the fixed system block explaining the timestamp
// annotations. It is always the second block of every composed context.
const temporalInstruction = "IMPORTANT: You'll receive messages with timestamps in the format " +
	"[Current time: MM/DD/YYYY, HH:MM:SS AM/PM] or [Sent at: MM/DD/YYYY, HH:MM:SS AM/PM]. " +
	"While you should be aware of this time information and can naturally reference the time " +
	"in your responses (like 'Good morning' or 'It's getting late'), NEVER include these " +
	"timestamp markers in square brackets in your responses. Your responses should look " +
	"natural without these technical timestamp markers. You can mention the time naturally " +
	"(e.g., 'It's almost noon') but not in the [timestamp] format."

// Compose builds the full generator input, in fixed order:
//  1. the persona directive block
//  2. the temporal-awareness instruction
//  3. long-term memory excerpts, each tagged with its similarity score
//  4. short-term history, oldest first — user turns carry sender label and
//     a "[Sent at: …]" annotation, bot turns are plain content
//  5. the new message annotated with the current time
func Compose(p persona.Persona, excerpts []memory.Excerpt, history []memory.Turn, newMessage string, now time.Time) []llm.Message {
	msgs := make([]llm.Message, 0, len(excerpts)+len(history)+3)

	msgs = append(msgs, llm.Message{Role: p.Role, Content: p.Directive})
	msgs = append(msgs, llm.Message{Role: "system", Content: temporalInstruction})

	for _, ex := range excerpts {
		msgs = append(msgs, llm.Message{
			Role:    "system",
			Content: fmt.Sprintf("Relevant past memory (Similarity: %.2f): %s", ex.Similarity, ex.Content),
		})
	}

	for _, turn := range history {
		msgs = append(msgs, renderTurn(turn))
	}

	msgs = append(msgs, llm.Message{
		Role:    "user",
		Content: fmt.Sprintf("%s [Current time: %s]", newMessage, now.Format(timestampLayout)),
	})

	return msgs
}

// renderTurn formats one history turn as a prompt message.
func renderTurn(turn memory.Turn) llm.Message {
	if turn.IsBot {
		return llm.Message{Role: "assistant", Content: turn.Content}
	}

	content := turn.Content
	if turn.Username != "" {
		content = turn.Username + ": " + content
	}
	if !turn.Timestamp.IsZero() {
		content = fmt.Sprintf("%s [Sent at: %s]", content, turn.Timestamp.Format(timestampLayout))
	}
	return llm.Message{Role: "user", Content: content}
}
