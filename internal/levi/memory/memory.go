// Package memory implements the conversation memory subsystem for Levi.
// Short-term memory keeps a bounded per-channel log of recent turns in full
// fidelity; long-term memory stores both sides of every exchange per user,
// with embeddings for similarity-based recall across sessions.
package memory

import "time"

// Kind classifies which side of an exchange a long-term record captures.
type Kind string

const (
	// KindUserMessage marks a record created from an inbound user message.
	KindUserMessage Kind = "user_message"
	// KindBotResponse marks a record created from a generated reply.
	KindBotResponse Kind = "bot_response"
)

// Record is a single long-term memory: one side of an exchange stored for a
// specific user. The embedding is nil when generation failed at store time —
// the record is kept anyway, it is just invisible to similarity search.
type Record struct {
	ID        string    // unique record ID (UUID)
	Content   string    // stored text
	Embedding []float32 // vector embedding of Content, nil on failure
	Timestamp time.Time // when the record was stored
	Meta      Meta
}

// Meta carries descriptive metadata stored alongside a record.
type Meta struct {
	Username  string    // display name of the human participant
	Kind      Kind      // user_message or bot_response
	CreatedAt time.Time // append time, used for retention pruning
}

// Excerpt is a similarity-search result: a record plus its cosine similarity
// to the query embedding.
type Excerpt struct {
	Record
	Similarity float64
}

// Turn is a single entry in a channel's short-term history.
type Turn struct {
	IsBot     bool      // true when the bot produced this turn
	Username  string    // sender display name, empty for bot turns
	Content   string    // message text
	Timestamp time.Time // when the turn was recorded (or originally sent)
}
