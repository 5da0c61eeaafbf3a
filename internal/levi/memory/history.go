package memory

import (
	"sync"
	"time"
)

// DefaultHistoryLimit is the per-channel cap on short-term history turns.
const DefaultHistoryLimit = 100

// History keeps a bounded, ordered log of recent turns per channel.
// Ordering is chronological by insertion (or by original send time when
// seeded); when the cap is exceeded the oldest turns are dropped first.
// It is safe for concurrent use; channels are independent keys.
type History struct {
	mu       sync.Mutex
	limit    int
	channels map[string][]Turn
	now      func() time.Time // injectable for tests
}

// NewHistory creates a History with the given per-channel cap.
// Non-positive values fall back to DefaultHistoryLimit.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{
		limit:    limit,
		channels: make(map[string][]Turn),
		now:      time.Now,
	}
}

// Append records a turn in the channel's history, stamping the current time
// when the turn carries no timestamp, then drops the oldest turns if the
// channel is over the cap.
func (h *History) Append(channelID string, turn Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if turn.Timestamp.IsZero() {
		turn.Timestamp = h.now()
	}

	turns := append(h.channels[channelID], turn)
	if excess := len(turns) - h.limit; excess > 0 {
		turns = turns[excess:]
	}
	h.channels[channelID] = turns
}

// Get returns a snapshot of the channel's history, oldest first.
// Unseen channels yield an empty slice.
func (h *History) Get(channelID string) []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	turns := h.channels[channelID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Seed hydrates a channel's history from a prior transcript, preserving the
// original timestamps and ordering. Turns already sorted ascending by send
// time are expected; the cap is enforced the same way as for Append.
// Seed is meant for startup only, never mid-session.
func (h *History) Seed(channelID string, turns []Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	seeded := make([]Turn, len(turns))
	copy(seeded, turns)
	if excess := len(seeded) - h.limit; excess > 0 {
		seeded = seeded[excess:]
	}
	h.channels[channelID] = seeded
}

// Len returns the number of turns currently held for the channel.
func (h *History) Len(channelID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels[channelID])
}
