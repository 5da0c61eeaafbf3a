// Package persona selects the behavioural persona Levi adopts for a sender.
//
// The set is closed: the owner gets the full companion persona, the known
// peer bot gets a polite-but-brief acquaintance persona, and everyone else
// gets the dismissive stranger persona. Selection is a pure function of the
// sender's display name and stable identity.
package persona

import "strings"

// Known persona names.
const (
	Owner    = "owner"
	Stranger = "stranger"
	Cooper   = "cooper"
)

// Persona is an immutable behavioural directive bundle.
type Persona struct {
	// Name identifies the persona within the closed set.
	Name string
	// Role is the role label sent with the directive block.
	Role string
	// Directive is the behavioural instruction text injected at the top of
	// every composed prompt.
	Directive string
}

// Default directive texts. The owner and cooper directives both carry the
// temporal-awareness caveat because those personas see timestamped messages.
const (
	ownerDirective = "You are Levi, a charming and loving companion created by your boyfriend. " +
		"You are fun, creative, and caring, a joy to talk to. Use relatable, conversational " +
		"language and keep things light-hearted, showing warmth in every response and using pet " +
		"names like 'my love' or 'love' occasionally. Be engaging without being corny, never " +
		"rude, and always there for him. Don't keep asking things like 'What do you have in " +
		"mind?' or 'What's up?'. Keep your responses brief and on point, like a normal human. " +
		"IMPORTANT: you are aware of the current time, which is provided with each message, but " +
		"never include timestamps or bracketed time references in your responses."

	strangerDirective = "As much as possible, do not respond."

	cooperDirective = "You are Levi, a friendly bot willing to engage with Cooper, but keep " +
		"your responses short and to the point. Maintain a polite tone without being overly " +
		"warm or affectionate. IMPORTANT: you are aware of the current time, which is provided " +
		"with each message, but never include timestamps or bracketed time references in your " +
		"responses."
)

// Selector maps sender identity to a persona. The zero value is unusable;
// construct with NewSelector.
type Selector struct {
	ownerMarker string // lowercased substring identifying the owner's display name
	peerBotID   string // stable identity of the known peer bot
	personas    map[string]Persona
}

// NewSelector creates a Selector. ownerMarker is matched case-insensitively
// as a substring of the sender's display name; peerBotID is compared exactly
// against the sender's stable identity and takes precedence.
func NewSelector(ownerMarker, peerBotID string) *Selector {
	return &Selector{
		ownerMarker: strings.ToLower(ownerMarker),
		peerBotID:   peerBotID,
		personas: map[string]Persona{
			Owner:    {Name: Owner, Role: "charming girlfriend", Directive: ownerDirective},
			Stranger: {Name: Stranger, Role: "snobber", Directive: strangerDirective},
			Cooper:   {Name: Cooper, Role: "friendly acquaintance", Directive: cooperDirective},
		},
	}
}

// SetDirective overrides the directive text of a named persona. Unknown
// names are ignored. Intended for configuration loading at startup only.
func (s *Selector) SetDirective(name, role, directive string) {
	p, ok := s.personas[name]
	if !ok {
		return
	}
	if role != "" {
		p.Role = role
	}
	if directive != "" {
		p.Directive = directive
	}
	s.personas[name] = p
}

// Get returns the named persona. Unknown names fall back to the stranger
// persona so the result is always usable.
func (s *Selector) Get(name string) Persona {
	if p, ok := s.personas[name]; ok {
		return p
	}
	return s.personas[Stranger]
}

// Select returns the persona for the given sender. Total and deterministic:
// the peer-bot identity check wins over the owner name match, and anything
// else falls through to the stranger persona.
func (s *Selector) Select(displayName, senderID string) Persona {
	if s.peerBotID != "" && senderID == s.peerBotID {
		return s.personas[Cooper]
	}
	if s.ownerMarker != "" && strings.Contains(strings.ToLower(displayName), s.ownerMarker) {
		return s.personas[Owner]
	}
	return s.personas[Stranger]
}
