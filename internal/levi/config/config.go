// Package config loads the bot's YAML configuration file. Documents are
// checked against an embedded JSON Schema before decoding, so malformed
// configs fail at startup with a precise error instead of surfacing later as
// odd runtime behaviour.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

// Defaults applied to zero-valued memory settings.
const (
	DefaultHistoryLimit        = 100
	DefaultMaxPerUser          = 100
	DefaultRetentionDays       = 365
	DefaultSimilarityThreshold = 0.7
	DefaultSearchLimit         = 5
	DefaultMaxBotConversation  = 5
)

// Config is the root of the YAML configuration file.
type Config struct {
	Personas  PersonasConfig   `yaml:"personas"`
	Memory    MemoryConfig     `yaml:"memory"`
	Reminders []ReminderConfig `yaml:"reminders"`
}

// PersonasConfig controls persona selection and directive overrides.
type PersonasConfig struct {
	// OwnerMarker is the substring identifying the owner's display name.
	OwnerMarker string `yaml:"ownerMarker"`
	// PeerBotID is the stable identity of the known peer bot.
	PeerBotID string `yaml:"peerBotId"`
	// Overrides replace the built-in directive text of named personas.
	Overrides []PersonaOverride `yaml:"overrides"`
}

// PersonaOverride replaces the role or directive of one built-in persona.
type PersonaOverride struct {
	Name      string `yaml:"name"`
	Role      string `yaml:"role"`
	Directive string `yaml:"directive"`
}

// MemoryConfig tunes short-term history and long-term memory.
type MemoryConfig struct {
	HistoryLimit        int     `yaml:"historyLimit"`
	MaxPerUser          int     `yaml:"maxPerUser"`
	RetentionDays       int     `yaml:"retentionDays"`
	SimilarityThreshold float64 `yaml:"similarityThreshold"`
	SearchLimit         int     `yaml:"searchLimit"`
	// MaxBotConversation caps consecutive bot-to-bot exchanges.
	MaxBotConversation int `yaml:"maxBotConversation"`
}

// ReminderConfig is one scheduled reminder entry.
type ReminderConfig struct {
	Time      string `yaml:"time"`
	Action    string `yaml:"action"`
	Message   string `yaml:"message"`
	ChannelID string `yaml:"channelId"`
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates a YAML document against the embedded schema and decodes it.
// Zero-valued memory settings are filled with defaults.
func Parse(data []byte) (*Config, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// validateSchema round-trips the YAML document through JSON and checks it
// against the embedded schema.
func validateSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("validate: empty document")
	}

	jsonDoc, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	var generic any
	if err := json.Unmarshal(jsonDoc, &generic); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", strings.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("validate: load schema: %w", err)
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		return fmt.Errorf("validate: compile schema: %w", err)
	}
	if err := schema.Validate(generic); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	m := &cfg.Memory
	if m.HistoryLimit <= 0 {
		m.HistoryLimit = DefaultHistoryLimit
	}
	if m.MaxPerUser <= 0 {
		m.MaxPerUser = DefaultMaxPerUser
	}
	if m.RetentionDays <= 0 {
		m.RetentionDays = DefaultRetentionDays
	}
	if m.SimilarityThreshold <= 0 {
		m.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if m.SearchLimit <= 0 {
		m.SearchLimit = DefaultSearchLimit
	}
	if m.MaxBotConversation <= 0 {
		m.MaxBotConversation = DefaultMaxBotConversation
	}
}
