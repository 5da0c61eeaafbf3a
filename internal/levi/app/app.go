// Package app assembles the bot: storage, memory, personas, the response
// engine, reminders, the Matrix transport, and the ops HTTP server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/osayson/levi/internal/levi/config"
	"github.com/osayson/levi/internal/levi/llm"
	"github.com/osayson/levi/internal/levi/matrix"
	"github.com/osayson/levi/internal/levi/memory"
	"github.com/osayson/levi/internal/levi/observability"
	"github.com/osayson/levi/internal/levi/persona"
	"github.com/osayson/levi/internal/levi/reminder"
	"github.com/osayson/levi/internal/levi/respond"
	"github.com/osayson/levi/internal/levi/store"
	"github.com/osayson/levi/internal/levi/timeclock"
)

// Embedding strategies selectable via configuration.
const (
	EmbeddingOpenAI     = "openai"
	EmbeddingCompletion = "completion"
	EmbeddingNone       = "none"
)

// pruneInterval is how often expired long-term memories are removed.
const pruneInterval = 24 * time.Hour

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	// Strategy is one of EmbeddingOpenAI, EmbeddingCompletion, EmbeddingNone.
	Strategy string
	APIKey   string
	BaseURL  string
	Model    string
}

// Config holds the full application configuration.
type Config struct {
	DatabasePath string
	Bot          *config.Config
	Matrix       matrix.Config
	LLM          llm.Config
	Embedding    EmbeddingConfig
	// Clockify is optional; reminders with clock actions need it.
	Clockify timeclock.Config
	// HTTPAddr enables the ops HTTP server when non-empty (e.g. ":8080").
	HTTPAddr string
	// Timezone is the location reminders fire in. Empty means local time.
	Timezone string
}

// App is the assembled bot.
type App struct {
	cfg       *Config
	logger    *slog.Logger
	store     *store.Store
	history   *memory.History
	memories  memory.Store
	assistant *respond.Assistant
	personas  *persona.Selector
	matrix    *matrix.Client
	scheduler *reminder.Scheduler
	ops       *opsServer
	metrics   *observability.Metrics

	retention time.Duration
	startedAt time.Time

	// botStreak counts consecutive peer-bot messages per room, enforcing the
	// bot-to-bot conversation cap.
	mu        sync.Mutex
	botStreak map[string]int
}

// New wires the application from configuration. Nothing connects to the
// homeserver until Run.
func New(cfg *Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	bot := cfg.Bot

	logger.Info("app: opening database", "path", cfg.DatabasePath)
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("app: open store: %w", err)
	}

	embedder, err := buildEmbedder(cfg.Embedding)
	if err != nil {
		db.Close()
		return nil, err
	}
	memories := memory.NewSQLiteStore(db.DB(), embedder, bot.Memory.MaxPerUser, logger)
	history := memory.NewHistory(bot.Memory.HistoryLimit)

	personas := persona.NewSelector(bot.Personas.OwnerMarker, bot.Personas.PeerBotID)
	for _, o := range bot.Personas.Overrides {
		personas.SetDirective(o.Name, o.Role, o.Directive)
	}

	metrics := observability.NewMetrics("levi")
	generator := respond.NewGenerator(llm.New(cfg.LLM), 0, logger)

	assistant := respond.NewAssistant(history, memories, personas, generator, logger, metrics)
	assistant.SearchLimit = bot.Memory.SearchLimit
	assistant.SearchThreshold = bot.Memory.SimilarityThreshold

	cfg.Matrix.DB = db.DB()
	matrixClient, err := matrix.New(cfg.Matrix, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	var tracker timeclock.Tracker
	if cfg.Clockify.APIKey != "" && cfg.Clockify.WorkspaceID != "" {
		tracker = timeclock.NewClient(cfg.Clockify, logger)
	} else if hasClockActions(bot.Reminders) {
		logger.Warn("app: reminders use clock actions but Clockify is not configured")
	}

	loc := time.Local
	if cfg.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("app: load timezone %q: %w", cfg.Timezone, err)
		}
	}
	scheduler := reminder.NewScheduler(loc, tracker, matrixClient, logger, metrics)

	a := &App{
		cfg:       cfg,
		logger:    logger,
		store:     db,
		history:   history,
		memories:  memories,
		assistant: assistant,
		personas:  personas,
		matrix:    matrixClient,
		scheduler: scheduler,
		metrics:   metrics,
		retention: time.Duration(bot.Memory.RetentionDays) * 24 * time.Hour,
		botStreak: make(map[string]int),
	}

	if cfg.HTTPAddr != "" {
		a.ops = newOpsServer(cfg.HTTPAddr, a)
	}

	return a, nil
}

// Run starts the bot and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startedAt = time.Now()

	if a.ops != nil {
		a.ops.Start()
	}

	a.logger.Info("app: starting Matrix sync")
	if err := a.matrix.Start(ctx, a.handleMessage); err != nil {
		return fmt.Errorf("app: start matrix: %w", err)
	}

	a.seedAndGreet(ctx)

	if err := a.scheduler.Schedule(reminderEntries(a.cfg.Bot.Reminders)); err != nil {
		return fmt.Errorf("app: schedule reminders: %w", err)
	}
	a.scheduler.Start()

	go a.pruneLoop(ctx)

	a.logger.Info("app: running, press Ctrl+C to stop")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("app: shutting down")
	return nil
}

// Stop releases all resources.
func (a *App) Stop() {
	a.scheduler.Stop()
	a.matrix.Stop()
	if a.ops != nil {
		a.ops.Stop()
	}
	a.store.Close()
}

// seedAndGreet restores short-term history for the owner's DM from room
// backlog, then announces the bot is back.
func (a *App) seedAndGreet(ctx context.Context) {
	roomID := a.matrix.OwnerRoomID()

	turns, err := a.matrix.RecentTurns(ctx, roomID, a.cfg.Bot.Memory.HistoryLimit)
	if err != nil {
		a.logger.Warn("app: could not seed history from room backlog", "room", roomID, "err", err)
	} else {
		a.history.Seed(roomID, turns)
		a.logger.Info("app: seeded history", "room", roomID, "turns", len(turns))
	}

	greeting := a.assistant.Greet(ctx, roomID)
	if err := a.matrix.SendUser(ctx, greeting); err != nil {
		a.logger.Warn("app: greeting delivery failed", "err", err)
	}
}

// peerChatOpener is sent when the owner asks Levi to start a bot-to-bot chat.
const peerChatOpener = "Hey %s, let's have a chat! 🤖"

// handleMessage routes one inbound message through the conversation engine.
func (a *App) handleMessage(ctx context.Context, msg matrix.Incoming) {
	if respond.IsCommand(msg.Body) {
		return
	}

	if msg.SenderID == a.cfg.Bot.Personas.PeerBotID && a.cfg.Bot.Personas.PeerBotID != "" {
		if !a.admitPeerMessage(msg.RoomID, msg.Body) {
			return
		}
	} else {
		// "talk to cooper" opens a fresh bot-to-bot exchange instead of a reply.
		if strings.Contains(strings.ToLower(msg.Body), "talk to cooper") && a.cfg.Bot.Personas.PeerBotID != "" {
			a.resetPeerStreak(msg.RoomID)
			opener := fmt.Sprintf(peerChatOpener, a.cfg.Bot.Personas.PeerBotID)
			if err := a.matrix.SendRoom(ctx, msg.RoomID, opener); err != nil {
				a.logger.Error("app: peer chat opener failed", "room", msg.RoomID, "err", err)
			}
			return
		}
		if !a.shouldRespond(msg) {
			return
		}
	}

	a.matrix.SetTyping(ctx, msg.RoomID, true, 30*time.Second)
	reply := a.assistant.HandleIncomingMessage(ctx, msg.RoomID, msg.SenderID, msg.SenderName, msg.Body)
	a.matrix.SetTyping(ctx, msg.RoomID, false, 0)

	if err := a.matrix.SendRoom(ctx, msg.RoomID, reply); err != nil {
		a.logger.Error("app: reply delivery failed", "room", msg.RoomID, "err", err)
	}
}

// shouldRespond reports whether a human message warrants a reply: always in
// the owner's DM, only when addressed by name elsewhere.
func (a *App) shouldRespond(msg matrix.Incoming) bool {
	if msg.RoomID == a.matrix.OwnerRoomID() {
		return true
	}
	return strings.Contains(strings.ToLower(msg.Body), a.botName())
}

// admitPeerMessage applies the bot-to-bot conversation rules: the peer must
// address Levi by name, and at most MaxBotConversation consecutive exchanges
// are answered. The streak resets only via the "talk to cooper" trigger.
func (a *App) admitPeerMessage(roomID, body string) bool {
	if !strings.Contains(strings.ToLower(body), a.botName()) {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.botStreak[roomID] >= a.cfg.Bot.Memory.MaxBotConversation {
		a.logger.Info("app: bot conversation cap reached, staying quiet", "room", roomID)
		return false
	}
	a.botStreak[roomID]++
	return true
}

func (a *App) resetPeerStreak(roomID string) {
	a.mu.Lock()
	a.botStreak[roomID] = 0
	a.mu.Unlock()
}

// botName is the lowercase localpart of the bot's own user ID ("@levi:hs"
// yields "levi"), used for plain-text mention checks.
func (a *App) botName() string {
	localpart := strings.TrimPrefix(a.cfg.Matrix.UserID, "@")
	if i := strings.IndexByte(localpart, ':'); i >= 0 {
		localpart = localpart[:i]
	}
	return strings.ToLower(localpart)
}

// pruneLoop removes expired long-term memories once a day.
func (a *App) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := a.memories.Prune(ctx, a.retention)
			if err != nil {
				a.logger.Warn("app: memory prune failed", "err", err)
				continue
			}
			if removed > 0 {
				a.logger.Info("app: pruned expired memories", "removed", removed)
			}
		}
	}
}

func buildEmbedder(cfg EmbeddingConfig) (memory.Embedder, error) {
	switch cfg.Strategy {
	case EmbeddingOpenAI:
		return memory.NewOpenAIEmbedder(memory.OpenAIEmbedderConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}), nil
	case EmbeddingCompletion:
		base := cfg.BaseURL
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		return memory.NewCompletionEmbedder(memory.CompletionEmbedderConfig{
			APIKey: cfg.APIKey,
			URL:    strings.TrimSuffix(base, "/") + "/chat/completions",
			Model:  cfg.Model,
		}), nil
	case EmbeddingNone, "":
		return memory.NoopEmbedder{}, nil
	default:
		return nil, fmt.Errorf("app: unknown embedding strategy %q", cfg.Strategy)
	}
}

func reminderEntries(configs []config.ReminderConfig) []reminder.Entry {
	entries := make([]reminder.Entry, 0, len(configs))
	for _, rc := range configs {
		entries = append(entries, reminder.Entry{
			Time:      rc.Time,
			Action:    reminder.Action(rc.Action),
			Message:   rc.Message,
			ChannelID: rc.ChannelID,
		})
	}
	return entries
}

func hasClockActions(configs []config.ReminderConfig) bool {
	for _, rc := range configs {
		if rc.Action != "" {
			return true
		}
	}
	return false
}
