package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/osayson/levi/common/environment"
	"github.com/osayson/levi/common/version"
	"github.com/osayson/levi/internal/levi/app"
	"github.com/osayson/levi/internal/levi/config"
	"github.com/osayson/levi/internal/levi/llm"
	"github.com/osayson/levi/internal/levi/matrix"
	"github.com/osayson/levi/internal/levi/timeclock"
)

func main() {
	// A missing .env is fine; production deployments use real env vars.
	godotenv.Load()

	logger := newLogger()
	slog.SetDefault(logger)
	logger.Info("starting levi", "version", version.Info())

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	levi, err := app.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer levi.Stop()

	if err := levi.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(environment.StringOr("LOG_LEVEL", "info")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig assembles the application config from the YAML file and
// environment variables. The YAML file carries behaviour (personas, memory
// tuning, reminders); the environment carries credentials and endpoints.
func loadConfig() (*app.Config, error) {
	botCfg, err := config.Load(environment.StringOr("LEVI_CONFIG", "./levi.yaml"))
	if err != nil {
		return nil, err
	}

	homeserver, err := environment.RequiredString("MATRIX_HOMESERVER")
	if err != nil {
		return nil, err
	}
	userID, err := environment.RequiredString("MATRIX_USER_ID")
	if err != nil {
		return nil, err
	}
	accessToken, err := environment.RequiredString("MATRIX_ACCESS_TOKEN")
	if err != nil {
		return nil, err
	}
	ownerID := environment.StringOr("MATRIX_OWNER_ID", "")
	ownerRoom := environment.StringOr("MATRIX_OWNER_ROOM", "")
	if ownerID == "" && ownerRoom == "" {
		return nil, fmt.Errorf("either MATRIX_OWNER_ID or MATRIX_OWNER_ROOM must be set")
	}

	llmKey, err := environment.RequiredString("LLM_API_KEY")
	if err != nil {
		return nil, err
	}

	return &app.Config{
		DatabasePath: environment.StringOr("DATABASE_PATH", "./levi.db"),
		Bot:          botCfg,
		Matrix: matrix.Config{
			Homeserver:   homeserver,
			UserID:       userID,
			AccessToken:  accessToken,
			OwnerID:      ownerID,
			OwnerRoomID:  ownerRoom,
			AllowedRooms: environment.StringSliceOr("MATRIX_ALLOWED_ROOMS", nil),
		},
		LLM: llm.Config{
			APIKey:    llmKey,
			BaseURL:   environment.StringOr("LLM_BASE_URL", ""),
			Model:     environment.StringOr("LLM_MODEL", ""),
			MaxTokens: environment.IntOr("LLM_MAX_TOKENS", 0),
			Timeout:   environment.DurationOr("LLM_TIMEOUT", 30*time.Second),
		},
		Embedding: app.EmbeddingConfig{
			Strategy: environment.StringOr("EMBEDDING_STRATEGY", app.EmbeddingNone),
			APIKey:   environment.StringOr("EMBEDDING_API_KEY", llmKey),
			BaseURL:  environment.StringOr("EMBEDDING_BASE_URL", ""),
			Model:    environment.StringOr("EMBEDDING_MODEL", ""),
		},
		Clockify: timeclock.Config{
			APIKey:      environment.StringOr("CLOCKIFY_API_KEY", ""),
			WorkspaceID: environment.StringOr("CLOCKIFY_WORKSPACE_ID", ""),
			ProjectID:   environment.StringOr("CLOCKIFY_PROJECT_ID", ""),
		},
		HTTPAddr: environment.StringOr("HTTP_ADDR", ""),
		Timezone: environment.StringOr("LEVI_TIMEZONE", ""),
	}, nil
}
