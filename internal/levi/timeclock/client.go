package timeclock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/osayson/levi/common/retry"
)

// DefaultBaseURL points at the public Clockify REST API.
const DefaultBaseURL = "https://api.clockify.me/api/v1"

// Config holds the settings for the Clockify client.
type Config struct {
	// APIKey is sent as the X-Api-Key header on every request.
	APIKey string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
	// WorkspaceID is the Clockify workspace the bot operates in.
	WorkspaceID string
	// ProjectID is the project new time entries are booked against.
	ProjectID string
	// Timeout bounds each HTTP request. Defaults to 15s.
	Timeout time.Duration
}

// Client talks to the Clockify REST API. Read calls retry on transient
// failures; writes are single-shot so a flaky network cannot double-book
// time entries.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
	now    func() time.Time
}

var _ Tracker = (*Client)(nil)

// NewClient creates a Clockify client. A nil logger falls back to
// slog.Default().
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		now:    time.Now,
	}
}

type workspaceUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type timeEntry struct {
	ID string `json:"id"`
}

type startEntryRequest struct {
	Start       string `json:"start"`
	ProjectID   string `json:"projectId,omitempty"`
	Billable    bool   `json:"billable"`
	Description string `json:"description"`
}

type endEntryRequest struct {
	End string `json:"end"`
}

// activeUser returns the workspace user with ACTIVE status.
func (c *Client) activeUser(ctx context.Context) (workspaceUser, error) {
	var users []workspaceUser
	url := fmt.Sprintf("%s/workspaces/%s/users", c.cfg.BaseURL, c.cfg.WorkspaceID)
	if err := c.getJSON(ctx, url, &users); err != nil {
		return workspaceUser{}, fmt.Errorf("fetch workspace users: %w", err)
	}
	for _, u := range users {
		if u.Status == "ACTIVE" {
			return u, nil
		}
	}
	return workspaceUser{}, ErrNoActiveUser
}

// IsTracking reports whether the active user has an in-progress time entry.
func (c *Client) IsTracking(ctx context.Context) (bool, error) {
	user, err := c.activeUser(ctx)
	if err != nil {
		return false, err
	}

	var entries []timeEntry
	url := fmt.Sprintf("%s/workspaces/%s/user/%s/time-entries?in-progress=true",
		c.cfg.BaseURL, c.cfg.WorkspaceID, user.ID)
	if err := c.getJSON(ctx, url, &entries); err != nil {
		return false, fmt.Errorf("fetch in-progress entries: %w", err)
	}
	return len(entries) > 0, nil
}

// ClockIn starts a new time entry for the active user. An empty description
// falls back to DefaultDescription.
func (c *Client) ClockIn(ctx context.Context, description string) error {
	if description == "" {
		description = DefaultDescription
	}
	user, err := c.activeUser(ctx)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/workspaces/%s/user/%s/time-entries",
		c.cfg.BaseURL, c.cfg.WorkspaceID, user.ID)
	body := startEntryRequest{
		Start:       c.now().UTC().Format(time.RFC3339),
		ProjectID:   c.cfg.ProjectID,
		Billable:    true,
		Description: description,
	}
	if err := c.writeJSON(ctx, http.MethodPost, url, body); err != nil {
		return fmt.Errorf("start time entry: %w", err)
	}
	c.logger.Info("timeclock: clocked in", "user", user.Name, "description", description)
	return nil
}

// ClockOut ends the active user's running time entry.
func (c *Client) ClockOut(ctx context.Context) error {
	user, err := c.activeUser(ctx)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/workspaces/%s/user/%s/time-entries",
		c.cfg.BaseURL, c.cfg.WorkspaceID, user.ID)
	body := endEntryRequest{End: c.now().UTC().Format(time.RFC3339)}
	if err := c.writeJSON(ctx, http.MethodPatch, url, body); err != nil {
		return fmt.Errorf("end time entry: %w", err)
	}
	c.logger.Info("timeclock: clocked out", "user", user.Name)
	return nil
}

// getJSON issues a GET with retries and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	return retry.Do(ctx, retry.Config{
		MaxAttempts:  3,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     2 * time.Second,
	}, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-Api-Key", c.cfg.APIKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, data)
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}

// writeJSON issues a single non-idempotent request with a JSON body.
func (c *Client) writeJSON(ctx context.Context, method, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, data)
	}
	return nil
}
