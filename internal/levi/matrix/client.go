// Package matrix is Levi's transport: it syncs with the homeserver, feeds
// incoming messages to the conversation engine, and delivers replies and
// reminders.
package matrix

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/osayson/levi/internal/levi/memory"
)

// Config holds Matrix client settings.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// OwnerID is the owner's Matrix user ID, used to resolve the DM room.
	OwnerID string
	// OwnerRoomID pins the owner's DM room. When empty, a direct room is
	// created (or reused) on startup.
	OwnerRoomID string
	// AllowedRooms restricts which rooms Levi listens in. Empty means all
	// joined rooms.
	AllowedRooms []string
	// DB persists the sync token across restarts. When nil, history replays
	// on every restart.
	DB *sql.DB
}

// Incoming is one message received from the homeserver.
type Incoming struct {
	RoomID     string
	EventID    string
	SenderID   string
	SenderName string
	Body       string
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg Incoming)

// Client wraps the mautrix client.
type Client struct {
	client  *mautrix.Client
	cfg     Config
	logger  *slog.Logger
	stopCh  chan struct{}
	handler MessageHandler

	ownerRoom id.RoomID

	mu    sync.Mutex
	names map[id.UserID]string // display name cache
}

// New creates a Matrix client. It does not connect until Start is called.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	cli, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("matrix: create client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		client:    cli,
		cfg:       cfg,
		logger:    logger,
		stopCh:    make(chan struct{}),
		ownerRoom: id.RoomID(cfg.OwnerRoomID),
		names:     make(map[id.UserID]string),
	}

	if cfg.DB != nil {
		cli.Store = newDBSyncStore(cfg.DB)
	} else {
		logger.Warn("matrix: no DB configured, sync token is in-memory only")
	}

	return c, nil
}

// Start resolves the owner DM room, registers the message handler, and begins
// syncing in the background. The sync loop reconnects with exponential
// backoff; a transient homeserver error must not leave the bot deaf.
func (c *Client) Start(ctx context.Context, handler MessageHandler) error {
	c.handler = handler

	if err := c.ensureOwnerRoom(ctx); err != nil {
		return err
	}
	for _, roomID := range c.cfg.AllowedRooms {
		if err := c.joinRoom(ctx, id.RoomID(roomID)); err != nil {
			return fmt.Errorf("matrix: join room %s: %w", roomID, err)
		}
	}

	syncer := c.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, c.handleMessage)

	go func() {
		const (
			backoffMin = 2 * time.Second
			backoffMax = 5 * time.Minute
		)
		backoff := backoffMin
		for {
			backoff = backoffMin
			if err := c.client.Sync(); err != nil {
				select {
				case <-c.stopCh:
					return
				default:
				}
				c.logger.Error("matrix: sync stopped, reconnecting", "err", err, "backoff", backoff)
				select {
				case <-c.stopCh:
					return
				case <-time.After(backoff):
				}
				backoff *= 2
				if backoff > backoffMax {
					backoff = backoffMax
				}
				continue
			}
			return
		}
	}()

	return nil
}

// Stop stops the sync loop.
func (c *Client) Stop() {
	close(c.stopCh)
	c.client.StopSync()
}

// OwnerRoomID returns the owner's DM room, valid after Start.
func (c *Client) OwnerRoomID() string {
	return c.ownerRoom.String()
}

// SendRoom sends a text message to a room.
func (c *Client) SendRoom(ctx context.Context, roomID, message string) error {
	if _, err := c.client.SendText(ctx, id.RoomID(roomID), message); err != nil {
		return fmt.Errorf("matrix: send to %s: %w", roomID, err)
	}
	return nil
}

// SendUser sends a text message to the owner's DM room.
func (c *Client) SendUser(ctx context.Context, message string) error {
	if c.ownerRoom == "" {
		return errors.New("matrix: owner room not resolved")
	}
	return c.SendRoom(ctx, c.ownerRoom.String(), message)
}

// SetTyping toggles the typing indicator in a room. Failures are logged and
// swallowed; a missing indicator is cosmetic.
func (c *Client) SetTyping(ctx context.Context, roomID string, typing bool, timeout time.Duration) {
	if _, err := c.client.UserTyping(ctx, id.RoomID(roomID), typing, timeout); err != nil {
		c.logger.Warn("matrix: set typing failed", "room", roomID, "err", err)
	}
}

// DisplayName resolves a user's display name, caching results. Falls back to
// the raw user ID when the profile lookup fails.
func (c *Client) DisplayName(ctx context.Context, userID string) string {
	uid := id.UserID(userID)

	c.mu.Lock()
	if name, ok := c.names[uid]; ok {
		c.mu.Unlock()
		return name
	}
	c.mu.Unlock()

	profile, err := c.client.GetProfile(ctx, uid)
	if err != nil || profile.DisplayName == "" {
		return userID
	}

	c.mu.Lock()
	c.names[uid] = profile.DisplayName
	c.mu.Unlock()
	return profile.DisplayName
}

// RecentTurns fetches the newest messages from a room in ascending order, for
// seeding short-term history on startup.
func (c *Client) RecentTurns(ctx context.Context, roomID string, limit int) ([]memory.Turn, error) {
	resp, err := c.client.Messages(ctx, id.RoomID(roomID), "", "", mautrix.DirectionBackward, nil, limit)
	if err != nil {
		return nil, fmt.Errorf("matrix: fetch messages for %s: %w", roomID, err)
	}

	self := id.UserID(c.cfg.UserID)
	turns := make([]memory.Turn, 0, len(resp.Chunk))
	for _, evt := range resp.Chunk {
		if evt.Type != event.EventMessage {
			continue
		}
		if evt.Content.Parsed == nil {
			if err := evt.Content.ParseRaw(evt.Type); err != nil {
				continue
			}
		}
		msg := evt.Content.AsMessage()
		if msg == nil || msg.MsgType != event.MsgText {
			continue
		}

		turn := memory.Turn{
			IsBot:     evt.Sender == self,
			Content:   msg.Body,
			Timestamp: time.UnixMilli(evt.Timestamp),
		}
		if !turn.IsBot {
			turn.Username = c.DisplayName(ctx, evt.Sender.String())
		}
		turns = append(turns, turn)
	}

	// /messages returns newest first.
	sort.SliceStable(turns, func(i, j int) bool {
		return turns[i].Timestamp.Before(turns[j].Timestamp)
	})
	return turns, nil
}

// ensureOwnerRoom resolves the owner's DM room, creating a direct room when
// none is configured.
func (c *Client) ensureOwnerRoom(ctx context.Context) error {
	if c.ownerRoom != "" {
		return c.joinRoom(ctx, c.ownerRoom)
	}
	if c.cfg.OwnerID == "" {
		return errors.New("matrix: neither owner room nor owner ID configured")
	}

	resp, err := c.client.CreateRoom(ctx, &mautrix.ReqCreateRoom{
		Invite:   []id.UserID{id.UserID(c.cfg.OwnerID)},
		IsDirect: true,
		Preset:   "trusted_private_chat",
	})
	if err != nil {
		return fmt.Errorf("matrix: create owner DM: %w", err)
	}
	c.ownerRoom = resp.RoomID
	c.logger.Info("matrix: created owner DM room", "room", c.ownerRoom)
	return nil
}

func (c *Client) allowed(roomID id.RoomID) bool {
	if len(c.cfg.AllowedRooms) == 0 {
		return true
	}
	if roomID == c.ownerRoom {
		return true
	}
	for _, allowed := range c.cfg.AllowedRooms {
		if allowed == roomID.String() {
			return true
		}
	}
	return false
}

func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	if evt.Sender == id.UserID(c.cfg.UserID) {
		return
	}
	msg := evt.Content.AsMessage()
	if msg == nil || msg.MsgType != event.MsgText {
		return
	}
	if !c.allowed(evt.RoomID) {
		return
	}
	if c.handler == nil {
		return
	}

	c.handler(ctx, Incoming{
		RoomID:     evt.RoomID.String(),
		EventID:    evt.ID.String(),
		SenderID:   evt.Sender.String(),
		SenderName: c.DisplayName(ctx, evt.Sender.String()),
		Body:       msg.Body,
	})
}

func (c *Client) joinRoom(ctx context.Context, roomID id.RoomID) error {
	if _, err := c.client.JoinRoomByID(ctx, roomID); err != nil {
		// M_FORBIDDEN usually means the bot is already a member.
		if errors.Is(err, mautrix.MForbidden) {
			c.logger.Warn("matrix: join forbidden, assuming membership", "room", roomID)
			return nil
		}
		return err
	}
	return nil
}
