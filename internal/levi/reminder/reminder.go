// Package reminder schedules daily reminder messages and time-tracking
// automations. Entries fire at a wall-clock time every day; entries with an
// action consult the time tracker first so the bot never clocks in twice or
// clocks out an idle timer.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/osayson/levi/internal/levi/observability"
	"github.com/osayson/levi/internal/levi/timeclock"
)

// Action names the time-tracking behaviour attached to a reminder entry.
type Action string

const (
	// ActionNone marks a plain reminder with no time-tracking side effect.
	ActionNone Action = ""
	// ActionClockInReminder nudges the owner to clock in, unless already tracking.
	ActionClockInReminder Action = "clock_in_reminder"
	// ActionAutoClockIn starts a time entry on the owner's behalf.
	ActionAutoClockIn Action = "auto_clock_in"
	// ActionClockOutReminder nudges the owner to clock out, if tracking.
	ActionClockOutReminder Action = "clock_out_reminder"
	// ActionAutoClockOut ends the running time entry on the owner's behalf.
	ActionAutoClockOut Action = "auto_clock_out"
)

// Entry is one scheduled reminder.
type Entry struct {
	// Time is the daily firing time in 24h "HH:MM" form.
	Time string
	// Action is the optional time-tracking behaviour.
	Action Action
	// Message is the text delivered when the entry fires.
	Message string
	// ChannelID targets a specific room. Empty means the owner's DM.
	ChannelID string
}

// Messenger delivers reminder text. The Matrix client implements it.
type Messenger interface {
	// SendUser delivers a message to the owner's direct channel.
	SendUser(ctx context.Context, message string) error
	// SendRoom delivers a message to a specific room.
	SendRoom(ctx context.Context, roomID, message string) error
}

// Scheduler runs reminder entries on a daily cron schedule.
type Scheduler struct {
	cron      *cron.Cron
	tracker   timeclock.Tracker
	messenger Messenger
	logger    *slog.Logger
	metrics   *observability.Metrics

	// fireTimeout bounds the work done by a single firing.
	fireTimeout time.Duration
}

// NewScheduler creates a Scheduler firing in the given location. tracker may
// be nil when time tracking is not configured; action entries then degrade to
// plain reminders being skipped. metrics may be nil.
func NewScheduler(loc *time.Location, tracker timeclock.Tracker, messenger Messenger, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:        cron.New(cron.WithLocation(loc)),
		tracker:     tracker,
		messenger:   messenger,
		logger:      logger,
		metrics:     metrics,
		fireTimeout: 30 * time.Second,
	}
}

// Schedule registers all entries. It fails on the first invalid time and
// registers nothing further, so a bad config is caught at startup.
func (s *Scheduler) Schedule(entries []Entry) error {
	for _, e := range entries {
		spec, err := cronSpec(e.Time)
		if err != nil {
			return fmt.Errorf("reminder at %q: %w", e.Time, err)
		}
		entry := e
		if _, err := s.cron.AddFunc(spec, func() { s.fire(entry) }); err != nil {
			return fmt.Errorf("schedule reminder at %q: %w", e.Time, err)
		}
	}
	s.logger.Info("reminder: entries scheduled", "count", len(entries))
	return nil
}

// Start begins firing scheduled entries.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for any running firing to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// fire executes one entry: the tracking-status guard, the time-tracking
// action, then delivery. Failures are logged, never fatal.
func (s *Scheduler) fire(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), s.fireTimeout)
	defer cancel()

	if e.Action != ActionNone {
		if !s.runAction(ctx, e.Action) {
			return
		}
	}

	if err := s.deliver(ctx, e); err != nil {
		s.logger.Warn("reminder: delivery failed",
			"time", e.Time,
			"action", string(e.Action),
			"err", err,
		)
		return
	}
	if s.metrics != nil {
		s.metrics.RemindersFired.WithLabelValues(actionLabel(e.Action)).Inc()
	}
}

// runAction applies the tracking-status guard and performs the entry's
// time-tracking side effect. It reports whether the reminder message should
// still be delivered.
func (s *Scheduler) runAction(ctx context.Context, action Action) bool {
	if s.tracker == nil {
		s.logger.Warn("reminder: action entry fired without a tracker", "action", string(action))
		return false
	}

	tracking, err := s.tracker.IsTracking(ctx)
	if err != nil {
		s.logger.Warn("reminder: tracking status check failed, skipping action",
			"action", string(action),
			"err", err,
		)
		return false
	}

	switch action {
	case ActionClockInReminder:
		// Nudge only when not already tracking.
		return !tracking
	case ActionClockOutReminder:
		// Nudge only when a timer is running.
		return tracking
	case ActionAutoClockIn:
		if tracking {
			return false
		}
		if err := s.tracker.ClockIn(ctx, ""); err != nil {
			s.logger.Warn("reminder: auto clock-in failed", "err", err)
			return false
		}
		return true
	case ActionAutoClockOut:
		if !tracking {
			return false
		}
		if err := s.tracker.ClockOut(ctx); err != nil {
			s.logger.Warn("reminder: auto clock-out failed", "err", err)
			return false
		}
		return true
	default:
		s.logger.Warn("reminder: unknown action", "action", string(action))
		return false
	}
}

func (s *Scheduler) deliver(ctx context.Context, e Entry) error {
	if e.ChannelID != "" {
		return s.messenger.SendRoom(ctx, e.ChannelID, e.Message)
	}
	return s.messenger.SendUser(ctx, e.Message)
}

// cronSpec converts a daily "HH:MM" time to a five-field cron spec.
func cronSpec(hhmm string) (string, error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, want HH:MM", hhmm)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", hhmm)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", hhmm)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

func actionLabel(a Action) string {
	if a == ActionNone {
		return "none"
	}
	return string(a)
}
