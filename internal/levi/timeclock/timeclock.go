// Package timeclock integrates with a Clockify-compatible time tracking API.
// The scheduler uses it for clock-in and clock-out reminders and automations.
package timeclock

import (
	"context"
	"errors"
)

// ErrNoActiveUser is returned when the workspace has no user in ACTIVE status.
var ErrNoActiveUser = errors.New("timeclock: no active user in workspace")

// DefaultDescription labels time entries started without an explicit one.
const DefaultDescription = "Working"

// Tracker abstracts the time tracking service so the reminder scheduler can
// be tested without a live workspace.
type Tracker interface {
	// IsTracking reports whether a time entry is currently running.
	IsTracking(ctx context.Context) (bool, error)
	// ClockIn starts a new time entry with the given description.
	ClockIn(ctx context.Context, description string) error
	// ClockOut ends the currently running time entry.
	ClockOut(ctx context.Context) error
}
