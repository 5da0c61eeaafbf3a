package reminder

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

type fakeTracker struct {
	tracking    bool
	statusErr   error
	clockedIn   int
	clockedOut  int
	clockInErr  error
	clockOutErr error
}

func (f *fakeTracker) IsTracking(context.Context) (bool, error) {
	return f.tracking, f.statusErr
}

func (f *fakeTracker) ClockIn(context.Context, string) error {
	f.clockedIn++
	return f.clockInErr
}

func (f *fakeTracker) ClockOut(context.Context) error {
	f.clockedOut++
	return f.clockOutErr
}

type fakeMessenger struct {
	userMessages []string
	roomMessages map[string][]string
	sendErr      error
}

func (f *fakeMessenger) SendUser(_ context.Context, message string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.userMessages = append(f.userMessages, message)
	return nil
}

func (f *fakeMessenger) SendRoom(_ context.Context, roomID, message string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	if f.roomMessages == nil {
		f.roomMessages = map[string][]string{}
	}
	f.roomMessages[roomID] = append(f.roomMessages[roomID], message)
	return nil
}

func newTestScheduler(tracker *fakeTracker, messenger *fakeMessenger) *Scheduler {
	return NewScheduler(time.UTC, tracker, messenger, slog.New(slog.DiscardHandler), nil)
}

func TestCronSpec(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"07:45", "45 7 * * *", false},
		{"00:00", "0 0 * * *", false},
		{"23:59", "59 23 * * *", false},
		{"24:00", "", true},
		{"12:60", "", true},
		{"noon", "", true},
		{"12", "", true},
	}
	for _, tc := range cases {
		got, err := cronSpec(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("cronSpec(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("cronSpec(%q) error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("cronSpec(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSchedule_RejectsInvalidTime(t *testing.T) {
	s := newTestScheduler(&fakeTracker{}, &fakeMessenger{})
	err := s.Schedule([]Entry{
		{Time: "07:30", Message: "morning"},
		{Time: "25:00", Message: "never"},
	})
	if err == nil {
		t.Fatal("expected error for invalid entry time")
	}
}

func TestFire_PlainReminderToUser(t *testing.T) {
	m := &fakeMessenger{}
	s := newTestScheduler(&fakeTracker{}, m)

	s.fire(Entry{Time: "07:30", Message: "good morning!"})

	if len(m.userMessages) != 1 || m.userMessages[0] != "good morning!" {
		t.Errorf("user messages = %v", m.userMessages)
	}
}

func TestFire_PlainReminderToRoom(t *testing.T) {
	m := &fakeMessenger{}
	s := newTestScheduler(&fakeTracker{}, m)

	s.fire(Entry{Time: "09:00", Message: "meeting now", ChannelID: "!room:example.org"})

	if got := m.roomMessages["!room:example.org"]; len(got) != 1 || got[0] != "meeting now" {
		t.Errorf("room messages = %v", m.roomMessages)
	}
	if len(m.userMessages) != 0 {
		t.Errorf("unexpected user messages %v", m.userMessages)
	}
}

func TestFire_ClockInReminderSkippedWhileTracking(t *testing.T) {
	m := &fakeMessenger{}
	s := newTestScheduler(&fakeTracker{tracking: true}, m)

	s.fire(Entry{Time: "07:45", Action: ActionClockInReminder, Message: "clock in!"})

	if len(m.userMessages) != 0 {
		t.Errorf("reminder delivered while already tracking: %v", m.userMessages)
	}
}

func TestFire_ClockInReminderDeliveredWhenIdle(t *testing.T) {
	m := &fakeMessenger{}
	s := newTestScheduler(&fakeTracker{tracking: false}, m)

	s.fire(Entry{Time: "07:45", Action: ActionClockInReminder, Message: "clock in!"})

	if len(m.userMessages) != 1 {
		t.Errorf("user messages = %v, want the nudge", m.userMessages)
	}
}

func TestFire_AutoClockIn(t *testing.T) {
	tracker := &fakeTracker{tracking: false}
	m := &fakeMessenger{}
	s := newTestScheduler(tracker, m)

	s.fire(Entry{Time: "08:00", Action: ActionAutoClockIn, Message: "clocked you in!"})

	if tracker.clockedIn != 1 {
		t.Errorf("ClockIn called %d times, want 1", tracker.clockedIn)
	}
	if len(m.userMessages) != 1 {
		t.Errorf("confirmation not delivered: %v", m.userMessages)
	}
}

func TestFire_AutoClockInSkippedWhileTracking(t *testing.T) {
	tracker := &fakeTracker{tracking: true}
	m := &fakeMessenger{}
	s := newTestScheduler(tracker, m)

	s.fire(Entry{Time: "08:00", Action: ActionAutoClockIn, Message: "clocked you in!"})

	if tracker.clockedIn != 0 {
		t.Errorf("ClockIn called %d times while already tracking", tracker.clockedIn)
	}
	if len(m.userMessages) != 0 {
		t.Errorf("unexpected delivery %v", m.userMessages)
	}
}

func TestFire_AutoClockOut(t *testing.T) {
	tracker := &fakeTracker{tracking: true}
	m := &fakeMessenger{}
	s := newTestScheduler(tracker, m)

	s.fire(Entry{Time: "17:01", Action: ActionAutoClockOut, Message: "clocked you out!"})

	if tracker.clockedOut != 1 {
		t.Errorf("ClockOut called %d times, want 1", tracker.clockedOut)
	}
	if len(m.userMessages) != 1 {
		t.Errorf("confirmation not delivered: %v", m.userMessages)
	}
}

func TestFire_AutoClockOutSkippedWhenIdle(t *testing.T) {
	tracker := &fakeTracker{tracking: false}
	m := &fakeMessenger{}
	s := newTestScheduler(tracker, m)

	s.fire(Entry{Time: "17:01", Action: ActionAutoClockOut, Message: "clocked you out!"})

	if tracker.clockedOut != 0 {
		t.Errorf("ClockOut called %d times while idle", tracker.clockedOut)
	}
}

func TestFire_StatusErrorSkipsAction(t *testing.T) {
	tracker := &fakeTracker{statusErr: errors.New("api down")}
	m := &fakeMessenger{}
	s := newTestScheduler(tracker, m)

	s.fire(Entry{Time: "08:00", Action: ActionAutoClockIn, Message: "clocked you in!"})

	if tracker.clockedIn != 0 {
		t.Errorf("ClockIn called despite status check failure")
	}
	if len(m.userMessages) != 0 {
		t.Errorf("unexpected delivery %v", m.userMessages)
	}
}

func TestFire_ClockInFailureSuppressesConfirmation(t *testing.T) {
	tracker := &fakeTracker{clockInErr: errors.New("forbidden")}
	m := &fakeMessenger{}
	s := newTestScheduler(tracker, m)

	s.fire(Entry{Time: "08:00", Action: ActionAutoClockIn, Message: "clocked you in!"})

	if len(m.userMessages) != 0 {
		t.Errorf("confirmation delivered despite failed clock-in: %v", m.userMessages)
	}
}

func TestFire_NoTrackerSkipsActionEntries(t *testing.T) {
	m := &fakeMessenger{}
	s := NewScheduler(time.UTC, nil, m, slog.New(slog.DiscardHandler), nil)

	s.fire(Entry{Time: "08:00", Action: ActionAutoClockIn, Message: "clocked you in!"})
	s.fire(Entry{Time: "07:30", Message: "plain reminders still work"})

	if len(m.userMessages) != 1 || m.userMessages[0] != "plain reminders still work" {
		t.Errorf("user messages = %v", m.userMessages)
	}
}
