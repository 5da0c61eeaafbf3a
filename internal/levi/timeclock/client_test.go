package timeclock

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const usersPayload = `[
	{"id":"u-gone","name":"old account","status":"INACTIVE"},
	{"id":"u-1","name":"orland","status":"ACTIVE"}
]`

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(Config{
		APIKey:      "secret",
		BaseURL:     srv.URL,
		WorkspaceID: "ws-1",
		ProjectID:   "proj-1",
	}, slog.New(slog.DiscardHandler))
	c.now = func() time.Time { return time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) }
	return c
}

func TestIsTracking(t *testing.T) {
	cases := []struct {
		name    string
		entries string
		want    bool
	}{
		{"running entry", `[{"id":"e-1"}]`, true},
		{"no entries", `[]`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/workspaces/ws-1/users", func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("X-Api-Key") != "secret" {
					t.Errorf("missing api key header")
				}
				w.Write([]byte(usersPayload))
			})
			mux.HandleFunc("/workspaces/ws-1/user/u-1/time-entries", func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("in-progress") != "true" {
					t.Errorf("in-progress query = %q", r.URL.Query().Get("in-progress"))
				}
				w.Write([]byte(tc.entries))
			})

			c := newTestClient(t, mux)
			got, err := c.IsTracking(context.Background())
			if err != nil {
				t.Fatalf("IsTracking() error: %v", err)
			}
			if got != tc.want {
				t.Errorf("IsTracking() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsTracking_NoActiveUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/workspaces/ws-1/users", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"u-gone","status":"INACTIVE"}]`))
	})

	c := newTestClient(t, mux)
	if _, err := c.IsTracking(context.Background()); !errors.Is(err, ErrNoActiveUser) {
		t.Errorf("expected ErrNoActiveUser, got %v", err)
	}
}

func TestClockIn(t *testing.T) {
	var got startEntryRequest
	var method string
	mux := http.NewServeMux()
	mux.HandleFunc("/workspaces/ws-1/users", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(usersPayload))
	})
	mux.HandleFunc("/workspaces/ws-1/user/u-1/time-entries", func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	})

	c := newTestClient(t, mux)
	if err := c.ClockIn(context.Background(), ""); err != nil {
		t.Fatalf("ClockIn() error: %v", err)
	}
	if method != http.MethodPost {
		t.Errorf("method = %q, want POST", method)
	}
	if got.Description != DefaultDescription {
		t.Errorf("description = %q, want default", got.Description)
	}
	if got.ProjectID != "proj-1" || !got.Billable {
		t.Errorf("entry = %+v, want project and billable set", got)
	}
	if got.Start != "2026-03-02T08:00:00Z" {
		t.Errorf("start = %q", got.Start)
	}
}

func TestClockOut(t *testing.T) {
	var got endEntryRequest
	var method string
	mux := http.NewServeMux()
	mux.HandleFunc("/workspaces/ws-1/users", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(usersPayload))
	})
	mux.HandleFunc("/workspaces/ws-1/user/u-1/time-entries", func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
	})

	c := newTestClient(t, mux)
	if err := c.ClockOut(context.Background()); err != nil {
		t.Fatalf("ClockOut() error: %v", err)
	}
	if method != http.MethodPatch {
		t.Errorf("method = %q, want PATCH", method)
	}
	if got.End != "2026-03-02T08:00:00Z" {
		t.Errorf("end = %q", got.End)
	}
}

func TestGetJSON_RetriesTransientFailure(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/workspaces/ws-1/users", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(usersPayload))
	})
	mux.HandleFunc("/workspaces/ws-1/user/u-1/time-entries", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	c := newTestClient(t, mux)
	if _, err := c.IsTracking(context.Background()); err != nil {
		t.Fatalf("IsTracking() error after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("users endpoint called %d times, want 2", calls)
	}
}

func TestClockIn_ServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/workspaces/ws-1/users", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(usersPayload))
	})
	mux.HandleFunc("/workspaces/ws-1/user/u-1/time-entries", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	c := newTestClient(t, mux)
	if err := c.ClockIn(context.Background(), "Working"); err == nil {
		t.Fatal("expected error on 403 response")
	}
}
