package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/osayson/levi/common/version"
	"github.com/osayson/levi/internal/levi/observability"
)

// opsServer exposes health, status, and metrics over HTTP.
type opsServer struct {
	app *App
	srv *http.Server
}

func newOpsServer(addr string, app *App) *opsServer {
	o := &opsServer{app: app}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", o.handleHealth)
	r.Get("/status", o.handleStatus)
	r.Method(http.MethodGet, "/metrics", observability.MetricsHandler())

	o.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return o
}

// Start runs the server in the background. Failures are logged, not fatal;
// the bot works without its ops surface.
func (o *opsServer) Start() {
	go func() {
		o.app.logger.Info("ops: listening", "addr", o.srv.Addr)
		if err := o.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			o.app.logger.Warn("ops: server stopped", "err", err)
		}
	}()
}

func (o *opsServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	o.srv.Shutdown(ctx)
}

// handleHealth reports liveness, including a database ping.
func (o *opsServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := o.app.store.DB().PingContext(r.Context()); err != nil {
		http.Error(w, "database unreachable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type statusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	OwnerRoom     string `json:"owner_room"`
}

// handleStatus reports runtime information as JSON.
func (o *opsServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:        "running",
		Version:       version.Version,
		UptimeSeconds: int64(time.Since(o.app.startedAt).Seconds()),
		OwnerRoom:     o.app.matrix.OwnerRoomID(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
