// Package statusd serves the local read-only status endpoints for a running
// bridge: liveness, a JSON connection snapshot and Prometheus metrics.
package statusd

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/studiobridge/studiobridge/pkg/bridge"
)

// Server exposes bridge state over a local HTTP listener.
type Server struct {
	manager *bridge.Manager
	logger  *slog.Logger
	http    *http.Server
}

// New builds a status server bound to addr.
func New(addr string, manager *bridge.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		manager: manager,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())

	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until Shutdown. It blocks; run it in a goroutine.
func (s *Server) Start() error {
	s.logger.Info("status server listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// statusPayload is the JSON shape of GET /status.
type statusPayload struct {
	State         string `json:"state"`
	Project       string `json:"project,omitempty"`
	PeerVersion   string `json:"peerVersion,omitempty"`
	UptimeSeconds int64  `json:"uptimeSeconds,omitempty"`
	Pending       int    `json:"pending"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.manager.Snapshot()

	payload := statusPayload{
		State:   snap.State.String(),
		Pending: snap.Pending,
	}
	if snap.State == bridge.StateConnected {
		payload.Project = snap.Peer.Project
		payload.PeerVersion = snap.Peer.Version
		payload.UptimeSeconds = int64(time.Since(snap.ConnectedAt).Seconds())
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("status encode error", "error", err)
	}
}
