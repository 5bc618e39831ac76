package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RijinRaju/healthcare-translation-backend/internal/config"
	"github.com/RijinRaju/healthcare-translation-backend/internal/relay"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleConnTimeout   = 60 * time.Second
)

// Server exposes the transcription WebSocket endpoint plus health and
// metrics surfaces.
type Server struct {
	httpServer *http.Server
	manager    *relay.Manager
	upgrader   websocket.Upgrader
	startTime  time.Time
}

func New(cfg *config.Config, manager *relay.Manager) *Server {
	s := &Server{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 8 * 1024,
			// Browser clients connect from arbitrary origins; auth is
			// handled upstream of this service.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/transcribe", s.handleTranscribe)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleConnTimeout,
	}
	return s
}

// Start blocks serving HTTP until Stop is called or the listener fails.
func (s *Server) Start() error {
	slog.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes the listener, then drains live sessions within ctx.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Warn("http server shutdown", "error", err)
	}
	return s.manager.Shutdown(ctx)
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	s.manager.HandleConnection(conn)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":          "ok",
		"active_sessions": s.manager.ActiveCount(),
		"uptime_seconds":  int64(time.Since(s.startTime).Seconds()),
	})
}
