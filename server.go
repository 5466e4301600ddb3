package main

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/oszuidwest/zwfm-soundguard/internal/config"
	"github.com/oszuidwest/zwfm-soundguard/internal/monitor"
	"github.com/oszuidwest/zwfm-soundguard/internal/server"
	"github.com/oszuidwest/zwfm-soundguard/internal/types"
)

// Server is an HTTP server that exposes the operator console.
type Server struct {
	config   *config.Config
	monitor  *monitor.Monitor
	commands *server.CommandHandler
	version  *VersionChecker
	driver   string
}

// NewServer returns a new Server for the given config and monitor.
func NewServer(cfg *config.Config, mon *monitor.Monitor, driver string) *Server {
	return &Server{
		config:   cfg,
		monitor:  mon,
		commands: server.NewCommandHandler(cfg, mon),
		version:  NewVersionChecker(),
		driver:   driver,
	}
}

// handleWebSocket handles bidirectional WebSocket communication for real-time updates.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	client, err := server.Upgrade(w, r)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	// Only the writer goroutine writes to the connection.
	send := make(chan any, 16)
	done := make(chan struct{})
	statusUpdate := make(chan struct{}, 1)

	go s.runWebSocketWriter(client, send)
	go s.runWebSocketReader(client, send, done, statusUpdate)

	s.runWebSocketEventLoop(send, done, statusUpdate)
}

// runWebSocketWriter writes messages from the send channel and keeps the
// connection alive with pings.
func (s *Server) runWebSocketWriter(client *server.Client, send <-chan any) {
	ping := time.NewTicker(server.PingPeriod)
	defer ping.Stop()
	defer func() {
		if err := client.Close(); err != nil {
			slog.Debug("WebSocket close error", "conn", client.ID, "error", err)
		}
	}()

	for {
		select {
		case msg, ok := <-send:
			if !ok {
				return
			}
			if err := client.WriteJSON(msg); err != nil {
				slog.Debug("WebSocket write failed", "conn", client.ID, "error", err)
				return
			}
		case <-ping.C:
			if err := client.Ping(); err != nil {
				return
			}
		}
	}
}

// runWebSocketReader reads commands from the connection and dispatches them.
func (s *Server) runWebSocketReader(client *server.Client, send chan<- any, done, statusUpdate chan<- struct{}) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in WebSocket reader", "conn", client.ID, "panic", r)
		}
		close(done)
	}()

	for {
		var cmd server.WSCommand
		if err := client.ReadJSON(&cmd); err != nil {
			return
		}
		s.commands.Handle(cmd, send, func() {
			select {
			case statusUpdate <- struct{}{}:
			default:
			}
		})
	}
}

// runWebSocketEventLoop handles periodic status and level updates.
func (s *Server) runWebSocketEventLoop(send chan any, done, statusUpdate <-chan struct{}) {
	levelsTicker := time.NewTicker(100 * time.Millisecond)  // 10 fps for meters
	statusTicker := time.NewTicker(3000 * time.Millisecond) // Status updates every 3s
	defer levelsTicker.Stop()
	defer statusTicker.Stop()
	defer close(send)

	// trySend attempts to send a message, returning false if done is closed
	trySend := func(msg any) bool {
		select {
		case send <- msg:
			return true
		case <-done:
			return false
		}
	}

	if !trySend(s.buildWSStatus()) {
		return
	}

	for {
		select {
		case <-done:
			return
		case <-statusUpdate:
			if !trySend(s.buildWSStatus()) {
				return
			}
		case <-levelsTicker.C:
			if !trySend(types.WSLevelsResponse{Type: "levels", Levels: s.monitor.Levels()}) {
				return
			}
		case <-statusTicker.C:
			if !trySend(s.buildWSStatus()) {
				return
			}
		}
	}
}

// buildWSStatus returns the current WebSocket status response.
func (s *Server) buildWSStatus() types.WSStatusResponse {
	return types.WSStatusResponse{
		Type:    "status",
		Monitor: s.monitorStatus(),
		Driver:  s.driver,
		Version: s.version.Info(),
	}
}

// monitorStatus returns the detector status with the release check outcome.
func (s *Server) monitorStatus() types.MonitorStatus {
	status := s.monitor.Status()
	status.Update = s.version.Notice(time.Now())
	return status
}

// handleHealth reports liveness and the detector state.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := s.monitorStatus()
	code := http.StatusOK
	if status.State == types.MonitorStopped {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"state":   status.State,
		"version": normalizeVersion(Version),
		"update":  status.Update,
	}); err != nil {
		slog.Debug("health response write failed", "error", err)
	}
}

// SetupRoutes returns an [http.Handler] configured with all application routes.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/ws", s.apiKeyAuth(s.handleWebSocket))

	return securityHeaders(mux)
}

// securityHeaders returns middleware that wraps handlers with security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// apiKeyAuth returns middleware for API key authentication.
func (s *Server) apiKeyAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiKey := s.config.APIKey()
		if apiKey == "" {
			http.Error(w, "API key not configured", http.StatusServiceUnavailable)
			return
		}

		providedKey := r.Header.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.config.Snapshot().WebPort)
	slog.Info("starting web server", "addr", addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	return srv
}
