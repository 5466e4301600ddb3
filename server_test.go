package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oszuidwest/zwfm-soundguard/internal/config"
	"github.com/oszuidwest/zwfm-soundguard/internal/monitor"
	"github.com/oszuidwest/zwfm-soundguard/internal/peripheral"
	"github.com/oszuidwest/zwfm-soundguard/internal/peripheral/peripheraltest"
)

func newTestServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()
	cfg := config.New(filepath.Join(t.TempDir(), "config.json"))
	if err := cfg.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	rec := &peripheraltest.Recorder{}
	clock := peripheraltest.NewClock(time.Unix(1_700_000_000, 0))
	dev := peripheral.Set{
		Pixels:  peripheraltest.NewPixels(25, rec),
		Tone:    peripheraltest.NewTone(rec, clock),
		Samples: &peripheraltest.Source{},
		Clock:   clock,
	}
	s := NewServer(cfg, monitor.New(cfg, dev), config.DriverSerial)
	t.Cleanup(s.version.Stop)
	return s, cfg
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	s.SetupRoutes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d while stopped", rr.Code, http.StatusServiceUnavailable)
	}
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["state"] != "stopped" {
		t.Errorf("state = %v, want stopped", body["state"])
	}
	update, ok := body["update"].(map[string]any)
	if !ok || update["checked"] != "never" || update["available"] != false {
		t.Errorf("update = %v, want an unchecked notice", body["update"])
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	s, cfg := newTestServer(t)

	tests := []struct {
		name string
		key  string
		want int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusUnauthorized},
		{"valid", cfg.APIKey(), http.StatusTeapot},
	}

	handler := s.apiKeyAuth(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", http.NoBody)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rr := httptest.NewRecorder()
			handler(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestConsoleWebSocket(t *testing.T) {
	s, cfg := newTestServer(t)
	srv := httptest.NewServer(s.SetupRoutes())
	defer srv.Close()

	header := http.Header{}
	header.Set("X-API-Key", cfg.APIKey())
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatal(err)
	}

	var first map[string]any
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if first["type"] != "status" || first["driver"] != config.DriverSerial {
		t.Errorf("first message = %v, want serial status", first)
	}
	if mon, ok := first["monitor"].(map[string]any); !ok || mon["update"] == nil {
		t.Errorf("status monitor = %v, want a release notice", first["monitor"])
	}

	if err := conn.WriteJSON(map[string]any{"type": "config/get"}); err != nil {
		t.Fatal(err)
	}
	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if msg["type"] != "config" {
			continue
		}
		raw, err := json.Marshal(msg["config"])
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(raw), cfg.APIKey()) {
			t.Error("config response leaks the API key")
		}
		return
	}
}

func TestConsoleRejectsMissingKey(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.SetupRoutes())
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err == nil {
		t.Fatal("Dial() succeeded without an API key")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v, want 401", resp)
	}
}
