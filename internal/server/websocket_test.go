package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "monitor.example.com", true},
		{"http://localhost:3000", "monitor.example.com", true},
		{"http://monitor.example.com", "monitor.example.com:8080", true},
		{"http://192.168.1.20", "monitor.example.com", true},
		{"http://127.0.0.1:9000", "monitor.example.com", true},
		{"http://evil.example.org", "monitor.example.com", false},
		{"http://8.8.8.8", "monitor.example.com", false},
		{"://bad", "monitor.example.com", false},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.Host = tt.host
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := checkOrigin(r); got != tt.want {
			t.Errorf("checkOrigin(%q, %q) = %v, want %v", tt.origin, tt.host, got, tt.want)
		}
	}
}

func TestClientRoundTrip(t *testing.T) {
	ids := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := Upgrade(w, r)
		if err != nil {
			t.Errorf("Upgrade() error = %v", err)
			return
		}
		defer func() { _ = c.Close() }()
		ids <- c.ID

		var cmd WSCommand
		if err := c.ReadJSON(&cmd); err != nil {
			t.Errorf("ReadJSON() error = %v", err)
			return
		}
		if err := c.WriteJSON(map[string]string{"echo": cmd.Type}); err != nil {
			t.Errorf("WriteJSON() error = %v", err)
		}
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteJSON(WSCommand{Type: "status/get"}); err != nil {
		t.Fatal(err)
	}
	var reply map[string]string
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatal(err)
	}
	if reply["echo"] != "status/get" {
		t.Errorf("reply = %v", reply)
	}
	if id := <-ids; len(id) != 36 {
		t.Errorf("connection id %q is not a uuid", id)
	}
}
