package server

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Connection timing for console clients.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	PingPeriod = pongWait * 9 / 10
	maxMessage = 64 * 1024
)

var upgrader = websocket.Upgrader{
	CheckOrigin: checkOrigin,
}

// checkOrigin reports whether the WebSocket connection origin is allowed.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// Same-origin requests and non-browser clients omit the Origin header
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		slog.Warn("rejected WebSocket connection: invalid origin URL", "origin", origin)
		return false
	}

	host := u.Hostname()
	if host == "localhost" {
		return true
	}

	requestHost := r.Host
	if h, _, err := net.SplitHostPort(requestHost); err == nil {
		requestHost = h
	}
	if host == requestHost {
		return true
	}

	ip := net.ParseIP(host)
	if ip != nil && (ip.IsLoopback() || ip.IsPrivate()) {
		return true
	}

	slog.Warn("rejected WebSocket connection", "origin", origin, "host", host)
	return false
}

// Client is an upgraded console connection. WriteJSON and Ping must be called
// from a single writer goroutine.
type Client struct {
	ID   string
	conn *websocket.Conn
}

// Upgrade upgrades an HTTP connection to a console client.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	conn.SetReadLimit(maxMessage)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		_ = conn.Close()
		return nil, err
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c := &Client{ID: uuid.NewString(), conn: conn}
	slog.Info("console connected", "conn", c.ID, "remote", r.RemoteAddr)
	return c, nil
}

// ReadJSON reads the next command.
func (c *Client) ReadJSON(v any) error {
	if err := c.conn.ReadJSON(v); err != nil {
		return err
	}
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// WriteJSON writes one message.
func (c *Client) WriteJSON(v any) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

// Ping sends a keepalive ping.
func (c *Client) Ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close closes the connection.
func (c *Client) Close() error {
	slog.Info("console disconnected", "conn", c.ID)
	return c.conn.Close()
}
