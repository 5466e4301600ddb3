package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/oszuidwest/zwfm-soundguard/internal/config"
	"github.com/oszuidwest/zwfm-soundguard/internal/detector"
	"github.com/oszuidwest/zwfm-soundguard/internal/types"
)

// WSCommand is a command received from a WebSocket client.
type WSCommand struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Controller accepts operator commands for the detector session.
type Controller interface {
	Submit(cmd detector.Command) error
	Start(ctx context.Context) error
}

// CommandHandler processes WebSocket commands.
type CommandHandler struct {
	cfg     *config.Config
	monitor Controller
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(cfg *config.Config, monitor Controller) *CommandHandler {
	return &CommandHandler{
		cfg:     cfg,
		monitor: monitor,
	}
}

// Handle processes a WebSocket command and performs the requested action.
// Commands use slash-style format: namespace/action (e.g., "monitor/pause", "alarm/test")
func (h *CommandHandler) Handle(cmd WSCommand, send chan<- any, triggerStatusUpdate func()) {
	namespace, action, _ := strings.Cut(cmd.Type, "/")

	switch namespace {
	case "monitor":
		h.handleMonitor(action, cmd, send)
	case "alarm":
		h.handleAlarm(action, cmd, send)
	case "config":
		h.handleConfig(action, send)
	case "status":
		h.handleStatus(action)
	default:
		slog.Warn("unknown WebSocket command", "type", cmd.Type)
	}

	triggerStatusUpdate()
}

// --- Namespace handlers ---

// handleMonitor routes monitor/* commands
func (h *CommandHandler) handleMonitor(action string, cmd WSCommand, send chan<- any) {
	var typ detector.CommandType
	switch action {
	case "pause":
		typ = detector.CommandPause
	case "resume":
		typ = detector.CommandResume
	case "toggle":
		typ = detector.CommandToggle
	case "exit":
		typ = detector.CommandExit
	case "start":
		h.handleStart(cmd, send)
		return
	default:
		slog.Warn("unknown monitor action", "action", action)
		return
	}

	slog.Info("monitor command", "action", action)
	if err := h.monitor.Submit(detector.Command{Type: typ}); err != nil {
		SendError(send, cmd.Type, err)
		return
	}
	SendSuccess(send, cmd.Type, nil)
}

// handleStart starts a new session after a previous one ended.
func (h *CommandHandler) handleStart(cmd WSCommand, send chan<- any) {
	slog.Info("monitor command", "action", "start")
	if err := h.monitor.Start(context.Background()); err != nil {
		SendError(send, cmd.Type, err)
		return
	}
	SendSuccess(send, cmd.Type, nil)
}

// handleAlarm routes alarm/* commands
func (h *CommandHandler) handleAlarm(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "test":
		HandleCommand(cmd, send, func(req *AlarmTestRequest) error {
			slog.Info("alarm/test: queueing test alarm", "cycles", req.Cycles)
			return h.monitor.Submit(detector.Command{Type: detector.CommandTestAlarm, Cycles: req.Cycles})
		})
	default:
		slog.Warn("unknown alarm action", "action", action)
	}
}

// handleConfig routes config/* commands
func (h *CommandHandler) handleConfig(action string, send chan<- any) {
	switch action {
	case "get":
		SendData(send, types.WSConfigResponse{Type: "config", Config: h.cfg.Public()})
	default:
		slog.Warn("unknown config action", "action", action)
	}
}

// handleStatus routes status/* commands
func (h *CommandHandler) handleStatus(action string) {
	switch action {
	case "get":
		// Status is sent automatically, but explicit get triggers immediate update
		slog.Debug("status/get received, status update will be triggered")
	default:
		slog.Warn("unknown status action", "action", action)
	}
}
