package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Julusian/rpi-ws281x-artnet/internal/config"
)

// Command represents a control plane command
type Command struct {
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Response represents a command response
type Response struct {
	CommandAck string                 `json:"command_ack"`
	Status     string                 `json:"status"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Timestamp  string                 `json:"timestamp"`
}

// Client is the part of mqtt.Client the handler needs.
type Client interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// Handler handles control plane commands
type Handler struct {
	cfg      *config.Config
	client   Client
	commands chan Command

	// shutdownDelay lets the shutdown response leave before the process stops
	shutdownDelay time.Duration

	mu        sync.RWMutex
	isPaused  bool
	stopped   bool
	callbacks CommandCallbacks

	// done ends processCommands. commands is never closed: paho delivers
	// messages on its own goroutines and may still call enqueue after Stop.
	done     chan struct{}
	stopOnce sync.Once
}

// ErrStopped is returned by Subscribe after Stop.
var ErrStopped = errors.New("control plane handler stopped")

// CommandCallbacks contains callback functions for commands
type CommandCallbacks struct {
	OnGetStatus func() map[string]interface{}
	OnPause     func() error
	OnResume    func() error
	OnBlank     func() error
	OnShutdown  func() error
}

// NewHandler creates a new control plane handler
func NewHandler(cfg *config.Config, client Client, callbacks CommandCallbacks) *Handler {
	return &Handler{
		cfg:           cfg,
		client:        client,
		commands:      make(chan Command, 10),
		shutdownDelay: 500 * time.Millisecond,
		callbacks:     callbacks,
		done:          make(chan struct{}),
	}
}

// Start starts processing control commands and subscribes if the client
// is already connected. Call Subscribe again after every reconnect.
func (h *Handler) Start(ctx context.Context) error {
	go h.processCommands(ctx)

	slog.Info("control plane handler started")

	if !h.client.IsConnected() {
		slog.Warn("mqtt not connected, control plane subscription deferred until connect")
		return nil
	}
	return h.Subscribe()
}

// Subscribe (re)subscribes to the control topic.
func (h *Handler) Subscribe() error {
	if h.isStopped() {
		return ErrStopped
	}

	topic := h.cfg.MQTT.Topics.Control
	qos := h.cfg.MQTT.QoS["control"]

	slog.Info("subscribing to control plane", "topic", topic, "qos", qos)

	token := h.client.Subscribe(topic, qos, h.messageHandler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("control plane subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("control plane subscription failed: %w", err)
	}
	return nil
}

// Stop stops the control plane handler. Safe to call more than once.
func (h *Handler) Stop() error {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		h.stopped = true
		h.mu.Unlock()

		if h.client != nil && h.client.IsConnected() {
			token := h.client.Unsubscribe(h.cfg.MQTT.Topics.Control)
			token.WaitTimeout(2 * time.Second)
		}
		close(h.done)
		slog.Info("control plane handler stopped")
	})
	return nil
}

// messageHandler is called when a control message is received
func (h *Handler) messageHandler(client mqtt.Client, msg mqtt.Message) {
	h.enqueue(msg.Payload())
}

func (h *Handler) enqueue(payload []byte) {
	if h.isStopped() {
		slog.Debug("control message after stop, dropped")
		return
	}

	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		slog.Error("failed to parse control command", "error", err)
		h.sendResponse(Response{
			CommandAck: "unknown",
			Status:     "error",
			Error:      "invalid JSON",
		})
		return
	}

	slog.Info("control command received", "command", cmd.Command)

	select {
	case h.commands <- cmd:
	default:
		slog.Warn("command queue full, dropping command", "command", cmd.Command)
	}
}

// processCommands processes commands from the queue
func (h *Handler) processCommands(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case cmd := <-h.commands:
			h.handleCommand(cmd)
		}
	}
}

// handleCommand executes a command
func (h *Handler) handleCommand(cmd Command) {
	var resp Response
	resp.CommandAck = cmd.Command

	switch cmd.Command {
	case "get_status":
		if h.callbacks.OnGetStatus != nil {
			resp.Status = "success"
			resp.Data = h.callbacks.OnGetStatus()
		} else {
			resp.Status = "error"
			resp.Error = "get_status not implemented"
		}

	case "pause_output":
		if h.callbacks.OnPause != nil {
			if err := h.callbacks.OnPause(); err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
			} else {
				h.setPaused(true)
				resp.Status = "paused"
				resp.Data = map[string]interface{}{
					"output_active": false,
				}
			}
		} else {
			resp.Status = "error"
			resp.Error = "pause not implemented"
		}

	case "resume_output":
		if h.callbacks.OnResume != nil {
			if err := h.callbacks.OnResume(); err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
			} else {
				h.setPaused(false)
				resp.Status = "success"
				resp.Data = map[string]interface{}{
					"output_active": true,
				}
			}
		} else {
			resp.Status = "error"
			resp.Error = "resume not implemented"
		}

	case "blank_output":
		if h.callbacks.OnBlank != nil {
			if err := h.callbacks.OnBlank(); err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
			} else {
				resp.Status = "success"
				resp.Data = map[string]interface{}{
					"message": "strip blanked until the next frame",
				}
			}
		} else {
			resp.Status = "error"
			resp.Error = "blank_output not implemented"
		}

	case "shutdown":
		if h.callbacks.OnShutdown != nil {
			slog.Warn("shutdown command received via MQTT control plane")
			resp.Status = "success"
			resp.Data = map[string]interface{}{
				"shutdown_initiated": true,
				"message":            "graceful shutdown in progress",
			}
			// Send response BEFORE triggering shutdown
			h.sendResponse(resp)

			go func() {
				time.Sleep(h.shutdownDelay)
				if err := h.callbacks.OnShutdown(); err != nil {
					slog.Error("shutdown callback failed", "error", err)
				}
			}()
			return
		}
		resp.Status = "error"
		resp.Error = "shutdown not implemented"

	default:
		resp.Status = "error"
		resp.Error = fmt.Sprintf("unknown command: %s", cmd.Command)
	}

	h.sendResponse(resp)
}

// sendResponse sends a response to the status topic
func (h *Handler) sendResponse(resp Response) {
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339)

	payload, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to marshal response", "error", err)
		return
	}

	topic := h.cfg.MQTT.Topics.Status
	qos := h.cfg.MQTT.QoS["status"]

	token := h.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		slog.Error("response publish timeout")
		return
	}
	if err := token.Error(); err != nil {
		slog.Error("failed to publish response", "error", err)
		return
	}

	slog.Debug("response sent", "command_ack", resp.CommandAck, "status", resp.Status)
}

func (h *Handler) setPaused(v bool) {
	h.mu.Lock()
	h.isPaused = v
	h.mu.Unlock()
}

func (h *Handler) isStopped() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stopped
}

// IsPaused returns whether output is paused
func (h *Handler) IsPaused() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.isPaused
}
