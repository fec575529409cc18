package emitter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Julusian/rpi-ws281x-artnet/internal/config"
	"github.com/Julusian/rpi-ws281x-artnet/internal/framestore"
)

// Client is the part of mqtt.Client the emitter publishes through.
type Client interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTEmitter publishes bridge telemetry and frame previews to an MQTT broker
type MQTTEmitter struct {
	cfg    *config.Config
	Client mqtt.Client // Exported for control plane

	// pub is Client in production, a fake in tests
	pub Client

	// StatusFunc supplies the periodic status payload.
	StatusFunc func() map[string]interface{}

	// OnConnect runs after every (re)connect, e.g. to restore subscriptions.
	OnConnect func()

	mu        sync.RWMutex
	published map[string]uint64 // count per topic
	errors    uint64
	connected bool

	// latest-wins preview slot, filled by OfferFrame on the render goroutine
	frameMu     sync.Mutex
	frame       *framestore.Frame
	frameDrops  uint64
	lastSentSeq uint64
}

// NewMQTTEmitter creates a new MQTT emitter. The client is built here so the
// control plane can share it before Connect is called.
func NewMQTTEmitter(cfg *config.Config) *MQTTEmitter {
	e := &MQTTEmitter{
		cfg:       cfg,
		published: make(map[string]uint64),
	}
	e.Client = mqtt.NewClient(e.clientOptions())
	e.pub = e.Client
	return e
}

func (e *MQTTEmitter) broker() string {
	broker := e.cfg.MQTT.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	return broker
}

func (e *MQTTEmitter) clientOptions() *mqtt.ClientOptions {
	broker := e.broker()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(e.cfg.InstanceID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	// Connection handlers
	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		slog.Info("mqtt connection established",
			"broker", broker,
			"client_id", e.cfg.InstanceID,
			"auto_reconnect", "enabled")
		if e.OnConnect != nil {
			e.OnConnect()
		}
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		slog.Warn("mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", broker,
			"max_retry_interval", "30s",
			"action", "waiting for automatic reconnection")
	}

	return opts
}

// Connect establishes connection to MQTT broker.
//
// On timeout the client keeps retrying in the background; OnConnect fires
// once the broker is reachable.
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	slog.Info("connecting to mqtt broker", "broker", e.broker())

	token := e.Client.Connect()
	select {
	case <-token.Done():
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.setConnected(true)
	return nil
}

// PublishStatus publishes a JSON status document to the status topic
func (e *MQTTEmitter) PublishStatus(payload []byte) error {
	return e.publish(e.cfg.MQTT.Topics.Status, e.cfg.MQTT.QoS["status"], payload)
}

// PublishFrame encodes a frame with msgpack and publishes it to the preview topic
func (e *MQTTEmitter) PublishFrame(frame framestore.Frame) error {
	payload, err := EncodeFrame(frame)
	if err != nil {
		e.countError()
		return err
	}
	return e.publish(e.cfg.MQTT.Topics.Preview, e.cfg.MQTT.QoS["preview"], payload)
}

// OfferFrame hands the latest rendered frame to the preview publisher.
//
// Never blocks: an unpublished frame is replaced and counted as dropped.
// Safe to use as renderer.Options.OnFrame.
func (e *MQTTEmitter) OfferFrame(frame framestore.Frame) {
	e.frameMu.Lock()
	if e.frame != nil {
		e.frameDrops++
	}
	e.frame = &frame
	e.frameMu.Unlock()
}

func (e *MQTTEmitter) takeFrame() (framestore.Frame, bool) {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	if e.frame == nil {
		return framestore.Frame{}, false
	}
	f := *e.frame
	e.frame = nil
	e.lastSentSeq = f.Seq
	return f, true
}

// Run publishes status and throttled previews until ctx is cancelled.
func (e *MQTTEmitter) Run(ctx context.Context) error {
	statusTicker := time.NewTicker(e.cfg.MQTT.StatusInterval())
	defer statusTicker.Stop()

	// A nil channel never fires: preview disabled.
	var previewC <-chan time.Time
	if iv := e.cfg.MQTT.PreviewInterval(); iv > 0 {
		previewTicker := time.NewTicker(iv)
		defer previewTicker.Stop()
		previewC = previewTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-statusTicker.C:
			e.emitStatus()

		case <-previewC:
			if frame, ok := e.takeFrame(); ok {
				if err := e.PublishFrame(frame); err != nil {
					slog.Debug("preview publish skipped", "seq", frame.Seq, "error", err)
				}
			}
		}
	}
}

func (e *MQTTEmitter) emitStatus() {
	if e.StatusFunc == nil {
		return
	}
	payload, err := marshalStatus(e.StatusFunc())
	if err != nil {
		slog.Error("failed to marshal status", "error", err)
		return
	}
	if err := e.PublishStatus(payload); err != nil {
		slog.Debug("status publish skipped", "error", err)
	}
}

func (e *MQTTEmitter) publish(topic string, qos byte, payload []byte) error {
	if !e.isConnected() {
		e.countError()
		return fmt.Errorf("mqtt not connected")
	}

	token := e.pub.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	slog.Debug("mqtt message published",
		"topic", topic,
		"qos", qos,
		"size", len(payload),
	)
	return nil
}

// Disconnect closes the MQTT connection
func (e *MQTTEmitter) Disconnect() error {
	if e.Client != nil && e.Client.IsConnected() {
		e.Client.Disconnect(250) // 250ms grace period
		slog.Info("mqtt disconnected")
	}
	e.setConnected(false)
	return nil
}

// Stats contains emitter statistics
type Stats struct {
	Connected   bool
	Published   map[string]uint64
	Errors      uint64
	FrameDrops  uint64
	LastSentSeq uint64
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	s := Stats{
		Connected: e.connected,
		Published: published,
		Errors:    e.errors,
	}
	e.mu.RUnlock()

	e.frameMu.Lock()
	s.FrameDrops = e.frameDrops
	s.LastSentSeq = e.lastSentSeq
	e.frameMu.Unlock()

	return s
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected && e.pub != nil
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
